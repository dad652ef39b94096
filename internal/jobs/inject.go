package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"loom/internal/assets"
	"loom/internal/engine"
)

// Tool ID prefixes that trigger parameter injection.
const (
	hmgmToolPrefix = "hmgm"
	faceToolPrefix = "dlib_face"
)

const (
	paramContextJSON    = "context_json"
	paramTrainingPhotos = "training_photos"
)

// taskContext is the editor-facing context handed to human-in-the-loop
// tools. It tells the task manager what is being edited and where the media
// lives.
type taskContext struct {
	Submitter      string `json:"submitter"`
	UnitID         int64  `json:"unit_id"`
	UnitName       string `json:"unit_name"`
	CollectionID   int64  `json:"collection_id"`
	CollectionName string `json:"collection_name"`
	TaskManager    string `json:"task_manager"`
	ItemID         int64  `json:"item_id"`
	ItemName       string `json:"item_name"`
	AssetID        int64  `json:"asset_id"`
	AssetName      string `json:"asset_name"`
	AssetURL       string `json:"asset_url"`
	MediaInfo      string `json:"media_info,omitempty"`
	WorkflowID     string `json:"workflow_id"`
	WorkflowName   string `json:"workflow_name"`
}

// sanitizeText hex-escapes quote characters so the value survives being
// embedded in tool command lines.
var sanitizeText = strings.NewReplacer(`'`, `%27`, `"`, `%22`).Replace

// injectParameters applies tool-specific parameters to every step whose tool
// needs them. The context JSON for human-in-the-loop steps is computed once
// per invocation and shared across steps.
func (o *Orchestrator) injectParameters(ctx context.Context, req *engine.InvocationRequest, def *engine.WorkflowDefinition, asset *assets.Asset) error {
	var contextJSON string

	for stepID, step := range def.Steps {
		switch {
		case strings.HasPrefix(step.ToolID, hmgmToolPrefix):
			if contextJSON == "" {
				encoded, err := o.buildTaskContext(def, asset)
				if err != nil {
					return err
				}
				contextJSON = encoded
			}
			// The context is system-generated; a caller-supplied value is
			// overwritten.
			req.SetParameter(stepID, paramContextJSON, contextJSON)
		case strings.HasPrefix(step.ToolID, faceToolPrefix):
			if err := o.injectTrainingPhotos(ctx, req, stepID, step, asset); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) buildTaskContext(def *engine.WorkflowDefinition, asset *assets.Asset) (string, error) {
	tc := taskContext{
		Submitter:      o.cfg.Engine.Username,
		UnitID:         asset.UnitID,
		UnitName:       sanitizeText(asset.UnitName),
		CollectionID:   asset.CollectionID,
		CollectionName: sanitizeText(asset.CollectionName),
		TaskManager:    asset.TaskManager,
		ItemID:         asset.ItemID,
		ItemName:       sanitizeText(asset.ItemName),
		AssetID:        asset.ID,
		AssetName:      sanitizeText(asset.Name),
		AssetURL:       o.assetURL(asset),
		MediaInfo:      asset.MediaInfoPath,
		WorkflowID:     def.ID,
		WorkflowName:   sanitizeText(def.Name),
	}
	encoded, err := json.Marshal(tc)
	if err != nil {
		return "", fmt.Errorf("encode task context: %w", err)
	}
	return string(encoded), nil
}

// assetURL builds the media URL for the context. The path goes through the
// same quote escaping as the names; a quote in a filename would otherwise
// reach tool command lines raw.
func (o *Orchestrator) assetURL(asset *assets.Asset) string {
	base := strings.TrimRight(o.cfg.Media.BaseURL, "/")
	if base == "" || asset.Pathname == "" {
		return ""
	}
	return base + "/" + sanitizeText(strings.TrimLeft(asset.Pathname, "/"))
}

// injectTrainingPhotos resolves the training photos for a face-recognition
// step. A caller-supplied parameter names the training set; failing that,
// the workflow definition's static tool input does. The name then resolves
// through the training-asset registry for the asset's collection.
func (o *Orchestrator) injectTrainingPhotos(ctx context.Context, req *engine.InvocationRequest, stepID string, step engine.StepDef, asset *assets.Asset) error {
	name, _ := req.Parameter(stepID, paramTrainingPhotos)
	if name == "" {
		name = step.ToolInputs[paramTrainingPhotos]
	}
	if name == "" {
		return fmt.Errorf("%w: step %s names no training set", ErrMissingTrainingAsset, stepID)
	}

	path, err := o.assets.ResolveTrainingAsset(ctx, asset.CollectionID, name)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: %q is not registered for collection %d",
			ErrMissingTrainingAsset, name, asset.CollectionID)
	}
	req.SetParameter(stepID, paramTrainingPhotos, path)
	return nil
}
