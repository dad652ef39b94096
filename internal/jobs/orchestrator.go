package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"loom/internal/assets"
	"loom/internal/config"
	"loom/internal/engine"
	"loom/internal/logging"
	"loom/internal/reconcile"
	"loom/internal/results"
	"loom/internal/services"
	"loom/internal/workflows"
)

// SubmitRequest asks for one workflow invocation. SupplementIDs name prior
// result rows bound, in order, to the workflow's input slots after the
// asset's. AssetID may be zero when SupplementIDs identify the asset; the
// invocation then binds only the prior outputs. Parameters are caller
// overrides keyed by step ID.
type SubmitRequest struct {
	AssetID       int64
	WorkflowID    string
	SupplementIDs []int64
	Parameters    map[string]map[string]string
}

// Submission is the outcome of one submission attempt. Err carries the
// failure; a nil Err means the engine accepted the invocation.
type Submission struct {
	AssetID      int64
	WorkflowID   string
	InvocationID string
	ContainerRef string
	Err          error
}

// Orchestrator stages assets and drives workflow submissions.
type Orchestrator struct {
	cfg       *config.Config
	engine    engine.Client
	assets    *assets.Store
	results   *results.Store
	workflows *workflows.Service
	recorder  *reconcile.Service
	logger    *slog.Logger
}

// NewOrchestrator wires a submission orchestrator.
func NewOrchestrator(cfg *config.Config, client engine.Client, assetStore *assets.Store, resultStore *results.Store, wf *workflows.Service, recorder *reconcile.Service, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		engine:    client,
		assets:    assetStore,
		results:   resultStore,
		workflows: wf,
		recorder:  recorder,
		logger:    logger,
	}
}

// Submit stages the asset if needed and submits one invocation. It never
// returns an error: failures land on the Submission so batch callers can
// tally them uniformly.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) *Submission {
	ctx = services.WithComponent(ctx, "jobs")
	ctx = services.WithAssetID(ctx, req.AssetID)
	ctx = services.WithWorkflowID(ctx, req.WorkflowID)

	sub := &Submission{AssetID: req.AssetID, WorkflowID: req.WorkflowID}
	if err := o.submit(ctx, req, sub); err != nil {
		logging.WithContext(ctx, o.logger).Error("submission failed", logging.Error(err))
		sub.Err = err
	}
	return sub
}

func (o *Orchestrator) submit(ctx context.Context, req SubmitRequest, sub *Submission) error {
	supplements, err := o.resolveSupplements(ctx, req.SupplementIDs)
	if err != nil {
		return err
	}

	// The asset is either named directly or inferred from the prior outputs.
	assetID := req.AssetID
	if assetID == 0 {
		if len(supplements) == 0 {
			return services.Wrap(services.ErrValidation, "jobs", "submit",
				"neither an asset nor prior outputs were supplied", nil)
		}
		assetID = supplements[0].AssetID
	}
	sub.AssetID = assetID
	asset, err := o.assets.GetByID(ctx, assetID)
	if err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("%w: %d", ErrAssetNotFound, assetID)
	}

	def, err := o.engine.GetWorkflowDefinition(ctx, req.WorkflowID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrWorkflowNotFound, req.WorkflowID)
		}
		return err
	}

	bindAsset := req.AssetID != 0
	if bindAsset {
		asset, err = o.stage(ctx, asset)
		if err != nil {
			return err
		}
	}
	if err := validateSupplements(supplements, asset); err != nil {
		return err
	}

	invReq := &engine.InvocationRequest{
		WorkflowID:   def.ID,
		ContainerRef: asset.ContainerRef,
		Parameters:   cloneParameters(req.Parameters),
	}
	if err := bindInputs(invReq, def, asset, bindAsset, supplements); err != nil {
		return err
	}
	if err := o.injectParameters(ctx, invReq, def, asset); err != nil {
		return err
	}

	resp, err := o.engine.SubmitInvocation(ctx, invReq)
	if err != nil {
		return err
	}

	o.logger.Info("invocation submitted",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String(logging.FieldWorkflowID, def.ID),
		logging.String(logging.FieldInvocationID, resp.InvocationID))

	// Seed result rows now so the dashboard shows the invocation before the
	// first sweep. A seeding failure is not a submission failure.
	if _, err := o.recorder.RecordInvocation(ctx, asset, def.ID, resp.InvocationID); err != nil {
		o.logger.Warn("result seeding failed",
			logging.String(logging.FieldInvocationID, resp.InvocationID),
			logging.Error(err))
	}
	sub.InvocationID = resp.InvocationID
	sub.ContainerRef = asset.ContainerRef
	return nil
}

// stage uploads the asset's media and creates its output container, exactly
// once per asset. Already-staged assets pass through untouched, so repeat
// submissions reuse the original engine handles.
func (o *Orchestrator) stage(ctx context.Context, asset *assets.Asset) (*assets.Asset, error) {
	if asset.Staged() {
		return asset, nil
	}

	datasetRef := asset.DatasetRef
	if datasetRef == "" {
		if asset.Pathname == "" {
			return nil, fmt.Errorf("%w: asset %d has no media file", ErrAssetNotStaged, asset.ID)
		}
		ref, err := o.engine.UploadAsset(ctx, filepath.Join(o.cfg.Paths.MediaDir, asset.Pathname))
		if err != nil {
			return nil, err
		}
		datasetRef = ref
	}

	containerRef := asset.ContainerRef
	if containerRef == "" {
		ref, err := o.engine.CreateContainer(ctx, containerName(asset.ID))
		if err != nil {
			return nil, err
		}
		containerRef = ref
	}

	if err := o.assets.SetEngineRefs(ctx, asset.ID, datasetRef, containerRef); err != nil {
		return nil, err
	}
	staged, err := o.assets.GetByID(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	o.logger.Info("asset staged",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String("container_ref", staged.ContainerRef))
	return staged, nil
}

// containerName is deterministic per asset so re-staging after a lost
// database row can find the original container by name.
func containerName(assetID int64) string {
	return "Output Container for Asset-" + strconv.FormatInt(assetID, 10)
}

// SubmitBatch submits the workflow once per asset. Assets fail in isolation;
// the returned submissions hold per-asset outcomes and the tally summarizes
// them.
func (o *Orchestrator) SubmitBatch(ctx context.Context, workflowID string, assetIDs []int64, params map[string]map[string]string) ([]*Submission, services.BatchTally[int64]) {
	submissions := make([]*Submission, 0, len(assetIDs))
	tally := services.ForEachIsolated(ctx, o.logger, assetIDs,
		func(id int64) string { return strconv.FormatInt(id, 10) },
		func(ctx context.Context, id int64) error {
			sub := o.Submit(ctx, SubmitRequest{AssetID: id, WorkflowID: workflowID, Parameters: params})
			submissions = append(submissions, sub)
			return sub.Err
		})
	return submissions, tally
}

// SubmitBundle submits the workflow for every asset in a named bundle.
func (o *Orchestrator) SubmitBundle(ctx context.Context, workflowID, bundle string, params map[string]map[string]string) ([]*Submission, services.BatchTally[int64], error) {
	members, err := o.assets.ListBundle(ctx, bundle)
	if err != nil {
		return nil, services.BatchTally[int64]{}, err
	}
	if len(members) == 0 {
		return nil, services.BatchTally[int64]{}, fmt.Errorf("bundle %q has no assets", bundle)
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	submissions, tally := o.SubmitBatch(ctx, workflowID, ids, params)
	return submissions, tally, nil
}

// ListInvocations returns the engine invocations recorded against an asset,
// optionally narrowed to one workflow.
func (o *Orchestrator) ListInvocations(ctx context.Context, assetID int64, workflowID string) ([]engine.Invocation, error) {
	asset, err := o.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, fmt.Errorf("%w: %d", ErrAssetNotFound, assetID)
	}
	if asset.ContainerRef == "" {
		return nil, nil
	}
	return o.engine.ListInvocations(ctx, o.cfg.Engine.Username, workflowID, asset.ContainerRef)
}

// ShowOutput fetches the live engine state of one output of an asset.
func (o *Orchestrator) ShowOutput(ctx context.Context, assetID int64, outputID string) (*engine.Output, error) {
	asset, err := o.assets.GetByID(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, fmt.Errorf("%w: %d", ErrAssetNotFound, assetID)
	}
	return o.engine.GetOutput(ctx, asset.ContainerRef, outputID)
}

func cloneParameters(params map[string]map[string]string) map[string]map[string]string {
	if len(params) == 0 {
		return nil
	}
	cloned := make(map[string]map[string]string, len(params))
	for stepID, stepParams := range params {
		inner := make(map[string]string, len(stepParams))
		for name, value := range stepParams {
			inner[name] = value
		}
		cloned[stepID] = inner
	}
	return cloned
}
