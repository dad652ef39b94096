package jobs

import (
	"context"
	"fmt"
	"strconv"

	"loom/internal/assets"
	"loom/internal/engine"
	"loom/internal/results"
)

// bindInputs maps the asset and the supplementary result outputs onto the
// workflow's declared input slots. Binding is positional: when the asset
// participates it takes slot "0" and prior outputs fill the slots after it,
// in the order supplied; without an asset the prior outputs start at "0".
func bindInputs(req *engine.InvocationRequest, def *engine.WorkflowDefinition, asset *assets.Asset, includeAsset bool, supplements []*results.Result) error {
	supplied := len(supplements)
	if includeAsset {
		supplied++
	}
	if len(def.Inputs) != supplied {
		return fmt.Errorf("%w: workflow %s declares %d input slots, got %d inputs",
			ErrInputCountMismatch, def.ID, len(def.Inputs), supplied)
	}

	req.Inputs = make(map[string]engine.InvocationInput, supplied)
	slot := 0
	if includeAsset {
		req.Inputs["0"] = engine.InvocationInput{ID: asset.DatasetRef, Source: engine.SourceDataset}
		slot = 1
	}
	for _, row := range supplements {
		name := strconv.Itoa(slot)
		if _, declared := def.Inputs[name]; !declared {
			return fmt.Errorf("%w: workflow %s has no input slot %s",
				ErrInputCountMismatch, def.ID, name)
		}
		req.Inputs[name] = engine.InvocationInput{ID: row.OutputID, Source: engine.SourceOutput}
		slot++
	}
	return nil
}

// resolveSupplements loads the prior result rows named by a submission and
// checks they form a coherent input set: one asset, one container.
func (o *Orchestrator) resolveSupplements(ctx context.Context, ids []int64) ([]*results.Result, error) {
	rows := make([]*results.Result, 0, len(ids))
	for _, id := range ids {
		row, err := o.results.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, fmt.Errorf("supplementary input %d does not exist", id)
		}
		rows = append(rows, row)
	}
	if len(rows) > 1 {
		first := rows[0]
		for _, row := range rows[1:] {
			if row.AssetID != first.AssetID || row.ContainerRef != first.ContainerRef {
				return nil, fmt.Errorf("%w: outputs %s and %s come from different assets",
					ErrInconsistentInputSet, first.OutputID, row.OutputID)
			}
		}
	}
	return rows, nil
}

// validateSupplements checks that the prior outputs can feed an invocation
// for this asset.
func validateSupplements(rows []*results.Result, asset *assets.Asset) error {
	for _, row := range rows {
		if row.AssetID != asset.ID {
			return fmt.Errorf("%w: output %s belongs to asset %d, not %d",
				ErrInconsistentInputSet, row.OutputID, row.AssetID, asset.ID)
		}
		if row.ContainerRef != asset.ContainerRef {
			return fmt.Errorf("%w: output %s lives in container %s, asset uses %s",
				ErrInconsistentInputSet, row.OutputID, row.ContainerRef, asset.ContainerRef)
		}
	}
	return nil
}
