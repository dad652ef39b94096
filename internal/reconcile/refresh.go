package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loom/internal/assets"
	"loom/internal/engine"
	"loom/internal/logging"
	"loom/internal/results"
	"loom/internal/services"
	"loom/internal/standardize"
)

// RefreshOne re-reads the engine state of a single result row. Rows whose
// output has been deleted or purged on the engine are removed. Targeted
// refreshes never touch DateRefreshed; that timestamp belongs to full sweeps.
func (s *Service) RefreshOne(ctx context.Context, resultID int64) (*results.Result, error) {
	row, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("result %d does not exist", resultID)
	}

	output, err := s.engine.GetOutput(ctx, row.ContainerRef, row.OutputID)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}
	if err != nil || output.Excluded() {
		if _, delErr := s.results.Delete(ctx, row.ID); delErr != nil {
			return nil, delErr
		}
		s.logger.Info("removed result for excluded output",
			logging.String(logging.FieldOutputID, row.OutputID),
			logging.Int64(logging.FieldAssetID, row.AssetID))
		return nil, nil
	}

	row.Status = results.TranslateState(output.State)
	row.OutputType = standardize.OutputType(row.OutputName, output.FileExt)
	row.OutputPath = output.FileName
	row.Relevant = output.Visible
	row.DateCreated = output.CreateTime
	row.DateUpdated = output.UpdateTime
	if err := s.results.Save(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// RefreshIncomplete refreshes every incomplete row whose last status check
// is older than the status window. Failures are isolated per row.
func (s *Service) RefreshIncomplete(ctx context.Context) (services.BatchTally[*results.Result], error) {
	cutoff := s.now().Add(-s.statusWindow())
	stale, err := s.results.FindStale(ctx, cutoff)
	if err != nil {
		return services.BatchTally[*results.Result]{}, err
	}
	tally := services.ForEachIsolated(ctx, s.logger, stale,
		func(row *results.Result) string { return row.OutputID },
		func(ctx context.Context, row *results.Result) error {
			_, err := s.RefreshOne(ctx, row.ID)
			return err
		})
	return tally, nil
}

// SweepReport summarizes one full reconciliation sweep.
type SweepReport struct {
	AssetsVisited int
	AssetsSkipped int
	RowsUpserted  int
	RowsDeleted   int64
}

// RefreshAll walks every invocation the configured engine user owns and
// rebuilds the result table from it, then deletes rows the sweep no longer
// accounts for. Assets refreshed within the table window are skipped whole,
// so back-to-back sweeps stay cheap.
func (s *Service) RefreshAll(ctx context.Context) (*SweepReport, error) {
	ctx = services.WithComponent(ctx, "reconcile")
	sweepStart := s.now().UTC()
	report := &SweepReport{}

	invocations, err := s.engine.ListInvocations(ctx, s.cfg.Engine.Username, "", "")
	if err != nil {
		return nil, err
	}

	byContainer := make(map[string][]engine.Invocation)
	for _, inv := range invocations {
		byContainer[inv.ContainerRef] = append(byContainer[inv.ContainerRef], inv)
	}

	// Each container is one unit of work: a bad container (or a bad asset
	// mapping) must not abort the sweep for everyone else.
	refs := make([]string, 0, len(byContainer))
	for ref := range byContainer {
		refs = append(refs, ref)
	}
	skipAfter := sweepStart.Add(-s.tableWindow())
	services.ForEachIsolated(ctx, s.logger, refs,
		func(ref string) string { return ref },
		func(ctx context.Context, ref string) error {
			return s.refreshContainer(ctx, ref, byContainer[ref], sweepStart, skipAfter, report)
		})

	deleted, err := s.sweepObsolete(ctx, sweepStart)
	if err != nil {
		return nil, err
	}
	report.RowsDeleted = deleted
	return report, nil
}

// RecordInvocation seeds result rows for a freshly submitted invocation.
// Rows start with a zero DateRefreshed, which marks the owning asset stale
// for the next full sweep.
func (s *Service) RecordInvocation(ctx context.Context, asset *assets.Asset, workflowID, invocationID string) ([]*results.Result, error) {
	return s.refreshInvocation(ctx, asset, workflowID, invocationID, time.Time{})
}

// FinalResults returns the user-curated final rows for an asset, each
// refreshed targeted-style first so the caller sees live statuses. A row
// whose refresh fails is returned as stored.
func (s *Service) FinalResults(ctx context.Context, assetID int64) ([]*results.Result, error) {
	finals, err := s.results.FindFinalByAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	fresh := make([]*results.Result, 0, len(finals))
	services.ForEachIsolated(ctx, s.logger, finals,
		func(row *results.Result) string { return row.OutputID },
		func(ctx context.Context, row *results.Result) error {
			refreshed, err := s.RefreshOne(ctx, row.ID)
			if err != nil {
				fresh = append(fresh, row)
				return err
			}
			if refreshed != nil {
				fresh = append(fresh, refreshed)
			}
			return nil
		})
	return fresh, nil
}

func (s *Service) deleteRowsForOutput(ctx context.Context, outputID string) error {
	rows, err := s.results.FindByOutputID(ctx, outputID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	if _, err := s.results.Delete(ctx, ids...); err != nil {
		return err
	}
	s.logger.Warn("deleted result rows for excluded output",
		logging.String(logging.FieldOutputID, outputID),
		logging.Int("rows", len(rows)))
	return nil
}

// refreshContainer handles one container's slice of the sweep: resolve the
// owning asset, honor the skip window, refresh every invocation. Invocation
// failures are logged and skipped within the container as well.
func (s *Service) refreshContainer(ctx context.Context, containerRef string, invs []engine.Invocation, sweepStart, skipAfter time.Time, report *SweepReport) error {
	asset, err := s.assetForContainer(ctx, containerRef)
	if err != nil {
		return err
	}
	if asset == nil {
		// Container belongs to something outside this deployment.
		return nil
	}

	oldest, ok, err := s.results.OldestRefreshedByAsset(ctx, asset.ID)
	if err != nil {
		return err
	}
	if ok && oldest.After(skipAfter) {
		report.AssetsSkipped++
		return nil
	}

	report.AssetsVisited++
	assetCtx := services.WithAssetID(ctx, asset.ID)
	for _, inv := range invs {
		upserted, err := s.refreshInvocation(assetCtx, asset, inv.WorkflowID, inv.ID, sweepStart)
		if err != nil {
			logging.WithContext(assetCtx, s.logger).Warn("invocation refresh failed",
				logging.String(logging.FieldInvocationID, inv.ID),
				logging.Error(err))
			continue
		}
		report.RowsUpserted += len(upserted)
	}
	return nil
}

func (s *Service) assetForContainer(ctx context.Context, containerRef string) (*assets.Asset, error) {
	matches, err := s.assets.FindByContainerRef(ctx, containerRef)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, services.Wrap(services.ErrConsistency, "reconcile", "resolve container",
			fmt.Sprintf("container %s maps to %d assets", containerRef, len(matches)), nil)
	}
}

// refreshInvocation upserts one row per live output of the invocation.
// refreshedAt stamps DateRefreshed; the zero time leaves it untouched.
func (s *Service) refreshInvocation(ctx context.Context, asset *assets.Asset, workflowID, invocationID string, refreshedAt time.Time) ([]*results.Result, error) {
	detail, err := s.engine.GetInvocationDetail(ctx, workflowID, invocationID)
	if err != nil {
		return nil, err
	}

	workflowName := s.workflows.Name(ctx, workflowID)
	var upserted []*results.Result
	for _, step := range detail.Steps {
		if len(step.Jobs) == 0 || len(step.Outputs) == 0 {
			// Input steps carry no jobs; nothing to record.
			continue
		}
		// A step rerun within the invocation leaves several jobs; the last
		// one is the newest.
		job := step.Jobs[len(step.Jobs)-1]
		stepName := standardize.Step(job.ToolID)
		toolInfo, err := s.results.ToolInfo(ctx, job.ToolID, job.CreateTime)
		if err != nil {
			return nil, err
		}

		for rawName, ref := range step.Outputs {
			output, err := s.engine.GetOutput(ctx, detail.ContainerRef, ref.ID)
			if err != nil && !errors.Is(err, services.ErrNotFound) {
				return nil, err
			}
			if err != nil || output.Excluded() {
				// Any local rows for an excluded output go right away
				// instead of waiting out the mark-and-sweep window.
				if err := s.deleteRowsForOutput(ctx, ref.ID); err != nil {
					return nil, err
				}
				continue
			}

			row, err := s.rowForOutput(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			if row == nil {
				row = &results.Result{OutputID: ref.ID, Relevant: output.Visible}
			}

			row.InvocationID = invocationID
			row.StepID = step.ID
			row.WorkflowID = workflowID
			row.ContainerRef = detail.ContainerRef
			row.AssetID = asset.ID
			row.AssetName = asset.Name
			row.ItemName = asset.ItemName
			row.CollectionName = asset.CollectionName
			row.WorkflowName = workflowName
			row.StepName = stepName
			row.OutputName = standardize.Output(stepName, rawName)
			row.OutputType = standardize.OutputType(row.OutputName, output.FileExt)
			row.OutputPath = output.FileName
			row.ToolInfo = toolInfo
			row.Submitter = s.cfg.Engine.Username
			row.Status = results.TranslateState(output.State)
			row.DateCreated = output.CreateTime
			row.DateUpdated = output.UpdateTime
			if !refreshedAt.IsZero() {
				row.DateRefreshed = refreshedAt
			}
			if err := s.results.Save(ctx, row); err != nil {
				return nil, err
			}
			upserted = append(upserted, row)
		}
	}
	return upserted, nil
}

// rowForOutput returns the surviving row for an output ID, collapsing
// duplicates first. When duplicates exist the final-flagged row wins;
// otherwise the oldest row survives.
func (s *Service) rowForOutput(ctx context.Context, outputID string) (*results.Result, error) {
	rows, err := s.results.FindByOutputID(ctx, outputID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	keeper := rows[0]
	for _, row := range rows[1:] {
		if row.IsFinal && !keeper.IsFinal {
			keeper = row
		}
	}
	var extra []int64
	for _, row := range rows {
		if row.ID != keeper.ID {
			extra = append(extra, row.ID)
		}
	}
	if len(extra) > 0 {
		if _, err := s.results.Delete(ctx, extra...); err != nil {
			return nil, err
		}
		s.logger.Warn("collapsed duplicate result rows",
			logging.String(logging.FieldOutputID, outputID),
			logging.Int("duplicates", len(extra)))
	}
	return keeper, nil
}

func (s *Service) sweepObsolete(ctx context.Context, sweepStart time.Time) (int64, error) {
	cutoff := sweepStart.Add(-s.tableWindow())
	obsolete, err := s.results.FindObsolete(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(obsolete) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(obsolete))
	for i, row := range obsolete {
		ids[i] = row.ID
	}
	return s.results.Delete(ctx, ids...)
}
