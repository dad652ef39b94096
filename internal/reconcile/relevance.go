package reconcile

import (
	"context"

	"loom/internal/results"
	"loom/internal/services"
)

// SetRelevant flips the relevance flag on every row matching any of the
// criteria and pushes the matching visibility to the engine. Only rows whose
// flag differs from the target are considered, and rows matched by several
// criteria are toggled once. Each row is handled in isolation: a failed
// engine call on one output never blocks the rest, and the local flag only
// changes after the engine accepted the toggle.
func (s *Service) SetRelevant(ctx context.Context, criteria []results.SearchQuery, relevant bool) (services.BatchTally[*results.Result], error) {
	opposite := !relevant
	seen := make(map[int64]bool)
	var rows []*results.Result
	for _, query := range criteria {
		query.Relevant = &opposite
		matched, err := s.results.Search(ctx, query)
		if err != nil {
			return services.BatchTally[*results.Result]{}, err
		}
		for _, row := range matched {
			if seen[row.ID] {
				continue
			}
			seen[row.ID] = true
			rows = append(rows, row)
		}
	}

	tally := services.ForEachIsolated(ctx, s.logger, rows,
		func(row *results.Result) string { return row.OutputID },
		func(ctx context.Context, row *results.Result) error {
			if err := s.engine.SetOutputVisible(ctx, row.ContainerRef, row.OutputID, relevant); err != nil {
				return err
			}
			row.Relevant = relevant
			return s.results.Save(ctx, row)
		})
	return tally, nil
}
