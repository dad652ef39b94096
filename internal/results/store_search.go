package results

import (
	"context"
	"strings"
)

// Search returns rows matching the query. Empty or Wildcard name fields match
// everything; Relevant, when set, constrains the relevance flag.
func (s *Store) Search(ctx context.Context, query SearchQuery) ([]*Result, error) {
	var (
		clauses []string
		args    []any
	)
	if constrained(query.WorkflowID) {
		clauses = append(clauses, "workflow_id = ?")
		args = append(args, query.WorkflowID)
	}
	if constrained(query.StepName) {
		clauses = append(clauses, "step_name = ?")
		args = append(args, query.StepName)
	}
	if constrained(query.OutputName) {
		clauses = append(clauses, "output_name = ?")
		args = append(args, query.OutputName)
	}
	if query.Relevant != nil {
		clauses = append(clauses, "relevant = ?")
		args = append(args, boolToInt(*query.Relevant))
	}

	sqlQuery := `SELECT id, ` + resultColumns + ` FROM results`
	if len(clauses) > 0 {
		sqlQuery += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	sqlQuery += ` ORDER BY id`
	return s.queryResults(ctx, sqlQuery, args...)
}

func constrained(field string) bool {
	return field != "" && field != Wildcard
}
