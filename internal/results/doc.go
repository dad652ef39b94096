// Package results maintains the local mirror of engine outputs and the
// canonical status vocabulary.
//
// Each Result row mirrors one output of one step of one invocation, keyed by
// the engine-assigned output ID. The Store persists rows in SQLite and exposes
// the queries reconciliation and the dashboard layer need: lookup by output
// ID, staleness scans for mark-and-sweep deletion, final-result queries, and
// wildcard-aware searches over workflow/step/output names.
//
// The invariant this package protects: at most one surviving row per output
// ID. Duplicates can only appear through races or historical bugs; the
// reconciliation engine resolves them, preferring final-flagged rows.
// Schema changes bump schemaVersion in schema.go.
package results
