// Package services provides cross-cutting helpers shared by every loom
// component: the sentinel error taxonomy used to classify failures, context
// annotation for correlation identifiers, and the batch combinator that
// isolates per-unit failures during bulk operations.
//
// Components wrap their errors with the sentinels here so callers can switch
// on failure class (validation vs remote vs consistency) without string
// matching. Prefer Wrap over hand-built fmt.Errorf chains so messages keep a
// uniform component/operation/detail shape.
package services
