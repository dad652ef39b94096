// Package reconcile keeps the local result table consistent with the engine:
// targeted status refreshes, full sweeps with mark-and-sweep deletion, and
// relevance propagation back to the engine.
package reconcile
