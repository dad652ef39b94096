// Package logging assembles the structured slog loggers used across loom
// components.
//
// It centralizes level and output plumbing, exposes context-aware helpers so
// orchestration code automatically tags log lines with asset, workflow, and
// correlation identifiers, and provides a no-op logger for tests and wiring
// code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
