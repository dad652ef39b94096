// Package jobs stages assets onto the engine and submits workflow
// invocations against them: positional input binding, tool-specific
// parameter injection, and batch/bundle submission with per-asset isolation.
package jobs
