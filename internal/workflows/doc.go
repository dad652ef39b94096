// Package workflows lists engine workflows and resolves workflow IDs to
// display names through an injected cache.
package workflows
