// Package engine talks to the remote workflow-execution engine over its JSON
// HTTP API.
//
// The Client interface covers the operations loom depends on: listing and
// inspecting invocations, fetching outputs, submitting invocation requests,
// toggling output visibility, uploading assets, and creating output
// containers. HTTPClient is the production implementation; tests substitute
// fakes through the same interface.
//
// All calls are synchronous and carry the caller's context. The engine is
// eventually consistent; callers must tolerate records that disappear or
// change between calls.
package engine
