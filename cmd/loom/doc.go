// Command loom submits media workflows to a remote execution engine and
// reconciles their results into a local dashboard table.
package main
