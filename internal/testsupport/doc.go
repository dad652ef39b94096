// Package testsupport provides shared helpers for package tests: temp-dir
// configs, store constructors with cleanup, and an in-memory engine client.
package testsupport
