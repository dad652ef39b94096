// Package assets persists the media assets that workflows run against.
//
// Assets are created and maintained by the surrounding management layer; loom
// reads them and writes exactly one thing: the two engine handles (dataset
// ref and container ref) assigned when an asset is first staged on the
// engine. Once set, the handles are immutable and reused by every future
// invocation.
//
// The package also stores bundle membership (named groups used by batch
// submission) and the training-asset registry that trainable tool categories
// resolve logical names against.
package assets
