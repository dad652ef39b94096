// Package config loads, normalizes, and validates loom configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LOOM_ENGINE_API_KEY. The Config type centralizes every knob the CLI and
// background refreshers need: engine endpoint and credentials, refresh
// staleness windows, and data/log directories.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
