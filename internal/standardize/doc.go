// Package standardize maps the engine's historical step and output names to
// their canonical forms so result rows stay queryable across tool renames.
package standardize
