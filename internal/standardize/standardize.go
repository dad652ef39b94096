package standardize

// resolver rewrites a name, reporting whether it applied.
type resolver func(name string) (string, bool)

// stepChain is the ordered rewrite chain for step names. Each resolver runs
// against the output of the previous hit; the chain terminates in identity.
var stepChain = []resolver{
	tableResolver(stepAliases),
}

// Step returns the canonical name for an engine step or tool. Rewrites chain
// until a fixed point: a name that is the legacy form of another legacy form
// resolves all the way through.
func Step(name string) string {
	seen := map[string]bool{name: true}
	current := name
	for {
		next := current
		for _, resolve := range stepChain {
			if resolved, ok := resolve(next); ok {
				next = resolved
			}
		}
		if next == current || seen[next] {
			return next
		}
		seen[next] = true
		current = next
	}
}

// Output returns the canonical name for an output produced by the given
// (already canonical) step. Steps with a scoped alias table resolve only
// against it; every other step resolves against the global table. Canonical
// names pass through unchanged, so re-standardizing a stored row is a no-op.
func Output(step, name string) string {
	if scoped, ok := scopedOutputAliases[step]; ok {
		if canonical, ok := scoped[name]; ok {
			return canonical
		}
		return name
	}
	if canonical, ok := outputAliases[name]; ok {
		return canonical
	}
	return name
}

// OutputType returns the file type for an output. The engine's extension
// wins when present; otherwise the type is looked up by the canonical
// output name.
func OutputType(name, ext string) string {
	if ext != "" {
		return ext
	}
	return outputTypes[name]
}

func tableResolver(table map[string]string) resolver {
	return func(name string) (string, bool) {
		canonical, ok := table[name]
		return canonical, ok
	}
}
