package compiler

import "strings"

// Filter drops diagnostics that flag identifiers the execution environment
// injects at run time. Those names are unresolvable statically but
// guaranteed present once the cell runs; everything else passes through
// with its source severity.
func Filter(diags []Diagnostic, knownEnvironmentIdentifiers []string) []Diagnostic {
	known := make(map[string]struct{}, len(knownEnvironmentIdentifiers))
	for _, n := range knownEnvironmentIdentifiers {
		known[n] = struct{}{}
	}

	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if name, ok := unresolvedName(d.Message); ok {
			if _, listed := known[name]; listed {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

// unresolvedName extracts X from "cannot resolve name 'X'".
func unresolvedName(msg string) (string, bool) {
	rest, ok := strings.CutPrefix(msg, "cannot resolve name '")
	if !ok {
		return "", false
	}
	name, ok := strings.CutSuffix(rest, "'")
	if !ok {
		return "", false
	}
	return name, true
}
