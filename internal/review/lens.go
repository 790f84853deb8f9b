package review

import (
	"fmt"
	"strings"
)

// LensSpec describes what a reviewer looks for.
type LensSpec struct {
	Lens  Lens
	Title string
	Focus []string
}

var builtinLenses = []LensSpec{
	{
		Lens:  LensQuality,
		Title: "Quality",
		Focus: []string{
			"Code readability and clarity",
			"Naming conventions (variables, functions, types)",
			"Code duplication",
			"Function and method complexity",
			"Documentation and comment quality",
			"Design patterns and architecture misuse",
			"Error handling practices",
		},
	},
	{
		Lens:  LensSecurityPerformance,
		Title: "Security & Performance",
		Focus: []string{
			"Security vulnerabilities (OWASP Top 10)",
			"Injection risks (SQL, command, XSS, CSRF)",
			"Authentication and authorization issues",
			"Sensitive data exposure and hardcoded credentials",
			"Input validation gaps",
			"Performance bottlenecks",
			"Memory and resource misuse or leaks",
			"Race conditions and concurrency hazards",
		},
	},
}

// DefaultLenses returns the built-in lenses in dispatch order.
func DefaultLenses() []LensSpec {
	out := make([]LensSpec, len(builtinLenses))
	copy(out, builtinLenses)
	return out
}

// LookupLenses resolves lens names. An empty list selects every built-in
// lens.
func LookupLenses(names []string) ([]LensSpec, error) {
	if len(names) == 0 {
		return DefaultLenses(), nil
	}
	var out []LensSpec
	seen := make(map[Lens]bool)
	for _, name := range names {
		l := Lens(strings.ToLower(strings.TrimSpace(name)))
		if l == "security" || l == "security-performance" {
			l = LensSecurityPerformance
		}
		if seen[l] {
			continue
		}
		spec, ok := findLens(l)
		if !ok {
			return nil, fmt.Errorf("unknown lens %q (valid: %s, %s)", name, LensQuality, LensSecurityPerformance)
		}
		seen[l] = true
		out = append(out, spec)
	}
	return out, nil
}

func findLens(l Lens) (LensSpec, bool) {
	for _, spec := range builtinLenses {
		if spec.Lens == l {
			return spec, true
		}
	}
	return LensSpec{}, false
}

// Label returns the display name of the lens.
func (l Lens) Label() string {
	if spec, ok := findLens(l); ok {
		return spec.Title
	}
	return string(l)
}
