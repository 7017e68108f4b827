package middleware

import (
	"sort"
	"strings"
)

var (
	defaultExemptPaths    = []string{"/", "/error", "/index.html", "/refresh", "/signup", "/signin", "/welcome.html"}
	defaultExemptPrefixes = []string{"/webjars/"}
)

// ExemptionPolicy is the set of paths that bypass the JWT filter.
// Paths match exactly; entries ending in "/" (other than "/" itself) match
// as prefixes. Any path not in the set is not exempt.
type ExemptionPolicy struct {
	exact    map[string]struct{}
	prefixes []string
}

// NewExemptionPolicy returns the built-in exemption set plus extra paths
func NewExemptionPolicy(extra ...string) *ExemptionPolicy {
	p := &ExemptionPolicy{exact: make(map[string]struct{})}
	for _, path := range defaultExemptPaths {
		p.add(path)
	}
	for _, prefix := range defaultExemptPrefixes {
		p.add(prefix)
	}
	for _, path := range extra {
		p.add(strings.TrimSpace(path))
	}
	return p
}

// DefaultExemptionPolicy returns the built-in exemption set
func DefaultExemptionPolicy() *ExemptionPolicy {
	return NewExemptionPolicy()
}

func (p *ExemptionPolicy) add(path string) {
	if path == "" {
		return
	}
	if path != "/" && strings.HasSuffix(path, "/") {
		for _, existing := range p.prefixes {
			if existing == path {
				return
			}
		}
		p.prefixes = append(p.prefixes, path)
		return
	}
	p.exact[path] = struct{}{}
}

// IsExempt reports whether requests for path skip authentication
func (p *ExemptionPolicy) IsExempt(path string) bool {
	if _, ok := p.exact[path]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Paths returns the exact paths and prefixes in sorted order
func (p *ExemptionPolicy) Paths() []string {
	out := make([]string, 0, len(p.exact)+len(p.prefixes))
	for path := range p.exact {
		out = append(out, path)
	}
	for _, prefix := range p.prefixes {
		out = append(out, prefix+"**")
	}
	sort.Strings(out)
	return out
}
