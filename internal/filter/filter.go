// Package filter decides which tables are exempt from billing-mode enforcement.
package filter

import (
	"strings"
)

// Exemptions matches table names against configured name prefixes.
type Exemptions struct {
	prefixes []string
}

// New creates Exemptions from the configured prefixes. Each entry is trimmed
// and empty entries are dropped; order is kept.
func New(prefixes []string) *Exemptions {
	kept := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kept = append(kept, p)
	}
	return &Exemptions{prefixes: kept}
}

// ParsePrefixes splits a comma-separated prefix list.
func ParsePrefixes(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

// Match returns the first prefix the table name starts with. Matching is case-sensitive.
func (e *Exemptions) Match(table string) (string, bool) {
	for _, p := range e.prefixes {
		if strings.HasPrefix(table, p) {
			return p, true
		}
	}
	return "", false
}

// Prefixes returns the effective prefixes.
func (e *Exemptions) Prefixes() []string {
	out := make([]string, len(e.prefixes))
	copy(out, e.prefixes)
	return out
}

// IsEmpty returns true if no prefixes are configured.
func (e *Exemptions) IsEmpty() bool {
	return len(e.prefixes) == 0
}
