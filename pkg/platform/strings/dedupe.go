// Package strings normalizes comma-separated configuration lists.
package strings

import (
	"strings"
)

// Trim is the identity normalization apart from surrounding whitespace.
func Trim(s string) string { return strings.TrimSpace(s) }

// TrimLower trims and lowercases, for case-insensitive codes.
func TrimLower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Dedupe normalizes each value, dropping empties and repeats. The first
// occurrence keeps its position.
func Dedupe(values []string, normalize func(string) string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = normalize(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
