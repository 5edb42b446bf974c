// Package graph builds the dependency graph over analyzed papers and the
// concepts they teach and require.
package graph

import "strings"

// NormalizeConcept folds a concept name to its canonical node ID:
// lowercase with runs of whitespace collapsed to single spaces. Papers
// naming "Transformer  Architecture" and "transformer architecture" land
// on the same node.
func NormalizeConcept(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(lower), " ")
}
