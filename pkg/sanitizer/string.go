package sanitizer

import "strings"

// TrimAndNormalize trims s and collapses every run of Unicode whitespace,
// newlines included, into a single space.
func TrimAndNormalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeForComparison lowercases normalized text for case-insensitive
// matching.
func NormalizeForComparison(s string) string {
	return strings.ToLower(TrimAndNormalize(s))
}
