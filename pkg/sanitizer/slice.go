package sanitizer

// NormalizeStringSlice maps every item through normalize and keeps the first
// occurrence of each non-empty result. It never returns nil.
func NormalizeStringSlice(items []string, normalize func(string) string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		v := normalize(item)
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

// NormalizeIdentifiers sanitizes identifiers, dropping blanks and duplicates
// while keeping first-seen order.
func NormalizeIdentifiers(ids []string) []string {
	return NormalizeStringSlice(ids, SanitizeIdentifier)
}
