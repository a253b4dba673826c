// Package fuzzy implements the subsequence matcher used for item-name
// resolution and free-text inventory search.
package fuzzy

import "strings"

// Contains reports whether needle's characters appear in haystack as a
// subsequence, in order but not necessarily contiguously. Case folding is the
// caller's responsibility. An empty needle matches everything.
func Contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	target := []rune(needle)
	i := 0
	for _, r := range haystack {
		if r == target[i] {
			i++
			if i == len(target) {
				return true
			}
		}
	}
	return false
}

// MatchesQuery reports whether the combined item fields match every
// whitespace-separated token of query (AND semantics across tokens). With
// fuzzyMode enabled each token is a subsequence match; otherwise a plain
// substring match. Matching is case-insensitive; an empty query matches.
func MatchesQuery(fields []string, query string, fuzzyMode bool) bool {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return true
	}
	haystack := strings.ToLower(strings.Join(fields, " "))
	for _, token := range tokens {
		if fuzzyMode {
			if !Contains(haystack, token) {
				return false
			}
		} else if !strings.Contains(haystack, token) {
			return false
		}
	}
	return true
}
