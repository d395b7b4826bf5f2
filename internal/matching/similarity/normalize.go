// Package similarity implements the single name-scoring path shared by
// consolidation and bridging: normalization, the Jaro-Winkler scorer with
// lexical boosts, token metrics, and acronym expansion.  Every score the
// pipeline produces flows through this package, so two call sites can never
// disagree about how similar two names are.
package similarity

import "strings"

// Normalizer canonicalizes entity and element names before comparison.
// Normalization is total: a non-empty input never maps to the empty string.
type Normalizer struct {
	// StripPrefixes lists design-specific name prefixes (e.g. "or1200_")
	// removed before comparison.  Matching is case-insensitive; a prefix is
	// only stripped when a non-empty remainder survives.
	StripPrefixes []string
}

// NewNormalizer constructs a Normalizer with the given prefix list.
func NewNormalizer(stripPrefixes []string) *Normalizer {
	return &Normalizer{StripPrefixes: stripPrefixes}
}

// Normalize lowercases, trims, reduces hierarchical paths to their last
// dotted segment, strips configured design prefixes, converts underscores to
// spaces, and collapses internal whitespace.
//
// When every transformation together would produce an empty string (e.g. a
// name that is nothing but a stripped prefix), the lowercased trimmed
// original is returned instead.
func (n *Normalizer) Normalize(name string) string {
	original := strings.ToLower(strings.TrimSpace(name))
	s := original

	// Hierarchical references compare by their leaf segment.
	if idx := strings.LastIndex(s, "."); idx >= 0 && idx+1 < len(s) {
		s = s[idx+1:]
	}

	for _, p := range n.StripPrefixes {
		p = strings.ToLower(p)
		if p == "" {
			continue
		}
		if rest := strings.TrimPrefix(s, p); rest != "" && rest != s {
			s = rest
			break
		}
	}

	s = strings.ReplaceAll(s, "_", " ")
	s = strings.Join(strings.Fields(s), " ")

	if s == "" {
		return original
	}
	return s
}

// Tokens splits a normalized name into its whitespace-separated tokens.
func Tokens(s string) []string {
	return strings.Fields(s)
}

// TokenJaccard returns |intersection| / |union| of the token sets of two
// normalized names.  Zero when either side has no tokens.
func TokenJaccard(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		seen[t] = struct{}{}
	}
	union := make(map[string]struct{}, len(ta)+len(tb))
	for _, t := range ta {
		union[t] = struct{}{}
	}
	inter := 0
	counted := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		union[t] = struct{}{}
		if _, ok := seen[t]; ok {
			if _, dup := counted[t]; !dup {
				inter++
				counted[t] = struct{}{}
			}
		}
	}
	return float64(inter) / float64(len(union))
}

// EditDistance returns the Levenshtein distance between a and b.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
