package similarity

import (
	"sort"
	"strings"
)

// Expander resolves hardware acronyms and synonyms into their expansions.
// The dictionary is configuration-supplied; expansion widens candidate
// retrieval but never replaces the original token, so a literal match always
// remains possible.
type Expander struct {
	dict map[string][]string
}

// NewExpander builds an Expander from a token → expansions dictionary.
// Keys are lowercased; expansion lists are copied and sorted so that
// repeated calls return identical slices.
func NewExpander(dict map[string][]string) *Expander {
	normalized := make(map[string][]string, len(dict))
	for k, vals := range dict {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || len(vals) == 0 {
			continue
		}
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			v = strings.ToLower(strings.TrimSpace(v))
			if v != "" {
				out = append(out, v)
			}
		}
		sort.Strings(out)
		normalized[key] = out
	}
	return &Expander{dict: normalized}
}

// Expand returns the token itself followed by its sorted expansions.
// Unknown tokens return a single-element slice.
func (e *Expander) Expand(token string) []string {
	token = strings.ToLower(strings.TrimSpace(token))
	out := []string{token}
	if exps, ok := e.dict[token]; ok {
		out = append(out, exps...)
	}
	return out
}

// ExpandName rewrites a normalized multi-token name by substituting each
// token with its first dictionary expansion.  The second return reports
// whether any token changed; callers add the expansion as an extra query
// term only when it differs from the original.
func (e *Expander) ExpandName(name string) (string, bool) {
	tokens := Tokens(name)
	if len(tokens) == 0 {
		return name, false
	}
	changed := false
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		if exps, ok := e.dict[tok]; ok && len(exps) > 0 {
			out[i] = exps[0]
			changed = true
			continue
		}
		out[i] = tok
	}
	if !changed {
		return name, false
	}
	return strings.Join(out, " "), true
}
