package similarity

import (
	"strings"

	"github.com/silicograph/bridger/pkg/errors"
)

// AlgorithmJaroWinkler is the only registered scoring algorithm.  The
// registry exists so that configuration selects the scorer explicitly and an
// unknown algorithm fails loudly instead of silently falling back to a
// divergent implementation.
const AlgorithmJaroWinkler = "jaro_winkler"

// Lexical boost levels.  Boosts are taken as a maximum with the base score,
// never lowering it.
const (
	BoostExactMatch  = 0.95
	BoostTokenSubset = 0.85
	BoostSubstring   = 0.80

	// substringMinLen guards the substring boost against trivially short
	// fragments.
	substringMinLen = 3
)

// Scorer computes a similarity score in [0, 1] for two normalized names.
// Implementations must be deterministic and symmetric.
type Scorer interface {
	Score(a, b string) float64
}

// NewScorer returns the Scorer registered under the given algorithm name,
// or an errors.ErrCodeScorerUnsupported AppError.
func NewScorer(algorithm string) (Scorer, error) {
	switch algorithm {
	case AlgorithmJaroWinkler, "":
		return jaroWinklerScorer{}, nil
	default:
		return nil, errors.New(errors.ErrCodeScorerUnsupported, "no such similarity algorithm").
			WithDetail("algorithm=" + algorithm)
	}
}

type jaroWinklerScorer struct{}

func (jaroWinklerScorer) Score(a, b string) float64 {
	return JaroWinkler(a, b)
}

// JaroWinkler returns the Jaro-Winkler similarity of a and b with the
// standard prefix scale of 0.1 over at most 4 common leading characters.
func JaroWinkler(a, b string) float64 {
	j := jaro(a, b)
	if j == 0 {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	prefix := 0
	for prefix < len(ra) && prefix < len(rb) && prefix < 4 && ra[prefix] == rb[prefix] {
		prefix++
	}
	return j + float64(prefix)*0.1*(1-j)
}

func jaro(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 && lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}

	window := max2(la, lb)/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, la)
	matchedB := make([]bool, lb)
	matches := 0
	for i := 0; i < la; i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > lb {
			hi = lb
		}
		for j := lo; j < hi; j++ {
			if matchedB[j] || ra[i] != rb[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !matchedA[i] {
			continue
		}
		for !matchedB[k] {
			k++
		}
		if ra[i] != rb[k] {
			transpositions++
		}
		k++
	}
	t := float64(transpositions) / 2
	m := float64(matches)
	return (m/float64(la) + m/float64(lb) + (m-t)/m) / 3
}

func max2(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// LexicalBoost returns the strongest applicable lexical boost for a query
// term against a candidate name, both already normalized.  Zero when no
// boost applies.
func LexicalBoost(term, candidate string) float64 {
	if term == "" || candidate == "" {
		return 0
	}
	if term == candidate {
		return BoostExactMatch
	}
	if tokenSubset(term, candidate) || tokenSubset(candidate, term) {
		return BoostTokenSubset
	}
	if len(term) >= substringMinLen && strings.Contains(candidate, term) {
		return BoostSubstring
	}
	if len(candidate) >= substringMinLen && strings.Contains(term, candidate) {
		return BoostSubstring
	}
	return 0
}

// tokenSubset reports whether every token of inner appears among the tokens
// of outer.
func tokenSubset(inner, outer string) bool {
	in, out := Tokens(inner), Tokens(outer)
	if len(in) == 0 || len(in) > len(out) {
		return false
	}
	set := make(map[string]struct{}, len(out))
	for _, t := range out {
		set[t] = struct{}{}
	}
	for _, t := range in {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// BestScore returns the highest of the base scorer score and the lexical
// boost across all query terms for one candidate name.  The second return is
// the best unboosted base score, which the engine uses for the module
// name-similarity floor.
func BestScore(s Scorer, terms []string, candidate string) (boosted, base float64) {
	for _, term := range terms {
		if sc := s.Score(term, candidate); sc > base {
			base = sc
		}
		if b := LexicalBoost(term, candidate); b > boosted {
			boosted = b
		}
	}
	if base > boosted {
		boosted = base
	}
	return boosted, base
}
