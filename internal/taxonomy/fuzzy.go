package taxonomy

import (
	"math"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// DefaultMinFuzzyScore is the score below which a fuzzy match is discarded
// rather than reported as a low-confidence guess.
const DefaultMinFuzzyScore = 70

// TokenSetRatio scores the similarity of two strings on a 0-100 scale using a
// token-set metric: both strings are split into unordered, deduplicated word
// sets, recombined into intersection/remainder strings, and the best pairwise
// Levenshtein similarity (via go-edlib) of those recombinations is returned.
// The metric is symmetric, tolerant of word reordering and of extra or
// missing words; a title whose tokens are a superset of the keyword's tokens
// scores 100.
func TokenSetRatio(a, b string) int {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter, onlyA, onlyB := splitTokenSets(ta, tb)

	base := strings.Join(inter, " ")
	combinedA := joinNonEmpty(base, strings.Join(onlyA, " "))
	combinedB := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := levenshteinRatio(base, combinedA)
	if r := levenshteinRatio(base, combinedB); r > best {
		best = r
	}
	if r := levenshteinRatio(combinedA, combinedB); r > best {
		best = r
	}

	return best
}

// BestTokenSetMatch returns the candidate with the highest TokenSetRatio
// against the normalized title, or ok=false when the best score is below
// minScore. Ties on score resolve to the candidate that appears first in the
// given slice; callers pass candidates in sorted order, which makes the
// outcome deterministic.
func BestTokenSetMatch(normalized string, candidates []string, minScore int) (keyword string, score int, ok bool) {
	if minScore <= 0 {
		minScore = DefaultMinFuzzyScore
	}

	best := -1
	for _, candidate := range candidates {
		if r := TokenSetRatio(normalized, candidate); r > best {
			best = r
			keyword = candidate
		}
	}

	if best < minScore {
		return "", 0, false
	}

	return keyword, best, true
}

func tokenSet(s string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(s) {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

func splitTokenSets(a, b []string) (inter, onlyA, onlyB []string) {
	inB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		inB[tok] = struct{}{}
	}
	inInter := make(map[string]struct{})

	for _, tok := range a {
		if _, ok := inB[tok]; ok {
			inter = append(inter, tok)
			inInter[tok] = struct{}{}
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for _, tok := range b {
		if _, ok := inInter[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}

	return inter, onlyA, onlyB
}

func joinNonEmpty(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

// levenshteinRatio is the normalized Levenshtein similarity of two strings on
// a 0-100 scale.
func levenshteinRatio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	sim, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}

	return int(math.Round(float64(sim) * 100))
}
