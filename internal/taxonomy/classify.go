package taxonomy

import (
	"math"
	"sort"
)

// Warning strings attached to a Result when an axis stays unresolved.
const (
	WarnNoFunction  = "could not determine function"
	WarnNoSeniority = "could not determine seniority"
)

// Result is the classification record produced for one title. Absent axes
// are empty strings and omitted from JSON. Error is only populated by the
// batch boundary when classification of a single title failed unexpectedly.
type Result struct {
	Function         string   `json:"function,omitempty"`
	SubFunction      string   `json:"sub_function,omitempty"`
	Seniority        string   `json:"seniority,omitempty"`
	Confidence       float64  `json:"confidence"`
	Matched          bool     `json:"matched"`
	Warnings         []string `json:"warnings"`
	OriginalTitle    string   `json:"original_title"`
	ProcessingTimeMS float64  `json:"processing_time_ms,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// Classifier aggregates the per-axis matchers into classification records.
// The zero value is not usable; use NewClassifier.
type Classifier struct {
	minConfidence float64
	minFuzzyScore int
}

// DefaultMinConfidence is the overall-confidence threshold below which a
// record is reported as unmatched.
const DefaultMinConfidence = 0.7

// NewClassifier creates a classifier with the given thresholds. Out-of-range
// values fall back to the defaults.
func NewClassifier(minConfidence float64, minFuzzyScore int) *Classifier {
	if minConfidence <= 0 || minConfidence > 1 {
		minConfidence = DefaultMinConfidence
	}
	if minFuzzyScore <= 0 || minFuzzyScore > 100 {
		minFuzzyScore = DefaultMinFuzzyScore
	}
	return &Classifier{minConfidence: minConfidence, minFuzzyScore: minFuzzyScore}
}

// MinConfidence returns the configured matched-verdict threshold.
func (c *Classifier) MinConfidence() float64 { return c.minConfidence }

// Classify resolves the function and seniority axes for a raw title and
// aggregates them into a Result. Every string input terminates in a Result;
// an input that normalizes to nothing simply resolves both axes as absent.
func (c *Classifier) Classify(snap *Snapshot, raw string) *Result {
	normalized := snap.Normalize(raw)

	result := &Result{
		Warnings:      []string{},
		OriginalTitle: raw,
	}

	var funcConf, seniorityConf float64

	if winner, ok := c.resolveFunction(snap, normalized); ok {
		result.Function = winner.Function
		result.SubFunction = winner.Label
		funcConf = winner.Confidence
	}

	if winner, ok := c.resolveSeniority(snap, normalized); ok {
		result.Seniority = winner.Label
		seniorityConf = winner.Confidence
	}

	result.Confidence = round2((funcConf + seniorityConf) / 2)
	result.Matched = result.Confidence >= c.minConfidence

	if result.Function == "" {
		result.Warnings = append(result.Warnings, WarnNoFunction)
	}
	if result.Seniority == "" {
		result.Warnings = append(result.Warnings, WarnNoSeniority)
	}

	return result
}

// resolveFunction runs the exact hierarchy matcher and falls back to the
// fuzzy matcher over the flattened sub-function keywords, recovering the
// owning function by reverse lookup.
func (c *Classifier) resolveFunction(snap *Snapshot, normalized string) (Candidate, bool) {
	if candidates := NewHierarchyMatcher(snap).Match(normalized); len(candidates) > 0 {
		return rankCandidates(candidates), true
	}

	keyword, score, ok := BestTokenSetMatch(normalized, snap.SubFunctionKeywords(), c.minFuzzyScore)
	if !ok {
		return Candidate{}, false
	}

	fn, ok := snap.FunctionForKeyword(keyword)
	if !ok {
		return Candidate{}, false
	}

	return Candidate{
		Function:   fn,
		Label:      snap.Functions[fn][keyword],
		Keyword:    keyword,
		Confidence: float64(score) / 100,
	}, true
}

// resolveSeniority is the flat-table analogue of resolveFunction.
func (c *Classifier) resolveSeniority(snap *Snapshot, normalized string) (Candidate, bool) {
	if candidates := NewFlatMatcher(snap).Match(normalized); len(candidates) > 0 {
		return rankCandidates(candidates), true
	}

	keyword, score, ok := BestTokenSetMatch(normalized, snap.SeniorityKeywords(), c.minFuzzyScore)
	if !ok {
		return Candidate{}, false
	}

	return Candidate{
		Label:      snap.Seniority[keyword],
		Keyword:    keyword,
		Confidence: float64(score) / 100,
	}, true
}

// rankCandidates picks the winner among keyword hits: highest confidence
// first, then the hit that occurs earliest in the title, then the longest
// keyword, then lexicographic keyword order. Ranking on title position
// instead of table order keeps the outcome independent of how the tables are
// written, and "Senior Growth Manager" resolves to Senior rather than to
// whichever of its two seniority hits the table lists first.
func rankCandidates(candidates []Candidate) Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		if candidates[i].Position != candidates[j].Position {
			return candidates[i].Position < candidates[j].Position
		}
		if len(candidates[i].Keyword) != len(candidates[j].Keyword) {
			return len(candidates[i].Keyword) > len(candidates[j].Keyword)
		}
		return candidates[i].Keyword < candidates[j].Keyword
	})

	return candidates[0]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
