package taxonomy

// Candidate is a single keyword hit on one classification axis. Function is
// empty for seniority candidates. Position is the byte offset of the first
// whole-word occurrence of Keyword in the normalized title and is used to
// break ties between equal-confidence hits.
type Candidate struct {
	Function   string
	Label      string
	Keyword    string
	Position   int
	Confidence float64
}

// Matcher is the exact-match contract shared by the two axes. Implementations
// test every keyword against the normalized title and return all whole-word
// hits with confidence 1.0; an empty result is not an error, it hands the
// axis over to the fuzzy fallback.
type Matcher interface {
	Match(normalized string) []Candidate
}

// HierarchyMatcher matches sub-function keywords of a function hierarchy.
type HierarchyMatcher struct {
	snap *Snapshot
}

// NewHierarchyMatcher returns a matcher over the snapshot's function
// hierarchy.
func NewHierarchyMatcher(snap *Snapshot) *HierarchyMatcher {
	return &HierarchyMatcher{snap: snap}
}

// Match tests every (function, keyword) pair in sorted order. No early exit:
// a title may hit several keywords and the aggregator ranks the ties.
func (m *HierarchyMatcher) Match(normalized string) []Candidate {
	var candidates []Candidate

	for _, fn := range m.snap.functionNames {
		for _, keyword := range m.snap.functionKeys[fn] {
			if pos := wordIndex(normalized, keyword); pos >= 0 {
				candidates = append(candidates, Candidate{
					Function:   fn,
					Label:      m.snap.Functions[fn][keyword],
					Keyword:    keyword,
					Position:   pos,
					Confidence: 1.0,
				})
			}
		}
	}

	return candidates
}

// FlatMatcher matches keywords of a flat table, such as the seniority table.
type FlatMatcher struct {
	snap *Snapshot
}

// NewFlatMatcher returns a matcher over the snapshot's seniority table.
func NewFlatMatcher(snap *Snapshot) *FlatMatcher {
	return &FlatMatcher{snap: snap}
}

// Match tests every keyword in sorted order against the normalized title.
func (m *FlatMatcher) Match(normalized string) []Candidate {
	var candidates []Candidate

	for _, keyword := range m.snap.seniorityKeys {
		if pos := wordIndex(normalized, keyword); pos >= 0 {
			candidates = append(candidates, Candidate{
				Label:      m.snap.Seniority[keyword],
				Keyword:    keyword,
				Position:   pos,
				Confidence: 1.0,
			})
		}
	}

	return candidates
}

// wordIndex returns the byte offset of the first occurrence of phrase in s
// delimited by word boundaries, or -1. Both s and phrase are expected to be
// normalized already, so a boundary is simply a position where the
// neighbouring byte is not a letter or digit. Multi-word phrases ("business
// development") match as a whole.
func wordIndex(s, phrase string) int {
	if phrase == "" {
		return -1
	}

	for start := 0; start+len(phrase) <= len(s); start++ {
		if s[start:start+len(phrase)] != phrase {
			continue
		}
		if start > 0 && isWordByte(s[start-1]) {
			continue
		}
		if end := start + len(phrase); end < len(s) && isWordByte(s[end]) {
			continue
		}
		return start
	}

	return -1
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
