// Package taxonomy implements the job title classification engine: title
// normalization, whole-word keyword matching against a function hierarchy and
// a seniority table, a token-set fuzzy fallback and confidence aggregation.
//
// The engine is pure: it reads only from an immutable Snapshot and produces a
// fresh Result per call, so it is safe to use from any number of goroutines.
package taxonomy

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// FunctionHierarchy maps a business function (e.g. "Marketing") to a mapping
// of keyword → canonical sub-function label (e.g. "growth" → "Growth").
type FunctionHierarchy map[string]map[string]string

// SeniorityTable maps a keyword (e.g. "vp") to a canonical seniority label.
type SeniorityTable map[string]string

// AliasTable maps an abbreviation (e.g. "mgr") to its expansion ("manager").
type AliasTable map[string]string

// Snapshot is an immutable view of the three configuration tables. All key
// orderings are precomputed and sorted at construction time so that matching
// and alias expansion are deterministic regardless of map iteration order.
// A Snapshot must never be mutated after construction; reloads publish a new
// one instead.
type Snapshot struct {
	Functions FunctionHierarchy
	Seniority SeniorityTable
	Aliases   AliasTable

	// Version identifies the table contents. Two snapshots built from the
	// same tables share a version, which makes it a usable memoization key.
	Version string

	functionNames []string
	functionKeys  map[string][]string
	seniorityKeys []string
	aliasKeys     []string

	// keywordOwner resolves a sub-function keyword back to its owning
	// function. When the same keyword appears under two functions the first
	// function in sorted order wins.
	keywordOwner map[string]string
	allKeywords  []string
}

// NewSnapshot builds an immutable snapshot from the given tables. Nil tables
// are treated as empty.
func NewSnapshot(functions FunctionHierarchy, seniority SeniorityTable, aliases AliasTable) *Snapshot {
	if functions == nil {
		functions = FunctionHierarchy{}
	}
	if seniority == nil {
		seniority = SeniorityTable{}
	}
	if aliases == nil {
		aliases = AliasTable{}
	}

	s := &Snapshot{
		Functions:    functions,
		Seniority:    seniority,
		Aliases:      aliases,
		functionKeys: make(map[string][]string, len(functions)),
		keywordOwner: make(map[string]string),
	}

	s.functionNames = sortedKeys(len(functions), func(add func(string)) {
		for name := range functions {
			add(name)
		}
	})

	for _, name := range s.functionNames {
		keys := sortedKeys(len(functions[name]), func(add func(string)) {
			for k := range functions[name] {
				add(k)
			}
		})
		s.functionKeys[name] = keys

		for _, k := range keys {
			if _, taken := s.keywordOwner[k]; !taken {
				s.keywordOwner[k] = name
				s.allKeywords = append(s.allKeywords, k)
			}
		}
	}
	sort.Strings(s.allKeywords)

	s.seniorityKeys = sortedKeys(len(seniority), func(add func(string)) {
		for k := range seniority {
			add(k)
		}
	})
	s.aliasKeys = sortedKeys(len(aliases), func(add func(string)) {
		for k := range aliases {
			add(k)
		}
	})

	s.Version = s.computeVersion()

	return s
}

// FunctionForKeyword returns the function owning the given sub-function
// keyword.
func (s *Snapshot) FunctionForKeyword(keyword string) (string, bool) {
	fn, ok := s.keywordOwner[keyword]
	return fn, ok
}

// SubFunctionKeywords returns the sorted union of all sub-function keywords
// across the hierarchy. The returned slice must not be modified.
func (s *Snapshot) SubFunctionKeywords() []string {
	return s.allKeywords
}

// SeniorityKeywords returns the sorted seniority keywords. The returned slice
// must not be modified.
func (s *Snapshot) SeniorityKeywords() []string {
	return s.seniorityKeys
}

func (s *Snapshot) computeVersion() string {
	h := sha256.New()

	for _, name := range s.functionNames {
		for _, k := range s.functionKeys[name] {
			fmt.Fprintf(h, "f\x00%s\x00%s\x00%s\n", name, k, s.Functions[name][k])
		}
	}
	for _, k := range s.seniorityKeys {
		fmt.Fprintf(h, "s\x00%s\x00%s\n", k, s.Seniority[k])
	}
	for _, k := range s.aliasKeys {
		fmt.Fprintf(h, "a\x00%s\x00%s\n", k, s.Aliases[k])
	}

	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

func sortedKeys(size int, visit func(add func(string))) []string {
	keys := make([]string, 0, size)
	visit(func(k string) { keys = append(keys, k) })
	sort.Strings(keys)
	return keys
}

// Defaults returns the built-in tables used when no mappings document is
// available.
func Defaults() *Snapshot {
	return NewSnapshot(
		FunctionHierarchy{
			"Marketing": {
				"growth":     "Growth",
				"brand":      "Brand Management",
				"paid media": "Performance Marketing",
				"content":    "Content Marketing",
				"digital":    "Digital Marketing",
			},
			"Sales": {
				"account":              "Account Management",
				"business development": "Business Development",
				"sales development":    "Sales Development",
			},
			"Engineering": {
				"frontend":  "Frontend Development",
				"backend":   "Backend Development",
				"fullstack": "Full Stack Development",
				"software":  "Software Engineering",
			},
		},
		SeniorityTable{
			"intern":     "Entry",
			"junior":     "Entry",
			"associate":  "Entry",
			"analyst":    "Entry",
			"specialist": "Mid-Level",
			"manager":    "Manager",
			"director":   "Director",
			"vp":         "VP",
			"chief":      "C-Level",
			"cmo":        "C-Level",
			"cto":        "C-Level",
			"head":       "Director",
			"lead":       "Manager",
			"sr":         "Senior",
			"senior":     "Senior",
		},
		AliasTable{
			"dev": "developer",
			"eng": "engineer",
			"mgr": "manager",
		},
	)
}

// String implements fmt.Stringer for debug logging.
func (s *Snapshot) String() string {
	return strings.Join([]string{
		fmt.Sprintf("functions=%d", len(s.Functions)),
		fmt.Sprintf("seniority=%d", len(s.Seniority)),
		fmt.Sprintf("aliases=%d", len(s.Aliases)),
		fmt.Sprintf("version=%s", s.Version),
	}, " ")
}
