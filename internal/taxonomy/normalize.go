package taxonomy

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

// Normalize prepares a raw title for matching: it lower-cases the input,
// expands configured aliases and strips everything that is not an ASCII
// letter, digit or space. Runs of whitespace collapse to a single space.
//
// Alias expansion is a literal substring replacement applied in sorted key
// order, not a word-boundary replacement. Alias keys must therefore be chosen
// so they do not occur inside unrelated words, and an alias whose expansion
// contains another alias key is order-dependent. That is a policy of the
// table owner, not something the engine corrects.
func (s *Snapshot) Normalize(raw string) string {
	title := strings.ToLower(raw)

	for _, alias := range s.aliasKeys {
		title = strings.ReplaceAll(title, alias, s.Aliases[alias])
	}

	title = nonAlnum.ReplaceAllString(title, "")

	return strings.Join(strings.Fields(title), " ")
}
