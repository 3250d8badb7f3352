package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSetRatio(t *testing.T) {
	t.Parallel()

	t.Run("identical", func(t *testing.T) {
		assert.Equal(t, 100, TokenSetRatio("growth", "growth"))
	})

	t.Run("token superset scores full", func(t *testing.T) {
		// The keyword's tokens are fully contained in the title, extra words
		// do not penalize the score.
		assert.Equal(t, 100, TokenSetRatio("growth hacking guru", "growth"))
	})

	t.Run("word order ignored", func(t *testing.T) {
		assert.Equal(t, 100, TokenSetRatio("development business", "business development"))
	})

	t.Run("typo stays close", func(t *testing.T) {
		score := TokenSetRatio("business devlopment", "business development")
		assert.GreaterOrEqual(t, score, 90)
		assert.Less(t, score, 100)
	})

	t.Run("unrelated stays low", func(t *testing.T) {
		assert.Less(t, TokenSetRatio("ninja", "growth"), 50)
	})

	t.Run("empty input scores zero", func(t *testing.T) {
		assert.Equal(t, 0, TokenSetRatio("", "growth"))
		assert.Equal(t, 0, TokenSetRatio("growth", ""))
		assert.Equal(t, 0, TokenSetRatio("", ""))
	})

	t.Run("symmetric", func(t *testing.T) {
		pairs := [][2]string{
			{"business devlopment", "business development"},
			{"growth hacking", "growth"},
			{"frontend", "fullstack"},
		}
		for _, p := range pairs {
			assert.Equal(t, TokenSetRatio(p[0], p[1]), TokenSetRatio(p[1], p[0]))
		}
	})
}

func TestBestTokenSetMatch(t *testing.T) {
	t.Parallel()

	candidates := Defaults().SubFunctionKeywords()

	t.Run("picks the closest candidate", func(t *testing.T) {
		keyword, score, ok := BestTokenSetMatch("business devlopment", candidates, DefaultMinFuzzyScore)
		require.True(t, ok)
		assert.Equal(t, "business development", keyword)
		assert.GreaterOrEqual(t, score, DefaultMinFuzzyScore)
	})

	t.Run("below threshold resolves absent", func(t *testing.T) {
		_, _, ok := BestTokenSetMatch("underwater basket weaving", candidates, DefaultMinFuzzyScore)
		assert.False(t, ok)
	})

	t.Run("tie resolves to the first candidate", func(t *testing.T) {
		keyword, score, ok := BestTokenSetMatch("growth", []string{"growth marketing", "growth engineering"}, 50)
		require.True(t, ok)
		assert.Equal(t, 100, score)
		assert.Equal(t, "growth marketing", keyword)
	})

	t.Run("empty candidate list", func(t *testing.T) {
		_, _, ok := BestTokenSetMatch("growth", nil, DefaultMinFuzzyScore)
		assert.False(t, ok)
	})

	t.Run("deterministic", func(t *testing.T) {
		firstKeyword, firstScore, _ := BestTokenSetMatch("business devlopment", candidates, DefaultMinFuzzyScore)
		for i := 0; i < 10; i++ {
			keyword, score, _ := BestTokenSetMatch("business devlopment", candidates, DefaultMinFuzzyScore)
			assert.Equal(t, firstKeyword, keyword)
			assert.Equal(t, firstScore, score)
		}
	})
}
