package pipeline

import (
	"context"
	"fmt"
	"testing"

	"title-classifier/internal/taxonomy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticProvider struct {
	snap *taxonomy.Snapshot
}

func (p *staticProvider) Snapshot() *taxonomy.Snapshot { return p.snap }

func newTestProcessor(t *testing.T, opts Options) *Processor {
	t.Helper()
	p, err := NewProcessor(
		taxonomy.NewClassifier(taxonomy.DefaultMinConfidence, taxonomy.DefaultMinFuzzyScore),
		&staticProvider{snap: taxonomy.Defaults()},
		zap.NewNop(),
		opts,
	)
	require.NoError(t, err)
	return p
}

func TestProcessKeepsInputOrder(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t, Options{})
	titles := []string{"Senior Growth Manager", "Backend Dev", "", "VP of Engineering"}

	results := p.Process(context.Background(), titles)

	require.Len(t, results, len(titles))
	for i, title := range titles {
		assert.Equal(t, title, results[i].OriginalTitle)
	}
	assert.Equal(t, "Marketing", results[0].Function)
	assert.Equal(t, "Engineering", results[1].Function)
	assert.False(t, results[2].Matched)
}

func TestProcessConcurrentBatch(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t, Options{Workers: 3, AsyncThreshold: 5, CacheSize: -1})

	titles := make([]string, 40)
	for i := range titles {
		titles[i] = fmt.Sprintf("Senior Growth Manager %d", i)
	}

	results := p.Process(context.Background(), titles)

	require.Len(t, results, len(titles))
	for i, r := range results {
		require.NotNilf(t, r, "result %d missing", i)
		assert.Equal(t, titles[i], r.OriginalTitle)
		assert.Equal(t, "Senior", r.Seniority)
	}
}

func TestProcessMemoizesPerSnapshot(t *testing.T) {
	t.Parallel()

	provider := &staticProvider{snap: taxonomy.Defaults()}
	p, err := NewProcessor(
		taxonomy.NewClassifier(taxonomy.DefaultMinConfidence, taxonomy.DefaultMinFuzzyScore),
		provider, zap.NewNop(), Options{},
	)
	require.NoError(t, err)

	first := p.ProcessOne("Senior Growth Manager")
	second := p.ProcessOne("Senior Growth Manager")
	assert.Same(t, first, second, "repeated title must hit the cache")
	assert.Equal(t, 1, p.CacheLen())

	// A new snapshot version invalidates the old entries by key, not by
	// flushing.
	provider.snap = taxonomy.NewSnapshot(provider.snap.Functions, provider.snap.Seniority, nil)
	third := p.ProcessOne("Senior Growth Manager")
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, p.CacheLen())
}

func TestProcessCacheDisabled(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t, Options{CacheSize: -1})

	first := p.ProcessOne("Senior Growth Manager")
	second := p.ProcessOne("Senior Growth Manager")
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Function, second.Function)
	assert.Equal(t, 0, p.CacheLen())
}

func TestProcessRecoversPerTitle(t *testing.T) {
	t.Parallel()

	// A nil classifier makes every classification panic; the processor must
	// degrade each title to an error record instead of crashing the batch.
	p, err := NewProcessor(nil, &staticProvider{snap: taxonomy.Defaults()}, zap.NewNop(), Options{CacheSize: -1})
	require.NoError(t, err)

	results := p.Process(context.Background(), []string{"one", "two"})

	require.Len(t, results, 2)
	for i, r := range results {
		require.NotNil(t, r)
		assert.NotEmpty(t, r.Error)
		assert.False(t, r.Matched)
		assert.Equal(t, []string{"one", "two"}[i], r.OriginalTitle)
	}
}

func TestProcessEmptyBatch(t *testing.T) {
	t.Parallel()

	p := newTestProcessor(t, Options{})
	assert.Empty(t, p.Process(context.Background(), nil))
}
