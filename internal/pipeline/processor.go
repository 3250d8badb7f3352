// Package pipeline is the caller-side scheduling layer around the
// classification engine: it fans large batches out over a bounded worker
// pool, memoizes results per configuration snapshot and converts per-title
// panics into degraded error records so one bad title never aborts a batch.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"title-classifier/internal/taxonomy"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SnapshotProvider supplies the active configuration snapshot. Implemented by
// mappings.Store.
type SnapshotProvider interface {
	Snapshot() *taxonomy.Snapshot
}

// Defaults for the processor knobs, matching the service configuration
// defaults.
const (
	DefaultWorkers        = 4
	DefaultAsyncThreshold = 10
	DefaultCacheSize      = 1024
)

// cacheKey ties a memoized result to the exact tables it was produced with;
// a config reload changes the snapshot version and naturally invalidates
// every prior entry.
type cacheKey struct {
	version string
	title   string
}

// Processor classifies batches of titles.
type Processor struct {
	classifier *taxonomy.Classifier
	provider   SnapshotProvider
	logger     *zap.Logger

	cache          *lru.Cache[cacheKey, *taxonomy.Result]
	workers        int
	asyncThreshold int
}

// Options tune the processor. Zero values fall back to the defaults above.
type Options struct {
	// Workers bounds the number of concurrent classifications in a batch.
	Workers int
	// AsyncThreshold is the batch size above which titles are processed
	// concurrently instead of sequentially.
	AsyncThreshold int
	// CacheSize bounds the memoization cache; 0 uses the default, a negative
	// value disables caching.
	CacheSize int
}

// NewProcessor creates a processor around the given classifier and snapshot
// provider.
func NewProcessor(classifier *taxonomy.Classifier, provider SnapshotProvider, logger *zap.Logger, opts Options) (*Processor, error) {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.AsyncThreshold <= 0 {
		opts.AsyncThreshold = DefaultAsyncThreshold
	}

	p := &Processor{
		classifier:     classifier,
		provider:       provider,
		logger:         logger,
		workers:        opts.Workers,
		asyncThreshold: opts.AsyncThreshold,
	}

	if opts.CacheSize >= 0 {
		size := opts.CacheSize
		if size == 0 {
			size = DefaultCacheSize
		}
		cache, err := lru.New[cacheKey, *taxonomy.Result](size)
		if err != nil {
			return nil, fmt.Errorf("create result cache: %w", err)
		}
		p.cache = cache
	}

	return p, nil
}

// Process classifies every title and returns the records in input order. The
// whole batch reads one snapshot, so a concurrent reload cannot split a batch
// across two table versions. Small batches run inline; larger ones fan out
// over the worker pool.
func (p *Processor) Process(ctx context.Context, titles []string) []*taxonomy.Result {
	snap := p.provider.Snapshot()
	results := make([]*taxonomy.Result, len(titles))

	if len(titles) <= p.asyncThreshold {
		for i, title := range titles {
			results[i] = p.processOne(snap, title)
		}
		return results
	}

	p.logger.Debug("processing batch concurrently",
		zap.Int("count", len(titles)),
		zap.Int("workers", p.workers),
	)

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)

	for i, title := range titles {
		group.Go(func() error {
			results[i] = p.processOne(snap, title)
			return nil
		})
	}

	// Workers only report per-title records, never errors.
	_ = group.Wait()

	return results
}

// ProcessOne classifies a single title against the current snapshot.
func (p *Processor) ProcessOne(title string) *taxonomy.Result {
	return p.processOne(p.provider.Snapshot(), title)
}

func (p *Processor) processOne(snap *taxonomy.Snapshot, title string) (result *taxonomy.Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("classification panicked",
				zap.String("title", title),
				zap.Any("panic", r),
			)
			result = &taxonomy.Result{
				OriginalTitle: title,
				Warnings:      []string{},
				Error:         fmt.Sprintf("classification failed: %v", r),
			}
		}
	}()

	key := cacheKey{version: snap.Version, title: title}
	if p.cache != nil {
		if cached, ok := p.cache.Get(key); ok {
			return cached
		}
	}

	start := time.Now()
	result = p.classifier.Classify(snap, title)
	result.ProcessingTimeMS = roundMillis(time.Since(start))

	if p.cache != nil {
		p.cache.Add(key, result)
	}

	return result
}

// CacheLen reports the number of memoized results, for the readiness
// endpoint.
func (p *Processor) CacheLen() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}

func roundMillis(d time.Duration) float64 {
	ms := float64(d.Microseconds()) / 1000
	// Two decimal places, same precision the API reports.
	return float64(int(ms*100+0.5)) / 100
}
