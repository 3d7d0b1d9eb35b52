// Package loader memoizes the dataset built from the configured sources.
package loader

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"findash/internal/cache"
	"findash/internal/pipeline"
	"findash/internal/sheets"
)

const (
	DefaultTTL         = 60 * time.Second
	DefaultLoadTimeout = 60 * time.Second

	snapshotKey = "snapshot"
)

// Loader serves a memoized *pipeline.Dataset. Entries expire after the TTL
// or on Invalidate; the next Snapshot reloads synchronously. Concurrent
// misses share a single load.
type Loader struct {
	transactions sheets.RowReader
	mapping      sheets.RowReader
	engine       *pipeline.Engine

	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time
	memo        *cache.LRUCache[*pipeline.Dataset]
	group       singleflight.Group

	mu         sync.Mutex
	generation uint64
	lastErr    error
	loads      int
}

// Option configures a Loader.
type Option func(*Loader)

// WithTTL sets how long a snapshot stays fresh.
func WithTTL(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.ttl = d
		}
	}
}

// WithLoadTimeout bounds a single load of both sources.
func WithLoadTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.loadTimeout = d
		}
	}
}

// WithClock replaces time.Now for TTL checks, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// New returns a Loader. mapping may be nil when no mapping source is
// configured.
func New(transactions, mapping sheets.RowReader, engine *pipeline.Engine, opts ...Option) *Loader {
	l := &Loader{
		transactions: transactions,
		mapping:      mapping,
		engine:       engine,
		ttl:          DefaultTTL,
		loadTimeout:  DefaultLoadTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.memo = cache.NewLRUCache[*pipeline.Dataset](1, l.ttl, cache.WithClock(l.now))
	return l
}

// Engine returns the pipeline engine the loader builds with.
func (l *Loader) Engine() *pipeline.Engine { return l.engine }

// TTL returns the snapshot lifetime.
func (l *Loader) TTL() time.Duration { return l.ttl }

// Snapshot returns the memoized dataset, loading it when absent or expired.
// Transaction source failures are returned; mapping failures degrade.
func (l *Loader) Snapshot(ctx context.Context) (*pipeline.Dataset, error) {
	if ds, ok := l.memo.Get(snapshotKey); ok {
		return ds, nil
	}
	l.mu.Lock()
	gen := l.generation
	l.mu.Unlock()
	// Loads are shared per generation, so a caller arriving after Invalidate
	// never joins a load that started before it.
	key := snapshotKey + "/" + strconv.FormatUint(gen, 10)
	ch := l.group.DoChan(key, func() (interface{}, error) {
		// A load outlives the caller that triggered it; other callers may be
		// waiting on the same result.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.loadTimeout)
		defer cancel()
		return l.load(loadCtx, gen)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*pipeline.Dataset), nil
	}
}

// Invalidate discards the memoized snapshot. The next Snapshot reloads.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.generation++
	l.mu.Unlock()
	l.memo.Clear()
	slog.Info("Snapshot invalidated")
}

// Refresh invalidates and reloads.
func (l *Loader) Refresh(ctx context.Context) (*pipeline.Dataset, error) {
	l.Invalidate()
	return l.Snapshot(ctx)
}

// Cached returns the memoized snapshot and when it was loaded, without
// triggering a load.
func (l *Loader) Cached() (*pipeline.Dataset, time.Time, bool) {
	return l.memo.GetEntry(snapshotKey)
}

// Status reports the number of completed loads and the last load error.
func (l *Loader) Status() (loads int, lastErr error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads, l.lastErr
}

func (l *Loader) load(ctx context.Context, gen uint64) (*pipeline.Dataset, error) {
	start := time.Now()
	in := pipeline.Input{MappingConfigured: l.mapping != nil}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := l.transactions.ReadRows(gctx)
		if err != nil {
			return err
		}
		in.Transactions = t
		return nil
	})
	if l.mapping != nil {
		g.Go(func() error {
			// Mapping failures never cancel the transaction read.
			t, err := l.mapping.ReadRows(ctx)
			if err != nil {
				in.MappingErr = err
				slog.WarnContext(ctx, "Mapping source unavailable, degrading to Uncategorized", "error", err)
				return nil
			}
			in.Mapping = t
			return nil
		})
	}
	err := g.Wait()
	var ds *pipeline.Dataset
	if err == nil {
		ds, err = l.engine.Build(in)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastErr = err
	if err != nil {
		slog.ErrorContext(ctx, "Snapshot load failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	l.loads++
	if gen == l.generation {
		l.memo.Set(snapshotKey, ds)
	}
	slog.InfoContext(ctx, "Snapshot loaded",
		"dataset_id", ds.ID,
		"rows", len(ds.Records),
		"warnings", len(ds.Warnings),
		"duration", time.Since(start))
	return ds, nil
}
