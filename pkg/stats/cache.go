package stats

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/OFFIS-RIT/graph-explorer/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// Store persists the cached snapshot.
type Store interface {
	// Load returns the snapshot and true, or false when none is stored or it
	// has expired.
	Load(ctx context.Context) (GraphStats, bool, error)
	// Save stores s. ttl <= 0 keeps it until Clear.
	Save(ctx context.Context, s GraphStats, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// CacheParams configures NewCache.
//
// TTL <= 0 keeps a snapshot until Invalidate is called. Store defaults to a
// MemoryStore. ComputeTimeout bounds one aggregation and defaults to two
// minutes. OnLookup and OnCompute are optional observation hooks.
type CacheParams struct {
	Source         Source
	Store          Store
	TTL            time.Duration
	ComputeTimeout time.Duration
	Options        AggregateOptions

	OnLookup  func(hit bool)
	OnCompute func(d time.Duration, err error)
}

// Cache owns the GraphStats snapshot. The snapshot is computed on first use
// and served unchanged until it expires or is invalidated, even if the graph
// changes in between. Concurrent misses share one aggregation and failed
// aggregations are never cached.
type Cache struct {
	source  Source
	store   Store
	ttl     time.Duration
	timeout time.Duration
	opts    AggregateOptions

	onLookup  func(bool)
	onCompute func(time.Duration, error)

	group singleflight.Group
	// gen is bumped by Invalidate; a flight started under an older
	// generation does not write its result back.
	gen atomic.Uint64
}

// NewCache creates a Cache over params.Source.
func NewCache(params CacheParams) *Cache {
	store := params.Store
	if store == nil {
		store = NewMemoryStore()
	}
	timeout := params.ComputeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Cache{
		source:    params.Source,
		store:     store,
		ttl:       params.TTL,
		timeout:   timeout,
		opts:      params.Options,
		onLookup:  params.OnLookup,
		onCompute: params.OnCompute,
	}
}

const flightKey = "graph-stats"

// Get returns the cached snapshot, computing it on a miss.
func (c *Cache) Get(ctx context.Context) (GraphStats, error) {
	if s, ok := c.load(ctx); ok {
		c.lookup(true)
		return s, nil
	}
	c.lookup(false)

	ch := c.group.DoChan(flightKey, func() (any, error) {
		gen := c.gen.Load()
		if s, ok := c.load(ctx); ok {
			return s, nil
		}
		return c.compute(ctx, gen)
	})

	select {
	case <-ctx.Done():
		return GraphStats{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return GraphStats{}, res.Err
		}
		return res.Val.(GraphStats), nil
	}
}

// Reduced returns the reduced view of the cached snapshot.
func (c *Cache) Reduced(ctx context.Context) (GraphStats, error) {
	s, err := c.Get(ctx)
	if err != nil {
		return GraphStats{}, err
	}
	return Reduce(s), nil
}

// Invalidate drops the snapshot; the next Get recomputes it.
func (c *Cache) Invalidate(ctx context.Context) error {
	c.gen.Add(1)
	c.group.Forget(flightKey)
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	logger.Info("[Stats] Cache invalidated")
	return nil
}

func (c *Cache) load(ctx context.Context) (GraphStats, bool) {
	s, ok, err := c.store.Load(ctx)
	if err != nil {
		logger.Warn("[Stats] Failed to load cached statistics", "err", err)
		return GraphStats{}, false
	}
	return s, ok
}

// compute detaches from the caller's cancellation so that one abandoned
// request does not fail the others waiting on the same flight. The result is
// only stored if no Invalidate happened since gen was read.
func (c *Cache) compute(ctx context.Context, gen uint64) (GraphStats, error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	s, err := Aggregate(cctx, c.source, c.opts)
	if c.onCompute != nil {
		c.onCompute(time.Since(start), err)
	}
	if err != nil {
		logger.Error("[Stats] Aggregation failed", "err", err)
		return GraphStats{}, err
	}

	if c.gen.Load() != gen {
		logger.Debug("[Stats] Discarding statistics computed before invalidation")
		return s, nil
	}
	if err := c.store.Save(cctx, s, c.ttl); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("[Stats] Failed to store statistics", "err", err)
	}
	logger.Debug("[Stats] Aggregated graph statistics", "node_types", len(s.NodeCounts), "edge_types", len(s.EdgeCounts), "duration", time.Since(start))
	return s, nil
}

func (c *Cache) lookup(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}
