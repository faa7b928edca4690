// Package cache puts snapshot production in front of the hierarchy: paths
// are snapshotted on first use and served from memory until invalidated.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/brettbedarf/vfs"
	"github.com/brettbedarf/vfs/config"
	"github.com/brettbedarf/vfs/hierarchy"
	"github.com/brettbedarf/vfs/internal/util"
	"github.com/brettbedarf/vfs/manifest"
)

// Stats counts Get outcomes since the cache was created
type Stats struct {
	Hits     uint64
	Misses   uint64 // Gets that produced a snapshot
	Shared   uint64 // Gets that waited on another caller's snapshot
	Failures uint64
	Stale    uint64 // snapshots dropped because the path was invalidated mid-flight
}

// Cache contains the snapshot hierarchy and the snapshotters feeding it
type Cache struct {
	cfg       *config.Config
	hierarchy *hierarchy.SnapshotHierarchy
	fallback  vfs.Snapshotter
	bound     *xsync.Map[string, vfs.Snapshotter] // exact paths with their own source
	group     singleflight.Group

	// gens counts invalidations per path; epoch counts subtree invalidations.
	// A snapshot is stored only if neither moved since its production began.
	gens   *xsync.Map[string, uint64]
	treeMu sync.RWMutex
	epoch  uint64

	hits, misses, shared, failures, stale atomic.Uint64
}

// generation identifies the cache state a production started from
type generation struct {
	gen, epoch uint64
}

// New creates a Cache given your config. Paths without a bound snapshotter
// are observed with fallback.
func New(cfg *config.Config, fallback vfs.Snapshotter) *Cache {
	return &Cache{
		cfg:       cfg,
		hierarchy: hierarchy.New(cfg),
		fallback:  fallback,
		bound:     xsync.NewMap[string, vfs.Snapshotter](),
		gens:      xsync.NewMap[string, uint64](),
	}
}

// Hierarchy exposes the underlying tree
func (c *Cache) Hierarchy() *hierarchy.SnapshotHierarchy {
	return c.hierarchy
}

func (c *Cache) key(path string) string {
	if c.cfg.CaseSensitive {
		return path
	}
	return strings.ToLower(path)
}

// Bind routes snapshots of exactly path to s
func (c *Cache) Bind(path string, s vfs.Snapshotter) {
	c.bound.Store(c.key(path), s)
}

// Load binds every manifest entry to its snapshotter and returns the paths
func (c *Cache) Load(m *manifest.Manifest) []string {
	for _, e := range m.Entries {
		c.Bind(e.Path, e.Snapshotter)
	}
	return m.Paths()
}

func (c *Cache) snapshotterFor(path string) vfs.Snapshotter {
	if s, ok := c.bound.Load(c.key(path)); ok {
		return s
	}
	return c.fallback
}

// Get returns the cached snapshot of path, producing and storing one if
// none is cached. Concurrent misses on the same path share one production.
func (c *Cache) Get(ctx context.Context, path string) (*vfs.Snapshot, error) {
	if s, ok := c.hierarchy.Query(path); ok {
		c.hits.Add(1)
		return s, nil
	}

	key := c.key(path)
	g := c.current(key)
	// an invalidation moves later Gets onto a new flight
	flight := fmt.Sprintf("%s\x00%d\x00%d", key, g.gen, g.epoch)
	ch := c.group.DoChan(flight, func() (any, error) {
		// another flight may have stored it since our query
		if s, ok := c.hierarchy.Query(path); ok {
			return s, nil
		}
		c.misses.Add(1)
		return c.produce(context.WithoutCancel(ctx), path, g)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.failures.Add(1)
			return nil, res.Err
		}
		if res.Shared {
			c.shared.Add(1)
		}
		return res.Val.(*vfs.Snapshot), nil
	}
}

func (c *Cache) current(key string) generation {
	c.treeMu.RLock()
	epoch := c.epoch
	c.treeMu.RUnlock()
	gen, _ := c.gens.Load(key)
	return generation{gen: gen, epoch: epoch}
}

// bump invalidates in-flight productions of key and returns the new generation
func (c *Cache) bump(key string) generation {
	c.treeMu.RLock()
	epoch := c.epoch
	c.treeMu.RUnlock()
	gen, _ := c.gens.Compute(key, func(old uint64, _ bool) (uint64, xsync.ComputeOp) {
		return old + 1, xsync.UpdateOp
	})
	return generation{gen: gen, epoch: epoch}
}

// produce snapshots path and stores the result unless path was invalidated
// after g was taken. The snapshot is returned either way.
func (c *Cache) produce(ctx context.Context, path string, g generation) (*vfs.Snapshot, error) {
	logger := util.GetLogger("Cache.produce")

	s, err := c.snapshotterFor(path).Snapshot(ctx, path)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Snapshot failed")
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	if s == nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, hierarchy.ErrNilSnapshot)
	}
	stored, err := c.storeIfCurrent(path, s, g)
	if err != nil {
		return nil, err
	}
	if !stored {
		c.stale.Add(1)
		logger.Debug().Str("path", path).Msg("Path invalidated during snapshot; result not cached")
		return s, nil
	}
	logger.Trace().Str("path", path).Stringer("snapshot", s).Msg("Produced snapshot")
	return s, nil
}

func (c *Cache) storeIfCurrent(path string, s *vfs.Snapshot, g generation) (bool, error) {
	c.treeMu.RLock()
	defer c.treeMu.RUnlock()
	if c.epoch != g.epoch {
		return false, nil
	}

	var (
		stored bool
		err    error
	)
	// the check and the store happen under the slot lock Invalidate bumps in
	c.gens.Compute(c.key(path), func(gen uint64, _ bool) (uint64, xsync.ComputeOp) {
		if gen == g.gen {
			_, err = c.hierarchy.Store(path, s)
			stored = err == nil
		}
		return gen, xsync.CancelOp
	})
	return stored, err
}

// Refresh re-snapshots every path whether cached or not, running up to
// Config.Concurrency snapshots at once. The first error cancels the rest.
func (c *Cache) Refresh(ctx context.Context, paths ...string) error {
	logger := util.GetLogger("Cache.Refresh")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.cfg.Concurrency, 1))
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, err := c.produce(ctx, p, c.bump(c.key(p)))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Int("paths", len(paths)).Msg("Refresh failed")
		return err
	}
	logger.Debug().Int("paths", len(paths)).Msg("Refreshed")
	return nil
}

// Invalidate drops the snapshot of path so the next Get produces a new one.
// Cached descendants are kept. Snapshots of path already in flight still
// reach their callers but are not cached.
func (c *Cache) Invalidate(path string) (*vfs.Snapshot, error) {
	var (
		removed *vfs.Snapshot
		err     error
	)
	c.gens.Compute(c.key(path), func(gen uint64, _ bool) (uint64, xsync.ComputeOp) {
		removed, err = c.hierarchy.Invalidate(path)
		return gen + 1, xsync.UpdateOp
	})
	return removed, err
}

// InvalidateTree drops path and everything cached below it. Every snapshot
// in flight at the time is left uncached.
func (c *Cache) InvalidateTree(path string) (*vfs.Snapshot, error) {
	c.treeMu.Lock()
	defer c.treeMu.Unlock()
	c.epoch++
	return c.hierarchy.InvalidateTree(path)
}

// Walk visits the cached subtree at path in name order
func (c *Cache) Walk(path string, v vfs.Visitor) error {
	return c.hierarchy.Visit(path, v)
}

func (c *Cache) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Shared:   c.shared.Load(),
		Failures: c.failures.Load(),
		Stale:    c.stale.Load(),
	}
}
