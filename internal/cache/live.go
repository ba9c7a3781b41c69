// Package cache owns the process-wide live observation series: a
// read-through cache with TTL freshness, last-writer-wins merge over the
// static baseline, and file persistence that survives restarts. Rebuilds
// are guarded by a single-flight group so concurrent stale readers trigger
// exactly one gap fill.
package cache

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/airsense/aqicast/internal/series"
)

// DefaultTTL is the cache validity duration.
const DefaultTTL = time.Hour

// rebuildKey is the single-flight key; there is one cache identity per
// process.
const rebuildKey = "live-series"

// Filler produces the missing right-hand segment of the series. Satisfied
// by the pipeline gap filler.
type Filler interface {
	Fill(ctx context.Context, lastKnown, end time.Time) ([]series.Observation, error)
}

// snapshot pairs the assembled series with its creation time.
type snapshot struct {
	createdAt time.Time
	series    *series.Series
}

func (s *snapshot) fresh(now time.Time, ttl time.Duration) bool {
	return s != nil && now.Sub(s.createdAt) < ttl
}

// LiveCache is the read-through cache over the assembled live series.
type LiveCache struct {
	baseline *series.Series
	filler   Filler
	path     string
	ttl      time.Duration

	mu     sync.RWMutex
	snap   *snapshot
	loaded bool // disk was consulted at least once

	group singleflight.Group
}

func NewLiveCache(baseline *series.Series, filler Filler, path string, ttl time.Duration) *LiveCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LiveCache{baseline: baseline, filler: filler, path: path, ttl: ttl}
}

// Current returns the assembled series for now. A fresh snapshot is
// returned unchanged; a stale or missing one triggers a single-flight
// rebuild whose result every concurrent caller shares.
func (c *LiveCache) Current(ctx context.Context, now time.Time) (*series.Series, error) {
	c.mu.RLock()
	snap := c.snap
	loaded := c.loaded
	c.mu.RUnlock()

	if snap.fresh(now, c.ttl) {
		return snap.series, nil
	}

	if !loaded {
		if disk := c.loadFromDisk(); disk != nil {
			c.mu.Lock()
			c.loaded = true
			if c.snap == nil || disk.createdAt.After(c.snap.createdAt) {
				c.snap = disk
			}
			snap = c.snap
			c.mu.Unlock()
			if snap.fresh(now, c.ttl) {
				return snap.series, nil
			}
		} else {
			c.mu.Lock()
			c.loaded = true
			c.mu.Unlock()
		}
	}

	result, err, _ := c.group.Do(rebuildKey, func() (interface{}, error) {
		// A flight that completed while this caller was queued already
		// refreshed the snapshot; do not rebuild again.
		c.mu.RLock()
		snap := c.snap
		c.mu.RUnlock()
		if snap.fresh(now, c.ttl) {
			return snap.series, nil
		}
		return c.rebuild(ctx, now)
	})
	if err != nil {
		return nil, err
	}
	return result.(*series.Series), nil
}

// rebuild re-derives the live portion from the baseline's permanent left
// edge, merges with last-writer-wins, and persists the new snapshot.
func (c *LiveCache) rebuild(ctx context.Context, now time.Time) (*series.Series, error) {
	id := uuid.NewString()
	log.Printf("cache rebuild %s: assembling live series up to %s", id, now.Format(time.RFC3339))

	last, ok := c.baseline.Last()
	if !ok {
		return nil, errEmptyBaseline
	}

	var assembled *series.Series
	if !now.After(last.Timestamp) {
		// The requested time falls inside the baseline; nothing to fetch.
		assembled = &series.Series{Columns: c.baseline.Columns, Observations: c.baseline.Upto(now)}
	} else {
		live, err := c.filler.Fill(ctx, last.Timestamp, now)
		if err != nil {
			log.Printf("cache rebuild %s failed: %v", id, err)
			return nil, err
		}
		assembled = series.Merge(c.baseline, live)
	}

	snap := &snapshot{createdAt: now, series: assembled}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	if err := c.persist(snap); err != nil {
		// Persistence failure degrades durability, not correctness.
		log.Printf("cache rebuild %s: persist failed: %v", id, err)
	} else {
		log.Printf("cache rebuild %s: persisted %d rows", id, assembled.Len())
	}
	return assembled, nil
}

// loadFromDisk restores the persisted snapshot. A missing or corrupted file
// is a cache miss, never an error: the cache self-heals by rebuilding.
func (c *LiveCache) loadFromDisk() *snapshot {
	if c.path == "" {
		return nil
	}
	snap, err := readSnapshotFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("cache file unusable, will rebuild: %v", err)
		}
		return nil
	}
	return snap
}
