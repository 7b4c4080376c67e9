// Package cache holds the most recently polled meter list, shared by all
// mounted views for readiness checks and metrics.
package cache

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/types"
)

// Cache stores the last successfully fetched meter list with TTL support.
type Cache struct {
	mu        sync.RWMutex
	meters    []types.MeterID
	populated bool
	fetchedAt time.Time
	ttl       time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a new Cache. Data older than ttl is reported as stale.
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// Get returns a copy of the cached meter list.
// Returns the meters, whether they are stale, and whether data was found.
func (c *Cache) Get() (meters []types.MeterID, isStale bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.populated {
		c.misses.Add(1)
		return nil, false, false
	}

	c.hits.Add(1)
	return slices.Clone(c.meters), time.Since(c.fetchedAt) > c.ttl, true
}

// Set replaces the cached meter list wholesale.
func (c *Cache) Set(meters []types.MeterID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.meters = slices.Clone(meters)
	c.populated = true
	c.fetchedAt = time.Now()
}

// Len returns the number of cached meters.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.meters)
}

// FetchedAt returns when the list was last replaced, or the zero time.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Age returns the age of the cached data.
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.populated {
		return 0
	}
	return time.Since(c.fetchedAt)
}

// Stats returns cache hit/miss statistics.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// IsPopulated returns true if a meter list was stored at least once.
func (c *Cache) IsPopulated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated
}
