// Package cache stores the last successful forecast fetch.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

// Cache stores forecast entries by query key. Freshness is decided by the caller from
// ForecastCacheEntry.FetchedAt; retention only bounds how long a backend keeps an entry
// around for stale fallback.
type Cache interface {
	Get(ctx context.Context, key string) (models.ForecastCacheEntry, bool, error)
	Set(ctx context.Context, key string, entry models.ForecastCacheEntry, retention time.Duration) error
	Name() string
}

// InMemoryCache holds exactly one entry. Setting a different key replaces it, so a
// change of location or units invalidates the previous forecast.
type InMemoryCache struct {
	mu        sync.RWMutex
	clock     clockwork.Clock
	key       string
	entry     models.ForecastCacheEntry
	expiresAt time.Time
	set       bool
}

// NewInMemoryCache creates an empty single-slot cache. A nil clock uses the real clock.
func NewInMemoryCache(clock clockwork.Clock) *InMemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &InMemoryCache{clock: clock}
}

// Get returns the entry when key matches the held slot and retention has not elapsed.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.ForecastCacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.set || c.key != key {
		return models.ForecastCacheEntry{}, false, nil
	}
	if !c.expiresAt.IsZero() && c.clock.Now().After(c.expiresAt) {
		return models.ForecastCacheEntry{}, false, nil
	}
	return c.entry, true, nil
}

// Set replaces the held slot. retention <= 0 keeps the entry until replaced.
func (c *InMemoryCache) Set(ctx context.Context, key string, entry models.ForecastCacheEntry, retention time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.entry = entry
	c.set = true
	c.expiresAt = time.Time{}
	if retention > 0 {
		c.expiresAt = c.clock.Now().Add(retention)
	}
	return nil
}

// Name implements Cache.
func (c *InMemoryCache) Name() string { return "in_memory" }
