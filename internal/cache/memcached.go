package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

const keyPrefix = "ambient-mirror:"

// maxRelativeExp is memcached's limit for relative expirations; larger values are
// interpreted as unix timestamps.
const maxRelativeExp = 30 * 24 * 60 * 60

// MemcachedCache implements Cache using memcached, for displays that share a forecast
// across restarts or across several mirrors.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	var sl memcache.ServerList
	if err := sl.SetServers(servers...); err != nil {
		return nil, fmt.Errorf("memcached servers %q: %w", addrs, err)
	}
	client := memcache.NewFromSelector(&sl)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (c *MemcachedCache) key(k string) string {
	return keyPrefix + k
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.ForecastCacheEntry, bool, error) {
	if ctx.Err() != nil {
		return models.ForecastCacheEntry{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.ForecastCacheEntry{}, false, nil
		}
		return models.ForecastCacheEntry{}, false, fmt.Errorf("cache get: %w", err)
	}
	var entry models.ForecastCacheEntry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return models.ForecastCacheEntry{}, false, fmt.Errorf("cache decode: %w", err)
	}
	return entry, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, entry models.ForecastCacheEntry, retention time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expirationSeconds(retention),
	})
}

// expirationSeconds converts retention to memcached's relative expiration. Zero means
// no expiry; values past the relative limit are clamped to it.
func expirationSeconds(retention time.Duration) int32 {
	sec := int64(retention / time.Second)
	switch {
	case sec <= 0:
		return 0
	case sec > maxRelativeExp:
		return maxRelativeExp
	default:
		return int32(sec)
	}
}

// Name implements Cache.
func (c *MemcachedCache) Name() string { return "memcached" }

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
