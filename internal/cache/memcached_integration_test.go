//go:build integration
// +build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memcachedAddr() string {
	if a := os.Getenv("MEMCACHED_ADDRS"); a != "" {
		return a
	}
	return "localhost:11211"
}

// TestMemcachedCache_GetSet_Integration verifies that MemcachedCache round-trips an
// entry when a memcached server is available.
func TestMemcachedCache_GetSet_Integration(t *testing.T) {
	c, err := NewMemcachedCache(memcachedAddr(), 500*time.Millisecond, 2)
	require.NoError(t, err)
	defer c.Close()
	if err := c.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}

	ctx := context.Background()
	want := entryAt(time.Now().UTC().Truncate(time.Second), "Sunny")
	require.NoError(t, c.Set(ctx, "integration", want, time.Minute))

	got, ok, err := c.Get(ctx, "integration")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, want.FetchedAt.Equal(got.FetchedAt))
	assert.Equal(t, want.Days[0].Phrase, got.Days[0].Phrase)
}

// TestMemcachedCache_Get_Miss_Integration verifies a missing key is a miss, not an error.
func TestMemcachedCache_Get_Miss_Integration(t *testing.T) {
	c, err := NewMemcachedCache(memcachedAddr(), 500*time.Millisecond, 2)
	require.NoError(t, err)
	defer c.Close()
	if err := c.Ping(); err != nil {
		t.Skipf("memcached not reachable: %v", err)
	}

	_, ok, err := c.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}
