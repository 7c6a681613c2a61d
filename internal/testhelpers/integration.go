//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/kjstillabower/ambient-mirror/internal/cache"
	"github.com/kjstillabower/ambient-mirror/internal/client"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/observability"
	"github.com/kjstillabower/ambient-mirror/internal/service"
	"github.com/kjstillabower/ambient-mirror/internal/traffic"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIURL        string
	Query         models.ForecastQuery
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if NWS_INTEGRATION is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	if os.Getenv("NWS_INTEGRATION") == "" {
		t.Skip("NWS_INTEGRATION not set, skipping integration test")
	}

	apiURL := os.Getenv("NWS_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultBaseURL
	}
	q := models.ForecastQuery{Latitude: 47.6062, Longitude: -122.3321, Days: 3}
	if v, err := strconv.ParseFloat(os.Getenv("NWS_TEST_LAT"), 64); err == nil {
		q.Latitude = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("NWS_TEST_LON"), 64); err == nil {
		q.Longitude = v
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIURL:        apiURL,
		Query:         q,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationService creates a forecast service against the live NWS API.
// Returns the service, its outcome tracker and a cleanup function.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.ForecastService, *traffic.Tracker, func()) {
	t.Helper()
	logger, err := observability.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	nws, err := client.NewNWSClient(client.Config{BaseURL: cfg.APIURL, Timeout: 10 * time.Second}, logger)
	if err != nil {
		t.Fatalf("NewNWSClient() error = %v", err)
	}

	var cacheSvc cache.Cache
	cleanup := func() {}
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			cacheSvc = mc
			cleanup = func() { _ = mc.Close() }
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available, using in-memory cache")
		}
	}
	if cacheSvc == nil {
		cacheSvc = cache.NewInMemoryCache(nil)
	}

	tracker := traffic.NewTracker(nil, 0)
	svc := service.NewForecastService(nws, cacheSvc, service.Config{TTL: 5 * time.Minute, Outcomes: tracker}, logger)
	return svc, tracker, cleanup
}
