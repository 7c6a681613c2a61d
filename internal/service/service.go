// Package service serves forecasts cache-aside over the NWS client.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-mirror/internal/cache"
	"github.com/kjstillabower/ambient-mirror/internal/client"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/observability"
	"github.com/kjstillabower/ambient-mirror/internal/traffic"
)

const (
	DefaultTTL             = 90 * time.Minute
	DefaultCoalesceTimeout = 30 * time.Second
)

// Config holds ForecastService parameters. Zero values take defaults.
type Config struct {
	// TTL is how long a fetched forecast is served without refetching.
	TTL time.Duration
	// Retention is how long the backend keeps an entry for stale fallback; 0 keeps it
	// until replaced.
	Retention time.Duration
	// CoalesceTimeout bounds a shared upstream fetch.
	CoalesceTimeout time.Duration
	Clock           clockwork.Clock
	// Outcomes, when set, records each upstream fetch as a success or failure.
	Outcomes OutcomeRecorder
	// Station, when set, reserves the cache for that query. Any other query is kept in
	// a separate single-entry memory cache so it never evicts the station forecast.
	Station *models.ForecastQuery
}

// OutcomeRecorder receives upstream fetch outcomes. *traffic.Tracker satisfies it.
type OutcomeRecorder interface {
	Record(traffic.Outcome)
}

type discardOutcomes struct{}

func (discardOutcomes) Record(traffic.Outcome) {}

// ForecastService orchestrates forecast retrieval using the cache-aside pattern.
// A failed refetch leaves the previous entry in place.
type ForecastService struct {
	client     client.ForecastClient
	cache      cache.Cache
	adhoc      cache.Cache
	stationKey string
	ttl        time.Duration
	retention  time.Duration
	clock      clockwork.Clock
	coalescer  *requestCoalescer
	stampede   *stampedeTracker
	outcomes   OutcomeRecorder
	logger     *zap.Logger
}

// NewForecastService creates a ForecastService with the provided dependencies.
func NewForecastService(fc client.ForecastClient, c cache.Cache, cfg Config, logger *zap.Logger) *ForecastService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CoalesceTimeout <= 0 {
		cfg.CoalesceTimeout = DefaultCoalesceTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Outcomes == nil {
		cfg.Outcomes = discardOutcomes{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ForecastService{
		client:    fc,
		cache:     c,
		adhoc:     c,
		ttl:       cfg.TTL,
		retention: cfg.Retention,
		clock:     cfg.Clock,
		coalescer: newRequestCoalescer(cfg.CoalesceTimeout),
		stampede:  newStampedeTracker(),
		outcomes:  cfg.Outcomes,
		logger:    logger.Named("forecast"),
	}
	if cfg.Station != nil {
		s.stationKey = cfg.Station.Normalized().Key()
		s.adhoc = cache.NewInMemoryCache(cfg.Clock)
	}
	return s
}

// GetForecast returns the cached entry for q while it is younger than the TTL, and
// otherwise fetches upstream, caches and returns the new entry.
func (s *ForecastService) GetForecast(ctx context.Context, q models.ForecastQuery) (models.ForecastCacheEntry, error) {
	q = q.Normalized()
	key := q.Key()
	logger := s.requestLogger(ctx).With(zap.String("key", key))
	store := s.cacheFor(key)

	if entry, ok := s.lookup(ctx, store, key, logger); ok && s.fresh(entry) {
		observability.RecordCacheLookup(store.Name(), true)
		logger.Debug("forecast cache hit", zap.Duration("age", s.clock.Since(entry.FetchedAt)))
		return entry, nil
	}
	observability.RecordCacheLookup(store.Name(), false)
	logger.Debug("forecast cache miss, fetching upstream")

	if misses := s.stampede.RecordMiss(key); misses > 1 {
		scope := s.scope(key)
		observability.CacheStampedeDetectedTotal.WithLabelValues(scope).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(scope).Observe(float64(misses))
	}
	defer s.stampede.RecordHit(key)

	entry, shared, err := s.coalescer.GetOrDo(ctx, key, func(fetchCtx context.Context) (models.ForecastCacheEntry, error) {
		return s.fetch(fetchCtx, store, q, key, logger)
	})
	if shared {
		observability.CoalescedRequestsTotal.Inc()
	}
	if err != nil {
		return models.ForecastCacheEntry{}, fmt.Errorf("fetch forecast %s: %w", key, err)
	}
	return entry, nil
}

// Latest returns the cached entry for q regardless of age. Used to keep showing the last
// known forecast when a refetch fails.
func (s *ForecastService) Latest(ctx context.Context, q models.ForecastQuery) (models.ForecastCacheEntry, bool) {
	key := q.Normalized().Key()
	return s.lookup(ctx, s.cacheFor(key), key, s.requestLogger(ctx).With(zap.String("key", key)))
}

// Fresh reports whether entry is still within the TTL.
func (s *ForecastService) Fresh(entry models.ForecastCacheEntry) bool {
	return s.fresh(entry)
}

func (s *ForecastService) fresh(entry models.ForecastCacheEntry) bool {
	return !entry.FetchedAt.IsZero() && s.clock.Since(entry.FetchedAt) < s.ttl
}

// cacheFor returns the backend holding key: the configured cache for the station query,
// or the ad-hoc memory cache for anything else.
func (s *ForecastService) cacheFor(key string) cache.Cache {
	if s.stationKey != "" && key != s.stationKey {
		return s.adhoc
	}
	return s.cache
}

func (s *ForecastService) scope(key string) string {
	if s.stationKey != "" && key != s.stationKey {
		return "adhoc"
	}
	return "station"
}

func (s *ForecastService) lookup(ctx context.Context, store cache.Cache, key string, logger *zap.Logger) (models.ForecastCacheEntry, bool) {
	entry, ok, err := store.Get(ctx, key)
	if err != nil {
		logger.Warn("forecast cache get failed", zap.Error(err))
		return models.ForecastCacheEntry{}, false
	}
	return entry, ok
}

func (s *ForecastService) fetch(ctx context.Context, store cache.Cache, q models.ForecastQuery, key string, logger *zap.Logger) (models.ForecastCacheEntry, error) {
	start := s.clock.Now()
	days, err := s.client.GetForecast(ctx, q)
	if err != nil {
		s.outcomes.Record(traffic.Failure)
		category := client.CategorizeError(err)
		observability.ForecastErrorsTotal.WithLabelValues(string(category)).Inc()
		logger.Warn("forecast fetch failed, keeping previous entry",
			zap.String("category", string(category)),
			zap.Error(err),
		)
		return models.ForecastCacheEntry{}, err
	}

	s.outcomes.Record(traffic.Success)
	entry := models.ForecastCacheEntry{FetchedAt: s.clock.Now(), Days: days}
	if err := store.Set(ctx, key, entry, s.retention); err != nil {
		logger.Warn("forecast cache set failed", zap.Error(err))
	}
	logger.Info("forecast refreshed",
		zap.Int("days", len(days)),
		zap.Duration("duration", s.clock.Since(start)),
	)
	return entry, nil
}

func (s *ForecastService) requestLogger(ctx context.Context) *zap.Logger {
	if id := observability.CorrelationID(ctx); id != "" {
		return s.logger.With(zap.String("correlation_id", id))
	}
	return s.logger
}
