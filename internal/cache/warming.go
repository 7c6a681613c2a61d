package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/observability"
)

// ForecastFetcher is implemented by the service layer. Declared here so the warmer
// does not depend on the service package.
type ForecastFetcher interface {
	GetForecast(ctx context.Context, q models.ForecastQuery) (models.ForecastCacheEntry, error)
}

// Warmer primes the cache before the first display request.
type Warmer struct {
	fetcher ForecastFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer that fetches through fetcher.
func NewWarmer(fetcher ForecastFetcher, logger *zap.Logger) *Warmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{fetcher: fetcher, logger: logger.Named("cache_warmer")}
}

// Warm fetches each query concurrently so the results land in the cache.
// Returns the joined errors of failed queries.
func (w *Warmer) Warm(ctx context.Context, queries []models.ForecastQuery) error {
	if len(queries) == 0 {
		return nil
	}
	start := time.Now()
	w.logger.Info("warming forecast cache", zap.Int("queries", len(queries)))

	var wg sync.WaitGroup
	errCh := make(chan error, len(queries))
	for _, q := range queries {
		wg.Add(1)
		go func(q models.ForecastQuery) {
			defer wg.Done()
			if _, err := w.fetcher.GetForecast(ctx, q); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", q.Key(), err)
			}
		}(q)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("forecast cache warming complete",
		zap.Int("queries", len(queries)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration),
	)
	if len(errs) > 0 {
		observability.CacheWarmingTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	observability.CacheWarmingTotal.WithLabelValues("success").Inc()
	return nil
}
