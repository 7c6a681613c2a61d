package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/ambient-mirror/internal/cache"
	"github.com/kjstillabower/ambient-mirror/internal/circuitbreaker"
	"github.com/kjstillabower/ambient-mirror/internal/client"
	"github.com/kjstillabower/ambient-mirror/internal/config"
	httphandler "github.com/kjstillabower/ambient-mirror/internal/http"
	"github.com/kjstillabower/ambient-mirror/internal/lifecycle"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/observability"
	"github.com/kjstillabower/ambient-mirror/internal/presenter"
	"github.com/kjstillabower/ambient-mirror/internal/realtime"
	"github.com/kjstillabower/ambient-mirror/internal/scheduler"
	"github.com/kjstillabower/ambient-mirror/internal/service"
	"github.com/kjstillabower/ambient-mirror/internal/traffic"
	"github.com/kjstillabower/ambient-mirror/internal/units"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	lifecycle.SetPhase(lifecycle.Starting)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	nwsClient, err := client.NewNWSClient(client.Config{
		BaseURL:        cfg.ForecastAPIURL,
		UserAgent:      cfg.ForecastUserAgent,
		Timeout:        cfg.ForecastAPITimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}, logger)
	if err != nil {
		logger.Fatal("forecast client", zap.Error(err))
	}
	nwsClient.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
		Name:             "nws",
		FailureThreshold: cfg.BreakerFailureThreshold,
		HalfOpenRequests: cfg.BreakerHalfOpenRequests,
		Timeout:          cfg.BreakerTimeout,
		IsSuccessful:     client.BreakerSuccess,
	}, logger))

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache(nil)
		logger.Info("cache backend: in_memory")
	}

	query, forecastEnabled := cfg.ForecastQuery()
	var defaultQuery *models.ForecastQuery
	if forecastEnabled {
		defaultQuery = &query
	}

	outcomes := traffic.NewTracker(nil, 0)
	forecastService := service.NewForecastService(nwsClient, cacheSvc, service.Config{
		TTL:             cfg.ForecastTTL,
		Retention:       cfg.ForecastRetention,
		CoalesceTimeout: forecastTimeout(cfg),
		Outcomes:        outcomes,
		Station:         defaultQuery,
	}, logger)

	if forecastEnabled {
		warmer := cache.NewWarmer(forecastService, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, []models.ForecastQuery{query}); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
	} else {
		logger.Info("forecast disabled: station coordinates not configured")
	}

	store := presenter.NewStore()
	pres := presenter.New(presenter.Config{
		OfflineThreshold:  cfg.OfflineThreshold,
		CheckInterval:     cfg.CheckInterval,
		ForecastTimeout:   forecastTimeout(cfg),
		Query:             query,
		View:              viewOptions(cfg),
		PressureThreshold: cfg.PressureThreshold,
		GustThreshold:     cfg.GustThreshold,
	}, forecastService, store, logger)

	connector, err := realtime.NewConnector(realtime.Config{
		URL:              cfg.RealtimeURL,
		APIKey:           cfg.AmbientAPIKey,
		ApplicationKey:   cfg.AmbientApplicationKey,
		MACAddress:       cfg.MACAddress,
		Latitude:         cfg.Latitude,
		Longitude:        cfg.Longitude,
		ReconnectDelay:   cfg.ReconnectDelay,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}, pres.Observe, logger)
	if err != nil {
		logger.Fatal("realtime connector", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		RealtimeConnected:    connector.Connected,
		Outcomes:             outcomes,
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(store, forecastService, defaultQuery, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Limiter:        limiter,
		Outcomes:       outcomes,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := pres.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("presenter stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := connector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("realtime connector stopped", zap.Error(err))
		}
	}()

	refresh := scheduler.New(pres, cfg.ForecastRefreshInterval, logger)
	if forecastEnabled && cfg.ShowForecast {
		if err := refresh.Start(); err != nil {
			logger.Fatal("forecast scheduler", zap.Error(err))
		}
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	lifecycle.SetPhase(lifecycle.Running)

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetPhase(lifecycle.ShuttingDown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	refresh.Stop()
	wg.Wait()

	if err := observability.FlushTelemetry(logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// viewOptions maps display config onto presenter options.
func viewOptions(cfg *config.Config) presenter.ViewOptions {
	return presenter.ViewOptions{
		Units:         units.System(cfg.Units),
		Icons:         cfg.Icons,
		ShowSunTimes:  cfg.ShowSunTimes,
		ShowUV:        cfg.ShowUV,
		ShowAQI:       cfg.ShowAQI,
		ShowBarometer: cfg.ShowBarometer,
		ShowIndoor:    cfg.ShowIndoor,
		ShowForecast:  cfg.ShowForecast,
	}
}

// forecastTimeout bounds one forecast refresh end to end: every retry attempt at the
// per-call timeout.
func forecastTimeout(cfg *config.Config) time.Duration {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return cfg.ForecastAPITimeout*time.Duration(attempts) + cfg.RetryMaxDelay
}
