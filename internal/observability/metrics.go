package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (display stopped polling).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Rate limit denials on the HTTP surface.
	RateLimitDeniedTotal prometheus.Counter

	// NWS API call rate by status. Watch for: error vs success ratio.
	ForecastAPICallsTotal *prometheus.CounterVec

	// NWS latency per request. Watch for: p95 > 2s (upstream degradation).
	ForecastAPIDuration *prometheus.HistogramVec

	// Retry attempts for NWS calls. High retries = unstable upstream.
	ForecastAPIRetriesTotal prometheus.Counter

	// Failed forecast fetches by category (see client.CategorizeError).
	ForecastErrorsTotal *prometheus.CounterVec

	// Forecast cache lookups by backend and result (hit|miss).
	CacheLookupsTotal *prometheus.CounterVec

	// Callers that joined an in-flight forecast fetch instead of starting their own.
	CoalescedRequestsTotal prometheus.Counter

	// Forecast cache misses that overlapped another miss for the same key, by scope
	// (station|adhoc), and the overlap depth observed.
	CacheStampedeDetectedTotal *prometheus.CounterVec
	CacheStampedeConcurrency   *prometheus.HistogramVec

	// Circuit breaker state per breaker: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	// Realtime feed lifecycle events (connect, disconnect, subscribe, error, reconnect).
	RealtimeEventsTotal *prometheus.CounterVec

	// 1 while a realtime session is connected.
	RealtimeConnected prometheus.Gauge

	// Observations accepted from the realtime feed.
	ObservationsReceivedTotal prometheus.Counter

	// Observations dropped before display, by reason (mac_mismatch, decode, backpressure).
	ObservationsDroppedTotal *prometheus.CounterVec

	// Presenter display state, one series per state set to 1 for the current one.
	PresenterState *prometheus.GaugeVec

	// Renders pushed to the renderer by trigger (observation, forecast, state).
	RendersTotal *prometheus.CounterVec

	// Forecast results discarded because a newer request superseded them.
	StaleForecastDiscardsTotal prometheus.Counter

	// Scheduled forecast refreshes.
	ForecastRefreshTotal prometheus.Counter

	// Startup cache warming runs by result (success|error).
	CacheWarmingTotal *prometheus.CounterVec

	// Cache warming duration.
	CacheWarmingDurationSeconds prometheus.Histogram
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	ForecastAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastApiCallsTotal",
			Help: "Total number of forecast API calls",
		},
		[]string{"status"},
	)
	ForecastAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forecastApiDurationSeconds",
			Help:    "Forecast API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	ForecastAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastApiRetriesTotal",
			Help: "Total number of retry attempts for forecast API calls",
		},
	)
	ForecastErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastErrorsTotal",
			Help: "Failed forecast fetches by error category",
		},
		[]string{"category"},
	)
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheLookupsTotal",
			Help: "Forecast cache lookups by backend and result",
		},
		[]string{"cacheType", "result"},
	)
	CoalescedRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coalescedRequestsTotal",
			Help: "Forecast requests that shared an in-flight upstream call",
		},
	)
	CacheStampedeDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheStampedeDetectedTotal",
			Help: "Forecast cache misses that overlapped another miss for the same key",
		},
		[]string{"scope"},
	)
	CacheStampedeConcurrency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheStampedeConcurrency",
			Help:    "Concurrent forecast cache misses for one key when a stampede is detected",
			Buckets: []float64{2, 3, 5, 10, 20},
		},
		[]string{"scope"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)
	RealtimeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtimeEventsTotal",
			Help: "Realtime feed connection lifecycle events",
		},
		[]string{"event"},
	)
	RealtimeConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtimeConnected",
			Help: "1 while the realtime feed session is connected",
		},
	)
	ObservationsReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "observationsReceivedTotal",
			Help: "Observations accepted from the realtime feed",
		},
	)
	ObservationsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observationsDroppedTotal",
			Help: "Observations dropped before display, by reason",
		},
		[]string{"reason"},
	)
	PresenterState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presenterState",
			Help: "Current display state (1 for the active state)",
		},
		[]string{"state"},
	)
	RendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rendersTotal",
			Help: "View models pushed to the renderer by trigger",
		},
		[]string{"trigger"},
	)
	StaleForecastDiscardsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "staleForecastDiscardsTotal",
			Help: "Forecast results discarded because a newer request superseded them",
		},
	)
	ForecastRefreshTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastRefreshTotal",
			Help: "Scheduled forecast refreshes",
		},
	)
	CacheWarmingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Forecast cache warming runs by result",
		},
		[]string{"result"},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Forecast cache warming duration in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight, RateLimitDeniedTotal,
		ForecastAPICallsTotal, ForecastAPIDuration, ForecastAPIRetriesTotal, ForecastErrorsTotal,
		CacheLookupsTotal, CoalescedRequestsTotal, CacheStampedeDetectedTotal, CacheStampedeConcurrency,
		CircuitBreakerState,
		RealtimeEventsTotal, RealtimeConnected,
		ObservationsReceivedTotal, ObservationsDroppedTotal,
		PresenterState, RendersTotal, StaleForecastDiscardsTotal,
		ForecastRefreshTotal, CacheWarmingTotal, CacheWarmingDurationSeconds,
	)
}

// SetPresenterState marks state as active and clears the others.
func SetPresenterState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		PresenterState.WithLabelValues(s).Set(v)
	}
}

// RecordCacheLookup counts a forecast cache hit or miss for the given backend.
func RecordCacheLookup(cacheType string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(cacheType, result).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
