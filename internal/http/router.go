package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/ambient-mirror/internal/observability"
	"github.com/kjstillabower/ambient-mirror/internal/traffic"
)

// RouterConfig holds the knobs for NewRouter.
type RouterConfig struct {
	// Limiter throttles /view and /forecast; nil disables rate limiting.
	Limiter *rate.Limiter
	// Outcomes receives rate-limit denials; may be nil.
	Outcomes *traffic.Tracker
	// RequestTimeout bounds /forecast, which may call upstream.
	RequestTimeout time.Duration
}

// NewRouter wires handler onto GET /view, /forecast, /health and /metrics.
// /health and /metrics bypass the rate limiter.
func NewRouter(handler *Handler, cfg RouterConfig, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	display := router.NewRoute().Subrouter()
	display.Use(RateLimitMiddleware(cfg.Limiter, cfg.Outcomes))
	display.HandleFunc("/view", handler.GetView).Methods(http.MethodGet)

	forecast := display.NewRoute().Subrouter()
	if cfg.RequestTimeout > 0 {
		forecast.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	forecast.HandleFunc("/forecast", handler.GetForecast).Methods(http.MethodGet)

	return router
}
