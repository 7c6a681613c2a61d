package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-mirror/internal/client"
	"github.com/kjstillabower/ambient-mirror/internal/lifecycle"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/observability"
	"github.com/kjstillabower/ambient-mirror/internal/traffic"
	"github.com/kjstillabower/ambient-mirror/internal/validation"
)

const serviceName = "ambient-mirror"

// ViewSource returns the latest rendered view model. presenter.Store implements it.
type ViewSource interface {
	View() (models.ViewModel, bool)
}

// ForecastProvider serves cached forecasts. service.ForecastService implements it.
type ForecastProvider interface {
	GetForecast(ctx context.Context, q models.ForecastQuery) (models.ForecastCacheEntry, error)
	Latest(ctx context.Context, q models.ForecastQuery) (models.ForecastCacheEntry, bool)
}

// HealthConfig holds health inputs and thresholds for the health handler.
type HealthConfig struct {
	// RealtimeConnected reports whether the station feed has a live session.
	RealtimeConnected func() bool
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	// Outcomes holds forecast fetch outcomes and rate-limit denials.
	Outcomes *traffic.Tracker

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	views            ViewSource
	forecasts        ForecastProvider
	defaultQuery     *models.ForecastQuery
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil forecasts or defaultQuery disables /forecast.
func NewHandler(
	views ViewSource,
	forecasts ForecastProvider,
	defaultQuery *models.ForecastQuery,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		views:        views,
		forecasts:    forecasts,
		defaultQuery: defaultQuery,
		healthConfig: healthConfig,
		logger:       logger.Named("http"),
	}
}

// GetView handles GET /view.
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	vm, ok := h.views.View()
	if !ok {
		writeError(w, r, http.StatusServiceUnavailable, "NOT_READY", "No view has been rendered yet")
		return
	}
	writeJSON(w, http.StatusOK, vm)
}

// forecastResponse is the body of GET /forecast.
type forecastResponse struct {
	FetchedAt time.Time            `json:"fetchedAt"`
	Stale     bool                 `json:"stale"`
	Unit      string               `json:"unit"`
	Days      []models.ForecastDay `json:"days"`
}

// GetForecast handles GET /forecast. Query parameters lat, lon, days and units override
// the configured station query. An upstream failure serves the last cached entry marked
// stale when one exists.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	if h.forecasts == nil || h.defaultQuery == nil {
		writeError(w, r, http.StatusNotFound, "FORECAST_DISABLED", "Forecast requires station coordinates")
		return
	}
	q, err := validation.ParseForecastQuery(r.URL.Query(), *h.defaultQuery)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, queryErrorCode(err), err.Error())
		return
	}

	entry, err := h.forecasts.GetForecast(r.Context(), q)
	if err == nil {
		writeJSON(w, http.StatusOK, forecastResponse{FetchedAt: entry.FetchedAt, Unit: q.Unit(), Days: entry.Days})
		return
	}
	if last, ok := h.forecasts.Latest(r.Context(), q); ok {
		requestLogger(r.Context(), h.logger).Debug("serving stale forecast", zap.Error(err))
		writeJSON(w, http.StatusOK, forecastResponse{FetchedAt: last.FetchedAt, Stale: true, Unit: q.Unit(), Days: last.Days})
		return
	}
	if errors.Is(err, client.ErrLocationNotFound) {
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "No forecast available for these coordinates")
		return
	}
	writeServiceError(w, r, h.logger, err)
}

func queryErrorCode(err error) string {
	switch {
	case errors.Is(err, validation.ErrInvalidLatitude), errors.Is(err, validation.ErrInvalidLongitude):
		return "INVALID_COORDINATES"
	case errors.Is(err, validation.ErrInvalidDays):
		return "INVALID_DAYS"
	case errors.Is(err, validation.ErrInvalidUnits):
		return "INVALID_UNITS"
	default:
		return "INVALID_REQUEST"
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	resp := map[string]interface{}{
		"status":    result.status,
		"service":   serviceName,
		"version":   "dev",
		"phase":     lifecycle.CurrentPhase().String(),
		"checks":    h.healthChecks(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > realtime disconnected > cache unreachable > overloaded >
// forecast error rate > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	switch lifecycle.CurrentPhase() {
	case lifecycle.ShuttingDown:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	case lifecycle.Starting:
		return healthResult{"starting", http.StatusServiceUnavailable, "starting"}
	}
	hc := h.healthConfig
	if hc == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if hc.RealtimeConnected != nil && !hc.RealtimeConnected() {
		return healthResult{"degraded", http.StatusServiceUnavailable, "realtime_disconnected"}
	}
	if hc.CachePing != nil && hc.CachePing() != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable"}
	}
	if hc.Outcomes == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	// Overloaded when denials exceed the configured share of the limiter's capacity over the window.
	if hc.RateLimitRPS > 0 && hc.OverloadWindow > 0 && hc.OverloadThresholdPct > 0 {
		threshold := float64(hc.RateLimitRPS) * hc.OverloadWindow.Seconds() * float64(hc.OverloadThresholdPct) / 100
		if float64(hc.Outcomes.Count(traffic.Denied, hc.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if hc.DegradedWindow > 0 && hc.DegradedErrorPct > 0 {
		failures, total := hc.Outcomes.ErrorRate(hc.DegradedWindow)
		if total > 0 && float64(failures)*100/float64(total) >= float64(hc.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "forecast_error_rate"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func (h *Handler) healthChecks() map[string]string {
	checks := make(map[string]string)
	if vm, ok := h.views.View(); ok {
		checks["station"] = string(vm.State)
	} else {
		checks["station"] = string(models.StateLoading)
	}
	hc := h.healthConfig
	if hc == nil {
		return checks
	}
	if hc.RealtimeConnected != nil {
		checks["realtime"] = healthWord(hc.RealtimeConnected())
	}
	if hc.CachePing != nil {
		checks["cache"] = healthWord(hc.CachePing() == nil)
	}
	if hc.Outcomes != nil && hc.DegradedWindow > 0 && hc.DegradedErrorPct > 0 {
		failures, total := hc.Outcomes.ErrorRate(hc.DegradedWindow)
		checks["forecastApi"] = healthWord(total == 0 || float64(failures)*100/float64(total) < float64(hc.DegradedErrorPct))
	}
	return checks
}

func healthWord(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError writes a 503 for upstream failures and logs the cause at debug.
func writeServiceError(w http.ResponseWriter, r *http.Request, fallback *zap.Logger, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch forecast data")
	requestLogger(r.Context(), fallback).Debug("upstream error",
		zap.String("category", string(client.CategorizeError(err))),
		zap.Error(err))
}
