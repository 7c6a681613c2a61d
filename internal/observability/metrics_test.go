package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMetrics_Usable verifies that label dimensions match usage across the client,
// http, service, cache, realtime and presenter packages.
func TestMetrics_Usable(t *testing.T) {
	assert.NotPanics(t, func() {
		HTTPRequestsTotal.WithLabelValues("GET", "/view", "2xx").Inc()
		HTTPRequestDuration.WithLabelValues("GET", "/view").Observe(0.01)
		ForecastAPICallsTotal.WithLabelValues("success").Inc()
		ForecastAPIDuration.WithLabelValues("server_error").Observe(0.1)
		ForecastErrorsTotal.WithLabelValues("timeout").Inc()
		CircuitBreakerState.WithLabelValues("nws").Set(0)
		RealtimeEventsTotal.WithLabelValues("connect").Inc()
		ObservationsDroppedTotal.WithLabelValues("mac_mismatch").Inc()
		RendersTotal.WithLabelValues("observation").Inc()
	})
}

// TestRecordCacheLookup verifies hits and misses land on separate series.
func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("test", "hit"))
	misses := testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("test", "miss"))

	RecordCacheLookup("test", true)
	RecordCacheLookup("test", false)
	RecordCacheLookup("test", false)

	assert.Equal(t, hits+1, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("test", "hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(CacheLookupsTotal.WithLabelValues("test", "miss")))
}

// TestSetPresenterState verifies exactly one state series is active.
func TestSetPresenterState(t *testing.T) {
	all := []string{"loading", "online", "offline"}
	SetPresenterState("offline", all)

	assert.Equal(t, 0.0, testutil.ToFloat64(PresenterState.WithLabelValues("loading")))
	assert.Equal(t, 0.0, testutil.ToFloat64(PresenterState.WithLabelValues("online")))
	assert.Equal(t, 1.0, testutil.ToFloat64(PresenterState.WithLabelValues("offline")))
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves the
// Prometheus text exposition format.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	handler := MetricsHandler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "httpRequestsTotal")
}
