package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/ambient-mirror/internal/client"
	"github.com/kjstillabower/ambient-mirror/internal/lifecycle"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/traffic"
)

type fakeViews struct {
	vm models.ViewModel
	ok bool
}

func (f *fakeViews) View() (models.ViewModel, bool) { return f.vm, f.ok }

type fakeForecasts struct {
	entry     models.ForecastCacheEntry
	err       error
	latest    models.ForecastCacheEntry
	hasLatest bool
	lastQuery models.ForecastQuery
}

func (f *fakeForecasts) GetForecast(ctx context.Context, q models.ForecastQuery) (models.ForecastCacheEntry, error) {
	f.lastQuery = q
	return f.entry, f.err
}

func (f *fakeForecasts) Latest(ctx context.Context, q models.ForecastQuery) (models.ForecastCacheEntry, bool) {
	return f.latest, f.hasLatest
}

var (
	stationQuery = models.ForecastQuery{Latitude: 40.7128, Longitude: -74.006, Days: 3}
	fetchedAt    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func high(v float64) *float64 { return &v }

func sunnyEntry() models.ForecastCacheEntry {
	return models.ForecastCacheEntry{
		FetchedAt: fetchedAt,
		Days:      []models.ForecastDay{{Phrase: "Sunny", High: high(71), Unit: "F", IsDaytime: true}},
	}
}

// running sets the lifecycle phase to Running for the duration of the test.
func running(t *testing.T) {
	t.Helper()
	lifecycle.SetPhase(lifecycle.Running)
	t.Cleanup(func() { lifecycle.SetPhase(lifecycle.Starting) })
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, w)
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no error object: %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestHandler_GetView_Success(t *testing.T) {
	views := &fakeViews{ok: true, vm: models.ViewModel{State: models.StateOnline, Online: true, Icon: "clear_day.json"}}
	handler := NewHandler(views, nil, nil, nil, nil)

	w := httptest.NewRecorder()
	handler.GetView(w, httptest.NewRequest("GET", "/view", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var vm models.ViewModel
	if err := json.NewDecoder(w.Body).Decode(&vm); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if vm.State != models.StateOnline || vm.Icon != "clear_day.json" {
		t.Errorf("view = %+v, want online with clear_day icon", vm)
	}
}

func TestHandler_GetView_NotReady(t *testing.T) {
	handler := NewHandler(&fakeViews{}, nil, nil, nil, nil)

	w := httptest.NewRecorder()
	handler.GetView(w, httptest.NewRequest("GET", "/view", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if code := errorCode(t, w); code != "NOT_READY" {
		t.Errorf("code = %q, want NOT_READY", code)
	}
}

func TestHandler_GetForecast_Success(t *testing.T) {
	forecasts := &fakeForecasts{entry: sunnyEntry()}
	q := stationQuery
	handler := NewHandler(&fakeViews{}, forecasts, &q, nil, nil)

	w := httptest.NewRecorder()
	handler.GetForecast(w, httptest.NewRequest("GET", "/forecast?days=9&units=metric", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp forecastResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stale {
		t.Error("stale = true, want false")
	}
	if resp.Unit != "C" {
		t.Errorf("unit = %q, want C", resp.Unit)
	}
	if len(resp.Days) != 1 || resp.Days[0].Phrase != "Sunny" {
		t.Errorf("days = %+v", resp.Days)
	}
	if forecasts.lastQuery.Days != models.MaxForecastDays {
		t.Errorf("query days = %d, want clamped to %d", forecasts.lastQuery.Days, models.MaxForecastDays)
	}
	if forecasts.lastQuery.Latitude != stationQuery.Latitude {
		t.Errorf("query latitude = %v, want station default", forecasts.lastQuery.Latitude)
	}
}

func TestHandler_GetForecast_Errors(t *testing.T) {
	tests := []struct {
		name       string
		forecasts  *fakeForecasts
		noDefault  bool
		target     string
		wantStatus int
		wantCode   string
	}{
		{"disabled without coordinates", &fakeForecasts{}, true, "/forecast", http.StatusNotFound, "FORECAST_DISABLED"},
		{"bad latitude", &fakeForecasts{}, false, "/forecast?lat=north", http.StatusBadRequest, "INVALID_COORDINATES"},
		{"longitude out of range", &fakeForecasts{}, false, "/forecast?lon=200", http.StatusBadRequest, "INVALID_COORDINATES"},
		{"bad days", &fakeForecasts{}, false, "/forecast?days=three", http.StatusBadRequest, "INVALID_DAYS"},
		{"bad units", &fakeForecasts{}, false, "/forecast?units=kelvin", http.StatusBadRequest, "INVALID_UNITS"},
		{
			"location not found",
			&fakeForecasts{err: fmt.Errorf("fetch: %w", client.ErrLocationNotFound)},
			false, "/forecast", http.StatusNotFound, "LOCATION_NOT_FOUND",
		},
		{
			"upstream down without cache",
			&fakeForecasts{err: fmt.Errorf("fetch: %w", client.ErrUpstreamFailure)},
			false, "/forecast", http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var q *models.ForecastQuery
			if !tc.noDefault {
				def := stationQuery
				q = &def
			}
			handler := NewHandler(&fakeViews{}, tc.forecasts, q, nil, nil)

			w := httptest.NewRecorder()
			handler.GetForecast(w, httptest.NewRequest("GET", tc.target, nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			if code := errorCode(t, w); code != tc.wantCode {
				t.Errorf("code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestHandler_GetForecast_StaleFallback(t *testing.T) {
	forecasts := &fakeForecasts{
		err:       errors.New("upstream down"),
		latest:    sunnyEntry(),
		hasLatest: true,
	}
	q := stationQuery
	handler := NewHandler(&fakeViews{}, forecasts, &q, nil, nil)

	w := httptest.NewRecorder()
	handler.GetForecast(w, httptest.NewRequest("GET", "/forecast", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp forecastResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Stale {
		t.Error("stale = false, want true")
	}
	if !resp.FetchedAt.Equal(fetchedAt) {
		t.Errorf("fetchedAt = %v, want %v", resp.FetchedAt, fetchedAt)
	}
}

func TestHandler_GetHealth_Phases(t *testing.T) {
	handler := NewHandler(&fakeViews{}, nil, nil, nil, nil)
	t.Cleanup(func() { lifecycle.SetPhase(lifecycle.Starting) })

	tests := []struct {
		phase      lifecycle.Phase
		wantStatus int
		want       string
	}{
		{lifecycle.Starting, http.StatusServiceUnavailable, "starting"},
		{lifecycle.Running, http.StatusOK, "healthy"},
		{lifecycle.ShuttingDown, http.StatusServiceUnavailable, "shutting-down"},
	}
	for _, tc := range tests {
		lifecycle.SetPhase(tc.phase)
		w := httptest.NewRecorder()
		handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))
		if w.Code != tc.wantStatus {
			t.Errorf("%v: status = %d, want %d", tc.phase, w.Code, tc.wantStatus)
		}
		body := decodeBody(t, w)
		if body["status"] != tc.want {
			t.Errorf("%v: status field = %v, want %s", tc.phase, body["status"], tc.want)
		}
		if body["phase"] != tc.phase.String() {
			t.Errorf("%v: phase field = %v", tc.phase, body["phase"])
		}
	}
}

func TestHandler_GetHealth_Degraded(t *testing.T) {
	running(t)
	tests := []struct {
		name       string
		cfg        *HealthConfig
		wantReason string
	}{
		{
			"realtime disconnected",
			&HealthConfig{RealtimeConnected: func() bool { return false }},
			"realtime_disconnected",
		},
		{
			"cache unreachable",
			&HealthConfig{
				RealtimeConnected: func() bool { return true },
				CachePing:         func() error { return errors.New("dial tcp: refused") },
			},
			"cache_unreachable",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler(&fakeViews{}, nil, nil, tc.cfg, nil)
			w := httptest.NewRecorder()
			handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

			if w.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want 503", w.Code)
			}
			body := decodeBody(t, w)
			if body["status"] != "degraded" || body["reason"] != tc.wantReason {
				t.Errorf("status/reason = %v/%v, want degraded/%s", body["status"], body["reason"], tc.wantReason)
			}
		})
	}
}

func TestHandler_GetHealth_Checks(t *testing.T) {
	running(t)
	views := &fakeViews{ok: true, vm: models.ViewModel{State: models.StateOffline}}
	cfg := &HealthConfig{
		RealtimeConnected: func() bool { return true },
		CachePing:         func() error { return nil },
	}
	handler := NewHandler(views, nil, nil, cfg, nil)

	w := httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	checks, ok := decodeBody(t, w)["checks"].(map[string]interface{})
	if !ok {
		t.Fatal("checks missing")
	}
	want := map[string]string{"station": "offline", "realtime": "healthy", "cache": "healthy"}
	for k, v := range want {
		if checks[k] != v {
			t.Errorf("checks[%s] = %v, want %s", k, checks[k], v)
		}
	}
}

func TestHandler_GetHealth_Overloaded(t *testing.T) {
	running(t)
	tracker := traffic.NewTracker(clockwork.NewFakeClock(), 0)
	cfg := &HealthConfig{
		Outcomes:             tracker,
		RateLimitRPS:         1,
		OverloadWindow:       10 * time.Second,
		OverloadThresholdPct: 50,
	}
	handler := NewHandler(&fakeViews{}, nil, nil, cfg, nil)

	// Threshold is 1 rps * 10s * 50% = 5 denials.
	for i := 0; i < 5; i++ {
		tracker.Record(traffic.Denied)
	}
	w := httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("at threshold: status = %d, want 200", w.Code)
	}

	tracker.Record(traffic.Denied)
	w = httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("over threshold: status = %d, want 503", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "overloaded" {
		t.Errorf("status = %v, want overloaded", body["status"])
	}
}

func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	running(t)
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	tracker := traffic.NewTracker(clockwork.NewFakeClock(), 0)
	cfg := &HealthConfig{
		Outcomes:         tracker,
		DegradedWindow:   time.Minute,
		DegradedErrorPct: 50,
	}
	handler := NewHandler(&fakeViews{}, nil, nil, cfg, logger)
	req := httptest.NewRequest("GET", "/health", nil)

	tracker.Record(traffic.Success)
	tracker.Record(traffic.Success)
	w := httptest.NewRecorder()
	handler.GetHealth(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first GetHealth status = %d, want 200", w.Code)
	}
	if logs.Len() != 0 {
		t.Fatalf("first call should not log transition; got %d logs", logs.Len())
	}

	// 2 of 4 fetches failed: 50% meets the threshold.
	tracker.Record(traffic.Failure)
	tracker.Record(traffic.Failure)
	w = httptest.NewRecorder()
	handler.GetHealth(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("second GetHealth status = %d, want 503", w.Code)
	}

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 transition log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "degraded" {
		t.Errorf("transition = %v -> %v, want healthy -> degraded", fields["previous_status"], fields["current_status"])
	}
	if fields["reason"] != "forecast_error_rate" {
		t.Errorf("reason = %v, want forecast_error_rate", fields["reason"])
	}

	w = httptest.NewRecorder()
	handler.GetHealth(w, req)
	if logs.Len() != 1 {
		t.Errorf("unchanged status should not log; total logs = %d, want 1", logs.Len())
	}
}
