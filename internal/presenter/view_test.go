package presenter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/ambient-mirror/internal/conditions"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/units"
)

var f = models.Float

// TestBuildView_Loading verifies the empty view before any data arrives.
func TestBuildView_Loading(t *testing.T) {
	now := time.Now()
	vm := buildView(snapshot{state: models.StateLoading}, now, conditions.Classifier{}, DefaultViewOptions())

	assert.Equal(t, models.StateLoading, vm.State)
	assert.False(t, vm.Online)
	assert.Nil(t, vm.LastUpdate)
	assert.Nil(t, vm.Current)
	assert.Nil(t, vm.Pressure)
	assert.Empty(t, vm.Condition)
	assert.Empty(t, vm.Icon)
	assert.True(t, vm.IsDaytime)
	assert.Equal(t, now, vm.RenderedAt)
}

// TestBuildView_Imperial verifies fields, flags, condition and icon for a sunny payload.
func TestBuildView_Imperial(t *testing.T) {
	now := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	obs := &models.Observation{
		StationID:      "aa:bb",
		TempF:          f(68),
		Humidity:       f(55),
		SolarRadiation: f(250),
		UV:             f(3),
		WindDir:        f(200),
		HourlyRainIn:   f(0.02),
		LightningCount: f(0),
		AQIPM25:        f(8),
		BaromRelIn:     f(30.05),
		Sunrise:        "2026-06-01T10:00:00Z",
		Sunset:         "2026-06-02T01:00:00Z",
	}
	trend := &models.PressureTrend{Direction: models.PressureFalling, Delta: -0.05}

	vm := buildView(snapshot{
		state:      models.StateOnline,
		lastUpdate: now,
		obs:        obs,
		trend:      trend,
		forecast:   []models.ForecastDay{{Phrase: "Sunny"}},
	}, now, conditions.Classifier{}, DefaultViewOptions())

	assert.True(t, vm.Online)
	require.NotNil(t, vm.LastUpdate)
	assert.Equal(t, models.ConditionClear, vm.Condition)
	assert.True(t, vm.IsDaytime)
	assert.Equal(t, "clear_day.json", vm.Icon)
	require.Len(t, vm.Forecast, 1)

	cv := vm.Current
	require.NotNil(t, cv)
	assert.Equal(t, "aa:bb", cv.StationID)
	assert.Equal(t, 68.0, *cv.Temperature)
	assert.Equal(t, "SSW", cv.WindDirText)
	assert.True(t, cv.RainDetected)
	assert.False(t, cv.LightningActivity)
	assert.Equal(t, 8.0, *cv.AQI)
	assert.Equal(t, "2026-06-01T10:00:00Z", cv.Sunrise)
	assert.Equal(t, "F", cv.TempUnit)
	assert.Equal(t, "inHg", cv.PressureUnit)

	require.NotNil(t, vm.Pressure)
	assert.Equal(t, 30.05, *vm.Pressure.Value)
	assert.Equal(t, "falling", vm.Pressure.Trend)
	assert.Equal(t, -0.05, *vm.Pressure.Delta)
}

// TestBuildView_MetricAndToggles verifies unit conversion and disabled sections.
func TestBuildView_MetricAndToggles(t *testing.T) {
	now := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)
	obs := &models.Observation{
		TempF:         f(212),
		WindSpeedMPH:  f(10),
		UV:            f(0),
		AQIPM25:       f(40),
		TempInF:       f(32),
		BaromRelIn:    f(30),
		LightningTime: &now,
		Sunrise:       "2026-06-01T10:00:00Z",
		Sunset:        "2026-06-02T01:00:00Z",
	}
	opts := DefaultViewOptions()
	opts.Units = units.Metric
	opts.ShowUV = false
	opts.ShowAQI = false
	opts.ShowSunTimes = false
	opts.ShowBarometer = false
	opts.ShowForecast = false

	vm := buildView(snapshot{
		state:    models.StateOffline,
		obs:      obs,
		forecast: []models.ForecastDay{{Phrase: "Sunny"}},
	}, now, conditions.Classifier{}, opts)

	assert.False(t, vm.Online)
	assert.False(t, vm.IsDaytime)
	assert.Equal(t, models.ConditionCloud, vm.Condition)
	assert.Equal(t, "cloud.json", vm.Icon)
	assert.Nil(t, vm.Pressure)
	assert.Empty(t, vm.Forecast)

	cv := vm.Current
	require.NotNil(t, cv)
	assert.InDelta(t, 100.0, *cv.Temperature, 1e-9)
	assert.InDelta(t, 0.0, *cv.IndoorTemperature, 1e-9)
	assert.InDelta(t, 16.09344, *cv.WindSpeed, 1e-9)
	assert.Nil(t, cv.UV)
	assert.Nil(t, cv.AQI)
	assert.Empty(t, cv.Sunrise)
	assert.True(t, cv.LightningActivity)
	assert.Equal(t, "C", cv.TempUnit)
	assert.Equal(t, "km/h", cv.SpeedUnit)
}

// TestBuildView_PressureWithoutTrend verifies the first reading shows a value only.
func TestBuildView_PressureWithoutTrend(t *testing.T) {
	obs := &models.Observation{BaromAbsIn: f(29.5)}
	vm := buildView(snapshot{state: models.StateOnline, obs: obs}, time.Now(), conditions.Classifier{}, DefaultViewOptions())
	require.NotNil(t, vm.Pressure)
	assert.Equal(t, 29.5, *vm.Pressure.Value)
	assert.Empty(t, vm.Pressure.Trend)
	assert.Nil(t, vm.Pressure.Delta)
}
