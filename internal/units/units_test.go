package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFahrenheitToCelsius verifies the linear conversion at well-known points.
func TestFahrenheitToCelsius(t *testing.T) {
	tests := []struct {
		f    float64
		want float64
	}{
		{32, 0},
		{212, 100},
		{-40, -40},
		{68, 20},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, FahrenheitToCelsius(tt.f), 1e-9, "f=%v", tt.f)
		assert.InDelta(t, tt.f, CelsiusToFahrenheit(tt.want), 1e-9, "c=%v", tt.want)
	}
}

// TestSystem_ConvertsOnlyForMetric verifies imperial passes values through untouched,
// metric converts, and nil stays nil.
func TestSystem_ConvertsOnlyForMetric(t *testing.T) {
	v := 50.0
	assert.Equal(t, 50.0, *Imperial.Temperature(&v))
	assert.InDelta(t, 10.0, *Metric.Temperature(&v), 1e-9)
	assert.InDelta(t, 80.4672, *Metric.Speed(&v), 1e-9)
	assert.InDelta(t, 1270.0, *Metric.Rain(&v), 1e-9)
	assert.Nil(t, Metric.Pressure(nil))
	assert.Equal(t, 50.0, v, "input must not be mutated")
}

// TestSystem_Labels verifies unit labels per system.
func TestSystem_Labels(t *testing.T) {
	assert.Equal(t, "F", Imperial.TempUnit())
	assert.Equal(t, "C", Metric.TempUnit())
	assert.Equal(t, "mph", Imperial.SpeedUnit())
	assert.Equal(t, "km/h", Metric.SpeedUnit())
	assert.Equal(t, "inHg", Imperial.PressureUnit())
	assert.Equal(t, "hPa", Metric.PressureUnit())
}

// TestCompassPoint verifies the 16-point rose including wraparound at north and
// bearings outside [0, 360).
func TestCompassPoint(t *testing.T) {
	tests := []struct {
		deg  float64
		want string
	}{
		{0, "N"},
		{11, "N"},
		{12, "NNE"},
		{90, "E"},
		{180, "S"},
		{225, "SW"},
		{350, "N"},
		{360, "N"},
		{-20, "NNW"},
		{-5, "N"},
		{-90, "W"},
		{405, "NE"},
		{-370, "N"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompassPoint(tt.deg), "deg=%v", tt.deg)
	}
}
