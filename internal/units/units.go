// Package units converts station-native imperial readings to display units.
package units

import "math"

// System is the display unit system.
type System string

const (
	Imperial System = "imperial"
	Metric   System = "metric"
)

const (
	kmPerMile  = 1.609344
	mmPerInch  = 25.4
	hPaPerInHg = 33.8639
)

// FahrenheitToCelsius converts exactly: (f-32)*5/9.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// CelsiusToFahrenheit is the inverse of FahrenheitToCelsius.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// MPHToKMH converts miles per hour to kilometres per hour.
func MPHToKMH(mph float64) float64 {
	return mph * kmPerMile
}

// InchesToMM converts inches to millimetres.
func InchesToMM(in float64) float64 {
	return in * mmPerInch
}

// InHgToHPa converts inches of mercury to hectopascals.
func InHgToHPa(inHg float64) float64 {
	return inHg * hPaPerInHg
}

// Temperature converts a °F reading for display. nil stays nil.
func (s System) Temperature(f *float64) *float64 {
	return s.convert(f, FahrenheitToCelsius)
}

// Speed converts a mph reading for display.
func (s System) Speed(mph *float64) *float64 {
	return s.convert(mph, MPHToKMH)
}

// Rain converts an inches reading for display.
func (s System) Rain(in *float64) *float64 {
	return s.convert(in, InchesToMM)
}

// Pressure converts an inHg reading for display.
func (s System) Pressure(inHg *float64) *float64 {
	return s.convert(inHg, InHgToHPa)
}

func (s System) convert(v *float64, fn func(float64) float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	if s == Metric {
		out = fn(out)
	}
	return &out
}

// TempUnit returns the temperature label, "F" or "C".
func (s System) TempUnit() string {
	if s == Metric {
		return "C"
	}
	return "F"
}

// SpeedUnit returns the wind speed label.
func (s System) SpeedUnit() string {
	if s == Metric {
		return "km/h"
	}
	return "mph"
}

// RainUnit returns the precipitation label.
func (s System) RainUnit() string {
	if s == Metric {
		return "mm"
	}
	return "in"
}

// PressureUnit returns the barometer label.
func (s System) PressureUnit() string {
	if s == Metric {
		return "hPa"
	}
	return "inHg"
}

var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE",
	"SE", "SSE", "S", "SSW", "SW", "WSW",
	"W", "WNW", "NW", "NNW",
}

// CompassPoint maps a bearing in degrees to one of 16 compass points. Bearings outside
// [0, 360) are normalized first.
func CompassPoint(deg float64) string {
	deg = math.Mod(math.Mod(deg, 360)+360, 360)
	ix := int(math.Floor(deg/22.5+0.5)) % 16
	return compassPoints[ix]
}
