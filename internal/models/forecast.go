package models

import (
	"fmt"
	"time"
)

// ForecastDay is one daytime row of the multi-day forecast.
// High and Low are nil when the upstream period carried no temperature.
type ForecastDay struct {
	Date      time.Time    `json:"date"`
	High      *float64     `json:"high"`
	Low       *float64     `json:"low"`
	Unit      string       `json:"unit"`
	Phrase    string       `json:"phrase"`
	Condition ConditionTag `json:"condition,omitempty"`
	IsDaytime bool         `json:"isDaytime"`
}

// ForecastCacheEntry is the cached result of one successful forecast fetch.
type ForecastCacheEntry struct {
	FetchedAt time.Time     `json:"fetchedAt"`
	Days      []ForecastDay `json:"days"`
}

// Forecast day count bounds.
const (
	DefaultForecastDays = 3
	MaxForecastDays     = 5
)

// ClampForecastDays maps a requested day count into 1..MaxForecastDays; zero means the default.
func ClampForecastDays(n int) int {
	switch {
	case n == 0:
		return DefaultForecastDays
	case n < 1:
		return 1
	case n > MaxForecastDays:
		return MaxForecastDays
	default:
		return n
	}
}

// ForecastQuery identifies one forecast request. It is also the cache key scope.
type ForecastQuery struct {
	Latitude  float64
	Longitude float64
	Days      int
	Metric    bool
}

// Normalized returns q with Days clamped.
func (q ForecastQuery) Normalized() ForecastQuery {
	q.Days = ClampForecastDays(q.Days)
	return q
}

// Key is the cache key for q. Coordinates are rounded to four decimals, which is the
// precision the points endpoint accepts.
func (q ForecastQuery) Key() string {
	units := "imperial"
	if q.Metric {
		units = "metric"
	}
	return fmt.Sprintf("forecast:%.4f,%.4f:%d:%s", q.Latitude, q.Longitude, ClampForecastDays(q.Days), units)
}

// Unit is the temperature unit label for forecast rows.
func (q ForecastQuery) Unit() string {
	if q.Metric {
		return "C"
	}
	return "F"
}
