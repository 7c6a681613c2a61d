package client

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/kjstillabower/ambient-mirror/internal/conditions"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/units"
)

// period is one entry of properties.periods. Temperature is either a bare number or,
// with the quantitative-value feature flag, an object {value, unitCode}.
type period struct {
	Name            string          `json:"name"`
	StartTime       string          `json:"startTime"`
	IsDaytime       bool            `json:"isDaytime"`
	Temperature     json.RawMessage `json:"temperature"`
	TemperatureUnit string          `json:"temperatureUnit"`
	ShortForecast   string          `json:"shortForecast"`
}

type quantitativeValue struct {
	Value    *float64 `json:"value"`
	UnitCode string   `json:"unitCode"`
}

// fahrenheit returns the period temperature in °F, or nil when absent.
func (p period) fahrenheit() *float64 {
	raw := bytes.TrimSpace(p.Temperature)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var v float64
	unit := p.TemperatureUnit
	if raw[0] == '{' {
		var qv quantitativeValue
		if err := json.Unmarshal(raw, &qv); err != nil || qv.Value == nil {
			return nil
		}
		v = *qv.Value
		if strings.HasSuffix(qv.UnitCode, "degC") {
			unit = "C"
		}
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	if strings.EqualFold(unit, "C") {
		v = units.CelsiusToFahrenheit(v)
	}
	return &v
}

func (p period) start() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, p.StartTime)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// buildForecast picks the first q.Days daytime periods in order. Each day's low is the
// first nighttime period starting strictly after that day's start. Temperatures convert
// to Celsius only for metric queries.
func buildForecast(periods []period, q models.ForecastQuery) []models.ForecastDay {
	limit := models.ClampForecastDays(q.Days)
	days := make([]models.ForecastDay, 0, limit)

	for _, p := range periods {
		if len(days) == limit {
			break
		}
		if !p.IsDaytime {
			continue
		}
		start, ok := p.start()
		if !ok {
			continue
		}

		phrase := p.ShortForecast
		if phrase == "" {
			phrase = p.Name
		}
		cond, _ := conditions.ClassifyText(phrase)

		days = append(days, models.ForecastDay{
			Date:      start,
			High:      toDisplay(p.fahrenheit(), q.Metric),
			Low:       toDisplay(nightLow(periods, start), q.Metric),
			Unit:      q.Unit(),
			Phrase:    phrase,
			Condition: cond,
			IsDaytime: true,
		})
	}
	return days
}

func nightLow(periods []period, after time.Time) *float64 {
	for _, n := range periods {
		if n.IsDaytime {
			continue
		}
		if start, ok := n.start(); ok && start.After(after) {
			return n.fahrenheit()
		}
	}
	return nil
}

func toDisplay(f *float64, metric bool) *float64 {
	if f == nil || !metric {
		return f
	}
	c := units.FahrenheitToCelsius(*f)
	return &c
}
