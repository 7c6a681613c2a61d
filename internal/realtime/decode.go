package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

// ErrNotAnObject is returned when a data event payload is not a JSON object.
var ErrNotAnObject = errors.New("observation payload is not an object")

// numericFields maps payload keys to observation fields. Earlier keys win when a payload
// carries several spellings of one measurement.
var numericFields = []struct {
	keys []string
	dst  func(o *models.Observation) **float64
}{
	{[]string{"tempf"}, func(o *models.Observation) **float64 { return &o.TempF }},
	{[]string{"feelsLike"}, func(o *models.Observation) **float64 { return &o.FeelsLikeF }},
	{[]string{"dewPoint"}, func(o *models.Observation) **float64 { return &o.DewPointF }},
	{[]string{"humidity"}, func(o *models.Observation) **float64 { return &o.Humidity }},
	{[]string{"windspeedmph"}, func(o *models.Observation) **float64 { return &o.WindSpeedMPH }},
	{[]string{"windgustmph"}, func(o *models.Observation) **float64 { return &o.WindGustMPH }},
	{[]string{"winddir"}, func(o *models.Observation) **float64 { return &o.WindDir }},
	{[]string{"hourlyrainin"}, func(o *models.Observation) **float64 { return &o.HourlyRainIn }},
	{[]string{"dailyrainin"}, func(o *models.Observation) **float64 { return &o.DailyRainIn }},
	{[]string{"solarradiation"}, func(o *models.Observation) **float64 { return &o.SolarRadiation }},
	{[]string{"uv"}, func(o *models.Observation) **float64 { return &o.UV }},
	{[]string{"baromrelin"}, func(o *models.Observation) **float64 { return &o.BaromRelIn }},
	{[]string{"baromabsin"}, func(o *models.Observation) **float64 { return &o.BaromAbsIn }},
	{[]string{"tempinf"}, func(o *models.Observation) **float64 { return &o.TempInF }},
	{[]string{"humidityin"}, func(o *models.Observation) **float64 { return &o.HumidityIn }},
	{[]string{"lightning_strike_count", "lightning_day"}, func(o *models.Observation) **float64 { return &o.LightningCount }},
	{[]string{"aqi_pm25"}, func(o *models.Observation) **float64 { return &o.AQIPM25 }},
}

var macKeys = []string{"macAddress", "MACAddress", "mac"}

// ParseObservation decodes one loosely typed station payload. Numbers may arrive as JSON
// numbers or numeric strings; anything unparseable is treated as absent. The returned
// MAC is lowercased and empty when the payload names no station.
func ParseObservation(raw []byte) (models.Observation, string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return models.Observation{}, "", fmt.Errorf("decode observation: %w", err)
	}
	if fields == nil {
		return models.Observation{}, "", ErrNotAnObject
	}

	var obs models.Observation
	for _, f := range numericFields {
		for _, k := range f.keys {
			if v, ok := number(fields[k]); ok {
				*f.dst(&obs) = &v
				break
			}
		}
	}

	mac := ""
	for _, k := range macKeys {
		if s, ok := fields[k].(string); ok && s != "" {
			mac = strings.ToLower(strings.TrimSpace(s))
			break
		}
	}
	obs.StationID = mac

	if t, ok := timestamp(fields["dateutc"]); ok {
		obs.ObservedAt = t
	} else if t, ok := timestamp(fields["date"]); ok {
		obs.ObservedAt = t
	}
	if t, ok := timestamp(fields["lightning_time"]); ok {
		obs.LightningTime = &t
	}

	obs.Sunrise, _ = fields["sunrise"].(string)
	obs.Sunset, _ = fields["sunset"].(string)
	obs.Conditions, _ = fields["conditions"].(string)

	return obs, mac, nil
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// timestamp accepts epoch milliseconds (number or numeric string) or an RFC 3339 string.
func timestamp(v interface{}) (time.Time, bool) {
	if ms, ok := number(v); ok {
		if ms <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
