package models

import "time"

// ConditionTag is the closed set of weather classifications used to pick a display icon.
type ConditionTag string

const (
	ConditionClear        ConditionTag = "clear"
	ConditionPartlyCloudy ConditionTag = "partly_cloudy"
	ConditionCloud        ConditionTag = "cloud"
	ConditionRain         ConditionTag = "rain"
	ConditionThunderstorm ConditionTag = "thunderstorm"
	ConditionFog          ConditionTag = "fog"
	ConditionSnow         ConditionTag = "snow"
	ConditionSleet        ConditionTag = "sleet"
	ConditionFreezingRain ConditionTag = "freezing_rain"
)

// AllConditions lists every ConditionTag in display order.
var AllConditions = []ConditionTag{
	ConditionClear,
	ConditionPartlyCloudy,
	ConditionCloud,
	ConditionRain,
	ConditionThunderstorm,
	ConditionFog,
	ConditionSnow,
	ConditionSleet,
	ConditionFreezingRain,
}

// Valid reports whether c is one of the known tags.
func (c ConditionTag) Valid() bool {
	for _, known := range AllConditions {
		if c == known {
			return true
		}
	}
	return false
}

// Observation is one realtime telemetry snapshot from the station, in the station's
// native (imperial) units. Every measurement is optional.
type Observation struct {
	StationID  string    `json:"stationId,omitempty"`
	ObservedAt time.Time `json:"observedAt,omitempty"`

	TempF          *float64 `json:"tempf,omitempty"`
	FeelsLikeF     *float64 `json:"feelsLike,omitempty"`
	DewPointF      *float64 `json:"dewPoint,omitempty"`
	Humidity       *float64 `json:"humidity,omitempty"`
	WindSpeedMPH   *float64 `json:"windspeedmph,omitempty"`
	WindGustMPH    *float64 `json:"windgustmph,omitempty"`
	WindDir        *float64 `json:"winddir,omitempty"`
	HourlyRainIn   *float64 `json:"hourlyrainin,omitempty"`
	DailyRainIn    *float64 `json:"dailyrainin,omitempty"`
	SolarRadiation *float64 `json:"solarradiation,omitempty"`
	UV             *float64 `json:"uv,omitempty"`
	BaromRelIn     *float64 `json:"baromrelin,omitempty"`
	BaromAbsIn     *float64 `json:"baromabsin,omitempty"`
	TempInF        *float64 `json:"tempinf,omitempty"`
	HumidityIn     *float64 `json:"humidityin,omitempty"`
	LightningCount *float64 `json:"lightningCount,omitempty"`
	AQIPM25        *float64 `json:"aqiPm25,omitempty"`

	LightningTime *time.Time `json:"lightningTime,omitempty"`

	// Sunrise and Sunset are ISO-8601 strings as delivered (or computed by the connector).
	Sunrise string `json:"sunrise,omitempty"`
	Sunset  string `json:"sunset,omitempty"`

	// Conditions is optional free-text weather description attached to the payload.
	Conditions string `json:"conditions,omitempty"`
}

// Pressure returns the relative barometric pressure, falling back to absolute.
func (o Observation) Pressure() (float64, bool) {
	if o.BaromRelIn != nil {
		return *o.BaromRelIn, true
	}
	if o.BaromAbsIn != nil {
		return *o.BaromAbsIn, true
	}
	return 0, false
}

// PressureSource names the field a pressure reading came from.
type PressureSource string

const (
	PressureRelative PressureSource = "relative"
	PressureAbsolute PressureSource = "absolute"
)

// PressureReading is Pressure with the source field recorded, so relative and absolute
// readings are never compared with each other.
func (o Observation) PressureReading() (PressureSample, bool) {
	switch {
	case o.BaromRelIn != nil:
		return PressureSample{Value: *o.BaromRelIn, At: o.ObservedAt, Source: PressureRelative}, true
	case o.BaromAbsIn != nil:
		return PressureSample{Value: *o.BaromAbsIn, At: o.ObservedAt, Source: PressureAbsolute}, true
	}
	return PressureSample{}, false
}

// PressureDirection is the sign of a pressure change.
type PressureDirection string

const (
	PressureRising  PressureDirection = "rising"
	PressureFalling PressureDirection = "falling"
	PressureSteady  PressureDirection = "steady"
)

// PressureSample is a single barometric reading.
type PressureSample struct {
	Value  float64
	At     time.Time
	Source PressureSource
}

// PressureTrend is the single-step derivative between two successive samples.
type PressureTrend struct {
	Direction PressureDirection `json:"direction"`
	Delta     float64           `json:"delta"`
}

// Float returns a pointer to v. Convenience for building observations.
func Float(v float64) *float64 {
	return &v
}
