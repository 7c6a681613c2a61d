// Package conditions turns raw observations and forecast phrases into display facts:
// condition tags, pressure trends, day/night phase and icon files.
package conditions

import (
	"math"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

// DefaultGustThreshold is the wind gust (station mph) above which conditions read as a storm.
const DefaultGustThreshold = 25.0

// Classifier maps observations to condition tags. The zero value uses DefaultGustThreshold.
type Classifier struct {
	GustThreshold float64
}

// Classify is the package-level classifier with default thresholds.
func Classify(obs *models.Observation) models.ConditionTag {
	return Classifier{}.Classify(obs)
}

// Classify evaluates the rules in priority order; the first match wins.
// Absent rain, gust, solar, UV and humidity read as zero. Absent temperature disables
// the snow and fog rules, and absent dew point disables fog.
func (c Classifier) Classify(obs *models.Observation) models.ConditionTag {
	if obs == nil {
		return models.ConditionPartlyCloudy
	}
	gustLimit := c.GustThreshold
	if gustLimit <= 0 {
		gustLimit = DefaultGustThreshold
	}

	rain := valueOr(obs.HourlyRainIn, 0)
	gust := valueOr(obs.WindGustMPH, 0)
	solar := valueOr(obs.SolarRadiation, 0)
	uv := valueOr(obs.UV, 0)
	humidity := valueOr(obs.Humidity, 0)

	switch {
	case rain > 0.1:
		return models.ConditionRain
	case gust > gustLimit:
		return models.ConditionThunderstorm
	case obs.TempF != nil && *obs.TempF < 32 && humidity > 80 && rain > 0:
		return models.ConditionSnow
	case isFog(obs, solar, uv, humidity):
		return models.ConditionFog
	case solar > 200 && uv > 1:
		return models.ConditionClear
	case solar > 100 && humidity < 80:
		return models.ConditionPartlyCloudy
	default:
		return models.ConditionCloud
	}
}

func isFog(obs *models.Observation, solar, uv, humidity float64) bool {
	if obs.TempF == nil || obs.DewPointF == nil {
		return false
	}
	return solar == 0 && uv == 0 && humidity > 98 && math.Abs(*obs.TempF-*obs.DewPointF) < 2
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
