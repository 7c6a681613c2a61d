package conditions

import "github.com/kjstillabower/ambient-mirror/internal/models"

// Terminal fallbacks when neither the condition's pair nor the table default has a file.
const (
	FallbackDayIcon   = "partly_cloudy_day.json"
	FallbackNightIcon = "partly_cloudy_night.json"
)

// IconPair names the animation file for each phase of one condition.
type IconPair struct {
	Day   string `yaml:"day" json:"day"`
	Night string `yaml:"night" json:"night"`
}

func (p IconPair) forPhase(day bool) string {
	if day {
		return p.Day
	}
	return p.Night
}

// IconTable maps condition tags to explicit day/night files plus a default pair.
type IconTable struct {
	Default    IconPair                         `yaml:"default" json:"default"`
	Conditions map[models.ConditionTag]IconPair `yaml:"conditions" json:"conditions"`
}

// DefaultIconTable returns the stock animation set.
func DefaultIconTable() IconTable {
	return IconTable{
		Default: IconPair{Day: FallbackDayIcon, Night: FallbackNightIcon},
		Conditions: map[models.ConditionTag]IconPair{
			models.ConditionClear:        {Day: "clear_day.json", Night: "clear_night.json"},
			models.ConditionPartlyCloudy: {Day: "partly_cloudy_day.json", Night: "partly_cloudy_night.json"},
			models.ConditionCloud:        {Day: "cloud.json", Night: "cloud.json"},
			models.ConditionRain:         {Day: "rain.json", Night: "rain.json"},
			models.ConditionThunderstorm: {Day: "thunderstorm.json", Night: "thunderstorm.json"},
			models.ConditionFog:          {Day: "fog.json", Night: "fog.json"},
			models.ConditionSnow:         {Day: "snow.json", Night: "snow.json"},
			models.ConditionSleet:        {Day: "sleet.json", Night: "sleet.json"},
			models.ConditionFreezingRain: {Day: "freezing_rain.json", Night: "freezing_rain.json"},
		},
	}
}

// ResolveIcon returns the file for tag in the requested phase. Lookup order:
// the tag's pair, the table's default pair, then the hardcoded partly-cloudy file.
// The result is never empty.
func ResolveIcon(tag models.ConditionTag, isDaytime bool, table IconTable) string {
	if pair, ok := table.Conditions[tag]; ok {
		if f := pair.forPhase(isDaytime); f != "" {
			return f
		}
	}
	if f := table.Default.forPhase(isDaytime); f != "" {
		return f
	}
	if isDaytime {
		return FallbackDayIcon
	}
	return FallbackNightIcon
}
