package realtime

import (
	"time"

	"github.com/nathan-osman/go-sunrise"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

// attachSunTimes fills Sunrise and Sunset when either is missing and coordinates are known.
// The day is the station's local solar date (UTC shifted by longitude/15 hours), so a
// western station in the evening still sees today's sunset rather than tomorrow's.
// Polar day or night yields no times, leaving the fields empty so the day/night resolver
// fails open to daytime.
func attachSunTimes(obs *models.Observation, lat, lon *float64, now time.Time) {
	if obs.Sunrise != "" && obs.Sunset != "" {
		return
	}
	if lat == nil || lon == nil {
		return
	}
	local := now.UTC().Add(time.Duration(*lon / 15 * float64(time.Hour)))
	rise, set := sunrise.SunriseSunset(*lat, *lon, local.Year(), local.Month(), local.Day())
	if rise.IsZero() || set.IsZero() {
		return
	}
	obs.Sunrise = rise.UTC().Format(time.RFC3339)
	obs.Sunset = set.UTC().Format(time.RFC3339)
}
