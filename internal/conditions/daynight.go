package conditions

import (
	"strings"
	"time"
)

// IsDaytime reports whether now falls within [sunrise, sunset], both inclusive.
// Missing or unparseable timestamps count as daytime.
func IsDaytime(now time.Time, sunriseISO, sunsetISO string) bool {
	rise, ok := parseISO(sunriseISO)
	if !ok {
		return true
	}
	set, ok := parseISO(sunsetISO)
	if !ok {
		return true
	}
	return !now.Before(rise) && !now.After(set)
}

func parseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
