// Package validation checks configuration and request input with go-playground/validator.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidLatitude is returned when a latitude is unparseable or outside [-90, 90].
var ErrInvalidLatitude = errors.New("invalid latitude")

// ErrInvalidLongitude is returned when a longitude is unparseable or outside [-180, 180].
var ErrInvalidLongitude = errors.New("invalid longitude")

// ErrInvalidDays is returned when the day count is not an integer.
var ErrInvalidDays = errors.New("days must be an integer")

// ErrInvalidUnits is returned for anything other than imperial or metric.
var ErrInvalidUnits = errors.New("units must be imperial or metric")

// ErrInvalidMAC is returned when a station identifier is not a MAC address.
var ErrInvalidMAC = errors.New("invalid station MAC address")

// Struct validates v's `validate` tags and flattens failures into one readable error,
// e.g. "Latitude failed latitude; Units failed oneof=imperial metric".
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), rule))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// ValidateMAC lowercases and checks a station MAC. Empty input is allowed and means
// "accept every station".
func ValidateMAC(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "", nil
	}
	if err := validate.Var(s, "mac"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, input)
	}
	return s, nil
}

// ValidateCoordinates checks a latitude/longitude pair.
func ValidateCoordinates(lat, lon float64) error {
	if err := validate.Var(lat, "latitude"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLatitude, lat)
	}
	if err := validate.Var(lon, "longitude"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLongitude, lon)
	}
	return nil
}

// ValidateUnits normalizes a unit system name; empty selects imperial.
func ValidateUnits(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if s == "" {
		return "imperial", nil
	}
	if err := validate.Var(s, "oneof=imperial metric"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidUnits, input)
	}
	return s, nil
}

// ParseForecastQuery reads lat, lon, days and units from query parameters. Absent
// parameters fall back to defaults; days outside 1..5 are clamped.
func ParseForecastQuery(values url.Values, defaults models.ForecastQuery) (models.ForecastQuery, error) {
	q := defaults

	if raw := strings.TrimSpace(values.Get("lat")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.ForecastQuery{}, fmt.Errorf("%w: %q", ErrInvalidLatitude, raw)
		}
		q.Latitude = v
	}
	if raw := strings.TrimSpace(values.Get("lon")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.ForecastQuery{}, fmt.Errorf("%w: %q", ErrInvalidLongitude, raw)
		}
		q.Longitude = v
	}
	if err := ValidateCoordinates(q.Latitude, q.Longitude); err != nil {
		return models.ForecastQuery{}, err
	}

	if raw := strings.TrimSpace(values.Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return models.ForecastQuery{}, fmt.Errorf("%w: %q", ErrInvalidDays, raw)
		}
		q.Days = n
	}

	if raw := values.Get("units"); raw != "" {
		u, err := ValidateUnits(raw)
		if err != nil {
			return models.ForecastQuery{}, err
		}
		q.Metric = u == "metric"
	}

	return q.Normalized(), nil
}
