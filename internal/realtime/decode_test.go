package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseObservation_LooselyTyped verifies numbers and numeric strings both decode and
// garbage values are treated as absent.
func TestParseObservation_LooselyTyped(t *testing.T) {
	raw := []byte(`{
		"macAddress": "AA:BB:CC:DD:EE:FF",
		"dateutc": 1780000000000,
		"tempf": "71.5",
		"humidity": 40,
		"windgustmph": "n/a",
		"baromrelin": 29.92,
		"lightning_day": 3,
		"aqi_pm25": "12",
		"sunrise": "2026-06-01T10:30:00Z",
		"conditions": "Sunny"
	}`)

	obs, mac, err := ParseObservation(raw)
	require.NoError(t, err)

	assert.Equal(t, "aa:bb:cc:dd:ee:ff", mac)
	assert.Equal(t, mac, obs.StationID)
	assert.Equal(t, time.UnixMilli(1780000000000).UTC(), obs.ObservedAt)
	require.NotNil(t, obs.TempF)
	assert.Equal(t, 71.5, *obs.TempF)
	require.NotNil(t, obs.Humidity)
	assert.Equal(t, 40.0, *obs.Humidity)
	assert.Nil(t, obs.WindGustMPH)
	assert.Nil(t, obs.HourlyRainIn)
	require.NotNil(t, obs.LightningCount)
	assert.Equal(t, 3.0, *obs.LightningCount)
	require.NotNil(t, obs.AQIPM25)
	assert.Equal(t, 12.0, *obs.AQIPM25)
	assert.Equal(t, "2026-06-01T10:30:00Z", obs.Sunrise)
	assert.Empty(t, obs.Sunset)
	assert.Equal(t, "Sunny", obs.Conditions)

	p, ok := obs.Pressure()
	assert.True(t, ok)
	assert.Equal(t, 29.92, p)
}

// TestParseObservation_MACKeys verifies every accepted MAC spelling and their priority.
func TestParseObservation_MACKeys(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"macAddress": "AA:00"}`, "aa:00"},
		{`{"MACAddress": "BB:00"}`, "bb:00"},
		{`{"mac": " cc:00 "}`, "cc:00"},
		{`{"mac": "cc:00", "macAddress": "AA:00"}`, "aa:00"},
		{`{"macAddress": "", "mac": "dd:00"}`, "dd:00"},
		{`{"tempf": 70}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, mac, err := ParseObservation([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, mac)
		})
	}
}

// TestParseObservation_LightningKeys verifies the strike count prefers the explicit key.
func TestParseObservation_LightningKeys(t *testing.T) {
	obs, _, err := ParseObservation([]byte(`{"lightning_strike_count": 7, "lightning_day": 2, "lightning_time": "1780000000000"}`))
	require.NoError(t, err)
	require.NotNil(t, obs.LightningCount)
	assert.Equal(t, 7.0, *obs.LightningCount)
	require.NotNil(t, obs.LightningTime)
	assert.Equal(t, time.UnixMilli(1780000000000).UTC(), *obs.LightningTime)
}

// TestParseObservation_Timestamps verifies the date fallbacks.
func TestParseObservation_Timestamps(t *testing.T) {
	obs, _, err := ParseObservation([]byte(`{"date": "2026-06-01T12:00:00.000Z"}`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), obs.ObservedAt)

	obs, _, err = ParseObservation([]byte(`{"dateutc": 0, "date": "yesterday"}`))
	require.NoError(t, err)
	assert.True(t, obs.ObservedAt.IsZero())
}

// TestParseObservation_Invalid verifies non-object payloads are rejected.
func TestParseObservation_Invalid(t *testing.T) {
	_, _, err := ParseObservation([]byte(`null`))
	assert.ErrorIs(t, err, ErrNotAnObject)

	_, _, err = ParseObservation([]byte(`[1, 2]`))
	assert.Error(t, err)

	_, _, err = ParseObservation([]byte(`{"tempf":`))
	assert.Error(t, err)
}
