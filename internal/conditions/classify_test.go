package conditions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

var f = models.Float

// TestClassify_Rules verifies each rule fires on its own inputs and that earlier rules
// take priority over later ones.
func TestClassify_Rules(t *testing.T) {
	tests := []struct {
		name string
		obs  models.Observation
		want models.ConditionTag
	}{
		{"empty observation", models.Observation{}, models.ConditionCloud},
		{"rain", models.Observation{HourlyRainIn: f(0.2)}, models.ConditionRain},
		{"rain at threshold is not rain", models.Observation{HourlyRainIn: f(0.1)}, models.ConditionCloud},
		{"gust", models.Observation{WindGustMPH: f(30)}, models.ConditionThunderstorm},
		{"gust at threshold", models.Observation{WindGustMPH: f(25)}, models.ConditionCloud},
		{"rain beats gust", models.Observation{HourlyRainIn: f(0.5), WindGustMPH: f(40)}, models.ConditionRain},
		{"snow", models.Observation{TempF: f(28), Humidity: f(90), HourlyRainIn: f(0.05)}, models.ConditionSnow},
		{"snow needs temperature", models.Observation{Humidity: f(90), HourlyRainIn: f(0.05)}, models.ConditionCloud},
		{"fog", models.Observation{TempF: f(50), DewPointF: f(49), Humidity: f(99), SolarRadiation: f(0), UV: f(0)}, models.ConditionFog},
		{"fog with absent solar and uv", models.Observation{TempF: f(50), DewPointF: f(49.5), Humidity: f(99)}, models.ConditionFog},
		{"fog needs dew point", models.Observation{TempF: f(50), Humidity: f(99)}, models.ConditionCloud},
		{"fog needs close dew point", models.Observation{TempF: f(50), DewPointF: f(48), Humidity: f(99)}, models.ConditionCloud},
		{"fog needs humidity above 98", models.Observation{TempF: f(50), DewPointF: f(49), Humidity: f(98)}, models.ConditionCloud},
		{"clear", models.Observation{SolarRadiation: f(250), UV: f(3)}, models.ConditionClear},
		{"partly cloudy", models.Observation{SolarRadiation: f(150), UV: f(1), Humidity: f(60)}, models.ConditionPartlyCloudy},
		{"bright but humid", models.Observation{SolarRadiation: f(150), Humidity: f(85)}, models.ConditionCloud},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := tt.obs
			assert.Equal(t, tt.want, Classify(&obs))
		})
	}
}

// TestClassify_NilObservation verifies the classifier is total.
func TestClassify_NilObservation(t *testing.T) {
	assert.Equal(t, models.ConditionPartlyCloudy, Classify(nil))
}

// TestClassify_RainAlwaysWins checks that any rain rate above 0.1 yields rain no matter
// what the other sensors say.
func TestClassify_RainAlwaysWins(t *testing.T) {
	for _, rain := range []float64{0.11, 0.5, 2, 10} {
		for _, gust := range []float64{0, 30, 80} {
			for _, solar := range []float64{0, 300} {
				obs := models.Observation{
					HourlyRainIn:   f(rain),
					WindGustMPH:    f(gust),
					SolarRadiation: f(solar),
					UV:             f(5),
					TempF:          f(20),
					DewPointF:      f(20),
					Humidity:       f(100),
				}
				assert.Equal(t, models.ConditionRain, Classify(&obs), "rain=%v gust=%v solar=%v", rain, gust, solar)
			}
		}
	}
}

// TestClassifier_CustomGustThreshold verifies the gust limit is configurable.
func TestClassifier_CustomGustThreshold(t *testing.T) {
	c := Classifier{GustThreshold: 40}
	assert.Equal(t, models.ConditionCloud, c.Classify(&models.Observation{WindGustMPH: f(30)}))
	assert.Equal(t, models.ConditionThunderstorm, c.Classify(&models.Observation{WindGustMPH: f(41)}))
}

// TestClassify_StationPayloadScenario runs a raw station payload through JSON decoding
// into the classifier.
func TestClassify_StationPayloadScenario(t *testing.T) {
	var obs models.Observation
	require.NoError(t, json.Unmarshal([]byte(`{"tempf": 68, "humidity": 55, "solarradiation": 250, "uv": 3}`), &obs))
	assert.Equal(t, models.ConditionClear, Classify(&obs))
}

// TestClassifier_Current verifies text metadata takes precedence and numeric
// classification is the fallback.
func TestClassifier_Current(t *testing.T) {
	c := Classifier{}
	withText := models.Observation{SolarRadiation: f(250), UV: f(3), Conditions: "Light Snow"}
	assert.Equal(t, models.ConditionSnow, c.Current(&withText))

	unknownText := models.Observation{SolarRadiation: f(250), UV: f(3), Conditions: "breezy"}
	assert.Equal(t, models.ConditionClear, c.Current(&unknownText))

	assert.Equal(t, models.ConditionPartlyCloudy, c.Current(nil))
}
