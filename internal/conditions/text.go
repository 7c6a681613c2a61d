package conditions

import (
	"strings"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

type keywordRule struct {
	keywords []string
	tag      models.ConditionTag
}

// Order encodes priority: "Freezing Rain" must match freezing before rain,
// "Thunderstorms and Rain" thunder before rain, "Mostly Cloudy" cloud before sun.
var keywordRules = []keywordRule{
	{[]string{"thunder"}, models.ConditionThunderstorm},
	{[]string{"sleet"}, models.ConditionSleet},
	{[]string{"freezing"}, models.ConditionFreezingRain},
	{[]string{"snow"}, models.ConditionSnow},
	{[]string{"hail"}, models.ConditionSleet},
	{[]string{"rain", "drizzle", "shower"}, models.ConditionRain},
	{[]string{"fog", "mist"}, models.ConditionFog},
	{[]string{"haze", "smoke"}, models.ConditionFog},
	{[]string{"overcast"}, models.ConditionCloud},
	{[]string{"cloud"}, models.ConditionPartlyCloudy},
	{[]string{"clear", "sun", "fair"}, models.ConditionClear},
}

// ClassifyText maps a free-text forecast phrase to a condition tag by case-insensitive
// keyword containment. Returns false for empty or unrecognised phrases so callers fall
// back to numeric classification.
func ClassifyText(phrase string) (models.ConditionTag, bool) {
	t := strings.ToLower(strings.TrimSpace(phrase))
	if t == "" {
		return "", false
	}
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.tag, true
			}
		}
	}
	return "", false
}

// Current picks the condition shown for the current observation: the text classifier
// when the observation carries a recognisable description, the numeric one otherwise.
func (c Classifier) Current(obs *models.Observation) models.ConditionTag {
	if obs != nil {
		if tag, ok := ClassifyText(obs.Conditions); ok {
			return tag
		}
	}
	return c.Classify(obs)
}
