package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

// TestResolveIcon_DefaultTable verifies the stock table resolves phase-specific files.
func TestResolveIcon_DefaultTable(t *testing.T) {
	table := DefaultIconTable()
	assert.Equal(t, "clear_day.json", ResolveIcon(models.ConditionClear, true, table))
	assert.Equal(t, "clear_night.json", ResolveIcon(models.ConditionClear, false, table))
	assert.Equal(t, "rain.json", ResolveIcon(models.ConditionRain, false, table))
	assert.Equal(t, "partly_cloudy_night.json", ResolveIcon(models.ConditionPartlyCloudy, false, table))
}

// TestResolveIcon_Fallbacks verifies missing tags and missing variants fall through to
// the default pair and then to the hardcoded file.
func TestResolveIcon_Fallbacks(t *testing.T) {
	table := IconTable{
		Default: IconPair{Day: "generic_day.json", Night: ""},
		Conditions: map[models.ConditionTag]IconPair{
			models.ConditionFog: {Day: "fog_day.json"},
		},
	}
	assert.Equal(t, "fog_day.json", ResolveIcon(models.ConditionFog, true, table))
	assert.Equal(t, FallbackNightIcon, ResolveIcon(models.ConditionFog, false, table))
	assert.Equal(t, "generic_day.json", ResolveIcon(models.ConditionSnow, true, table))
	assert.Equal(t, FallbackNightIcon, ResolveIcon(models.ConditionSnow, false, table))
}

// TestResolveIcon_NeverEmpty checks every tag, an unknown tag and the empty tag in both
// phases against an empty table, the default table and a partial table.
func TestResolveIcon_NeverEmpty(t *testing.T) {
	tables := []IconTable{
		{},
		DefaultIconTable(),
		{Conditions: map[models.ConditionTag]IconPair{models.ConditionRain: {}}},
	}
	tags := append([]models.ConditionTag{"tornado", ""}, models.AllConditions...)
	for _, table := range tables {
		for _, tag := range tags {
			for _, day := range []bool{true, false} {
				assert.NotEmpty(t, ResolveIcon(tag, day, table), "tag=%q day=%v", tag, day)
			}
		}
	}
}
