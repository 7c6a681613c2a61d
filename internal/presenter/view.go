package presenter

import (
	"time"

	"github.com/kjstillabower/ambient-mirror/internal/conditions"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/units"
)

// ViewOptions selects display units, optional sections and the icon table.
type ViewOptions struct {
	Units units.System
	Icons conditions.IconTable

	ShowSunTimes  bool
	ShowUV        bool
	ShowAQI       bool
	ShowBarometer bool
	ShowIndoor    bool
	ShowForecast  bool
}

// DefaultViewOptions shows every section in imperial units with the stock icons.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{
		Units:         units.Imperial,
		Icons:         conditions.DefaultIconTable(),
		ShowSunTimes:  true,
		ShowUV:        true,
		ShowAQI:       true,
		ShowBarometer: true,
		ShowIndoor:    true,
		ShowForecast:  true,
	}
}

// snapshot is the display state the loop hands to buildView.
type snapshot struct {
	state      models.DisplayState
	lastUpdate time.Time
	obs        *models.Observation
	trend      *models.PressureTrend
	forecast   []models.ForecastDay
}

func buildView(s snapshot, now time.Time, classifier conditions.Classifier, opts ViewOptions) models.ViewModel {
	vm := models.ViewModel{
		State:      s.state,
		Online:     s.state == models.StateOnline,
		RenderedAt: now,
		IsDaytime:  true,
	}
	if !s.lastUpdate.IsZero() {
		t := s.lastUpdate
		vm.LastUpdate = &t
	}
	if opts.ShowForecast && len(s.forecast) > 0 {
		vm.Forecast = append([]models.ForecastDay(nil), s.forecast...)
	}
	if s.obs == nil {
		return vm
	}

	vm.Current = buildCurrent(s.obs, opts)
	vm.Condition = classifier.Current(s.obs)
	vm.IsDaytime = conditions.IsDaytime(now, s.obs.Sunrise, s.obs.Sunset)
	vm.Icon = conditions.ResolveIcon(vm.Condition, vm.IsDaytime, opts.Icons)
	if opts.ShowBarometer {
		vm.Pressure = buildPressure(s.obs, s.trend, opts.Units)
	}
	return vm
}

func buildCurrent(obs *models.Observation, opts ViewOptions) *models.CurrentView {
	u := opts.Units
	cv := &models.CurrentView{
		StationID:   obs.StationID,
		Temperature: u.Temperature(obs.TempF),
		FeelsLike:   u.Temperature(obs.FeelsLikeF),
		DewPoint:    u.Temperature(obs.DewPointF),
		Humidity:    copyValue(obs.Humidity),
		WindSpeed:   u.Speed(obs.WindSpeedMPH),
		WindGust:    u.Speed(obs.WindGustMPH),
		WindDir:     copyValue(obs.WindDir),
		RainRate:    u.Rain(obs.HourlyRainIn),
		DailyRain:   u.Rain(obs.DailyRainIn),

		SolarRadiation: copyValue(obs.SolarRadiation),

		RainDetected:      obs.HourlyRainIn != nil && *obs.HourlyRainIn > 0,
		LightningActivity: (obs.LightningCount != nil && *obs.LightningCount > 0) || obs.LightningTime != nil,

		TempUnit:     u.TempUnit(),
		SpeedUnit:    u.SpeedUnit(),
		RainUnit:     u.RainUnit(),
		PressureUnit: u.PressureUnit(),
	}
	if obs.WindDir != nil {
		cv.WindDirText = units.CompassPoint(*obs.WindDir)
	}
	if opts.ShowUV {
		cv.UV = copyValue(obs.UV)
	}
	if opts.ShowAQI {
		cv.AQI = copyValue(obs.AQIPM25)
	}
	if opts.ShowIndoor {
		cv.IndoorTemperature = u.Temperature(obs.TempInF)
		cv.IndoorHumidity = copyValue(obs.HumidityIn)
	}
	if opts.ShowSunTimes {
		cv.Sunrise = obs.Sunrise
		cv.Sunset = obs.Sunset
	}
	return cv
}

func buildPressure(obs *models.Observation, trend *models.PressureTrend, u units.System) *models.PressureView {
	p, ok := obs.Pressure()
	if !ok {
		return nil
	}
	pv := &models.PressureView{
		Value: u.Pressure(&p),
		Unit:  u.PressureUnit(),
	}
	if trend != nil {
		pv.Trend = string(trend.Direction)
		delta := trend.Delta
		pv.Delta = u.Pressure(&delta)
	}
	return pv
}

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
