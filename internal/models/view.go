package models

import "time"

// DisplayState is the presenter's connectivity state as shown to the viewer.
type DisplayState string

const (
	StateLoading DisplayState = "loading"
	StateOnline  DisplayState = "online"
	StateOffline DisplayState = "offline"
)

// ViewModel is the render-ready snapshot handed to the external renderer.
type ViewModel struct {
	State      DisplayState `json:"state"`
	Online     bool         `json:"online"`
	LastUpdate *time.Time   `json:"lastUpdate,omitempty"`
	RenderedAt time.Time    `json:"renderedAt"`

	Current   *CurrentView  `json:"current,omitempty"`
	Condition ConditionTag  `json:"condition,omitempty"`
	Icon      string        `json:"icon,omitempty"`
	IsDaytime bool          `json:"isDaytime"`
	Pressure  *PressureView `json:"pressure,omitempty"`

	Forecast []ForecastDay `json:"forecast,omitempty"`
}

// CurrentView holds the latest observation converted to display units.
// Optional sections are nil when disabled by configuration or absent from the station.
type CurrentView struct {
	StationID string `json:"stationId,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`
	FeelsLike   *float64 `json:"feelsLike,omitempty"`
	DewPoint    *float64 `json:"dewPoint,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`

	WindSpeed   *float64 `json:"windSpeed,omitempty"`
	WindGust    *float64 `json:"windGust,omitempty"`
	WindDir     *float64 `json:"windDir,omitempty"`
	WindDirText string   `json:"windDirText,omitempty"`

	RainRate  *float64 `json:"rainRate,omitempty"`
	DailyRain *float64 `json:"dailyRain,omitempty"`

	SolarRadiation *float64 `json:"solarRadiation,omitempty"`
	UV             *float64 `json:"uv,omitempty"`
	AQI            *float64 `json:"aqi,omitempty"`

	IndoorTemperature *float64 `json:"indoorTemperature,omitempty"`
	IndoorHumidity    *float64 `json:"indoorHumidity,omitempty"`

	Sunrise string `json:"sunrise,omitempty"`
	Sunset  string `json:"sunset,omitempty"`

	RainDetected      bool `json:"rainDetected"`
	LightningActivity bool `json:"lightningActivity"`

	TempUnit     string `json:"tempUnit"`
	SpeedUnit    string `json:"speedUnit"`
	RainUnit     string `json:"rainUnit"`
	PressureUnit string `json:"pressureUnit"`
}

// PressureView is the barometer section: current value plus trend label.
type PressureView struct {
	Value *float64 `json:"value,omitempty"`
	Trend string   `json:"trend,omitempty"`
	Delta *float64 `json:"delta,omitempty"`
	Unit  string   `json:"unit"`
}
