package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/ambient-mirror/internal/conditions"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/validation"
)

// Config holds service configuration loaded from YAML, secrets and env.
type Config struct {
	ServerPort      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int `validate:"gt=0"`
	RateLimitBurst  int `validate:"gt=0"`

	AmbientAPIKey         string `validate:"required"`
	AmbientApplicationKey string `validate:"required"`
	RealtimeURL           string `validate:"url"`
	MACAddress            string
	ReconnectDelay        time.Duration
	HandshakeTimeout      time.Duration

	Latitude  *float64 `validate:"omitempty,latitude"`
	Longitude *float64 `validate:"omitempty,longitude"`

	Units             string `validate:"oneof=imperial metric"`
	OfflineThreshold  time.Duration
	CheckInterval     time.Duration
	PressureThreshold float64 `validate:"gt=0"`
	GustThreshold     float64 `validate:"gt=0"`
	Icons             conditions.IconTable

	ShowSunTimes  bool
	ShowUV        bool
	ShowAQI       bool
	ShowBarometer bool
	ShowIndoor    bool
	ShowForecast  bool

	ForecastAPIURL          string `validate:"url"`
	ForecastUserAgent       string `validate:"required"`
	ForecastAPITimeout      time.Duration
	ForecastDays            int `validate:"min=1,max=5"`
	ForecastTTL             time.Duration
	ForecastRetention       time.Duration
	ForecastRefreshInterval time.Duration

	CacheBackend          string `validate:"oneof=in_memory memcached"`
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	BreakerFailureThreshold uint32
	BreakerHalfOpenRequests uint32
	BreakerTimeout          time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int `validate:"min=1,max=100"`
	DegradedWindow       time.Duration
	DegradedErrorPct     int `validate:"min=0,max=100"`
}

type fileConfig struct {
	Server struct {
		Port            string `yaml:"port"`
		RequestTimeout  string `yaml:"request_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		RateLimitRPS    int    `yaml:"rate_limit_rps"`
		RateLimitBurst  int    `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	Station struct {
		MACAddress string   `yaml:"mac_address"`
		Latitude   *float64 `yaml:"latitude"`
		Longitude  *float64 `yaml:"longitude"`
	} `yaml:"station"`

	Realtime struct {
		URL              string `yaml:"url"`
		ReconnectDelay   string `yaml:"reconnect_delay"`
		HandshakeTimeout string `yaml:"handshake_timeout"`
	} `yaml:"realtime"`

	Display struct {
		Units             string                `yaml:"units"`
		OfflineThreshold  string                `yaml:"offline_threshold"`
		CheckInterval     string                `yaml:"check_interval"`
		PressureThreshold float64               `yaml:"pressure_threshold"`
		GustThreshold     float64               `yaml:"gust_threshold"`
		Icons             *conditions.IconTable `yaml:"icons"`
		Show              struct {
			SunTimes  *bool `yaml:"sun_times"`
			UV        *bool `yaml:"uv"`
			AQI       *bool `yaml:"aqi"`
			Barometer *bool `yaml:"barometer"`
			Indoor    *bool `yaml:"indoor"`
			Forecast  *bool `yaml:"forecast"`
		} `yaml:"show"`
	} `yaml:"display"`

	Forecast struct {
		URL             string `yaml:"url"`
		UserAgent       string `yaml:"user_agent"`
		Timeout         string `yaml:"timeout"`
		Days            int    `yaml:"days"`
		TTL             string `yaml:"ttl"`
		Retention       string `yaml:"retention"`
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"forecast"`

	Cache struct {
		Backend   string `yaml:"backend"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts        int    `yaml:"retry_max_attempts"`
		RetryBaseDelay          string `yaml:"retry_base_delay"`
		RetryMaxDelay           string `yaml:"retry_max_delay"`
		BreakerFailureThreshold uint32 `yaml:"breaker_failure_threshold"`
		BreakerHalfOpenRequests uint32 `yaml:"breaker_half_open_requests"`
		BreakerTimeout          string `yaml:"breaker_timeout"`
	} `yaml:"reliability"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     *int   `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

type secretsFile struct {
	AmbientAPIKey         string `yaml:"ambient_api_key"`
	AmbientApplicationKey string `yaml:"ambient_application_key"`
}

// Load reads .env (if present), config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml relative to the working directory. Station keys come from
// AMBIENT_API_KEY / AMBIENT_APPLICATION_KEY or the secrets file. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return loadFrom(cwd)
}

func loadFrom(root string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(root, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	if err := loadSecrets(cfg, root); err != nil {
		return nil, err
	}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.RequestTimeout = parseDuration(fc.Server.RequestTimeout, 15*time.Second)
	cfg.ShutdownTimeout = parseDuration(fc.Server.ShutdownTimeout, 30*time.Second)
	cfg.RateLimitRPS = intOr(fc.Server.RateLimitRPS, 20)
	cfg.RateLimitBurst = intOr(fc.Server.RateLimitBurst, 40)

	cfg.MACAddress, err = validation.ValidateMAC(fc.Station.MACAddress)
	if err != nil {
		return nil, err
	}
	cfg.Latitude = fc.Station.Latitude
	cfg.Longitude = fc.Station.Longitude

	cfg.RealtimeURL = strings.TrimSpace(fc.Realtime.URL)
	if cfg.RealtimeURL == "" {
		cfg.RealtimeURL = "https://rt2.ambientweather.net"
	}
	cfg.ReconnectDelay = parseDuration(fc.Realtime.ReconnectDelay, 5*time.Second)
	cfg.HandshakeTimeout = parseDuration(fc.Realtime.HandshakeTimeout, 15*time.Second)

	cfg.Units, err = validation.ValidateUnits(fc.Display.Units)
	if err != nil {
		return nil, err
	}
	cfg.OfflineThreshold = parseDuration(fc.Display.OfflineThreshold, 5*time.Minute)
	cfg.CheckInterval = parseDuration(fc.Display.CheckInterval, 15*time.Second)
	cfg.PressureThreshold = floatOr(fc.Display.PressureThreshold, conditions.DefaultPressureThreshold)
	cfg.GustThreshold = floatOr(fc.Display.GustThreshold, conditions.DefaultGustThreshold)
	cfg.Icons, err = mergeIcons(conditions.DefaultIconTable(), fc.Display.Icons)
	if err != nil {
		return nil, err
	}
	cfg.ShowSunTimes = boolOr(fc.Display.Show.SunTimes, true)
	cfg.ShowUV = boolOr(fc.Display.Show.UV, true)
	cfg.ShowAQI = boolOr(fc.Display.Show.AQI, true)
	cfg.ShowBarometer = boolOr(fc.Display.Show.Barometer, true)
	cfg.ShowIndoor = boolOr(fc.Display.Show.Indoor, true)
	cfg.ShowForecast = boolOr(fc.Display.Show.Forecast, true)

	cfg.ForecastAPIURL = strings.TrimSpace(fc.Forecast.URL)
	if cfg.ForecastAPIURL == "" {
		cfg.ForecastAPIURL = "https://api.weather.gov"
	}
	cfg.ForecastUserAgent = strings.TrimSpace(fc.Forecast.UserAgent)
	if cfg.ForecastUserAgent == "" {
		cfg.ForecastUserAgent = "ambient-mirror/1.0 (smart mirror)"
	}
	cfg.ForecastAPITimeout = parseDurationOrZero(fc.Forecast.Timeout, 10*time.Second)
	cfg.ForecastDays = intOr(fc.Forecast.Days, models.DefaultForecastDays)
	cfg.ForecastTTL = parseDuration(fc.Forecast.TTL, 90*time.Minute)
	cfg.ForecastRetention = parseDurationOrZero(fc.Forecast.Retention, 24*time.Hour)
	cfg.ForecastRefreshInterval = parseDuration(fc.Forecast.RefreshInterval, 30*time.Minute)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = intOr(fc.Cache.Memcached.MaxIdleConns, 2)

	cfg.RetryAttempts = intOr(fc.Reliability.RetryMaxAttempts, 3)
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 250*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 5*time.Second)
	cfg.BreakerFailureThreshold = fc.Reliability.BreakerFailureThreshold
	if cfg.BreakerFailureThreshold == 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerHalfOpenRequests = fc.Reliability.BreakerHalfOpenRequests
	if cfg.BreakerHalfOpenRequests == 0 {
		cfg.BreakerHalfOpenRequests = 2
	}
	cfg.BreakerTimeout = parseDuration(fc.Reliability.BreakerTimeout, 30*time.Second)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = intOr(fc.Lifecycle.OverloadThresholdPct, 80)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 10*time.Minute)
	cfg.DegradedErrorPct = 50
	if fc.Lifecycle.DegradedErrorPct != nil {
		cfg.DegradedErrorPct = *fc.Lifecycle.DegradedErrorPct
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadSecrets fills station keys from env, falling back to config/secrets.yaml per key.
func loadSecrets(cfg *Config, root string) error {
	cfg.AmbientAPIKey = strings.TrimSpace(os.Getenv("AMBIENT_API_KEY"))
	cfg.AmbientApplicationKey = strings.TrimSpace(os.Getenv("AMBIENT_APPLICATION_KEY"))
	if cfg.AmbientAPIKey != "" && cfg.AmbientApplicationKey != "" {
		return nil
	}

	secretsPath := filepath.Join(root, "config", "secrets.yaml")
	data, err := os.ReadFile(secretsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkSecrets(cfg)
		}
		return fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return fmt.Errorf("parse secrets file: %w", err)
	}
	if cfg.AmbientAPIKey == "" {
		cfg.AmbientAPIKey = strings.TrimSpace(sec.AmbientAPIKey)
	}
	if cfg.AmbientApplicationKey == "" {
		cfg.AmbientApplicationKey = strings.TrimSpace(sec.AmbientApplicationKey)
	}
	return checkSecrets(cfg)
}

func checkSecrets(cfg *Config) error {
	if cfg.AmbientAPIKey == "" {
		return fmt.Errorf("AMBIENT_API_KEY required (set env or config/secrets.yaml ambient_api_key)")
	}
	if cfg.AmbientApplicationKey == "" {
		return fmt.Errorf("AMBIENT_APPLICATION_KEY required (set env or config/secrets.yaml ambient_application_key)")
	}
	return nil
}

// mergeIcons overlays configured icons on the stock table. Non-empty fields replace
// stock ones; unknown condition tags are rejected.
func mergeIcons(base conditions.IconTable, override *conditions.IconTable) (conditions.IconTable, error) {
	if override == nil {
		return base, nil
	}
	if override.Default.Day != "" {
		base.Default.Day = override.Default.Day
	}
	if override.Default.Night != "" {
		base.Default.Night = override.Default.Night
	}
	for tag, pair := range override.Conditions {
		if !tag.Valid() {
			return conditions.IconTable{}, fmt.Errorf("display.icons: unknown condition %q", tag)
		}
		merged := base.Conditions[tag]
		if pair.Day != "" {
			merged.Day = pair.Day
		}
		if pair.Night != "" {
			merged.Night = pair.Night
		}
		base.Conditions[tag] = merged
	}
	return base, nil
}

// ForecastQuery returns the configured forecast location, or false when coordinates
// are not set.
func (c *Config) ForecastQuery() (models.ForecastQuery, bool) {
	if c.Latitude == nil || c.Longitude == nil {
		return models.ForecastQuery{}, false
	}
	return models.ForecastQuery{
		Latitude:  *c.Latitude,
		Longitude: *c.Longitude,
		Days:      c.ForecastDays,
		Metric:    c.Units == "metric",
	}, true
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero is returned as-is so "0" can mean "disabled".
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func floatOr(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// validate performs post-load validation of configuration values.
// Struct tags cover ranges and enums; cross-field rules are checked here.
// A forecast without coordinates turns the forecast section off rather than failing.
func validate(cfg *Config) error {
	if err := validation.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.ForecastAPITimeout <= 0 {
		return fmt.Errorf("forecast.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.ForecastAPITimeout {
		cfg.RequestTimeout = cfg.ForecastAPITimeout + time.Second
	}
	if (cfg.Latitude == nil) != (cfg.Longitude == nil) {
		return fmt.Errorf("station.latitude and station.longitude must be set together")
	}
	if cfg.Latitude == nil {
		cfg.ShowForecast = false
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	return nil
}
