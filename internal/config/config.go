package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/swelljoe/wthrdash/internal/apperror"
	"github.com/swelljoe/wthrdash/internal/weather"
)

type Config struct {
	OpenWeatherAPIKey string
	Units             string
	Lang              string
	DefaultLocation   weather.Location

	RefreshInterval      time.Duration
	AlertCheckInterval   time.Duration
	NotificationDuration time.Duration
	ErrorDisplayDuration time.Duration

	MaxForecastDays   int
	MaxHourlyEntries  int
	MaxSavedLocations int
	IncludeHourly     bool

	SeverityTable          weather.SeverityTable
	AlertsEnabled          bool
	NotificationPermission string // granted, denied or default

	DBPath        string
	StoragePrefix string
	ServerPort    string
	LogLevel      string

	// Optional fixed device position for servers without a location service.
	DeviceLat *float64
	DeviceLon *float64
}

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		OpenWeatherAPIKey: getEnv("OPENWEATHER_API_KEY", ""),
		Units:             getEnv("WEATHER_UNITS", weather.UnitsMetric),
		Lang:              getEnv("WEATHER_LANG", "en"),
		DefaultLocation: weather.Location{
			Name:    getEnv("DEFAULT_LOCATION_NAME", "London"),
			Country: getEnv("DEFAULT_LOCATION_COUNTRY", "GB"),
			Lat:     getEnvAsFloat("DEFAULT_LAT", 51.5074),
			Lon:     getEnvAsFloat("DEFAULT_LON", -0.1278),
		},

		RefreshInterval:      getEnvAsDuration("REFRESH_INTERVAL", 30*time.Minute),
		AlertCheckInterval:   getEnvAsDuration("ALERT_CHECK_INTERVAL", 15*time.Minute),
		NotificationDuration: getEnvAsDuration("NOTIFICATION_DURATION", 10*time.Second),
		ErrorDisplayDuration: getEnvAsDuration("ERROR_DISPLAY_DURATION", 5*time.Second),

		MaxForecastDays:   getEnvAsInt("MAX_FORECAST_DAYS", 5),
		MaxHourlyEntries:  getEnvAsInt("MAX_HOURLY_ENTRIES", 24),
		MaxSavedLocations: getEnvAsInt("MAX_SAVED_LOCATIONS", 5),
		IncludeHourly:     getEnvAsBool("INCLUDE_HOURLY", true),

		SeverityTable: weather.NewSeverityTable(
			getEnvAsList("SEVERE_KEYWORDS"),
			getEnvAsList("MODERATE_KEYWORDS"),
			getEnvAsList("MINOR_KEYWORDS"),
		),
		AlertsEnabled:          getEnvAsBool("ALERTS_ENABLED", true),
		NotificationPermission: getEnv("NOTIFICATION_PERMISSION", "granted"),

		DBPath:        getEnv("DB_PATH", "data/wthr.db"),
		StoragePrefix: getEnv("STORAGE_PREFIX", "wthr_"),
		ServerPort:    getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if lat, ok := lookupFloat("DEVICE_LAT"); ok {
		if lon, ok := lookupFloat("DEVICE_LON"); ok {
			cfg.DeviceLat, cfg.DeviceLon = &lat, &lon
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted silently.
func (c *Config) Validate() error {
	if !weather.ValidUnits(c.Units) {
		return apperror.ValidationFailed("WEATHER_UNITS", fmt.Sprintf("unknown unit system %q (want metric, imperial or standard)", c.Units))
	}
	switch c.NotificationPermission {
	case "granted", "denied", "default":
	default:
		return apperror.ValidationFailed("NOTIFICATION_PERMISSION", fmt.Sprintf("unknown notification permission %q", c.NotificationPermission))
	}
	if c.RefreshInterval <= 0 || c.AlertCheckInterval <= 0 {
		return apperror.ValidationFailed("REFRESH_INTERVAL", "refresh and alert intervals must be positive")
	}
	if c.MaxSavedLocations <= 0 {
		return apperror.ValidationFailed("MAX_SAVED_LOCATIONS", "saved locations limit must be positive")
	}
	return nil
}

// RequireAPIKey fails when no provider key is configured.
func (c *Config) RequireAPIKey() error {
	if c.OpenWeatherAPIKey == "" {
		return apperror.ValidationFailed("OPENWEATHER_API_KEY", "OPENWEATHER_API_KEY is not set")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if f, ok := lookupFloat(key); ok {
		return f
	}
	return defaultValue
}

func lookupFloat(key string) (float64, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// getEnvAsList splits a comma separated value. It returns nil when the
// variable is unset so callers can fall back to their defaults.
func getEnvAsList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	items := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
