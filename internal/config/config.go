package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port        string
	HTTPTimeout time.Duration

	// Optional provider keys. Open-Meteo needs none.
	WeatherAPIKey  string
	GeocoderAPIKey string

	// Session retention.
	SessionTTL           time.Duration // idle time before a session is dropped (0 = never)
	SessionMax           int           // max live sessions (0 = unlimited)
	SessionSweepInterval time.Duration

	ForecastDefaultDays   int
	ForecastMaxDays       int
	ForecastFitTimeout    time.Duration
	ForecastChangepoints  int // negative disables changepoints
	ForecastIntervalWidth float64

	// GridSize is n for the n x n area-average grid.
	GridSize     int
	FetchWorkers int
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getenvDuration("SESSION_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionMax, err = getenvInt("SESSION_MAX", 1000); err != nil {
		return nil, err
	}
	if cfg.SessionSweepInterval, err = getenvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.ForecastDefaultDays, err = getenvInt("FORECAST_DEFAULT_DAYS", 90); err != nil {
		return nil, err
	}
	if cfg.ForecastMaxDays, err = getenvInt("FORECAST_MAX_DAYS", 365); err != nil {
		return nil, err
	}
	if cfg.ForecastFitTimeout, err = getenvDuration("FORECAST_FIT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ForecastChangepoints, err = getenvInt("FORECAST_CHANGEPOINTS", 25); err != nil {
		return nil, err
	}
	if cfg.ForecastIntervalWidth, err = getenvFloat("FORECAST_INTERVAL_WIDTH", 0.8); err != nil {
		return nil, err
	}

	if cfg.GridSize, err = getenvInt("GRID_SIZE", 3); err != nil {
		return nil, err
	}
	if cfg.FetchWorkers, err = getenvInt("FETCH_WORKERS", 4); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch {
	case c.ForecastMaxDays < 1:
		return fmt.Errorf("invalid FORECAST_MAX_DAYS: must be at least 1")
	case c.ForecastDefaultDays < 1 || c.ForecastDefaultDays > c.ForecastMaxDays:
		return fmt.Errorf("invalid FORECAST_DEFAULT_DAYS: must be in [1, %d]", c.ForecastMaxDays)
	case c.ForecastIntervalWidth <= 0 || c.ForecastIntervalWidth >= 1:
		return fmt.Errorf("invalid FORECAST_INTERVAL_WIDTH: must be in (0, 1)")
	case c.GridSize < 1:
		return fmt.Errorf("invalid GRID_SIZE: must be at least 1")
	case c.FetchWorkers < 1:
		return fmt.Errorf("invalid FETCH_WORKERS: must be at least 1")
	case c.SessionMax < 0:
		return fmt.Errorf("invalid SESSION_MAX: must not be negative")
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def.String()))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
