package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the service configuration. Environment variables seed the
// defaults; AXIS_CONFIG may point at a YAML file that overrides them.
type Config struct {
	HTTPAddr       string
	DatabaseURL    string
	BackendBaseURL string
	BackendToken   string
	JWTSecret      string
	DebounceWindow time.Duration
	FrameInterval  time.Duration
}

// fileConfig is the YAML shape. Durations come in as strings so the
// usual "250ms" spellings work.
type fileConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	DatabaseURL    string `yaml:"database_url"`
	BackendBaseURL string `yaml:"backend_base_url"`
	BackendToken   string `yaml:"backend_token"`
	JWTSecret      string `yaml:"jwt_secret"`
	DebounceWindow string `yaml:"debounce_window"`
	FrameInterval  string `yaml:"frame_interval"`
}

// Load builds the configuration from the environment and an optional
// YAML overlay.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:    getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		BackendBaseURL: getenvDefault("BACKEND_BASE_URL", ""),
		BackendToken:   getenvDefault("BACKEND_TOKEN", ""),
		JWTSecret:      getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		DebounceWindow: getenvDuration("SYNC_DEBOUNCE_WINDOW", 0),
		FrameInterval:  getenvDuration("DRAG_FRAME_INTERVAL", 0),
	}

	if path := os.Getenv("AXIS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		var overlay fileConfig
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return cfg, err
		}
		if err := applyOverlay(&cfg, overlay); err != nil {
			return cfg, err
		}
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if cfg.BackendBaseURL == "" {
		return cfg, errors.New("config: BACKEND_BASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("config: AUTH_JWT_SECRET is required")
	}
	return cfg, nil
}

func applyOverlay(cfg *Config, overlay fileConfig) error {
	if overlay.HTTPAddr != "" {
		cfg.HTTPAddr = overlay.HTTPAddr
	}
	if overlay.DatabaseURL != "" {
		cfg.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.BackendBaseURL != "" {
		cfg.BackendBaseURL = overlay.BackendBaseURL
	}
	if overlay.BackendToken != "" {
		cfg.BackendToken = overlay.BackendToken
	}
	if overlay.JWTSecret != "" {
		cfg.JWTSecret = overlay.JWTSecret
	}
	if overlay.DebounceWindow != "" {
		parsed, err := time.ParseDuration(overlay.DebounceWindow)
		if err != nil {
			return err
		}
		cfg.DebounceWindow = parsed
	}
	if overlay.FrameInterval != "" {
		parsed, err := time.ParseDuration(overlay.FrameInterval)
		if err != nil {
			return err
		}
		cfg.FrameInterval = parsed
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
