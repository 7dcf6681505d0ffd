package config

import (
	"fmt"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL          string        `envconfig:"DATABASE_URL" required:"true"`
	LogLevel             string        `envconfig:"LOG_LEVEL" default:"info"`
	Environment          string        `envconfig:"ENVIRONMENT" default:"development"`
	Timezone             string        `envconfig:"TIMEZONE" default:"UTC"`
	CronSpecRecurrence   string        `envconfig:"CRON_SPEC_RECURRENCE" default:"0 2 * * *"`     // daily recurring expense run
	CronSpecRenewalSweep string        `envconfig:"CRON_SPEC_RENEWAL_SWEEP" default:"30 2 * * *"` // daily renewal task repair
	RecurrenceWorkers    int           `envconfig:"RECURRENCE_WORKERS" default:"4"`
	JobTimeout           time.Duration `envconfig:"JOB_TIMEOUT" default:"10m"`
	TelegramToken        string        `envconfig:"TELEGRAM_TOKEN"` // optional, enables failure alerts
	AdminTelegramID      int64         `envconfig:"ADMIN_TELEGRAM_ID"`

	location *time.Location
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv decodes and validates the process environment without touching .env.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Environment = strings.ToLower(cfg.Environment)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if cfg.RecurrenceWorkers < 1 {
		return nil, fmt.Errorf("RECURRENCE_WORKERS must be at least 1, got %d", cfg.RecurrenceWorkers)
	}
	if cfg.JobTimeout <= 0 {
		return nil, fmt.Errorf("JOB_TIMEOUT must be positive, got %s", cfg.JobTimeout)
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set but TELEGRAM_TOKEN is")
	}
	return cfg, nil
}

// Location is the parsed TIMEZONE. "Today" and cron schedules are evaluated in it.
func (c *AppConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// AlertsEnabled reports whether a Telegram admin chat is configured.
func (c *AppConfig) AlertsEnabled() bool {
	return c.TelegramToken != "" && c.AdminTelegramID != 0
}
