package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	JWTSigningKey string   `mapstructure:"JWT_SIGNING_KEY"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	// Booking lifecycle settings.
	ConfirmationWindowMin int `mapstructure:"CONFIRMATION_WINDOW_MIN"`
	SweepIntervalSec      int `mapstructure:"SWEEP_INTERVAL_SEC"`
	SweepBatchSize        int `mapstructure:"SWEEP_BATCH_SIZE"`
	MaxBookingDaysDefault int `mapstructure:"MAX_BOOKING_DAYS_DEFAULT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CONFIRMATION_WINDOW_MIN", 15)
	v.SetDefault("SWEEP_INTERVAL_SEC", 60)
	v.SetDefault("SWEEP_BATCH_SIZE", 100)
	v.SetDefault("MAX_BOOKING_DAYS_DEFAULT", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SIGNING_KEY")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("CONFIRMATION_WINDOW_MIN")
	v.BindEnv("SWEEP_INTERVAL_SEC")
	v.BindEnv("SWEEP_BATCH_SIZE")
	v.BindEnv("MAX_BOOKING_DAYS_DEFAULT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if !cfg.IsDev() && cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("JWT_SIGNING_KEY is required outside development")
	}
	if cfg.ConfirmationWindowMin <= 0 {
		return nil, fmt.Errorf("CONFIRMATION_WINDOW_MIN must be positive")
	}
	if cfg.SweepBatchSize <= 0 {
		return nil, fmt.Errorf("SWEEP_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ConfirmationWindow is the duration a provider has to confirm a pending
// booking before the sweep auto-rejects it.
func (c *Config) ConfirmationWindow() time.Duration {
	return time.Duration(c.ConfirmationWindowMin) * time.Minute
}

// SweepInterval is the pause between expiry sweep runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}
