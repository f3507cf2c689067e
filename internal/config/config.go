package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	GatewayBaseURL string `mapstructure:"GATEWAY_BASE_URL"`
	GatewayConsID  string `mapstructure:"GATEWAY_CONS_ID"`
	GatewaySecret  string `mapstructure:"GATEWAY_SECRET"`

	// Empty DATABASE_URL selects the in-memory audit store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	AuthSecret string `mapstructure:"AUTH_SECRET"`

	RetryMaxAttempts       int     `mapstructure:"RETRY_MAX_ATTEMPTS"`
	RetryInitialDelayMS    int     `mapstructure:"RETRY_INITIAL_DELAY_MS"`
	RetryMaxDelayMS        int     `mapstructure:"RETRY_MAX_DELAY_MS"`
	RetryBackoffMultiplier float64 `mapstructure:"RETRY_BACKOFF_MULTIPLIER"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_INITIAL_DELAY_MS", 1000)
	v.SetDefault("RETRY_MAX_DELAY_MS", 30000)
	v.SetDefault("RETRY_BACKOFF_MULTIPLIER", 2.0)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("GATEWAY_BASE_URL")
	v.BindEnv("GATEWAY_CONS_ID")
	v.BindEnv("GATEWAY_SECRET")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("RETRY_MAX_ATTEMPTS")
	v.BindEnv("RETRY_INITIAL_DELAY_MS")
	v.BindEnv("RETRY_MAX_DELAY_MS")
	v.BindEnv("RETRY_BACKOFF_MULTIPLIER")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.GatewayBaseURL == "" {
		return nil, fmt.Errorf("GATEWAY_BASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RetryInitialDelay returns the configured initial backoff.
func (c *Config) RetryInitialDelay() time.Duration {
	return time.Duration(c.RetryInitialDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the configured backoff ceiling.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMS) * time.Millisecond
}

// Validate checks that the configuration is safe to run. Outside development
// the auth secret and gateway credentials must be present, and retry tuning
// must be sane.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthSecret == "" {
			return fmt.Errorf("AUTH_SECRET is required when ENV is not development")
		}
		if c.GatewayConsID == "" || c.GatewaySecret == "" {
			return fmt.Errorf("GATEWAY_CONS_ID and GATEWAY_SECRET are required when ENV is not development")
		}
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.RetryInitialDelayMS <= 0 {
		return fmt.Errorf("RETRY_INITIAL_DELAY_MS must be positive, got %d", c.RetryInitialDelayMS)
	}
	if c.RetryMaxDelayMS < c.RetryInitialDelayMS {
		return fmt.Errorf("RETRY_MAX_DELAY_MS (%d) must not be below RETRY_INITIAL_DELAY_MS (%d)", c.RetryMaxDelayMS, c.RetryInitialDelayMS)
	}
	if c.RetryBackoffMultiplier < 1 {
		return fmt.Errorf("RETRY_BACKOFF_MULTIPLIER must be at least 1, got %g", c.RetryBackoffMultiplier)
	}
	return nil
}
