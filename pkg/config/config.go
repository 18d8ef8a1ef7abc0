package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config covers process level configuration read from environment variables.
// Platform credentials live in the plan store, not here.
type Config struct {
	DatabaseURL  string // bbolt file backing the plan store
	DatabaseName string // namespace bucket inside the store
	Port         int

	Timezone       string
	Location       *time.Location
	ReloadSchedule string
	TickSchedule   string

	// Market-open window (minute-of-day, inclusive) gating metric pushes
	MarketOpenMinute  int
	MarketCloseMinute int

	// Prometheus remote write; pushes are disabled when the endpoint is empty
	PrometheusEndpoint string
	PrometheusUsername string
	PrometheusPassword string

	// Redis metric cache merged into each push; disabled when addr is empty
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
	LogJSON  bool
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DatabaseName: getEnv("DATABASE_NAME", ""),
		Port:         getEnvInt("PORT", 3000),

		Timezone:       getEnv("AUTOSCALER_TIMEZONE", "UTC"),
		ReloadSchedule: getEnv("AUTOSCALER_RELOAD_SCHEDULE", "3 0 * * *"),
		TickSchedule:   getEnv("AUTOSCALER_TICK_SCHEDULE", "* * * * *"),

		MarketOpenMinute:  getEnvInt("MARKET_OPEN_MINUTE", 555),
		MarketCloseMinute: getEnvInt("MARKET_CLOSE_MINUTE", 930),

		PrometheusEndpoint: getEnv("PROMETHEUS_ENDPOINT", ""),
		PrometheusUsername: getEnv("PROMETHEUS_USERNAME", ""),
		PrometheusPassword: getEnv("PROMETHEUS_PASSWORD", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and resolves the timezone
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL must be provided"))
	}
	if c.DatabaseName == "" {
		errs = append(errs, fmt.Errorf("DATABASE_NAME must be provided"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		errs = append(errs, fmt.Errorf("AUTOSCALER_TIMEZONE %q: %w", c.Timezone, err))
	} else {
		c.Location = loc
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.ReloadSchedule); err != nil {
		errs = append(errs, fmt.Errorf("AUTOSCALER_RELOAD_SCHEDULE %q: %w", c.ReloadSchedule, err))
	}
	if _, err := parser.Parse(c.TickSchedule); err != nil {
		errs = append(errs, fmt.Errorf("AUTOSCALER_TICK_SCHEDULE %q: %w", c.TickSchedule, err))
	}

	if c.MarketOpenMinute < 0 || c.MarketCloseMinute > 1439 || c.MarketOpenMinute > c.MarketCloseMinute {
		errs = append(errs, fmt.Errorf("market window [%d, %d] must lie within 0-1439 and open <= close", c.MarketOpenMinute, c.MarketCloseMinute))
	}

	return errors.Join(errs...)
}

// ListenAddr returns the HTTP listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}
