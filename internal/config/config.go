// Package config loads dashboard settings from an optional YAML file
// overlaid with environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every dashboard setting. Later layers win:
// defaults, then the YAML file, then the environment, then command-line flags.
type Config struct {
	SagasURL      string        `yaml:"sagas_url"`
	CampaignsURL  string        `yaml:"campaigns_url"`
	PaymentsURL   string        `yaml:"payments_url"`
	ReportingURL  string        `yaml:"reporting_url"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	DatabaseURL   string        `yaml:"database_url"`
	SagaTable     string        `yaml:"saga_table"`
	FixturesPath  string        `yaml:"fixtures"`
	RedisAddr     string        `yaml:"redis_addr"`
	LogLevel      string        `yaml:"log_level"`
	ListenAddr    string        `yaml:"listen_addr"`
	WatchInterval time.Duration `yaml:"watch_interval"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		SagasURL:      "http://localhost:8090",
		CampaignsURL:  "http://localhost:8080",
		PaymentsURL:   "http://localhost:8000",
		ReportingURL:  "http://localhost:8000/reporting",
		HTTPTimeout:   10 * time.Second,
		SagaTable:     "saga_log",
		LogLevel:      "info",
		ListenAddr:    ":8095",
		WatchInterval: 5 * time.Second,
	}
}

// Load reads path (if non-empty) over the defaults, then applies the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg = cfg.FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv returns c with any set environment variables applied.
func (c Config) FromEnv() Config {
	c.SagasURL = GetEnv("SAGAS_URL", c.SagasURL)
	c.CampaignsURL = GetEnv("CAMPAIGNS_URL", c.CampaignsURL)
	c.PaymentsURL = GetEnv("PAYMENTS_URL", c.PaymentsURL)
	c.ReportingURL = GetEnv("REPORTING_URL", c.ReportingURL)
	c.HTTPTimeout = GetEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout)
	c.DatabaseURL = GetEnv("DATABASE_URL", c.DatabaseURL)
	c.SagaTable = GetEnv("SAGA_TABLE", c.SagaTable)
	c.FixturesPath = GetEnv("SAGA_FIXTURES", c.FixturesPath)
	c.RedisAddr = GetEnv("REDIS_ADDR", c.RedisAddr)
	c.LogLevel = GetEnv("LOG_LEVEL", c.LogLevel)
	c.ListenAddr = GetEnv("LISTEN_ADDR", c.ListenAddr)
	c.WatchInterval = GetEnvDuration("WATCH_INTERVAL", c.WatchInterval)
	return c
}

// Validate rejects settings the dashboard cannot run with.
func (c Config) Validate() error {
	if c.SagasURL == "" && c.DatabaseURL == "" {
		return fmt.Errorf("config: one of sagas_url or database_url is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.WatchInterval < time.Second {
		return fmt.Errorf("config: watch_interval must be at least 1s, got %s", c.WatchInterval)
	}
	return nil
}

// GetEnv returns the environment value for key, or defaultValue when unset or empty.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt returns key parsed as an int, or defaultValue.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvDuration returns key parsed with time.ParseDuration, or defaultValue.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
