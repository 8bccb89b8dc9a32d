// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no path is given on the command line.
const DefaultConfigPath = "config.yaml"

// AppConfig holds process-level inputs from the command line.
type AppConfig struct {
	ConfigPath string
}

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Counters  CountersConfig  `yaml:"counters"`
	JWT       JWTConfig       `yaml:"jwt"`
	Logging   LoggingConfig   `yaml:"logging"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	App       AppSection      `yaml:"app"`
	Fanout    FanoutConfig    `yaml:"fanout"`
	BotCheck  BotCheckConfig  `yaml:"botcheck"`
	Duplicate DuplicateConfig `yaml:"duplicate"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	TrustedProxies  []string      `yaml:"trusted_proxies"`
}

// DatabaseConfig holds the DSN for postgres or sqlite.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig enables the shared counter backend. When disabled, rate limits
// and duplicate records live in the database.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Counter backends for rate limits and duplicate records.
const (
	CounterBackendDatabase = "database"
	CounterBackendMemory   = "memory"
	CounterBackendRedis    = "redis"
)

// CountersConfig selects where rate limits and duplicate records live.
// The memory backend only suits a single instance. An empty backend uses
// redis when it is enabled and the database otherwise.
type CountersConfig struct {
	Backend string `yaml:"backend"`
}

// CounterBackend returns the effective counter backend.
func (c Config) CounterBackend() string {
	backend := strings.ToLower(strings.TrimSpace(c.Counters.Backend))
	if backend != "" {
		return backend
	}
	if c.Redis.Enabled {
		return CounterBackendRedis
	}
	return CounterBackendDatabase
}

// JWTConfig holds the secret used to verify submitter tokens.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LoggingConfig configures logrus output and file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// SMTPConfig configures notification email delivery. An empty host logs
// notifications instead of sending them.
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AppSection holds public-facing application values.
type AppSection struct {
	BaseURL string `yaml:"base_url"`
}

// FanoutConfig sizes the post-submission worker pool.
type FanoutConfig struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	EmailTimeout   time.Duration `yaml:"email_timeout"`
}

// BotCheckConfig selects the bot verifier. An empty endpoint uses the
// built-in request heuristics.
type BotCheckConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DuplicateConfig holds the key for submitter fingerprints.
type DuplicateConfig struct {
	FingerprintKey string `yaml:"fingerprint_key"`
}

// RetentionConfig controls the cleanup loop.
type RetentionConfig struct {
	Interval            time.Duration `yaml:"interval"`
	WebhookDeliveryDays int           `yaml:"webhook_delivery_days"`
}

// Default returns a configuration usable for local development.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Database: DatabaseConfig{DSN: "file:data/formgate.db"},
		Redis: RedisConfig{
			Addr:      "127.0.0.1:6379",
			KeyPrefix: "formgate",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		SMTP: SMTPConfig{Port: 587, Timeout: 10 * time.Second},
		App:  AppSection{BaseURL: "http://localhost:8080"},
		Fanout: FanoutConfig{
			Workers:        4,
			QueueSize:      256,
			WebhookTimeout: 10 * time.Second,
			EmailTimeout:   15 * time.Second,
		},
		BotCheck: BotCheckConfig{Timeout: 3 * time.Second},
		Retention: RetentionConfig{
			Interval:            6 * time.Hour,
			WebhookDeliveryDays: 30,
		},
	}
}

// ResolveConfigPath returns the explicit path or the default file name.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultConfigPath
	}
	return filepath.Clean(trimmed)
}

// ConfigExists reports whether a config file is present at path.
func ConfigExists(path string) bool {
	info, err := os.Stat(ResolveConfigPath(path))
	return err == nil && !info.IsDir()
}

// Load reads path over the defaults and applies FORMGATE_* environment
// overrides. A missing file is not an error; defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()
	resolved := ResolveConfigPath(path)

	data, errRead := os.ReadFile(resolved)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", resolved, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", resolved, errRead)
	}

	if errEnv := applyEnvOverrides(&cfg, os.Environ()); errEnv != nil {
		return Config{}, errEnv
	}
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("config: redis.addr is required when redis is enabled")
	}
	switch c.CounterBackend() {
	case CounterBackendDatabase, CounterBackendMemory:
	case CounterBackendRedis:
		if !c.Redis.Enabled {
			return errors.New("config: counters.backend redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("config: unknown counters.backend %q", c.Counters.Backend)
	}
	if c.Fanout.Workers < 0 || c.Fanout.QueueSize < 0 {
		return errors.New("config: fanout workers and queue_size must be non-negative")
	}
	if c.SMTP.Host != "" && strings.TrimSpace(c.SMTP.From) == "" {
		return errors.New("config: smtp.from is required when smtp.host is set")
	}
	return nil
}

// LoadDatabaseDSN loads the config at path and returns only the DSN.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, err := Load(path)
	if err != nil {
		return "", err
	}
	return cfg.Database.DSN, nil
}
