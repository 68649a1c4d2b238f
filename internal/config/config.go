// Package config loads container defaults, logging and metrics settings from
// a YAML file, an optional .env file and GOFAC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/Ngone6325/gofac/v2/registration"
)

// Config is the typed configuration of a container.
type Config struct {
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LifecycleConfig holds defaults applied to every registration.
type LifecycleConfig struct {
	TimeToLive          time.Duration `yaml:"time_to_live"`
	DisposeOnInvalidate bool          `yaml:"dispose_on_invalidate"`
	AllowInheritance    bool          `yaml:"allow_inheritance"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	Encoding    string `yaml:"encoding"` // json | console
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Encoding: "json"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "gofac"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), the given .env files (".env" when none are given; missing
// files are ignored) and finally GOFAC_* environment variables.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML on top of the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("GOFAC_TIME_TO_LIVE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GOFAC_TIME_TO_LIVE: %w", err)
		}
		c.Lifecycle.TimeToLive = d
	}
	var err error
	if c.Lifecycle.DisposeOnInvalidate, err = envBool("GOFAC_DISPOSE_ON_INVALIDATE", c.Lifecycle.DisposeOnInvalidate); err != nil {
		return err
	}
	if c.Lifecycle.AllowInheritance, err = envBool("GOFAC_ALLOW_INHERITANCE", c.Lifecycle.AllowInheritance); err != nil {
		return err
	}
	if c.Logging.Development, err = envBool("GOFAC_LOG_DEVELOPMENT", c.Logging.Development); err != nil {
		return err
	}
	if c.Metrics.Enabled, err = envBool("GOFAC_METRICS_ENABLED", c.Metrics.Enabled); err != nil {
		return err
	}
	c.Logging.Level = env("GOFAC_LOG_LEVEL", c.Logging.Level)
	c.Logging.Encoding = env("GOFAC_LOG_ENCODING", c.Logging.Encoding)
	c.Metrics.Namespace = env("GOFAC_METRICS_NAMESPACE", c.Metrics.Namespace)
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Lifecycle.TimeToLive < 0 {
		return fmt.Errorf("lifecycle.time_to_live must not be negative, got %s", c.Lifecycle.TimeToLive)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("logging.encoding must be json or console, got %q", c.Logging.Encoding)
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return errors.New("metrics.namespace is required when metrics are enabled")
	}
	return nil
}

// RegistrationOptions turns the lifecycle defaults into registration options.
func (c *Config) RegistrationOptions() []registration.Option {
	return []registration.Option{
		registration.WithTimeToLive(c.Lifecycle.TimeToLive),
		registration.WithDisposeOnInvalidate(c.Lifecycle.DisposeOnInvalidate),
		registration.WithAllowInheritance(c.Lifecycle.AllowInheritance),
	}
}

func env(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
