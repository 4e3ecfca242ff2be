// Package config loads and validates the application configuration from
// defaults, an optional YAML file, and GINSENG_* environment variables.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrInvalidUploadConcurrency   = errors.New("upload concurrency must not be negative")
	ErrInvalidDownloadConcurrency = errors.New("download concurrency must not be negative")
	ErrInvalidEmitInterval        = errors.New("emit interval must not be negative")
	ErrInvalidEventBuffer         = errors.New("event buffer must not be negative")
	ErrInvalidLogLevel            = errors.New("log level must be one of debug, info, warn, error")
)

// Config holds all application configuration. Zero values defer to the
// engine's own defaults.
type Config struct {
	// UploadConcurrency bounds concurrent upload workers; 0 selects
	// min(NumCPU, 8).
	UploadConcurrency int `mapstructure:"upload_concurrency"`
	// DownloadConcurrency bounds concurrent download workers; 0 selects
	// the default of 6.
	DownloadConcurrency int `mapstructure:"download_concurrency"`
	// EmitInterval throttles non-critical progress events; 0 selects 100ms.
	EmitInterval time.Duration `mapstructure:"emit_interval"`
	// EventBuffer is the event channel capacity; 0 selects the default.
	EventBuffer int `mapstructure:"event_buffer"`
	// DownloadDir overrides the destination root for received files.
	DownloadDir string `mapstructure:"download_dir"`
	// LogLevel selects the logrus level: debug, info, warn, or error.
	LogLevel string `mapstructure:"log_level"`
}

// NewDefaultConfig returns a configuration with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
	}
}

// Load builds the configuration from viper's merged sources (defaults,
// config file, environment) and validates it. Every key is registered as a
// default first; viper only resolves environment variables for keys it
// knows about.
func Load(v *viper.Viper) (*Config, error) {
	defaults := NewDefaultConfig()
	v.SetDefault("upload_concurrency", defaults.UploadConcurrency)
	v.SetDefault("download_concurrency", defaults.DownloadConcurrency)
	v.SetDefault("emit_interval", defaults.EmitInterval)
	v.SetDefault("event_buffer", defaults.EventBuffer)
	v.SetDefault("download_dir", defaults.DownloadDir)
	v.SetDefault("log_level", defaults.LogLevel)

	cfg := NewDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is valid.
func (c *Config) Validate() error {
	if c.UploadConcurrency < 0 {
		return ErrInvalidUploadConcurrency
	}
	if c.DownloadConcurrency < 0 {
		return ErrInvalidDownloadConcurrency
	}
	if c.EmitInterval < 0 {
		return ErrInvalidEmitInterval
	}
	if c.EventBuffer < 0 {
		return ErrInvalidEventBuffer
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}
