// Package api serves the handscan JSON API over echo. Routes live under
// /api/v1 and identify the caller by the X-Install-Id header.
package api

import (
	"fmt"
	"time"

	"github.com/handscan/handscan/internal/conf"
	"github.com/handscan/handscan/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBodyLimit       = "1M"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port int

	AllowedOrigins []string // CORS allowed origins

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string // e.g. "1M"

	// MetricsPath is where Prometheus metrics are served; empty disables it.
	MetricsPath string

	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            8080,
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
	}
}

// ConfigFromSettings creates a Config from the application settings. Zero
// values keep the defaults.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	server := settings.Server

	cfg.Host = server.Host
	if server.Port != 0 {
		cfg.Port = server.Port
	}
	if len(server.CORSOrigins) > 0 {
		cfg.AllowedOrigins = server.CORSOrigins
	}
	if server.ReadTimeout > 0 {
		cfg.ReadTimeout = server.ReadTimeout
	}
	if server.WriteTimeout > 0 {
		cfg.WriteTimeout = server.WriteTimeout
	}
	if server.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = server.ShutdownTimeout
	}
	if server.BodyLimit != "" {
		cfg.BodyLimit = server.BodyLimit
	}
	if settings.Metrics.Enabled {
		cfg.MetricsPath = settings.Metrics.Path
	}
	cfg.Debug = settings.Debug

	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.BodyLimit == "" {
		return fmt.Errorf("body limit is required")
	}
	return nil
}

// Address returns the address the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	metrics := "disabled"
	if c.MetricsPath != "" {
		metrics = c.MetricsPath
	}
	return fmt.Sprintf("Server Config: address=%s, metrics=%s, debug=%v",
		c.Address(), metrics, c.Debug)
}
