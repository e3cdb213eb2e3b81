// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import (
	"fmt"
	"time"
)

// Config holds the static process configuration loaded before the
// database is reachable. It is layered via koanf: built-in defaults,
// an optional YAML file, then environment variables (highest priority).
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	EventBus  EventBusConfig  `koanf:"eventbus"`
	Logging   LoggingConfig   `koanf:"logging"`
	Security  SecurityConfig  `koanf:"security"`
}

// ServerConfig configures the inbound HTTP control surface.
type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// DatabaseConfig configures the DuckDB-backed persistence engine.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// SchedulerConfig configures the cron-trigger and auto-commit monitor loops.
type SchedulerConfig struct {
	Enabled        bool          `koanf:"enabled"`
	CheckInterval  time.Duration `koanf:"check_interval"`
	MonitorPoll    time.Duration `koanf:"monitor_poll"`
	ExecutionTimeout time.Duration `koanf:"execution_timeout"`
}

// EventBusConfig configures the scan/auto-apply progress event transport.
type EventBusConfig struct {
	NATSEnabled bool   `koanf:"nats_enabled"`
	NATSURL     string `koanf:"nats_url"`
	Subject     string `koanf:"subject"`
}

// LoggingConfig configures the zerolog-backed global logger.
type LoggingConfig struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	Caller    bool   `koanf:"caller"`
	Timestamp bool   `koanf:"timestamp"`
}

// SecurityConfig configures the secrets-at-rest passphrase and CORS policy.
type SecurityConfig struct {
	SecretKey   string   `koanf:"secret_key"`
	CORSOrigins []string `koanf:"cors_origins"`
}

// Validate checks the loaded configuration for values the daemon cannot
// start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Security.SecretKey == "" {
		return fmt.Errorf("security.secret_key must not be empty: set SECURITY_SECRET_KEY")
	}
	if len(c.Security.SecretKey) < 16 {
		return fmt.Errorf("security.secret_key must be at least 16 characters")
	}
	if c.Scheduler.CheckInterval <= 0 {
		return fmt.Errorf("scheduler.check_interval must be positive")
	}
	return nil
}
