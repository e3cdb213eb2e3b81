// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where a config file is searched, in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cartographus/config.yaml",
	"/etc/cartographus/config.yml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/cartographus.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			CheckInterval:    30 * time.Second,
			MonitorPoll:      5 * time.Second,
			ExecutionTimeout: 2 * time.Hour,
		},
		EventBus: EventBusConfig{
			NATSEnabled: false,
			NATSURL:     "nats://127.0.0.1:4222",
			Subject:     "cartographus.events",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "console",
			Caller:    false,
			Timestamp: true,
		},
		Security: SecurityConfig{
			CORSOrigins: []string{"*"},
		},
	}
}

// sliceConfigPaths lists koanf paths that arrive from the environment as a
// single comma-separated string and must be split into a slice.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// LoadWithKoanf loads the static configuration in three layers: built-in
// defaults, an optional YAML file, then environment variables.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envKeyMappings maps environment variable names (lowercased) to koanf
// config paths. Env vars use underscores for both nesting and multi-word
// field names, so the mapping must be explicit rather than a blanket
// underscore-to-dot replacement.
var envKeyMappings = map[string]string{
	"server_host":          "server.host",
	"server_port":          "server.port",
	"server_read_timeout":  "server.read_timeout",
	"server_write_timeout": "server.write_timeout",

	"database_path":       "database.path",
	"database_max_memory": "database.max_memory",
	"database_threads":    "database.threads",

	"scheduler_enabled":           "scheduler.enabled",
	"scheduler_check_interval":    "scheduler.check_interval",
	"scheduler_monitor_poll":      "scheduler.monitor_poll",
	"scheduler_execution_timeout": "scheduler.execution_timeout",

	"eventbus_nats_enabled": "eventbus.nats_enabled",
	"eventbus_nats_url":     "eventbus.nats_url",
	"eventbus_subject":      "eventbus.subject",

	"log_level":     "logging.level",
	"log_format":    "logging.format",
	"log_caller":    "logging.caller",
	"log_timestamp": "logging.timestamp",

	"secret_key":   "security.secret_key",
	"cors_origins": "security.cors_origins",
}

// envTransformFunc maps environment variable names to koanf config paths,
// e.g. SERVER_PORT -> server.port, DATABASE_PATH -> database.path.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if mapped, ok := envKeyMappings[key]; ok {
		return mapped
	}
	return strings.ReplaceAll(key, "_", ".")
}
