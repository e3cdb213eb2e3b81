// Package config loads the static process configuration: the values needed
// to start the daemon before the database is reachable (listen address,
// database path, log level, scheduler cadence). Operator-editable settings
// that live in the database (media server credentials, provider API keys,
// provider priority) belong to internal/configstore instead.
package config
