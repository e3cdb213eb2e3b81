// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomtom215/cartographus/internal/models"
)

// GetConfigEntry returns one key/value row. Implements configstore.Backend.
func (db *DB) GetConfigEntry(ctx context.Context, key string) (models.ConfigEntry, bool, error) {
	var entry models.ConfigEntry
	err := db.conn.QueryRowContext(ctx, `SELECT key, value, encrypted FROM config_entries WHERE key = ?`, key).
		Scan(&entry.Key, &entry.Value, &entry.Encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ConfigEntry{}, false, nil
	}
	if err != nil {
		return models.ConfigEntry{}, false, fmt.Errorf("database: get config entry: %w", err)
	}
	return entry, true, nil
}

// PutConfigEntry upserts one key/value row. Implements configstore.Backend.
func (db *DB) PutConfigEntry(ctx context.Context, entry models.ConfigEntry) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO config_entries (key, value, encrypted) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, encrypted = EXCLUDED.encrypted`,
		entry.Key, entry.Value, entry.Encrypted)
	if err != nil {
		return fmt.Errorf("database: put config entry: %w", err)
	}
	return nil
}
