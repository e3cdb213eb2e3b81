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

	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/models"
)

// GetEditionBackup returns the backup for itemKey, if one was ever taken.
// Implements edition.BackupStore.
func (db *DB) GetEditionBackup(ctx context.Context, itemKey string) (models.EditionBackup, bool, error) {
	var b models.EditionBackup
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, item_key, title, original_edition, new_edition, backed_up_at, restored_at
		FROM edition_backups WHERE item_key = ?`, itemKey).
		Scan(&b.ID, &b.ItemKey, &b.Title, &b.OriginalEdition, &b.NewEdition, &b.BackedUpAt, &b.RestoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EditionBackup{}, false, nil
	}
	if err != nil {
		return models.EditionBackup{}, false, fmt.Errorf("database: get edition backup: %w", err)
	}
	return b, true, nil
}

// CreateEditionBackup inserts the first-ever backup for an item's edition
// title. Implements edition.BackupStore.
func (db *DB) CreateEditionBackup(ctx context.Context, backup models.EditionBackup) error {
	if backup.ID == "" {
		backup.ID = uuid.NewString()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO edition_backups (id, item_key, title, original_edition, new_edition, backed_up_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		backup.ID, backup.ItemKey, backup.Title, backup.OriginalEdition, backup.NewEdition, backup.BackedUpAt)
	if err != nil {
		return fmt.Errorf("database: create edition backup: %w", err)
	}
	return nil
}
