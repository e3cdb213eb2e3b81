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
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/models"
)

// CreateScan inserts a new Scan row. Implements scan.Store.
func (db *DB) CreateScan(ctx context.Context, s models.Scan) error {
	var configSnapshot any
	if s.ConfigSnapshot != nil {
		configSnapshot = *s.ConfigSnapshot
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO scans (id, kind, status, created_at, total, processed, issues_found, editions_updated, current_library, current_item, triggered_by, config_snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Kind, s.Status, s.CreatedAt, s.Total, s.Processed, s.IssuesFound, s.EditionsUpdated, s.CurrentLibrary, s.CurrentItem, s.TriggeredBy, configSnapshot)
	if err != nil {
		return fmt.Errorf("database: create scan: %w", err)
	}
	return nil
}

// SetScanTotal updates the expected item count for a scan.
func (db *DB) SetScanTotal(ctx context.Context, scanID string, total int) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE scans SET total = ? WHERE id = ?`, total, scanID)
	if err != nil {
		return fmt.Errorf("database: set scan total: %w", err)
	}
	return nil
}

// AppendScanEvent appends one audit-trail row for a scan.
func (db *DB) AppendScanEvent(ctx context.Context, event models.ScanEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO scan_events (id, scan_id, kind, message, ts) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.ScanID, event.Kind, event.Message, event.Ts)
	if err != nil {
		return fmt.Errorf("database: append scan event: %w", err)
	}
	return nil
}

// SaveCheckpoint persists scan progress and its resumable checkpoint.
func (db *DB) SaveCheckpoint(ctx context.Context, scanID string, processed, issuesFound, editionsUpdated int, currentLibrary string, checkpoint models.Checkpoint) error {
	encoded, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("database: marshal checkpoint: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		UPDATE scans SET processed = ?, issues_found = ?, editions_updated = ?, current_library = ?, checkpoint = ?
		WHERE id = ?`,
		processed, issuesFound, editionsUpdated, currentLibrary, string(encoded), scanID)
	if err != nil {
		return fmt.Errorf("database: save checkpoint: %w", err)
	}
	return nil
}

// CreateIssue inserts one classified defect row.
func (db *DB) CreateIssue(ctx context.Context, issue models.Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	externalIDs, err := json.Marshal(issue.ExternalIDs)
	if err != nil {
		return fmt.Errorf("database: marshal external ids: %w", err)
	}
	var details any
	if issue.Details != nil {
		details = *issue.Details
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO issues (id, scan_id, item_key, item_guid, title, year, media_kind, defect, status, library, external_ids, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		issue.ID, issue.ScanID, issue.ItemKey, issue.ItemGUID, issue.Title, issue.Year, issue.MediaKind, issue.Defect, issue.Status, issue.Library, string(externalIDs), details, issue.CreatedAt)
	if err != nil {
		return fmt.Errorf("database: create issue: %w", err)
	}
	return nil
}

// CompleteScan marks a scan completed with final counters.
func (db *DB) CompleteScan(ctx context.Context, scanID string, processed, issuesFound, editionsUpdated int) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE scans SET status = ?, processed = ?, issues_found = ?, editions_updated = ?, completed_at = ?
		WHERE id = ?`,
		models.ScanStatusCompleted, processed, issuesFound, editionsUpdated, time.Now(), scanID)
	if err != nil {
		return fmt.Errorf("database: complete scan: %w", err)
	}
	return nil
}

// CancelScan marks a scan cancelled.
func (db *DB) CancelScan(ctx context.Context, scanID string) error {
	return db.setScanStatus(ctx, scanID, models.ScanStatusCancelled)
}

// PauseScan marks a scan paused.
func (db *DB) PauseScan(ctx context.Context, scanID string) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE scans SET status = ?, paused_at = ? WHERE id = ?`, models.ScanStatusPaused, time.Now(), scanID)
	if err != nil {
		return fmt.Errorf("database: pause scan: %w", err)
	}
	return nil
}

// ResumeScan marks a paused scan running again.
func (db *DB) ResumeScan(ctx context.Context, scanID string) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE scans SET status = ?, paused_at = NULL WHERE id = ?`, models.ScanStatusRunning, scanID)
	if err != nil {
		return fmt.Errorf("database: resume scan: %w", err)
	}
	return nil
}

// FailScan marks a scan failed and records the reason.
func (db *DB) FailScan(ctx context.Context, scanID string, reason string) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE scans SET status = ?, completed_at = ?, fail_reason = ? WHERE id = ?`,
		models.ScanStatusFailed, time.Now(), reason, scanID)
	if err != nil {
		return fmt.Errorf("database: fail scan: %w", err)
	}
	return nil
}

func (db *DB) setScanStatus(ctx context.Context, scanID string, status models.ScanStatus) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE scans SET status = ?, completed_at = ? WHERE id = ?`, status, time.Now(), scanID)
	if err != nil {
		return fmt.Errorf("database: set scan status: %w", err)
	}
	return nil
}

// GetEditionConfig returns the singleton Edition Engine configuration.
func (db *DB) GetEditionConfig(ctx context.Context) (models.EditionConfig, error) {
	var enabledModules, moduleOrder, settings string
	err := db.conn.QueryRowContext(ctx, `SELECT enabled_modules, module_order, settings FROM edition_config WHERE id = 1`).
		Scan(&enabledModules, &moduleOrder, &settings)
	if errors.Is(err, sql.ErrNoRows) {
		return models.EditionConfig{}, nil
	}
	if err != nil {
		return models.EditionConfig{}, fmt.Errorf("database: get edition config: %w", err)
	}

	var cfg models.EditionConfig
	if err := json.Unmarshal([]byte(enabledModules), &cfg.EnabledModules); err != nil {
		return models.EditionConfig{}, fmt.Errorf("database: decode enabled_modules: %w", err)
	}
	if err := json.Unmarshal([]byte(moduleOrder), &cfg.ModuleOrder); err != nil {
		return models.EditionConfig{}, fmt.Errorf("database: decode module_order: %w", err)
	}
	if err := json.Unmarshal([]byte(settings), &cfg.Settings); err != nil {
		return models.EditionConfig{}, fmt.Errorf("database: decode settings: %w", err)
	}
	return cfg, nil
}

// PutEditionConfig replaces the singleton Edition Engine configuration.
func (db *DB) PutEditionConfig(ctx context.Context, cfg models.EditionConfig) error {
	enabledModules, err := json.Marshal(cfg.EnabledModules)
	if err != nil {
		return fmt.Errorf("database: marshal enabled_modules: %w", err)
	}
	moduleOrder, err := json.Marshal(cfg.ModuleOrder)
	if err != nil {
		return fmt.Errorf("database: marshal module_order: %w", err)
	}
	settings, err := json.Marshal(cfg.Settings)
	if err != nil {
		return fmt.Errorf("database: marshal settings: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO edition_config (id, enabled_modules, module_order, settings) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET enabled_modules = EXCLUDED.enabled_modules, module_order = EXCLUDED.module_order, settings = EXCLUDED.settings`,
		string(enabledModules), string(moduleOrder), string(settings))
	if err != nil {
		return fmt.Errorf("database: put edition config: %w", err)
	}
	return nil
}

// ListInterruptedScans returns every Scan still in a running or paused
// status, surfaced to the operator as recoverable after a restart.
func (db *DB) ListInterruptedScans(ctx context.Context) ([]models.Scan, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, kind, status, created_at, started_at, paused_at, completed_at, total, processed, issues_found, editions_updated, current_library, current_item, checkpoint, triggered_by, config_snapshot
		FROM scans WHERE status IN (?, ?) ORDER BY created_at DESC`,
		models.ScanStatusRunning, models.ScanStatusPaused)
	if err != nil {
		return nil, fmt.Errorf("database: list interrupted scans: %w", err)
	}
	defer rows.Close()
	return scanScanRows(rows)
}

// DiscardScan marks an interrupted scan cancelled without resuming it.
func (db *DB) DiscardScan(ctx context.Context, scanID string) error {
	return db.setScanStatus(ctx, scanID, models.ScanStatusCancelled)
}

// GetScanStatus returns the current status of scanID. Implements
// scheduler.Store's auto-commit monitor polling.
func (db *DB) GetScanStatus(ctx context.Context, scanID string) (models.ScanStatus, error) {
	var status models.ScanStatus
	err := db.conn.QueryRowContext(ctx, `SELECT status FROM scans WHERE id = ?`, scanID).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("database: get scan status: %w", err)
	}
	return status, nil
}

// GetScan returns one Scan by id, for the control API.
func (db *DB) GetScan(ctx context.Context, scanID string) (models.Scan, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, kind, status, created_at, started_at, paused_at, completed_at, total, processed, issues_found, editions_updated, current_library, current_item, checkpoint, triggered_by, config_snapshot
		FROM scans WHERE id = ?`, scanID)
	if err != nil {
		return models.Scan{}, fmt.Errorf("database: get scan: %w", err)
	}
	defer rows.Close()
	scans, err := scanScanRows(rows)
	if err != nil {
		return models.Scan{}, err
	}
	if len(scans) == 0 {
		return models.Scan{}, sql.ErrNoRows
	}
	return scans[0], nil
}

func scanScanRows(rows *sql.Rows) ([]models.Scan, error) {
	var out []models.Scan
	for rows.Next() {
		var s models.Scan
		if err := rows.Scan(&s.ID, &s.Kind, &s.Status, &s.CreatedAt, &s.StartedAt, &s.PausedAt, &s.CompletedAt,
			&s.Total, &s.Processed, &s.IssuesFound, &s.EditionsUpdated, &s.CurrentLibrary, &s.CurrentItem,
			&s.Checkpoint, &s.TriggeredBy, &s.ConfigSnapshot); err != nil {
			return nil, fmt.Errorf("database: scan scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
