// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/models"
)

// ListEnabledSchedules returns every Schedule with enabled = true.
// Implements scheduler.Store.
func (db *DB) ListEnabledSchedules(ctx context.Context) ([]models.Schedule, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, enabled, cron_expression, scan_kind, config_snapshot, auto_commit, auto_commit_options, last_run_at, next_run_at
		FROM schedules WHERE enabled = true`)
	if err != nil {
		return nil, fmt.Errorf("database: list enabled schedules: %w", err)
	}
	defer rows.Close()
	return scanScheduleRows(rows)
}

// ListSchedules returns every Schedule, for the control API.
func (db *DB) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, enabled, cron_expression, scan_kind, config_snapshot, auto_commit, auto_commit_options, last_run_at, next_run_at
		FROM schedules ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("database: list schedules: %w", err)
	}
	defer rows.Close()
	return scanScheduleRows(rows)
}

// GetSchedule returns one Schedule by id.
func (db *DB) GetSchedule(ctx context.Context, id string) (models.Schedule, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, enabled, cron_expression, scan_kind, config_snapshot, auto_commit, auto_commit_options, last_run_at, next_run_at
		FROM schedules WHERE id = ?`, id)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("database: get schedule: %w", err)
	}
	defer rows.Close()
	schedules, err := scanScheduleRows(rows)
	if err != nil {
		return models.Schedule{}, err
	}
	if len(schedules) == 0 {
		return models.Schedule{}, sql.ErrNoRows
	}
	return schedules[0], nil
}

// CreateSchedule inserts a new Schedule.
func (db *DB) CreateSchedule(ctx context.Context, s models.Schedule) (models.Schedule, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO schedules (id, name, enabled, cron_expression, scan_kind, config_snapshot, auto_commit, auto_commit_options)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Enabled, s.CronExpression, s.ScanKind, s.ConfigSnapshot, s.AutoCommit, s.AutoCommitOptions)
	if err != nil {
		return models.Schedule{}, fmt.Errorf("database: create schedule: %w", err)
	}
	return s, nil
}

// SetScheduleEnabled flips a Schedule's enabled flag.
func (db *DB) SetScheduleEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE schedules SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("database: set schedule enabled: %w", err)
	}
	return nil
}

// DeleteSchedule removes a Schedule.
func (db *DB) DeleteSchedule(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("database: delete schedule: %w", err)
	}
	return nil
}

// UpdateScheduleLastRun records when a Schedule last fired. Implements
// scheduler.Store.
func (db *DB) UpdateScheduleLastRun(ctx context.Context, scheduleID string, lastRun time.Time) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE schedules SET last_run_at = ? WHERE id = ?`, lastRun, scheduleID)
	if err != nil {
		return fmt.Errorf("database: update schedule last run: %w", err)
	}
	return nil
}

// UpdateScheduleNextRun records a Schedule's next computed fire time, for
// display in the control API.
func (db *DB) UpdateScheduleNextRun(ctx context.Context, scheduleID string, nextRun time.Time) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE schedules SET next_run_at = ? WHERE id = ?`, nextRun, scheduleID)
	if err != nil {
		return fmt.Errorf("database: update schedule next run: %w", err)
	}
	return nil
}

func scanScheduleRows(rows *sql.Rows) ([]models.Schedule, error) {
	var out []models.Schedule
	for rows.Next() {
		var s models.Schedule
		if err := rows.Scan(&s.ID, &s.Name, &s.Enabled, &s.CronExpression, &s.ScanKind, &s.ConfigSnapshot,
			&s.AutoCommit, &s.AutoCommitOptions, &s.LastRunAt, &s.NextRunAt); err != nil {
			return nil, fmt.Errorf("database: scan schedule row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
