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

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/models"
)

// ListPendingIssues returns every Issue with status pending, optionally
// scoped to one scan. Implements autoapply.Store.
func (db *DB) ListPendingIssues(ctx context.Context, scanID string) ([]models.Issue, error) {
	query := `
		SELECT id, scan_id, item_key, item_guid, title, year, media_kind, defect, status, library, external_ids, details, created_at, resolved_at
		FROM issues WHERE status = ?`
	args := []any{models.IssueStatusPending}
	if scanID != "" {
		query += ` AND scan_id = ?`
		args = append(args, scanID)
	}
	query += ` ORDER BY created_at`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: list pending issues: %w", err)
	}
	defer rows.Close()
	return scanIssueRows(rows)
}

// ListIssues returns every Issue for a scan, regardless of status, for the
// control API's issue list endpoint.
func (db *DB) ListIssues(ctx context.Context, scanID string) ([]models.Issue, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, scan_id, item_key, item_guid, title, year, media_kind, defect, status, library, external_ids, details, created_at, resolved_at
		FROM issues WHERE scan_id = ? ORDER BY created_at`, scanID)
	if err != nil {
		return nil, fmt.Errorf("database: list issues: %w", err)
	}
	defer rows.Close()
	return scanIssueRows(rows)
}

// GetIssue returns one Issue by id.
func (db *DB) GetIssue(ctx context.Context, issueID string) (models.Issue, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, scan_id, item_key, item_guid, title, year, media_kind, defect, status, library, external_ids, details, created_at, resolved_at
		FROM issues WHERE id = ?`, issueID)
	if err != nil {
		return models.Issue{}, fmt.Errorf("database: get issue: %w", err)
	}
	defer rows.Close()
	issues, err := scanIssueRows(rows)
	if err != nil {
		return models.Issue{}, err
	}
	if len(issues) == 0 {
		return models.Issue{}, sql.ErrNoRows
	}
	return issues[0], nil
}

// SetIssueStatus transitions an Issue's disposition (accept/reject/apply).
func (db *DB) SetIssueStatus(ctx context.Context, issueID string, status models.IssueStatus) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE issues SET status = ?, resolved_at = ? WHERE id = ?`, status, time.Now(), issueID)
	if err != nil {
		return fmt.Errorf("database: set issue status: %w", err)
	}
	return nil
}

// MarkIssueApplied marks an Issue resolved by an applied Suggestion.
func (db *DB) MarkIssueApplied(ctx context.Context, issueID string) error {
	return db.SetIssueStatus(ctx, issueID, models.IssueStatusApplied)
}

func scanIssueRows(rows *sql.Rows) ([]models.Issue, error) {
	var out []models.Issue
	for rows.Next() {
		var issue models.Issue
		var externalIDs string
		if err := rows.Scan(&issue.ID, &issue.ScanID, &issue.ItemKey, &issue.ItemGUID, &issue.Title, &issue.Year,
			&issue.MediaKind, &issue.Defect, &issue.Status, &issue.Library, &externalIDs, &issue.Details,
			&issue.CreatedAt, &issue.ResolvedAt); err != nil {
			return nil, fmt.Errorf("database: scan issue row: %w", err)
		}
		if err := json.Unmarshal([]byte(externalIDs), &issue.ExternalIDs); err != nil {
			return nil, fmt.Errorf("database: decode external_ids: %w", err)
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

// CreateSuggestion inserts one candidate image proposed for an Issue.
func (db *DB) CreateSuggestion(ctx context.Context, s models.Suggestion) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO suggestions (id, issue_id, source, artwork_kind, image_url, thumbnail_url, language, score, set_name, creator, is_selected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.IssueID, s.Source, s.ArtworkKind, s.ImageURL, s.ThumbnailURL, s.Language, s.Score, s.SetName, s.Creator, s.IsSelected)
	if err != nil {
		return fmt.Errorf("database: create suggestion: %w", err)
	}
	return nil
}

// ReplaceSuggestions atomically discards every existing Suggestion for an
// Issue and inserts the given set in its place. Used by the issue refresh
// operation, which re-runs the provider aggregator for a single issue.
func (db *DB) ReplaceSuggestions(ctx context.Context, issueID string, suggestions []models.Suggestion) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: replace suggestions: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM suggestions WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("database: replace suggestions: clear existing: %w", err)
	}
	for _, s := range suggestions {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.IssueID = issueID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO suggestions (id, issue_id, source, artwork_kind, image_url, thumbnail_url, language, score, set_name, creator, is_selected)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.IssueID, s.Source, s.ArtworkKind, s.ImageURL, s.ThumbnailURL, s.Language, s.Score, s.SetName, s.Creator, s.IsSelected); err != nil {
			return fmt.Errorf("database: replace suggestions: insert: %w", err)
		}
	}
	return tx.Commit()
}

// ListSuggestions returns every candidate image proposed for an Issue.
// Implements autoapply.Store.
func (db *DB) ListSuggestions(ctx context.Context, issueID string) ([]models.Suggestion, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, issue_id, source, artwork_kind, image_url, thumbnail_url, language, score, set_name, creator, is_selected
		FROM suggestions WHERE issue_id = ? ORDER BY score DESC`, issueID)
	if err != nil {
		return nil, fmt.Errorf("database: list suggestions: %w", err)
	}
	defer rows.Close()

	var out []models.Suggestion
	for rows.Next() {
		var s models.Suggestion
		if err := rows.Scan(&s.ID, &s.IssueID, &s.Source, &s.ArtworkKind, &s.ImageURL, &s.ThumbnailURL, &s.Language, &s.Score, &s.SetName, &s.Creator, &s.IsSelected); err != nil {
			return nil, fmt.Errorf("database: scan suggestion row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SelectSuggestion marks one Suggestion selected and deselects its siblings
// under the same Issue. Implements autoapply.Store.
func (db *DB) SelectSuggestion(ctx context.Context, suggestionID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("database: select suggestion: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var issueID string
	if err := tx.QueryRowContext(ctx, `SELECT issue_id FROM suggestions WHERE id = ?`, suggestionID).Scan(&issueID); err != nil {
		return fmt.Errorf("database: select suggestion: find issue: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE suggestions SET is_selected = false WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("database: select suggestion: clear siblings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE suggestions SET is_selected = true WHERE id = ?`, suggestionID); err != nil {
		return fmt.Errorf("database: select suggestion: set selected: %w", err)
	}
	return tx.Commit()
}
