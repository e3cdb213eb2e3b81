// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/models"
)

// testDBSemaphore limits concurrent database creation to prevent resource
// exhaustion under parallel test runs; DuckDB's CGO calls can hang when
// many connections open at once.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	cfg := &config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"}

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		db, err := New(cfg)
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() { _ = res.db.Close() })
		return res.db
	case <-time.After(30 * time.Second):
		t.Fatal("Timeout: database creation took longer than 30s")
		return nil
	}
}

func TestCreateAndGetScan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	scan := models.Scan{
		ID:        uuid.NewString(),
		Kind:      models.ScanKindArtwork,
		Status:    models.ScanStatusRunning,
		CreatedAt: time.Now(),
	}
	if err := db.CreateScan(ctx, scan); err != nil {
		t.Fatalf("CreateScan() error = %v", err)
	}

	got, err := db.GetScan(ctx, scan.ID)
	if err != nil {
		t.Fatalf("GetScan() error = %v", err)
	}
	if got.Status != models.ScanStatusRunning {
		t.Errorf("Status = %q, want running", got.Status)
	}
}

func TestCompleteScanMarksTerminal(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	scanID := uuid.NewString()
	if err := db.CreateScan(ctx, models.Scan{ID: scanID, Kind: models.ScanKindArtwork, Status: models.ScanStatusRunning, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateScan() error = %v", err)
	}
	if err := db.CompleteScan(ctx, scanID, 10, 2, 1); err != nil {
		t.Fatalf("CompleteScan() error = %v", err)
	}

	status, err := db.GetScanStatus(ctx, scanID)
	if err != nil {
		t.Fatalf("GetScanStatus() error = %v", err)
	}
	if status != models.ScanStatusCompleted {
		t.Errorf("status = %q, want completed", status)
	}
}

func TestListInterruptedScansExcludesTerminal(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	running := uuid.NewString()
	completed := uuid.NewString()
	if err := db.CreateScan(ctx, models.Scan{ID: running, Kind: models.ScanKindArtwork, Status: models.ScanStatusRunning, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateScan(running) error = %v", err)
	}
	if err := db.CreateScan(ctx, models.Scan{ID: completed, Kind: models.ScanKindArtwork, Status: models.ScanStatusCompleted, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateScan(completed) error = %v", err)
	}

	interrupted, err := db.ListInterruptedScans(ctx)
	if err != nil {
		t.Fatalf("ListInterruptedScans() error = %v", err)
	}
	if len(interrupted) != 1 || interrupted[0].ID != running {
		t.Errorf("ListInterruptedScans() = %+v, want only %q", interrupted, running)
	}
}

func TestIssueAndSuggestionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	scanID := uuid.NewString()
	if err := db.CreateScan(ctx, models.Scan{ID: scanID, Kind: models.ScanKindArtwork, Status: models.ScanStatusRunning, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateScan() error = %v", err)
	}

	issue := models.Issue{
		ID: uuid.NewString(), ScanID: scanID, ItemKey: "100", MediaKind: models.MediaKindMovie,
		Defect: models.DefectNoPoster, Status: models.IssueStatusPending, ExternalIDs: []string{"tmdb://1"}, CreatedAt: time.Now(),
	}
	if err := db.CreateIssue(ctx, issue); err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}

	pending, err := db.ListPendingIssues(ctx, scanID)
	if err != nil {
		t.Fatalf("ListPendingIssues() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ExternalIDs[0] != "tmdb://1" {
		t.Fatalf("ListPendingIssues() = %+v", pending)
	}

	s1 := models.Suggestion{ID: uuid.NewString(), IssueID: issue.ID, Source: models.SourceFanart, ArtworkKind: models.ArtworkPoster, Score: 40}
	s2 := models.Suggestion{ID: uuid.NewString(), IssueID: issue.ID, Source: models.SourceTMDB, ArtworkKind: models.ArtworkPoster, Score: 90}
	if err := db.CreateSuggestion(ctx, s1); err != nil {
		t.Fatalf("CreateSuggestion(s1) error = %v", err)
	}
	if err := db.CreateSuggestion(ctx, s2); err != nil {
		t.Fatalf("CreateSuggestion(s2) error = %v", err)
	}

	suggestions, err := db.ListSuggestions(ctx, issue.ID)
	if err != nil {
		t.Fatalf("ListSuggestions() error = %v", err)
	}
	if len(suggestions) != 2 || suggestions[0].ID != s2.ID {
		t.Fatalf("ListSuggestions() = %+v, want s2 first (highest score)", suggestions)
	}

	if err := db.SelectSuggestion(ctx, s2.ID); err != nil {
		t.Fatalf("SelectSuggestion() error = %v", err)
	}
	if err := db.MarkIssueApplied(ctx, issue.ID); err != nil {
		t.Fatalf("MarkIssueApplied() error = %v", err)
	}

	stillPending, err := db.ListPendingIssues(ctx, scanID)
	if err != nil {
		t.Fatalf("ListPendingIssues() after apply error = %v", err)
	}
	if len(stillPending) != 0 {
		t.Errorf("ListPendingIssues() after apply = %+v, want empty", stillPending)
	}
}

func TestReplaceSuggestionsIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	scanID := uuid.NewString()
	if err := db.CreateScan(ctx, models.Scan{ID: scanID, Kind: models.ScanKindArtwork, Status: models.ScanStatusRunning, CreatedAt: time.Now()}); err != nil {
		t.Fatalf("CreateScan() error = %v", err)
	}
	issue := models.Issue{
		ID: uuid.NewString(), ScanID: scanID, ItemKey: "200", MediaKind: models.MediaKindMovie,
		Defect: models.DefectNoPoster, Status: models.IssueStatusPending, CreatedAt: time.Now(),
	}
	if err := db.CreateIssue(ctx, issue); err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}

	stale := models.Suggestion{ID: uuid.NewString(), IssueID: issue.ID, Source: models.SourceFanart, ArtworkKind: models.ArtworkPoster, Score: 10}
	if err := db.CreateSuggestion(ctx, stale); err != nil {
		t.Fatalf("CreateSuggestion(stale) error = %v", err)
	}

	fresh := []models.Suggestion{
		{ID: uuid.NewString(), IssueID: issue.ID, Source: models.SourceTMDB, ArtworkKind: models.ArtworkPoster, Score: 70},
		{ID: uuid.NewString(), IssueID: issue.ID, Source: models.SourceMediux, ArtworkKind: models.ArtworkPoster, Score: 95},
	}
	if err := db.ReplaceSuggestions(ctx, issue.ID, fresh); err != nil {
		t.Fatalf("ReplaceSuggestions() error = %v", err)
	}

	got, err := db.ListSuggestions(ctx, issue.ID)
	if err != nil {
		t.Fatalf("ListSuggestions() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != fresh[1].ID {
		t.Fatalf("ListSuggestions() after replace = %+v, want only the two fresh suggestions, highest score first", got)
	}
	for _, s := range got {
		if s.ID == stale.ID {
			t.Errorf("ListSuggestions() still contains stale suggestion %q after ReplaceSuggestions", stale.ID)
		}
	}
}

func TestEditionBackupFirstWriteOnly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	itemKey := "100"
	if _, ok, err := db.GetEditionBackup(ctx, itemKey); err != nil || ok {
		t.Fatalf("GetEditionBackup() before creation = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	if err := db.CreateEditionBackup(ctx, models.EditionBackup{ItemKey: itemKey, OriginalEdition: "Theatrical", NewEdition: "Director's Cut . 4K", BackedUpAt: time.Now()}); err != nil {
		t.Fatalf("CreateEditionBackup() error = %v", err)
	}

	backup, ok, err := db.GetEditionBackup(ctx, itemKey)
	if err != nil || !ok {
		t.Fatalf("GetEditionBackup() after creation = (ok=%v, err=%v), want (true, nil)", ok, err)
	}
	if backup.OriginalEdition != "Theatrical" {
		t.Errorf("OriginalEdition = %q, want Theatrical", backup.OriginalEdition)
	}
}

func TestConfigEntryRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.PutConfigEntry(ctx, models.ConfigEntry{Key: "mediaserver.url", Value: "http://plex.local"}); err != nil {
		t.Fatalf("PutConfigEntry() error = %v", err)
	}
	entry, ok, err := db.GetConfigEntry(ctx, "mediaserver.url")
	if err != nil || !ok {
		t.Fatalf("GetConfigEntry() = (ok=%v, err=%v)", ok, err)
	}
	if entry.Value != "http://plex.local" {
		t.Errorf("Value = %q, want http://plex.local", entry.Value)
	}

	if err := db.PutConfigEntry(ctx, models.ConfigEntry{Key: "mediaserver.url", Value: "http://plex.updated"}); err != nil {
		t.Fatalf("PutConfigEntry() upsert error = %v", err)
	}
	entry, _, _ = db.GetConfigEntry(ctx, "mediaserver.url")
	if entry.Value != "http://plex.updated" {
		t.Errorf("Value after upsert = %q, want http://plex.updated", entry.Value)
	}
}

func TestScheduleCRUDAndLastRun(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	sched, err := db.CreateSchedule(ctx, models.Schedule{Name: "nightly", Enabled: true, CronExpression: "0 3 * * *", ScanKind: models.ScanKindBoth})
	if err != nil {
		t.Fatalf("CreateSchedule() error = %v", err)
	}

	enabled, err := db.ListEnabledSchedules(ctx)
	if err != nil {
		t.Fatalf("ListEnabledSchedules() error = %v", err)
	}
	if len(enabled) != 1 || enabled[0].ID != sched.ID {
		t.Fatalf("ListEnabledSchedules() = %+v", enabled)
	}

	now := time.Now()
	if err := db.UpdateScheduleLastRun(ctx, sched.ID, now); err != nil {
		t.Fatalf("UpdateScheduleLastRun() error = %v", err)
	}

	got, err := db.GetSchedule(ctx, sched.ID)
	if err != nil {
		t.Fatalf("GetSchedule() error = %v", err)
	}
	if got.LastRunAt == nil {
		t.Fatal("LastRunAt was not recorded")
	}

	if err := db.SetScheduleEnabled(ctx, sched.ID, false); err != nil {
		t.Fatalf("SetScheduleEnabled() error = %v", err)
	}
	enabled, _ = db.ListEnabledSchedules(ctx)
	if len(enabled) != 0 {
		t.Errorf("ListEnabledSchedules() after disable = %+v, want empty", enabled)
	}
}

func TestPingAndClose(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
