// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cartographus/internal/detector"
	"github.com/tomtom215/cartographus/internal/edition"
	"github.com/tomtom215/cartographus/internal/mediaserver"
	"github.com/tomtom215/cartographus/internal/models"
)

type fakeStore struct {
	mu          sync.Mutex
	scans       map[string]*models.Scan
	events      []models.ScanEvent
	issues      []models.Issue
	suggestions []models.Suggestion
	editionCf   models.EditionConfig
}

func newFakeStore() *fakeStore {
	return &fakeStore{scans: make(map[string]*models.Scan)}
}

func (f *fakeStore) CreateScan(_ context.Context, s models.Scan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans[s.ID] = &s
	return nil
}

func (f *fakeStore) SetScanTotal(_ context.Context, scanID string, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans[scanID].Total = total
	return nil
}

func (f *fakeStore) AppendScanEvent(_ context.Context, event models.ScanEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeStore) SaveCheckpoint(_ context.Context, scanID string, processed, issuesFound, editionsUpdated int, currentLibrary string, _ models.Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.scans[scanID]
	s.Processed, s.IssuesFound, s.EditionsUpdated, s.CurrentLibrary = processed, issuesFound, editionsUpdated, currentLibrary
	return nil
}

func (f *fakeStore) CreateIssue(_ context.Context, issue models.Issue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues = append(f.issues, issue)
	return nil
}

func (f *fakeStore) CompleteScan(_ context.Context, scanID string, processed, issuesFound, editionsUpdated int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.scans[scanID]
	s.Status = models.ScanStatusCompleted
	s.Processed, s.IssuesFound, s.EditionsUpdated = processed, issuesFound, editionsUpdated
	return nil
}

func (f *fakeStore) CancelScan(_ context.Context, scanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans[scanID].Status = models.ScanStatusCancelled
	return nil
}

func (f *fakeStore) PauseScan(_ context.Context, scanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans[scanID].Status = models.ScanStatusPaused
	return nil
}

func (f *fakeStore) ResumeScan(_ context.Context, scanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans[scanID].Status = models.ScanStatusRunning
	return nil
}

func (f *fakeStore) FailScan(_ context.Context, scanID string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans[scanID].Status = models.ScanStatusFailed
	return nil
}

func (f *fakeStore) GetEditionConfig(_ context.Context) (models.EditionConfig, error) {
	return f.editionCf, nil
}

func (f *fakeStore) ListInterruptedScans(_ context.Context) ([]models.Scan, error) { return nil, nil }

func (f *fakeStore) DiscardScan(_ context.Context, scanID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans[scanID].Status = models.ScanStatusCancelled
	return nil
}

func (f *fakeStore) CreateSuggestion(_ context.Context, s models.Suggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestions = append(f.suggestions, s)
	return nil
}

func (f *fakeStore) ReplaceSuggestions(_ context.Context, issueID string, suggestions []models.Suggestion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.suggestions[:0]
	for _, s := range f.suggestions {
		if s.IssueID != issueID {
			kept = append(kept, s)
		}
	}
	f.suggestions = append(kept, suggestions...)
	return nil
}

type fakeFetcher struct{}

func (fakeFetcher) FetchImage(_ context.Context, _ string) ([]byte, error) { return nil, fmt.Errorf("no image") }

func noopDecode(_ context.Context, _ []byte) (int, int, error) { return 0, 0, fmt.Errorf("no decode") }

// newTestServer serves a Plex-shaped MediaContainer, one library with two
// unmatched movies (so each produces a no_match Issue and nothing else).
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"MediaContainer": map[string]any{
				"Directory": []map[string]any{{"key": "1", "type": "movie", "title": "Movies"}},
			},
		})
	})
	mux.HandleFunc("/library/sections/1/all", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"MediaContainer": map[string]any{
				"totalSize": 2,
				"Metadata": []map[string]any{
					{"ratingKey": "100", "title": "Movie One", "type": "movie", "guid": "local://100"},
					{"ratingKey": "101", "title": "Movie Two", "type": "movie", "guid": "local://101"},
				},
			},
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return httptest.NewServer(mux)
}

func TestScanCompletesAndFindsNoMatchIssues(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client := mediaserver.New(srv.URL, "token")
	store := newFakeStore()
	editionEngine := edition.NewEngine(client, nil)
	engine := New(store, client, fakeFetcher{}, noopDecode, editionEngine, nil)

	scanID, err := engine.Start(context.Background(), StartConfig{Kind: models.ScanKindArtwork, Rules: detector.DefaultRules()})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		store.mu.Lock()
		status := store.scans[scanID].Status
		store.mu.Unlock()
		if status.IsTerminal() {
			if status != models.ScanStatusCompleted {
				t.Fatalf("scan ended with status %q, want completed", status)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("scan did not complete in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.issues) != 2 {
		t.Fatalf("len(issues) = %d, want 2", len(store.issues))
	}
	for _, issue := range store.issues {
		if issue.Defect != models.DefectNoMatch {
			t.Errorf("issue.Defect = %q, want no_match", issue.Defect)
		}
	}
}

func TestStartWhileRunningReturnsAlreadyRunning(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond) // widen the window the second Start races against
		_ = json.NewEncoder(w).Encode(map[string]any{
			"MediaContainer": map[string]any{
				"Directory": []map[string]any{{"key": "1", "type": "movie", "title": "Movies"}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := mediaserver.New(srv.URL, "token")
	store := newFakeStore()
	editionEngine := edition.NewEngine(client, nil)
	engine := New(store, client, fakeFetcher{}, noopDecode, editionEngine, nil)

	if _, err := engine.Start(context.Background(), StartConfig{Kind: models.ScanKindArtwork}); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if _, err := engine.Start(context.Background(), StartConfig{Kind: models.ScanKindArtwork}); err != ErrAlreadyRunning {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestPauseGateBlocksThenResumeUnblocks(t *testing.T) {
	gate := newPauseGate()
	gate.pause()

	done := make(chan error, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	go func() { done <- gate.wait(ctx) }()

	select {
	case <-done:
		t.Fatal("wait() returned before resume while gate was paused")
	case <-time.After(10 * time.Millisecond):
	}

	gate.resume()
	if err := <-done; err != nil {
		t.Errorf("wait() after resume error = %v", err)
	}
}
