// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package autoapply

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cartographus/internal/mediaserver"
	"github.com/tomtom215/cartographus/internal/models"
)

type fakeStore struct {
	mu          sync.Mutex
	issues      []models.Issue
	suggestions map[string][]models.Suggestion
	applied     map[string]bool
	selected    map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{suggestions: make(map[string][]models.Suggestion), applied: make(map[string]bool), selected: make(map[string]bool)}
}

func (f *fakeStore) ListPendingIssues(_ context.Context, scanID string) ([]models.Issue, error) {
	if scanID == "" {
		return f.issues, nil
	}
	var out []models.Issue
	for _, i := range f.issues {
		if i.ScanID == scanID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSuggestions(_ context.Context, issueID string) ([]models.Suggestion, error) {
	return f.suggestions[issueID], nil
}

func (f *fakeStore) MarkIssueApplied(_ context.Context, issueID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied[issueID] = true
	return nil
}

func (f *fakeStore) SelectSuggestion(_ context.Context, suggestionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected[suggestionID] = true
	return nil
}

func waitForCompletion(t *testing.T, engine *Engine, total int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		snap := engine.Snapshot()
		if snap.Processed >= total {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("run did not complete in time, snapshot = %+v", snap)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAutoApplyPicksTopScoredSuggestion(t *testing.T) {
	var uploadedURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploadedURL = r.URL.Query().Get("url")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := mediaserver.New(srv.URL, "token")
	store := newFakeStore()
	store.issues = []models.Issue{{ID: "issue-1", ItemKey: "100", Defect: models.DefectNoPoster, Status: models.IssueStatusPending}}
	store.suggestions["issue-1"] = []models.Suggestion{
		{ID: "s-low", Score: 40, ArtworkKind: models.ArtworkPoster, ImageURL: "http://low"},
		{ID: "s-high", Score: 90, ArtworkKind: models.ArtworkPoster, ImageURL: "http://high"},
	}

	engine := New(store, client)
	if err := engine.Start(context.Background(), Options{MinScore: 50}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForCompletion(t, engine, 1)

	if uploadedURL != "http://high" {
		t.Errorf("uploadedURL = %q, want http://high (the higher-scored suggestion)", uploadedURL)
	}
	if !store.applied["issue-1"] {
		t.Error("issue-1 was not marked applied")
	}
	if !store.selected["s-high"] {
		t.Error("s-high was not marked selected")
	}
	if store.selected["s-low"] {
		t.Error("s-low should not have been selected")
	}
}

func TestAutoApplySkipsBelowMinScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not have been called for a below-threshold suggestion")
	}))
	defer srv.Close()

	client := mediaserver.New(srv.URL, "token")
	store := newFakeStore()
	store.issues = []models.Issue{{ID: "issue-1", ItemKey: "100", Defect: models.DefectNoPoster}}
	store.suggestions["issue-1"] = []models.Suggestion{{ID: "s1", Score: 10, ArtworkKind: models.ArtworkPoster}}

	engine := New(store, client)
	if err := engine.Start(context.Background(), Options{MinScore: 50}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForCompletion(t, engine, 1)

	if engine.Snapshot().Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", engine.Snapshot().Skipped)
	}
}

func TestAutoApplySkipsUnmatchedWhenConfigured(t *testing.T) {
	client := mediaserver.New("http://unused.invalid", "token")
	store := newFakeStore()
	store.issues = []models.Issue{{ID: "issue-1", Defect: models.DefectNoMatch}}

	engine := New(store, client)
	if err := engine.Start(context.Background(), Options{SkipUnmatched: true}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForCompletion(t, engine, 1)

	if engine.Snapshot().Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", engine.Snapshot().Skipped)
	}
}

func TestStartWhileRunningReturnsAlreadyRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := mediaserver.New(srv.URL, "token")
	store := newFakeStore()
	store.issues = []models.Issue{{ID: "issue-1", ItemKey: "100", Defect: models.DefectNoPoster}}
	store.suggestions["issue-1"] = []models.Suggestion{{ID: "s1", Score: 90, ArtworkKind: models.ArtworkPoster}}

	engine := New(store, client)
	if err := engine.Start(context.Background(), Options{}); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	if err := engine.Start(context.Background(), Options{}); err != ErrAlreadyRunning {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}
