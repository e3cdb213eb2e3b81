// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package autoapply is the Auto-Apply Engine: it walks pending Issues,
// picks each one's top-scored Suggestion, and writes it to the media
// server when the score clears a configured floor.
package autoapply

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/cartographus/internal/eventbus"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/mediaserver"
	"github.com/tomtom215/cartographus/internal/models"
)

// ErrAlreadyRunning is returned by Start when a run is already live.
var ErrAlreadyRunning = errors.New("autoapply: already running")

// Store is the persistence the Auto-Apply Engine needs.
type Store interface {
	ListPendingIssues(ctx context.Context, scanID string) ([]models.Issue, error)
	ListSuggestions(ctx context.Context, issueID string) ([]models.Suggestion, error)
	MarkIssueApplied(ctx context.Context, issueID string) error
	SelectSuggestion(ctx context.Context, suggestionID string) error
}

// Options configures one Start call.
type Options struct {
	ScanID        string // optional; empty means every scan
	SkipUnmatched bool
	MinScore      int
}

// Progress is a point-in-time snapshot, and the shape broadcast on the
// event bus.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Applied   int `json:"applied"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Engine runs at most one auto-apply pass at a time, process-wide.
type Engine struct {
	store  Store
	client *mediaserver.Client
	bus    *eventbus.Bus

	mu        sync.Mutex
	running   bool
	cancelled atomic.Bool
	progress  Progress
}

// New constructs an Auto-Apply Engine.
func New(store Store, client *mediaserver.Client) *Engine {
	return &Engine{store: store, client: client, bus: eventbus.New()}
}

// Snapshot returns the current progress.
func (e *Engine) Snapshot() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}

// Subscribe registers a new event-bus subscriber seeded with the current
// progress.
func (e *Engine) Subscribe() *eventbus.Subscriber {
	return e.bus.Subscribe(eventbus.Event{Data: e.Snapshot()})
}

// Unsubscribe removes a subscriber.
func (e *Engine) Unsubscribe(sub *eventbus.Subscriber) { e.bus.Unsubscribe(sub) }

// EventBus exposes the underlying bus, for transports (WebSocket) that need
// to manage their own subscription lifecycle rather than going through
// Subscribe/Unsubscribe.
func (e *Engine) EventBus() *eventbus.Bus { return e.bus }

// Cancel requests the live run stop between items.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

// Start launches a run in the background and returns immediately.
func (e *Engine) Start(ctx context.Context, opts Options) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.cancelled.Store(false)
	e.progress = Progress{}
	e.mu.Unlock()

	go e.run(context.Background(), opts)
	return nil
}

func (e *Engine) run(ctx context.Context, opts Options) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Msg("autoapply: run panicked")
		}
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		e.bus.Publish(eventbus.Event{Type: "completed", Data: e.Snapshot()})
	}()

	issues, err := e.store.ListPendingIssues(ctx, opts.ScanID)
	if err != nil {
		logging.Error().Err(err).Msg("autoapply: list pending issues failed")
		return
	}

	e.mu.Lock()
	e.progress.Total = len(issues)
	e.mu.Unlock()
	e.bus.Publish(eventbus.Event{Type: "started", Data: e.Snapshot()})

	for _, issue := range issues {
		if e.cancelled.Load() {
			break
		}
		e.applyOne(ctx, issue, opts)
		e.bus.Publish(eventbus.Event{Type: "progress", Data: e.Snapshot()})
	}
}

func (e *Engine) applyOne(ctx context.Context, issue models.Issue, opts Options) {
	defer func() {
		e.mu.Lock()
		e.progress.Processed++
		e.mu.Unlock()
	}()

	if opts.SkipUnmatched && issue.Defect == models.DefectNoMatch {
		e.incr(&e.progress.Skipped)
		return
	}

	suggestions, err := e.store.ListSuggestions(ctx, issue.ID)
	if err != nil {
		logging.Warn().Err(err).Str("issue_id", issue.ID).Msg("autoapply: list suggestions failed")
		e.incr(&e.progress.Failed)
		return
	}
	if len(suggestions) == 0 {
		e.incr(&e.progress.Skipped)
		return
	}

	sort.SliceStable(suggestions, func(i, j int) bool { return suggestions[i].Score > suggestions[j].Score })
	best := suggestions[0]
	if best.Score < opts.MinScore {
		e.incr(&e.progress.Skipped)
		return
	}

	var applyErr error
	switch best.ArtworkKind {
	case models.ArtworkPoster:
		if applyErr = e.client.UploadPoster(ctx, issue.ItemKey, best.ImageURL); applyErr == nil {
			applyErr = e.client.LockPoster(ctx, issue.ItemKey)
		}
	case models.ArtworkBackground:
		if applyErr = e.client.UploadBackground(ctx, issue.ItemKey, best.ImageURL); applyErr == nil {
			applyErr = e.client.LockBackground(ctx, issue.ItemKey)
		}
	default:
		e.incr(&e.progress.Skipped)
		return
	}

	if applyErr != nil {
		logging.Warn().Err(applyErr).Str("issue_id", issue.ID).Msg("autoapply: apply failed")
		e.incr(&e.progress.Failed)
		return
	}

	if err := e.store.SelectSuggestion(ctx, best.ID); err != nil {
		logging.Warn().Err(err).Str("suggestion_id", best.ID).Msg("autoapply: mark suggestion selected failed")
	}
	if err := e.store.MarkIssueApplied(ctx, issue.ID); err != nil {
		logging.Warn().Err(err).Str("issue_id", issue.ID).Msg("autoapply: mark issue applied failed")
		e.incr(&e.progress.Failed)
		return
	}
	e.incr(&e.progress.Applied)
}

func (e *Engine) incr(field *int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	*field++
}
