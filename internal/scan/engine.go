// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package scan is the Scan Engine: a process-wide singleton that walks
// media-server libraries looking for artwork defects and stale edition
// titles, persisting Issues and broadcasting progress as it goes.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/detector"
	"github.com/tomtom215/cartographus/internal/edition"
	"github.com/tomtom215/cartographus/internal/eventbus"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/mediaserver"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/providers"
)

// ErrAlreadyRunning is returned by Start when a scan is already live.
var ErrAlreadyRunning = errors.New("scan: a scan is already running")

// ErrNotRunning is returned by Pause/Resume/Cancel when there is no live
// scan, or the live scan is not in the state the operation requires.
var ErrNotRunning = errors.New("scan: no scan is currently running")

const defaultCheckpointInterval = 100
const progressBroadcastEvery = 5

// Store is the persistence the Scan Engine needs. internal/database
// implements it.
type Store interface {
	CreateScan(ctx context.Context, s models.Scan) error
	SetScanTotal(ctx context.Context, scanID string, total int) error
	AppendScanEvent(ctx context.Context, event models.ScanEvent) error
	SaveCheckpoint(ctx context.Context, scanID string, processed, issuesFound, editionsUpdated int, currentLibrary string, checkpoint models.Checkpoint) error
	CreateIssue(ctx context.Context, issue models.Issue) error
	CreateSuggestion(ctx context.Context, s models.Suggestion) error
	ReplaceSuggestions(ctx context.Context, issueID string, suggestions []models.Suggestion) error
	CompleteScan(ctx context.Context, scanID string, processed, issuesFound, editionsUpdated int) error
	CancelScan(ctx context.Context, scanID string) error
	PauseScan(ctx context.Context, scanID string) error
	ResumeScan(ctx context.Context, scanID string) error
	FailScan(ctx context.Context, scanID string, reason string) error
	GetEditionConfig(ctx context.Context) (models.EditionConfig, error)
	ListInterruptedScans(ctx context.Context) ([]models.Scan, error)
	DiscardScan(ctx context.Context, scanID string) error
}

// StartConfig parameterizes one scan run.
type StartConfig struct {
	Kind               models.ScanKind
	Libraries          []string // explicit library keys; empty means every video library
	TriggeredBy        string   // "manual" | "schedule:<id>"
	CheckpointInterval int      // default 100
	Rules              detector.Rules
	EditionEnabled     bool
	EditionSettings    edition.Settings
	ProviderPriority   []string // source names, most-preferred first
}

// Progress is a point-in-time snapshot of the live scan, also the shape
// broadcast on the event bus and returned by Snapshot.
type Progress struct {
	ScanID          string `json:"scan_id,omitempty"`
	Status          string `json:"status"`
	Processed       int    `json:"processed"`
	Total           int    `json:"total"`
	IssuesFound     int    `json:"issues_found"`
	EditionsUpdated int    `json:"editions_updated"`
	CurrentLibrary  string `json:"current_library,omitempty"`
	CurrentItem     string `json:"current_item,omitempty"`
}

type liveScan struct {
	scanID    string
	cancelled atomic.Bool
	gate      *pauseGate

	mu       sync.Mutex
	progress Progress
}

// Engine runs scans. Only one scan may be live process-wide, guarded by mu.
type Engine struct {
	store         Store
	client        *mediaserver.Client
	fetcher       detector.ImageFetcher
	decode        detector.Dimensions
	editionEngine *edition.Engine
	aggregator    *providers.Aggregator
	bus           *eventbus.Bus

	mu      sync.Mutex
	current *liveScan
}

// New constructs a Scan Engine. aggregator may be nil, in which case no
// Suggestions are ever generated and Issues are persisted defect-only.
func New(store Store, client *mediaserver.Client, fetcher detector.ImageFetcher, decode detector.Dimensions, editionEngine *edition.Engine, aggregator *providers.Aggregator) *Engine {
	return &Engine{
		store:         store,
		client:        client,
		fetcher:       fetcher,
		decode:        decode,
		editionEngine: editionEngine,
		aggregator:    aggregator,
		bus:           eventbus.New(),
	}
}

// Snapshot returns the current progress, or a status=idle snapshot if no
// scan is live.
func (e *Engine) Snapshot() Progress {
	e.mu.Lock()
	live := e.current
	e.mu.Unlock()
	if live == nil {
		return Progress{Status: "idle"}
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	return live.progress
}

// Subscribe registers a new event-bus subscriber, seeded with the current
// progress snapshot.
func (e *Engine) Subscribe() *eventbus.Subscriber {
	return e.bus.Subscribe(eventbus.Event{Data: e.Snapshot()})
}

// Unsubscribe removes a subscriber.
func (e *Engine) Unsubscribe(sub *eventbus.Subscriber) { e.bus.Unsubscribe(sub) }

// EventBus exposes the underlying bus, for transports (WebSocket) that need
// to manage their own subscription lifecycle rather than going through
// Subscribe/Unsubscribe.
func (e *Engine) EventBus() *eventbus.Bus { return e.bus }

// Start begins a new scan and returns its id immediately; execution
// continues on a background goroutine. Returns ErrAlreadyRunning if a scan
// is already live.
func (e *Engine) Start(ctx context.Context, cfg StartConfig) (string, error) {
	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return "", ErrAlreadyRunning
	}

	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = defaultCheckpointInterval
	}

	now := time.Now()
	s := models.Scan{
		ID:          uuid.NewString(),
		Kind:        cfg.Kind,
		Status:      models.ScanStatusRunning,
		CreatedAt:   now,
		StartedAt:   &now,
		TriggeredBy: cfg.TriggeredBy,
	}

	live := &liveScan{scanID: s.ID, gate: newPauseGate(), progress: Progress{ScanID: s.ID, Status: string(models.ScanStatusRunning)}}
	e.current = live
	e.mu.Unlock()

	if err := e.store.CreateScan(ctx, s); err != nil {
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
		return "", fmt.Errorf("scan: create scan record: %w", err)
	}
	e.appendEvent(context.Background(), s.ID, models.ScanEventStarted, "Scan started")
	e.bus.Publish(eventbus.Event{Type: eventbus.KindScanStarted, Data: Progress{ScanID: s.ID, Status: string(models.ScanStatusRunning)}})

	go e.run(context.Background(), live, cfg)

	return s.ID, nil
}

// Pause pauses the live scan. Returns ErrNotRunning if none is running.
func (e *Engine) Pause(ctx context.Context) error {
	live, err := e.requireStatus(string(models.ScanStatusRunning))
	if err != nil {
		return err
	}
	live.gate.pause()
	live.mu.Lock()
	live.progress.Status = string(models.ScanStatusPaused)
	live.mu.Unlock()

	if err := e.store.PauseScan(ctx, live.scanID); err != nil {
		logging.Warn().Err(err).Str("scan_id", live.scanID).Msg("scan: persist pause failed")
	}
	e.appendEvent(ctx, live.scanID, models.ScanEventPaused, "Scan paused by user.")
	e.bus.Publish(eventbus.Event{Type: eventbus.KindScanPaused, Data: e.Snapshot()})
	return nil
}

// Resume resumes a paused scan.
func (e *Engine) Resume(ctx context.Context) error {
	live, err := e.requireStatus(string(models.ScanStatusPaused))
	if err != nil {
		return err
	}
	live.gate.resume()
	live.mu.Lock()
	live.progress.Status = string(models.ScanStatusRunning)
	live.mu.Unlock()

	if err := e.store.ResumeScan(ctx, live.scanID); err != nil {
		logging.Warn().Err(err).Str("scan_id", live.scanID).Msg("scan: persist resume failed")
	}
	e.appendEvent(ctx, live.scanID, models.ScanEventResumed, "Scan resumed by user.")
	e.bus.Publish(eventbus.Event{Type: eventbus.KindScanResumed, Data: e.Snapshot()})
	return nil
}

// Cancel requests cancellation of the live scan; the run loop observes the
// flag between items and finalizes the scan as cancelled.
func (e *Engine) Cancel(_ context.Context) error {
	e.mu.Lock()
	live := e.current
	e.mu.Unlock()
	if live == nil {
		return ErrNotRunning
	}
	live.cancelled.Store(true)
	live.gate.resume() // unblock a paused scan so it can observe cancellation
	return nil
}

func (e *Engine) requireStatus(status string) (*liveScan, error) {
	e.mu.Lock()
	live := e.current
	e.mu.Unlock()
	if live == nil {
		return nil, ErrNotRunning
	}
	live.mu.Lock()
	current := live.progress.Status
	live.mu.Unlock()
	if current != status {
		return nil, ErrNotRunning
	}
	return live, nil
}

// ListInterrupted surfaces scans left `running`/`paused` by a prior crash.
func (e *Engine) ListInterrupted(ctx context.Context) ([]models.Scan, error) {
	return e.store.ListInterruptedScans(ctx)
}

// DiscardInterrupted transitions an interrupted scan straight to cancelled
// without resuming it.
func (e *Engine) DiscardInterrupted(ctx context.Context, scanID string) error {
	return e.store.DiscardScan(ctx, scanID)
}

func (e *Engine) appendEvent(ctx context.Context, scanID string, kind models.ScanEventKind, message string) {
	event := models.ScanEvent{ID: uuid.NewString(), ScanID: scanID, Kind: kind, Message: message, Ts: time.Now()}
	if err := e.store.AppendScanEvent(ctx, event); err != nil {
		logging.Warn().Err(err).Str("scan_id", scanID).Str("kind", string(kind)).Msg("scan: append event failed")
	}
}

// run executes the scan to completion, cancellation, or failure. It always
// clears e.current on return so a new scan can start.
func (e *Engine) run(ctx context.Context, live *liveScan, cfg StartConfig) {
	defer func() {
		if r := recover(); r != nil {
			e.failScan(ctx, live, fmt.Sprintf("panic: %v", r))
		}
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
	}()

	if err := e.execute(ctx, live, cfg); err != nil {
		if errors.Is(err, errCancelled) {
			return // already finalized inside execute
		}
		e.failScan(ctx, live, err.Error())
	}
}

var errCancelled = errors.New("scan: cancelled")

func (e *Engine) execute(ctx context.Context, live *liveScan, cfg StartConfig) error {
	editionCfg, err := e.store.GetEditionConfig(ctx)
	if err != nil {
		return fmt.Errorf("load edition config: %w", err)
	}

	libraries, err := e.resolveLibraries(ctx, cfg.Libraries)
	if err != nil {
		return fmt.Errorf("resolve libraries: %w", err)
	}

	type libraryItems struct {
		library mediaserver.Library
		items   []mediaserver.Item
	}
	var sets []libraryItems
	total := 0
	for _, lib := range libraries {
		if live.cancelled.Load() {
			break
		}
		items, err := e.client.ListAllItems(ctx, lib.Key)
		if err != nil {
			return fmt.Errorf("enumerate library %s: %w", lib.Key, err)
		}
		sets = append(sets, libraryItems{library: lib, items: items})
		total += len(items)
	}

	live.mu.Lock()
	live.progress.Total = total
	live.mu.Unlock()
	if err := e.store.SetScanTotal(ctx, live.scanID, total); err != nil {
		logging.Warn().Err(err).Str("scan_id", live.scanID).Msg("scan: persist total failed")
	}
	e.bus.Publish(eventbus.Event{Type: eventbus.KindScanProgress, Data: e.Snapshot()})

	det := detector.New(cfg.Rules, e.fetcher, e.decode, e.client)

	processed, issuesFound, editionsUpdated := 0, 0, 0
	runArtwork := cfg.Kind == models.ScanKindArtwork || cfg.Kind == models.ScanKindBoth
	runEdition := (cfg.Kind == models.ScanKindEdition || cfg.Kind == models.ScanKindBoth) && cfg.EditionEnabled

	for _, set := range sets {
		if live.cancelled.Load() {
			return e.finalizeCancelled(ctx, live)
		}

		live.mu.Lock()
		live.progress.CurrentLibrary = set.library.Title
		live.mu.Unlock()

		for _, item := range set.items {
			if live.cancelled.Load() {
				return e.finalizeCancelled(ctx, live)
			}
			if err := live.gate.wait(ctx); err != nil {
				return e.finalizeCancelled(ctx, live)
			}

			live.mu.Lock()
			live.progress.CurrentItem = item.Title
			live.mu.Unlock()

			if runArtwork {
				findings := det.Detect(ctx, item)
				for _, f := range findings {
					issue, err := e.persistIssue(ctx, live.scanID, set.library.Title, item, f)
					if err != nil {
						logging.Warn().Err(err).Str("item", item.Title).Msg("scan: persist issue failed")
						continue
					}
					issuesFound++
					e.generateSuggestions(ctx, issue, item, cfg.ProviderPriority)
				}
			}

			if runEdition && item.Type == "movie" {
				generated := e.editionEngine.Generate(item, editionCfg, cfg.EditionSettings)
				if generated != "" && generated != item.EditionTitle {
					if err := e.editionEngine.Apply(ctx, item, generated); err != nil {
						logging.Warn().Err(err).Str("item", item.Title).Msg("scan: apply edition failed")
					} else {
						editionsUpdated++
					}
				}
			}

			processed++
			live.mu.Lock()
			live.progress.Processed = processed
			live.progress.IssuesFound = issuesFound
			live.progress.EditionsUpdated = editionsUpdated
			live.mu.Unlock()

			if processed%cfg.CheckpointInterval == 0 {
				e.saveCheckpoint(ctx, live, processed, issuesFound, editionsUpdated, set.library.Title)
			}
			if processed%progressBroadcastEvery == 0 {
				e.bus.Publish(eventbus.Event{Type: eventbus.KindScanProgress, Data: e.Snapshot()})
			}
		}
	}

	return e.finalizeCompleted(ctx, live, processed, issuesFound, editionsUpdated)
}

func (e *Engine) resolveLibraries(ctx context.Context, explicit []string) ([]mediaserver.Library, error) {
	if len(explicit) == 0 {
		return e.client.ListLibraries(ctx)
	}
	all, err := e.client.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(explicit))
	for _, id := range explicit {
		want[id] = true
	}
	out := make([]mediaserver.Library, 0, len(explicit))
	for _, lib := range all {
		if want[lib.Key] {
			out = append(out, lib)
		}
	}
	return out, nil
}

func (e *Engine) persistIssue(ctx context.Context, scanID, library string, item mediaserver.Item, finding detector.Finding) (models.Issue, error) {
	var details *string
	if len(finding.Details) > 0 {
		b, err := json.Marshal(finding.Details)
		if err == nil {
			s := string(b)
			details = &s
		}
	}
	var year *int
	if item.Year != 0 {
		y := item.Year
		year = &y
	}
	issue := models.Issue{
		ID:          uuid.NewString(),
		ScanID:      scanID,
		ItemKey:     item.RatingKey,
		ItemGUID:    item.GUID,
		Title:       item.Title,
		Year:        year,
		MediaKind:   mediaKind(item.Type),
		Defect:      finding.Defect,
		Status:      models.IssueStatusPending,
		Library:     library,
		ExternalIDs: item.ExternalIDs(),
		Details:     details,
		CreatedAt:   time.Now(),
	}
	if err := e.store.CreateIssue(ctx, issue); err != nil {
		return models.Issue{}, err
	}
	return issue, nil
}

// defectArtworkKinds maps a detected defect to the artwork kinds the
// provider aggregator should search for. no_match carries no positive
// signal about which kind is missing, so both are requested.
func defectArtworkKinds(defect models.Defect) []models.ArtworkKind {
	switch defect {
	case models.DefectNoPoster, models.DefectPlaceholderPoster:
		return []models.ArtworkKind{models.ArtworkPoster}
	case models.DefectNoBackground, models.DefectPlaceholderBackground:
		return []models.ArtworkKind{models.ArtworkBackground}
	case models.DefectNoMatch:
		return []models.ArtworkKind{models.ArtworkPoster, models.ArtworkBackground}
	default:
		return nil
	}
}

// providerExternalIDs narrows an item's external identifiers down to the
// sources the provider aggregator understands.
func providerExternalIDs(item mediaserver.Item) providers.ExternalIDs {
	ids := make(providers.ExternalIDs, 3)
	for _, source := range [...]string{"tmdb", "imdb", "tvdb"} {
		if v := item.ExternalID(source); v != "" {
			ids[source] = v
		}
	}
	return ids
}

func suggestionsFromResults(issueID string, results []providers.Result) []models.Suggestion {
	out := make([]models.Suggestion, 0, len(results))
	for _, r := range results {
		out = append(out, models.Suggestion{
			ID:           uuid.NewString(),
			IssueID:      issueID,
			Source:       r.Source,
			ArtworkKind:  r.ArtworkKind,
			ImageURL:     r.ImageURL,
			ThumbnailURL: r.ThumbnailURL,
			Language:     r.Language,
			Score:        r.Score,
			SetName:      r.SetName,
			Creator:      r.Creator,
		})
	}
	return out
}

// generateSuggestions runs the provider aggregator for a freshly persisted
// Issue and writes the resulting Suggestions, eagerly per the decision
// recorded for the suggestion-population open question. Failures are
// logged, not propagated: a scan never fails over a provider outage.
func (e *Engine) generateSuggestions(ctx context.Context, issue models.Issue, item mediaserver.Item, priority []string) {
	if e.aggregator == nil {
		return
	}
	kinds := defectArtworkKinds(issue.Defect)
	if len(kinds) == 0 {
		return
	}
	results := e.aggregator.Aggregate(ctx, issue.MediaKind, providerExternalIDs(item), kinds, priority)
	for _, s := range suggestionsFromResults(issue.ID, results) {
		if err := e.store.CreateSuggestion(ctx, s); err != nil {
			logging.Warn().Err(err).Str("issue_id", issue.ID).Msg("scan: create suggestion failed")
		}
	}
}

// RefreshSuggestions re-runs the provider aggregator for one issue and
// atomically replaces its Suggestions, for the control API's per-issue
// refresh operation.
func (e *Engine) RefreshSuggestions(ctx context.Context, issue models.Issue, priority []string) error {
	var suggestions []models.Suggestion
	if kinds := defectArtworkKinds(issue.Defect); len(kinds) > 0 && e.aggregator != nil {
		item, err := e.client.GetItemMetadata(ctx, issue.ItemKey)
		if err != nil {
			return fmt.Errorf("scan: refresh suggestions: fetch item: %w", err)
		}
		results := e.aggregator.Aggregate(ctx, issue.MediaKind, providerExternalIDs(item), kinds, priority)
		suggestions = suggestionsFromResults(issue.ID, results)
	}
	return e.store.ReplaceSuggestions(ctx, issue.ID, suggestions)
}

func mediaKind(itemType string) models.MediaKind {
	switch itemType {
	case "show":
		return models.MediaKindShow
	case "season":
		return models.MediaKindSeason
	case "episode":
		return models.MediaKindEpisode
	default:
		return models.MediaKindMovie
	}
}

func (e *Engine) saveCheckpoint(ctx context.Context, live *liveScan, processed, issuesFound, editionsUpdated int, currentLibrary string) {
	checkpoint := models.Checkpoint{Processed: processed, CurrentLibrary: currentLibrary, Timestamp: time.Now()}
	if err := e.store.SaveCheckpoint(ctx, live.scanID, processed, issuesFound, editionsUpdated, currentLibrary, checkpoint); err != nil {
		logging.Warn().Err(err).Str("scan_id", live.scanID).Msg("scan: save checkpoint failed")
	}
}

func (e *Engine) finalizeCompleted(ctx context.Context, live *liveScan, processed, issuesFound, editionsUpdated int) error {
	if err := e.store.CompleteScan(ctx, live.scanID, processed, issuesFound, editionsUpdated); err != nil {
		return fmt.Errorf("mark scan completed: %w", err)
	}
	e.appendEvent(ctx, live.scanID, models.ScanEventCompleted,
		fmt.Sprintf("Scan completed. Found %d issues, updated %d editions.", issuesFound, editionsUpdated))

	live.mu.Lock()
	live.progress.Status = string(models.ScanStatusCompleted)
	live.mu.Unlock()
	e.bus.Publish(eventbus.Event{Type: eventbus.KindScanCompleted, Data: e.Snapshot()})
	logging.Info().Str("scan_id", live.scanID).Int("issues_found", issuesFound).Int("editions_updated", editionsUpdated).Msg("scan completed")
	return nil
}

func (e *Engine) finalizeCancelled(ctx context.Context, live *liveScan) error {
	if err := e.store.CancelScan(ctx, live.scanID); err != nil {
		logging.Warn().Err(err).Str("scan_id", live.scanID).Msg("scan: mark cancelled failed")
	}
	e.appendEvent(ctx, live.scanID, models.ScanEventCancelled, "Scan was cancelled by user.")

	live.mu.Lock()
	live.progress.Status = string(models.ScanStatusCancelled)
	live.mu.Unlock()
	e.bus.Publish(eventbus.Event{Type: eventbus.KindScanCancelled, Data: e.Snapshot()})
	logging.Info().Str("scan_id", live.scanID).Msg("scan cancelled")
	return errCancelled
}

func (e *Engine) failScan(ctx context.Context, live *liveScan, reason string) {
	if err := e.store.FailScan(ctx, live.scanID, reason); err != nil {
		logging.Warn().Err(err).Str("scan_id", live.scanID).Msg("scan: mark failed failed")
	}
	e.appendEvent(ctx, live.scanID, models.ScanEventFailed, "Scan failed: "+reason)

	live.mu.Lock()
	live.progress.Status = string(models.ScanStatusFailed)
	live.mu.Unlock()
	e.bus.Publish(eventbus.Event{Type: eventbus.KindScanFailed, Data: e.Snapshot()})
	logging.Error().Str("scan_id", live.scanID).Str("reason", reason).Msg("scan failed")
}
