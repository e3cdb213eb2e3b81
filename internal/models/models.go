// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package models holds the persisted entities of the library-management
// daemon: scans and their events, issues and their suggestions, edition
// backups and configuration, schedules, and config entries.
package models

import "time"

// ScanKind selects which defect families a scan looks for.
type ScanKind string

const (
	ScanKindArtwork ScanKind = "artwork"
	ScanKindEdition ScanKind = "edition"
	ScanKindBoth    ScanKind = "both"
)

// ScanStatus is the lifecycle state of a Scan.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusPaused    ScanStatus = "paused"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusCancelled ScanStatus = "cancelled"
	ScanStatusFailed    ScanStatus = "failed"
)

// IsTerminal reports whether the status cannot transition further.
func (s ScanStatus) IsTerminal() bool {
	switch s {
	case ScanStatusCompleted, ScanStatusCancelled, ScanStatusFailed:
		return true
	default:
		return false
	}
}

// IsLive reports whether a scan in this status counts against the
// process-global "one live scan" invariant.
func (s ScanStatus) IsLive() bool {
	return s == ScanStatusRunning || s == ScanStatusPaused
}

// Scan is one run of the scan engine over some subset of libraries.
type Scan struct {
	ID              string     `db:"id"`
	Kind            ScanKind   `db:"kind"`
	Status          ScanStatus `db:"status"`
	CreatedAt       time.Time  `db:"created_at"`
	StartedAt       *time.Time `db:"started_at"`
	PausedAt        *time.Time `db:"paused_at"`
	CompletedAt     *time.Time `db:"completed_at"`
	Total           int        `db:"total"`
	Processed       int        `db:"processed"`
	IssuesFound     int        `db:"issues_found"`
	EditionsUpdated int        `db:"editions_updated"`
	CurrentLibrary  string     `db:"current_library"`
	CurrentItem     string     `db:"current_item"`
	Checkpoint      *string    `db:"checkpoint"`      // JSON: {processed, current_library, timestamp}
	TriggeredBy     string     `db:"triggered_by"`    // "manual" | "schedule:<id>"
	ConfigSnapshot  *string    `db:"config_snapshot"` // JSON snapshot of the scan's effective config
}

// Checkpoint is the JSON shape persisted to Scan.Checkpoint.
type Checkpoint struct {
	Processed      int       `json:"processed"`
	CurrentLibrary string    `json:"current_library"`
	Timestamp      time.Time `json:"timestamp"`
}

// ScanEventKind discriminates the append-only Scan Event log, and doubles as
// the `type` discriminator on the live event-bus stream (plus the
// bus-only kinds scan_progress/keepalive/connected, see eventbus.Kind).
type ScanEventKind string

const (
	ScanEventStarted   ScanEventKind = "started"
	ScanEventPaused    ScanEventKind = "paused"
	ScanEventResumed   ScanEventKind = "resumed"
	ScanEventCancelled ScanEventKind = "cancelled"
	ScanEventCompleted ScanEventKind = "completed"
	ScanEventFailed    ScanEventKind = "failed"
)

// ScanEvent is one append-only row in a scan's audit trail.
type ScanEvent struct {
	ID      string        `db:"id"`
	ScanID  string        `db:"scan_id"`
	Kind    ScanEventKind `db:"kind"`
	Message string        `db:"message"`
	Ts      time.Time     `db:"ts"`
}

// MediaKind is the media-server item type an Issue or Suggestion concerns.
type MediaKind string

const (
	MediaKindMovie   MediaKind = "movie"
	MediaKindShow    MediaKind = "show"
	MediaKindSeason  MediaKind = "season"
	MediaKindEpisode MediaKind = "episode"
)

// Defect classifies the metadata problem found on an item.
type Defect string

const (
	DefectNoMatch            Defect = "no_match"
	DefectNoPoster           Defect = "no_poster"
	DefectNoBackground       Defect = "no_background"
	DefectNoLogo             Defect = "no_logo"
	DefectPlaceholderPoster  Defect = "placeholder_poster"
	DefectPlaceholderBackground Defect = "placeholder_background"
)

// IssueStatus tracks operator/auto-apply disposition of an Issue.
type IssueStatus string

const (
	IssueStatusPending  IssueStatus = "pending"
	IssueStatusAccepted IssueStatus = "accepted"
	IssueStatusRejected IssueStatus = "rejected"
	IssueStatusApplied  IssueStatus = "applied"
	IssueStatusFailed   IssueStatus = "failed"
)

// Issue is one classified defect found on one item during one scan.
type Issue struct {
	ID          string      `db:"id"`
	ScanID      string      `db:"scan_id"`
	ItemKey     string      `db:"item_key"`
	ItemGUID    string      `db:"item_guid"`
	Title       string      `db:"title"`
	Year        *int        `db:"year"`
	MediaKind   MediaKind   `db:"media_kind"`
	Defect      Defect      `db:"defect"`
	Status      IssueStatus `db:"status"`
	Library     string      `db:"library"`
	ExternalIDs []string    `db:"external_ids"` // "source://value" strings
	Details     *string     `db:"details"`       // JSON, e.g. {"detected_aspect_ratio": 1.78}
	CreatedAt   time.Time   `db:"created_at"`
	ResolvedAt  *time.Time  `db:"resolved_at"`
}

// ArtworkSource is a third-party artwork provider, or "plex" for values
// coming from the media server itself (list_available_posters/backgrounds).
type ArtworkSource string

const (
	SourceFanart ArtworkSource = "fanart"
	SourceMediux ArtworkSource = "mediux"
	SourceTMDB   ArtworkSource = "tmdb"
	SourceTVDB   ArtworkSource = "tvdb"
	SourcePlex   ArtworkSource = "plex"
)

// ArtworkKind is the kind of image a Suggestion proposes.
type ArtworkKind string

const (
	ArtworkPoster     ArtworkKind = "poster"
	ArtworkBackground ArtworkKind = "background"
	ArtworkLogo       ArtworkKind = "logo"
)

// Suggestion is one candidate image proposed by a provider for an Issue.
type Suggestion struct {
	ID           string        `db:"id"`
	IssueID      string        `db:"issue_id"`
	Source       ArtworkSource `db:"source"`
	ArtworkKind  ArtworkKind   `db:"artwork_kind"`
	ImageURL     string        `db:"image_url"`
	ThumbnailURL string        `db:"thumbnail_url"`
	Language     string        `db:"language"`
	Score        int           `db:"score"`
	SetName      string        `db:"set_name"`
	Creator      string        `db:"creator"`
	IsSelected   bool          `db:"is_selected"`
}

// EditionBackup records an item's edition title before it was overwritten,
// so the original can be restored. First write for an item_key is a no-op
// if a backup already exists.
type EditionBackup struct {
	ID              string     `db:"id"`
	ItemKey         string     `db:"item_key"`
	Title           string     `db:"title"`
	OriginalEdition string     `db:"original_edition"`
	NewEdition      string     `db:"new_edition"`
	BackedUpAt      time.Time  `db:"backed_up_at"`
	RestoredAt      *time.Time `db:"restored_at"`
}

// EditionConfig is the singleton configuration of the edition engine.
type EditionConfig struct {
	EnabledModules []string          `json:"enabled_modules"`
	ModuleOrder    []string          `json:"module_order"`
	Settings       map[string]string `json:"settings"`
}

// Schedule is a cron-triggered scan, optionally auto-committed.
type Schedule struct {
	ID                 string     `db:"id"`
	Name               string     `db:"name"`
	Enabled             bool       `db:"enabled"`
	CronExpression      string     `db:"cron_expression"`
	ScanKind            ScanKind   `db:"scan_kind"`
	ConfigSnapshot      *string    `db:"config_snapshot"`
	AutoCommit          bool       `db:"auto_commit"`
	AutoCommitOptions   *string    `db:"auto_commit_options"` // JSON: {skip_unmatched, min_score}
	LastRunAt           *time.Time `db:"last_run_at"`
	NextRunAt           *time.Time `db:"next_run_at"`
}

// AutoCommitOptions is the JSON shape persisted to Schedule.AutoCommitOptions
// and accepted by the Auto-Apply Engine.
type AutoCommitOptions struct {
	SkipUnmatched bool `json:"skip_unmatched"`
	MinScore      int  `json:"min_score"`
}

// ConfigEntry is one key/value row in the Config Store, with a flag marking
// whether Value is ciphertext-at-rest.
type ConfigEntry struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	Encrypted bool   `db:"encrypted"`
}
