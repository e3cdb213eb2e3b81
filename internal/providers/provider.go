// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package providers adapts four third-party artwork sources (Fanart, TMDB,
// TVDB, Mediux) behind one uniform contract, and aggregates their results
// into a deterministically ranked suggestion list.
package providers

import (
	"context"

	"github.com/tomtom215/cartographus/internal/models"
)

// MediaKind mirrors models.MediaKind for the subset providers care about.
type MediaKind = models.MediaKind

// ExternalIDs is the set of external identifiers known for an item, keyed
// by source ("tmdb", "imdb", "tvdb").
type ExternalIDs map[string]string

// Result is one candidate artwork image returned by a provider, shaped to
// become a Suggestion once attached to an Issue.
type Result struct {
	Source       models.ArtworkSource
	ArtworkKind  models.ArtworkKind
	ImageURL     string
	ThumbnailURL string
	Language     string
	Score        int
	SetName      string
	Creator      string
}

// Provider is the uniform contract every artwork source implements. All
// failures are swallowed at this boundary: GetArtwork never returns an
// error, only an empty result with log output, per the defined error
// handling policy for provider errors.
type Provider interface {
	Name() models.ArtworkSource
	IsConfigured() bool
	GetArtwork(ctx context.Context, kind MediaKind, externalIDs ExternalIDs, wantedKinds []models.ArtworkKind) []Result
	TestConnection(ctx context.Context) bool
}

// wantsKind reports whether artworkKind appears in wanted.
func wantsKind(wanted []models.ArtworkKind, artworkKind models.ArtworkKind) bool {
	for _, k := range wanted {
		if k == artworkKind {
			return true
		}
	}
	return false
}
