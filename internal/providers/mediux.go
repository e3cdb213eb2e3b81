// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package providers

import (
	"fmt"
	"strings"

	"context"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/models"
)

const mediuxBaseURL = "https://staged.mediux.pro/graphql"

// mediuxFileTypeKind maps Mediux's file_type strings to our ArtworkKind.
var mediuxFileTypeKind = map[string]models.ArtworkKind{
	"poster":     models.ArtworkPoster,
	"background": models.ArtworkBackground,
	"title_card": models.ArtworkBackground,
	"logo":       models.ArtworkLogo,
	"clear_logo": models.ArtworkLogo,
}

// Mediux adapts the Mediux GraphQL API. IDs are of the form "tmdb-{id}".
type Mediux struct {
	apiKey string
	client *guardedClient
}

// NewMediux constructs a Mediux provider. The API key is optional; Mediux
// accepts unauthenticated requests with reduced rate limits.
func NewMediux(apiKey string) *Mediux {
	return &Mediux{apiKey: apiKey, client: newGuardedClient("mediux")}
}

func (p *Mediux) Name() models.ArtworkSource { return models.SourceMediux }

// IsConfigured is always true: Mediux works without an API key, per §4.3's
// "Authorization sent via an API-key header when provided".
func (p *Mediux) IsConfigured() bool { return true }

const mediuxQuery = `query($id: ID!) { sets(filter: { tmdb_id: $id }) { files { file_type file_id } } }`

type mediuxResponse struct {
	Data struct {
		Sets []struct {
			Files []struct {
				FileType string `json:"file_type"`
				FileID   string `json:"file_id"`
			} `json:"files"`
		} `json:"sets"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (p *Mediux) GetArtwork(ctx context.Context, kind MediaKind, externalIDs ExternalIDs, wantedKinds []models.ArtworkKind) []Result {
	tmdbID := externalIDs["tmdb"]
	if tmdbID == "" {
		return nil
	}
	idForm := "tmdb-" + tmdbID

	payload, err := json.Marshal(map[string]any{
		"query":     mediuxQuery,
		"variables": map[string]string{"id": idForm},
	})
	if err != nil {
		logging.Warn().Err(err).Str("provider", "mediux").Msg("encode query failed")
		return nil
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	body, err := p.client.post(ctx, mediuxBaseURL, headers, payload)
	if err != nil {
		logging.Warn().Err(err).Str("provider", "mediux").Msg("request failed")
		return nil
	}

	var resp mediuxResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logging.Warn().Err(err).Str("provider", "mediux").Msg("decode failed")
		return nil
	}
	if len(resp.Errors) > 0 {
		logging.Warn().Str("provider", "mediux").Str("error", resp.Errors[0].Message).Msg("graphql error")
		return nil
	}

	var out []Result
	for _, set := range resp.Data.Sets {
		for _, f := range set.Files {
			artKind, ok := mediuxFileTypeKind[strings.ToLower(f.FileType)]
			if !ok || !wantsKind(wantedKinds, artKind) {
				continue
			}
			out = append(out, Result{
				Source:      models.SourceMediux,
				ArtworkKind: artKind,
				ImageURL:    fmt.Sprintf("https://mediux.pro/assets/%s", f.FileID),
			})
		}
	}
	return out
}

func (p *Mediux) TestConnection(ctx context.Context) bool {
	payload, _ := json.Marshal(map[string]any{"query": "{ __typename }"})
	headers := map[string]string{"Content-Type": "application/json"}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}
	_, err := p.client.post(ctx, mediuxBaseURL, headers, payload)
	return err == nil
}
