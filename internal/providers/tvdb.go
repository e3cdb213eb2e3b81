// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/models"
)

const tvdbBaseURL = "https://api4.thetvdb.com/v4"

// tvdbArtworkTypeKind maps TVDB numeric artwork type ids to our ArtworkKind.
var tvdbArtworkTypeKind = map[int]models.ArtworkKind{
	3:  models.ArtworkPoster,
	4:  models.ArtworkBackground,
	22: models.ArtworkLogo,
	23: models.ArtworkLogo,
}

// TVDB adapts the TVDB v4 API, authenticating via /login and caching the
// resulting JWT for the duration its own exp claim promises (nominally
// 24h).
type TVDB struct {
	apiKey string
	client *guardedClient

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTVDB constructs a TVDB provider.
func NewTVDB(apiKey string) *TVDB {
	return &TVDB{apiKey: apiKey, client: newGuardedClient("tvdb")}
}

func (p *TVDB) Name() models.ArtworkSource { return models.SourceTVDB }

func (p *TVDB) IsConfigured() bool { return p.apiKey != "" }

type tvdbLoginResponse struct {
	Data struct {
		Token string `json:"token"`
	} `json:"data"`
}

func (p *TVDB) authToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiresAt) {
		return p.token, nil
	}

	body, err := json.Marshal(map[string]string{"apikey": p.apiKey})
	if err != nil {
		return "", fmt.Errorf("tvdb: encode login request: %w", err)
	}
	resp, err := p.client.post(ctx, tvdbBaseURL+"/login", map[string]string{"Content-Type": "application/json"}, body)
	if err != nil {
		return "", fmt.Errorf("tvdb: login: %w", err)
	}
	var login tvdbLoginResponse
	if err := json.Unmarshal(resp, &login); err != nil {
		return "", fmt.Errorf("tvdb: decode login response: %w", err)
	}

	p.token = login.Data.Token
	p.expiresAt = time.Now().Add(24 * time.Hour)

	// Prefer the token's own exp claim when present and well-formed; the
	// nominal 24h default above stands in when it is not.
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(login.Data.Token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			p.expiresAt = exp.Time
		}
	}

	return p.token, nil
}

type tvdbExtendedResponse struct {
	Data struct {
		Artworks []struct {
			Image  string `json:"image"`
			Type   int    `json:"type"`
			Score  int    `json:"score"`
			Language string `json:"language"`
		} `json:"artworks"`
	} `json:"data"`
}

func (p *TVDB) GetArtwork(ctx context.Context, kind MediaKind, externalIDs ExternalIDs, wantedKinds []models.ArtworkKind) []Result {
	if !p.IsConfigured() {
		return nil
	}
	id := externalIDs["tvdb"]
	if id == "" {
		return nil
	}

	token, err := p.authToken(ctx)
	if err != nil {
		logging.Warn().Err(err).Str("provider", "tvdb").Msg("auth failed")
		return nil
	}

	entity := "series"
	if kind == models.MediaKindMovie {
		entity = "movies"
	}
	url := fmt.Sprintf("%s/%s/%s/extended", tvdbBaseURL, entity, id)
	headers := map[string]string{"Authorization": "Bearer " + token}
	body, err := p.client.get(ctx, url, headers)
	if err != nil {
		logging.Warn().Err(err).Str("provider", "tvdb").Msg("extended fetch failed")
		return nil
	}

	var resp tvdbExtendedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logging.Warn().Err(err).Str("provider", "tvdb").Msg("extended decode failed")
		return nil
	}

	out := make([]Result, 0, len(resp.Data.Artworks))
	for _, a := range resp.Data.Artworks {
		artKind, ok := tvdbArtworkTypeKind[a.Type]
		if !ok || !wantsKind(wantedKinds, artKind) {
			continue
		}
		out = append(out, Result{
			Source:      models.SourceTVDB,
			ArtworkKind: artKind,
			ImageURL:    a.Image,
			Language:    a.Language,
			Score:       a.Score,
		})
	}
	return out
}

func (p *TVDB) TestConnection(ctx context.Context) bool {
	if !p.IsConfigured() {
		return false
	}
	_, err := p.authToken(ctx)
	return err == nil
}
