// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package providers

import (
	"context"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/models"
)

const fanartBaseURL = "https://webservice.fanart.tv/v3"

// Fanart adapts fanart.tv: movies keyed by TMDB or IMDB id, shows keyed by
// TVDB id.
type Fanart struct {
	apiKey string
	client *guardedClient
}

// NewFanart constructs a Fanart provider. An empty apiKey means
// IsConfigured returns false.
func NewFanart(apiKey string) *Fanart {
	return &Fanart{apiKey: apiKey, client: newGuardedClient("fanart")}
}

func (p *Fanart) Name() models.ArtworkSource { return models.SourceFanart }

func (p *Fanart) IsConfigured() bool { return p.apiKey != "" }

type fanartImage struct {
	URL   string `json:"url"`
	Likes string `json:"likes"`
	Lang  string `json:"lang"`
}

type fanartMovieResponse struct {
	HDMovieLogo    []fanartImage `json:"hdmovielogo"`
	ClearLogo      []fanartImage `json:"clearlogo"`
	MoviePoster    []fanartImage `json:"movieposter"`
	MovieBackground []fanartImage `json:"moviebackground"`
}

type fanartTVResponse struct {
	HDTVLogo       []fanartImage `json:"hdtvlogo"`
	ClearLogo      []fanartImage `json:"clearlogo"`
	TVPoster       []fanartImage `json:"tvposter"`
	ShowBackground []fanartImage `json:"showbackground"`
}

func (p *Fanart) GetArtwork(ctx context.Context, kind MediaKind, externalIDs ExternalIDs, wantedKinds []models.ArtworkKind) []Result {
	if !p.IsConfigured() {
		return nil
	}
	headers := map[string]string{"api-key": p.apiKey}

	switch kind {
	case models.MediaKindMovie:
		id := externalIDs["tmdb"]
		if id == "" {
			id = externalIDs["imdb"]
		}
		if id == "" {
			return nil
		}
		body, err := p.client.get(ctx, fanartBaseURL+"/movies/"+id, headers)
		if err != nil {
			logging.Warn().Err(err).Str("provider", "fanart").Msg("fetch failed")
			return nil
		}
		var resp fanartMovieResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			logging.Warn().Err(err).Str("provider", "fanart").Msg("decode failed")
			return nil
		}
		var out []Result
		out = append(out, fanartResults(resp.HDMovieLogo, models.ArtworkLogo, wantedKinds)...)
		out = append(out, fanartResults(resp.ClearLogo, models.ArtworkLogo, wantedKinds)...)
		out = append(out, fanartResults(resp.MoviePoster, models.ArtworkPoster, wantedKinds)...)
		out = append(out, fanartResults(resp.MovieBackground, models.ArtworkBackground, wantedKinds)...)
		return out

	case models.MediaKindShow, models.MediaKindSeason, models.MediaKindEpisode:
		id := externalIDs["tvdb"]
		if id == "" {
			return nil
		}
		body, err := p.client.get(ctx, fanartBaseURL+"/tv/"+id, headers)
		if err != nil {
			logging.Warn().Err(err).Str("provider", "fanart").Msg("fetch failed")
			return nil
		}
		var resp fanartTVResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			logging.Warn().Err(err).Str("provider", "fanart").Msg("decode failed")
			return nil
		}
		var out []Result
		out = append(out, fanartResults(resp.HDTVLogo, models.ArtworkLogo, wantedKinds)...)
		out = append(out, fanartResults(resp.ClearLogo, models.ArtworkLogo, wantedKinds)...)
		out = append(out, fanartResults(resp.TVPoster, models.ArtworkPoster, wantedKinds)...)
		out = append(out, fanartResults(resp.ShowBackground, models.ArtworkBackground, wantedKinds)...)
		return out

	default:
		return nil
	}
}

func fanartResults(images []fanartImage, kind models.ArtworkKind, wanted []models.ArtworkKind) []Result {
	if !wantsKind(wanted, kind) {
		return nil
	}
	out := make([]Result, 0, len(images))
	for _, img := range images {
		likes, _ := strconv.Atoi(img.Likes)
		out = append(out, Result{
			Source:      models.SourceFanart,
			ArtworkKind: kind,
			ImageURL:    img.URL,
			Language:    img.Lang,
			Score:       likes,
		})
	}
	return out
}

func (p *Fanart) TestConnection(ctx context.Context) bool {
	if !p.IsConfigured() {
		return false
	}
	_, err := p.client.get(ctx, fanartBaseURL+"/movies/603", map[string]string{"api-key": p.apiKey})
	return err == nil
}
