// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package providers

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/models"
)

const tmdbBaseURL = "https://api.themoviedb.org/3"

// TMDB adapts themoviedb.org. It resolves TMDB ids directly, or via
// /find/{ext} when only an IMDB/TVDB id is known, and caches the image
// base URL once per instance.
type TMDB struct {
	apiKey string
	client *guardedClient

	baseURLOnce sync.Once
	imageBase   string
}

// NewTMDB constructs a TMDB provider.
func NewTMDB(apiKey string) *TMDB {
	return &TMDB{apiKey: apiKey, client: newGuardedClient("tmdb")}
}

func (p *TMDB) Name() models.ArtworkSource { return models.SourceTMDB }

func (p *TMDB) IsConfigured() bool { return p.apiKey != "" }

type tmdbConfigResponse struct {
	Images struct {
		SecureBaseURL string `json:"secure_base_url"`
	} `json:"images"`
}

func (p *TMDB) imageBaseURL(ctx context.Context) string {
	p.baseURLOnce.Do(func() {
		body, err := p.client.get(ctx, tmdbBaseURL+"/configuration?api_key="+p.apiKey, nil)
		if err != nil {
			logging.Warn().Err(err).Str("provider", "tmdb").Msg("fetch configuration failed")
			p.imageBase = "https://image.tmdb.org/t/p/"
			return
		}
		var cfg tmdbConfigResponse
		if err := json.Unmarshal(body, &cfg); err != nil || cfg.Images.SecureBaseURL == "" {
			p.imageBase = "https://image.tmdb.org/t/p/"
			return
		}
		p.imageBase = cfg.Images.SecureBaseURL
	})
	return p.imageBase
}

type tmdbFindResponse struct {
	MovieResults []struct {
		ID int `json:"id"`
	} `json:"movie_results"`
	TVResults []struct {
		ID int `json:"id"`
	} `json:"tv_results"`
}

func (p *TMDB) resolveID(ctx context.Context, kind MediaKind, externalIDs ExternalIDs) string {
	if id := externalIDs["tmdb"]; id != "" {
		return id
	}
	extSource, extID := "imdb_id", externalIDs["imdb"]
	if extID == "" {
		extSource, extID = "tvdb_id", externalIDs["tvdb"]
	}
	if extID == "" {
		return ""
	}
	url := fmt.Sprintf("%s/find/%s?api_key=%s&external_source=%s", tmdbBaseURL, extID, p.apiKey, extSource)
	body, err := p.client.get(ctx, url, nil)
	if err != nil {
		logging.Warn().Err(err).Str("provider", "tmdb").Msg("find failed")
		return ""
	}
	var find tmdbFindResponse
	if err := json.Unmarshal(body, &find); err != nil {
		return ""
	}
	if kind == models.MediaKindMovie && len(find.MovieResults) > 0 {
		return fmt.Sprintf("%d", find.MovieResults[0].ID)
	}
	if len(find.TVResults) > 0 {
		return fmt.Sprintf("%d", find.TVResults[0].ID)
	}
	return ""
}

type tmdbImagesResponse struct {
	Posters []tmdbImage `json:"posters"`
	Backdrops []tmdbImage `json:"backdrops"`
	Logos []tmdbImage `json:"logos"`
}

type tmdbImage struct {
	FilePath    string  `json:"file_path"`
	VoteAverage float64 `json:"vote_average"`
	Iso639_1    string  `json:"iso_639_1"`
}

func (p *TMDB) GetArtwork(ctx context.Context, kind MediaKind, externalIDs ExternalIDs, wantedKinds []models.ArtworkKind) []Result {
	if !p.IsConfigured() {
		return nil
	}
	mediaType := "movie"
	if kind != models.MediaKindMovie {
		mediaType = "tv"
	}
	id := p.resolveID(ctx, kind, externalIDs)
	if id == "" {
		return nil
	}
	base := p.imageBaseURL(ctx)

	url := fmt.Sprintf("%s/%s/%s/images?api_key=%s&include_image_language=en,null", tmdbBaseURL, mediaType, id, p.apiKey)
	body, err := p.client.get(ctx, url, nil)
	if err != nil {
		logging.Warn().Err(err).Str("provider", "tmdb").Msg("images fetch failed")
		return nil
	}
	var resp tmdbImagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logging.Warn().Err(err).Str("provider", "tmdb").Msg("images decode failed")
		return nil
	}

	var out []Result
	out = append(out, tmdbResults(resp.Posters, models.ArtworkPoster, base, wantedKinds)...)
	out = append(out, tmdbResults(resp.Backdrops, models.ArtworkBackground, base, wantedKinds)...)
	out = append(out, tmdbResults(resp.Logos, models.ArtworkLogo, base, wantedKinds)...)
	return out
}

func tmdbResults(images []tmdbImage, kind models.ArtworkKind, base string, wanted []models.ArtworkKind) []Result {
	if !wantsKind(wanted, kind) {
		return nil
	}
	out := make([]Result, 0, len(images))
	for _, img := range images {
		out = append(out, Result{
			Source:       models.SourceTMDB,
			ArtworkKind:  kind,
			ImageURL:     base + "original" + img.FilePath,
			ThumbnailURL: base + "w500" + img.FilePath,
			Language:     img.Iso639_1,
			Score:        int(math.Round(img.VoteAverage * 10)),
		})
	}
	return out
}

func (p *TMDB) TestConnection(ctx context.Context) bool {
	if !p.IsConfigured() {
		return false
	}
	_, err := p.client.get(ctx, tmdbBaseURL+"/configuration?api_key="+p.apiKey, nil)
	return err == nil
}
