// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package detector classifies media-server items into metadata defects:
// unmatched items, missing artwork, and placeholder artwork detected by
// aspect ratio.
package detector

import (
	"context"
	"sync"

	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/mediaserver"
	"github.com/tomtom215/cartographus/internal/models"
)

// ImageFetcher fetches image bytes given a server-relative path. Image
// decoding itself is an external capability (see Dimensions).
type ImageFetcher interface {
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

// Dimensions decodes image bytes into pixel width/height. This is the
// external "given bytes, return (width, height)" capability the core
// consumes rather than implements.
type Dimensions func(ctx context.Context, data []byte) (width, height int, err error)

// Rules toggles which checks run. check_logos is accepted for
// configuration-compatibility but produces no emission: logo presence is
// not directly observable on media-server items.
type Rules struct {
	CheckUnmatched    bool
	CheckPosters      bool
	CheckBackgrounds  bool
	CheckPlaceholders bool
	CheckLogos        bool
}

// DefaultRules enables every detectable check.
func DefaultRules() Rules {
	return Rules{CheckUnmatched: true, CheckPosters: true, CheckBackgrounds: true, CheckPlaceholders: true}
}

// Finding is one emitted defect for one item.
type Finding struct {
	Defect  models.Defect
	Details map[string]any
}

// Detector applies the rule chain to items within one scan. It memoizes
// image fetches per instance so repeat scans of the same item (or repeat
// placeholder checks against the same URL) fetch each image at most once.
type Detector struct {
	rules   Rules
	fetcher ImageFetcher
	decode  Dimensions
	client  *mediaserver.Client

	mu    sync.Mutex
	cache map[string]imageResult
}

type imageResult struct {
	width, height int
	ok            bool
}

// New constructs a Detector. client is used to resolve image paths to full
// URLs via BuildImageURL.
func New(rules Rules, fetcher ImageFetcher, decode Dimensions, client *mediaserver.Client) *Detector {
	return &Detector{
		rules:   rules,
		fetcher: fetcher,
		decode:  decode,
		client:  client,
		cache:   make(map[string]imageResult),
	}
}

// Detect applies the enabled rules, in order, with short-circuit on
// no_match: once emitted, no further defect is produced for the same item.
func (d *Detector) Detect(ctx context.Context, item mediaserver.Item) []Finding {
	if d.rules.CheckUnmatched && !item.IsMatched() {
		return []Finding{{Defect: models.DefectNoMatch}}
	}

	var findings []Finding

	if d.rules.CheckPosters && !item.HasPoster() {
		findings = append(findings, Finding{Defect: models.DefectNoPoster})
	}
	if d.rules.CheckBackgrounds && !item.HasBackground() {
		findings = append(findings, Finding{Defect: models.DefectNoBackground})
	}

	if d.rules.CheckPlaceholders && item.HasPoster() {
		if f, ok := d.checkPlaceholderPoster(ctx, item); ok {
			findings = append(findings, f)
		}
	}
	if d.rules.CheckPlaceholders && item.HasBackground() {
		if f, ok := d.checkPlaceholderBackground(ctx, item); ok {
			findings = append(findings, f)
		}
	}

	return findings
}

func (d *Detector) dimensions(ctx context.Context, path string) (w, h int, ok bool) {
	d.mu.Lock()
	if cached, found := d.cache[path]; found {
		d.mu.Unlock()
		return cached.width, cached.height, cached.ok
	}
	d.mu.Unlock()

	result := imageResult{}
	imageURL := d.client.BuildImageURL(path)
	data, err := d.fetcher.FetchImage(ctx, imageURL)
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("detector: image fetch failed, treating as unknown aspect ratio")
	} else {
		width, height, err := d.decode(ctx, data)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("detector: image decode failed, treating as unknown aspect ratio")
		} else if height > 0 {
			result = imageResult{width: width, height: height, ok: true}
		}
	}

	d.mu.Lock()
	d.cache[path] = result
	d.mu.Unlock()

	return result.width, result.height, result.ok
}

// checkPlaceholderPoster flags placeholder_poster when the decoded aspect
// ratio is outside the narrow band real theatrical posters occupy.
func (d *Detector) checkPlaceholderPoster(ctx context.Context, item mediaserver.Item) (Finding, bool) {
	w, h, ok := d.dimensions(ctx, item.Thumb)
	if !ok {
		return Finding{}, false
	}
	ratio := float64(w) / float64(h)

	// r>1.0 is subsumed by r>0.9; the two-part condition mirrors how the
	// original expresses "landscape, or too square, or too narrow".
	if ratio > 1.0 || ratio > 0.9 || ratio < 0.4 {
		return Finding{Defect: models.DefectPlaceholderPoster, Details: map[string]any{"detected_aspect_ratio": ratio}}, true
	}
	// Otherwise ratio sits in [0.4, 0.9]; the narrower accepted band around
	// 2/3 (±15%) is where a genuine theatrical poster lands, so no defect.
	return Finding{}, false
}

// checkPlaceholderBackground flags placeholder_background for aspect
// ratios too narrow to be a real 16:9-ish backdrop.
func (d *Detector) checkPlaceholderBackground(ctx context.Context, item mediaserver.Item) (Finding, bool) {
	w, h, ok := d.dimensions(ctx, item.Art)
	if !ok {
		return Finding{}, false
	}
	ratio := float64(w) / float64(h)

	if ratio < 1.0 || ratio < 1.2 {
		return Finding{Defect: models.DefectPlaceholderBackground, Details: map[string]any{"detected_aspect_ratio": ratio}}, true
	}
	return Finding{}, false
}
