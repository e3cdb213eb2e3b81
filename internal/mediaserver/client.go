// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package mediaserver is a typed wrapper over the media server's HTTP API:
// libraries, items, image upload, lock flags, edition title, and the
// external-identity PIN flow. Request shapes follow the Plex-style JSON
// container convention (MediaContainer) used throughout the rest of the
// library-management daemon.
package mediaserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cartographus/internal/logging"
)

// Failure taxonomy per the media server's HTTP contract.
var (
	ErrUnauthorized = errors.New("mediaserver: unauthorized")
	ErrUnreachable  = errors.New("mediaserver: unreachable")
)

// ProtocolError wraps a non-2xx response that is not an auth failure.
type ProtocolError struct {
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("mediaserver: protocol error (status %d): %s", e.StatusCode, e.Body)
}

// Client talks to the media server's HTTP API using a server token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[any]

	mu         sync.RWMutex
	serverName string
	version    string
}

// New constructs a Client for the given base URL and server token.
func New(baseURL, token string) *Client {
	settings := gobreaker.Settings{
		Name:        "mediaserver",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("mediaserver circuit breaker state change")
		},
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(8), 16),
		breaker:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

// MediaContainer is the envelope the media server wraps JSON responses in.
type MediaContainer struct {
	MediaContainer struct {
		Size            int        `json:"size"`
		TotalSize       int        `json:"totalSize"`
		FriendlyName    string     `json:"friendlyName"`
		Version         string     `json:"version"`
		Directory       []Library  `json:"Directory"`
		Metadata        []Item     `json:"Metadata"`
	} `json:"MediaContainer"`
}

// Library is one video library section.
type Library struct {
	Key  string `json:"key"`
	Type string `json:"type"` // "movie" | "show"
	Title string `json:"title"`
}

// IsVideoKind reports whether this library holds movies or shows.
func (l Library) IsVideoKind() bool {
	return l.Type == "movie" || l.Type == "show"
}

// MediaPart is one file backing a Media entry.
type MediaPart struct {
	File    string   `json:"file"`
	Size    int64    `json:"size"`
	Streams []Stream `json:"Stream"`
}

// Stream is one audio/video/subtitle stream within a Part.
type Stream struct {
	StreamType   int    `json:"streamType"`
	Codec        string `json:"codec"`
	Channels     int    `json:"channels"`
	Language     string `json:"language"`
	DisplayTitle string `json:"displayTitle"`
	Selected     bool   `json:"selected"`
	FrameRate    float64 `json:"frameRate"`
	DOVIProfile  int    `json:"DOVIProfile"`
	DOVIPresent  bool   `json:"DOVIPresent"`
}

// Media is one encode of an item (Plex may list several per item).
type Media struct {
	Bitrate        int64     `json:"bitrate"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	VideoResolution string   `json:"videoResolution"`
	VideoCodec     string    `json:"videoCodec"`
	AudioCodec     string    `json:"audioCodec"`
	AudioChannels  int       `json:"audioChannels"`
	Part           []MediaPart `json:"Part"`
}

// Item is one media-server library item (movie, show, season, episode).
type Item struct {
	RatingKey     string  `json:"ratingKey"`
	Key           string  `json:"key"`
	GUID          string  `json:"guid"`
	Title         string  `json:"title"`
	Year          int     `json:"year"`
	Type          string  `json:"type"`
	Thumb         string  `json:"thumb"`
	Art           string  `json:"art"`
	Duration      int64   `json:"duration"` // ms
	ContentRating string  `json:"contentRating"`
	Rating        float64 `json:"rating"`
	EditionTitle  string  `json:"editionTitle"`
	Genre         []NamedTag `json:"Genre"`
	Director      []NamedTag `json:"Director"`
	Writer        []NamedTag `json:"Writer"`
	Country       []NamedTag `json:"Country"`
	Studio        string  `json:"studio"`
	Guid          []GUIDEntry `json:"Guid"`
	Media         []Media `json:"Media"`
}

// NamedTag is a Plex {tag} object (Genre/Director/Writer/Country entries).
type NamedTag struct {
	Tag string `json:"tag"`
}

// GUIDEntry is one external identifier entry in an item's Guid list,
// of the form "source://value".
type GUIDEntry struct {
	ID string `json:"id"`
}

// IsMatched reports whether the item carries a non-local external GUID.
func (it Item) IsMatched() bool {
	return it.GUID != "" && !strings.HasPrefix(it.GUID, "local://")
}

// HasPoster reports truthiness of the thumb path.
func (it Item) HasPoster() bool { return it.Thumb != "" }

// HasBackground reports truthiness of the art path.
func (it Item) HasBackground() bool { return it.Art != "" }

// ExternalIDs returns the item's external identifiers as "source://value"
// strings, scanned out of the Guid list.
func (it Item) ExternalIDs() []string {
	out := make([]string, 0, len(it.Guid))
	for _, g := range it.Guid {
		if g.ID != "" {
			out = append(out, g.ID)
		}
	}
	return out
}

// ExternalID returns the value for a given source ("tmdb", "imdb", "tvdb"),
// or "" if absent.
func (it Item) ExternalID(source string) string {
	prefix := source + "://"
	for _, id := range it.ExternalIDs() {
		if strings.HasPrefix(id, prefix) {
			return strings.TrimPrefix(id, prefix)
		}
	}
	return ""
}

// MainMedia returns the item's media entry with the largest bitrate, the
// "main media" definition shared by every edition module.
func (it Item) MainMedia() (Media, bool) {
	if len(it.Media) == 0 {
		return Media{}, false
	}
	best := it.Media[0]
	for _, m := range it.Media[1:] {
		if m.Bitrate > best.Bitrate {
			best = m
		}
	}
	return best, true
}

// MainPart returns the first Part of the main Media entry.
func (it Item) MainPart() (MediaPart, bool) {
	media, ok := it.MainMedia()
	if !ok || len(media.Part) == 0 {
		return MediaPart{}, false
	}
	return media.Part[0], true
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("mediaserver: rate limiter: %w", err)
	}
	u := c.baseURL + path
	if query != nil {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("mediaserver: build request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")

	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return nil, ErrUnauthorized
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("mediaserver: read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("mediaserver: decode response: %w", err)
	}
	return nil
}

// Probe checks connectivity and returns the server's friendly name and
// version.
func (c *Client) Probe(ctx context.Context) (ok bool, serverName string, version string, err error) {
	var mc MediaContainer
	if err := c.getJSON(ctx, "/", nil, &mc); err != nil {
		return false, "", "", err
	}
	c.mu.Lock()
	c.serverName = mc.MediaContainer.FriendlyName
	c.version = mc.MediaContainer.Version
	c.mu.Unlock()
	return true, mc.MediaContainer.FriendlyName, mc.MediaContainer.Version, nil
}

// ServerFriendlyName returns the server name from the most recent Probe, or
// "" if Probe hasn't been called yet.
func (c *Client) ServerFriendlyName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName
}

// ServerVersion returns the server version from the most recent Probe, or
// "" if Probe hasn't been called yet.
func (c *Client) ServerVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// ListLibraries returns the video-kind library sections only.
func (c *Client) ListLibraries(ctx context.Context) ([]Library, error) {
	var mc MediaContainer
	if err := c.getJSON(ctx, "/library/sections", nil, &mc); err != nil {
		return nil, err
	}
	out := make([]Library, 0, len(mc.MediaContainer.Directory))
	for _, l := range mc.MediaContainer.Directory {
		if l.IsVideoKind() {
			out = append(out, l)
		}
	}
	return out, nil
}

// ListItems returns one page of a library's items and the total count.
func (c *Client) ListItems(ctx context.Context, library string, offset, size int) ([]Item, int, error) {
	q := url.Values{}
	q.Set("X-Plex-Container-Start", strconv.Itoa(offset))
	q.Set("X-Plex-Container-Size", strconv.Itoa(size))
	var mc MediaContainer
	if err := c.getJSON(ctx, "/library/sections/"+library+"/all", q, &mc); err != nil {
		return nil, 0, err
	}
	return mc.MediaContainer.Metadata, mc.MediaContainer.TotalSize, nil
}

const pageSize = 100

// ListAllItems pages through a library until exhausted.
func (c *Client) ListAllItems(ctx context.Context, library string) ([]Item, error) {
	var all []Item
	offset := 0
	for {
		items, total, err := c.ListItems(ctx, library, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		offset += len(items)
		if len(items) == 0 || offset >= total {
			break
		}
	}
	return all, nil
}

// GetItemMetadata fetches the full metadata blob for one item.
func (c *Client) GetItemMetadata(ctx context.Context, key string) (Item, error) {
	var mc MediaContainer
	if err := c.getJSON(ctx, "/library/metadata/"+key, nil, &mc); err != nil {
		return Item{}, err
	}
	if len(mc.MediaContainer.Metadata) == 0 {
		return Item{}, fmt.Errorf("mediaserver: item %s not found", key)
	}
	return mc.MediaContainer.Metadata[0], nil
}

func (c *Client) put(ctx context.Context, path string, query url.Values) error {
	resp, err := c.do(ctx, http.MethodPut, path, query)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) post(ctx context.Context, path string, query url.Values) error {
	resp, err := c.do(ctx, http.MethodPost, path, query)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// UploadPoster uploads a poster from a URL to the given item.
func (c *Client) UploadPoster(ctx context.Context, key, imageURL string) error {
	q := url.Values{"url": {imageURL}}
	return c.post(ctx, "/library/metadata/"+key+"/posters", q)
}

// UploadBackground uploads a background (art) from a URL to the given item.
func (c *Client) UploadBackground(ctx context.Context, key, imageURL string) error {
	q := url.Values{"url": {imageURL}}
	return c.post(ctx, "/library/metadata/"+key+"/arts", q)
}

// LockPoster locks the thumb field so future metadata refreshes don't
// overwrite the applied artwork.
func (c *Client) LockPoster(ctx context.Context, key string) error {
	return c.put(ctx, "/library/metadata/"+key, url.Values{"thumb.locked": {"1"}})
}

// LockBackground locks the art field.
func (c *Client) LockBackground(ctx context.Context, key string) error {
	return c.put(ctx, "/library/metadata/"+key, url.Values{"art.locked": {"1"}})
}

// SetEdition writes the item's edition title.
func (c *Client) SetEdition(ctx context.Context, key, edition string) error {
	return c.put(ctx, "/library/metadata/"+key, url.Values{"editionTitle.value": {edition}, "editionTitle.locked": {"1"}})
}

// ListAvailablePosters lists the server's own candidate posters for an item.
func (c *Client) ListAvailablePosters(ctx context.Context, key string) ([]Item, error) {
	var mc MediaContainer
	if err := c.getJSON(ctx, "/library/metadata/"+key+"/posters", nil, &mc); err != nil {
		return nil, err
	}
	return mc.MediaContainer.Metadata, nil
}

// ListAvailableBackgrounds lists the server's own candidate backgrounds.
func (c *Client) ListAvailableBackgrounds(ctx context.Context, key string) ([]Item, error) {
	var mc MediaContainer
	if err := c.getJSON(ctx, "/library/metadata/"+key+"/arts", nil, &mc); err != nil {
		return nil, err
	}
	return mc.MediaContainer.Metadata, nil
}

// BuildImageURL appends the auth token to a server-relative image path.
func (c *Client) BuildImageURL(path string) string {
	if path == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return c.baseURL + path + sep + "X-Plex-Token=" + url.QueryEscape(c.token)
}

// RefreshMetadata forces the server to re-run external-id matching for an
// item before a rescan picks it up.
func (c *Client) RefreshMetadata(ctx context.Context, key string) error {
	return c.put(ctx, "/library/metadata/"+key+"/refresh", nil)
}

// FetchImage downloads the bytes at a full image URL (as returned by
// BuildImageURL). It satisfies detector.ImageFetcher, bypassing the
// rate limiter and circuit breaker used for the JSON API: image fetches
// are a separate, much higher-volume traffic class during placeholder
// detection.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("mediaserver: build image request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return io.ReadAll(resp.Body)
}
