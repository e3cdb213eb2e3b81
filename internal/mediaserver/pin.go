// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

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
	"time"

	"github.com/goccy/go-json"
)

// plex.tv identity-flow endpoints. Unlike the rest of this package, these
// talk to plex.tv directly rather than a configured server: they exist to
// obtain a server token in the first place, before any Client can be built.
// Declared as vars rather than consts so tests can point them at an
// httptest.Server.
var (
	pinCreateEndpoint    = "https://plex.tv/api/v2/pins"
	pinResourcesEndpoint = "https://plex.tv/api/v2/resources"
)

// ErrPINNotAuthorized indicates the operator hasn't completed the
// plex.tv/link step yet; PollPIN callers should keep polling on an
// interval until the PIN itself expires.
var ErrPINNotAuthorized = errors.New("mediaserver: pin not yet authorized")

// PIN is a short-lived identity-flow code the operator authorizes at
// plex.tv/link on behalf of this daemon.
type PIN struct {
	ID   int
	Code string
}

// Resource is one Plex.tv-registered server reachable once an identity-flow
// token has been authorized.
type Resource struct {
	Name        string               `json:"name"`
	Product     string               `json:"product"`
	Version     string               `json:"productVersion"`
	Connections []ResourceConnection `json:"connections"`
}

// ResourceConnection is one URI a Resource can be reached at.
type ResourceConnection struct {
	URI   string `json:"uri"`
	Local bool   `json:"local"`
}

func identityHeaders(req *http.Request, clientID string) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Product", "Cartographus")
	req.Header.Set("X-Plex-Client-Identifier", clientID)
}

// CreatePIN requests a new identity-flow PIN from plex.tv. clientID
// identifies this daemon instance and must be reused for PollPIN, since
// plex.tv binds a PIN's authorization to the client that created it.
func CreatePIN(ctx context.Context, clientID string) (PIN, error) {
	q := url.Values{"strong": {"true"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pinCreateEndpoint+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return PIN{}, fmt.Errorf("mediaserver: build pin request: %w", err)
	}
	identityHeaders(req, clientID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return PIN{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return PIN{}, &ProtocolError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var pinResp struct {
		ID   int    `json:"id"`
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pinResp); err != nil {
		return PIN{}, fmt.Errorf("mediaserver: decode pin response: %w", err)
	}
	return PIN{ID: pinResp.ID, Code: pinResp.Code}, nil
}

// PollPIN checks whether the operator has authorized pin at plex.tv,
// returning the server auth token once they have. It returns
// ErrPINNotAuthorized (not a terminal failure) while the operator hasn't
// completed the authorization step yet; callers poll on an interval until
// either a token comes back or the PIN's own ~15 minute window lapses.
func PollPIN(ctx context.Context, pin PIN, clientID string) (string, error) {
	checkURL := pinCreateEndpoint + "/" + strconv.Itoa(pin.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("mediaserver: build pin poll request: %w", err)
	}
	identityHeaders(req, clientID)
	q := req.URL.Query()
	q.Set("code", pin.Code)
	req.URL.RawQuery = q.Encode()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("mediaserver: pin expired or unknown")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", &ProtocolError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var pinResp struct {
		AuthToken string `json:"authToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pinResp); err != nil {
		return "", fmt.Errorf("mediaserver: decode pin poll response: %w", err)
	}
	if pinResp.AuthToken == "" {
		return "", ErrPINNotAuthorized
	}
	return pinResp.AuthToken, nil
}

// PollPINUntilAuthorized polls PollPIN on interval until it returns a
// token, the PIN's timeout elapses, or ctx is canceled.
func PollPINUntilAuthorized(ctx context.Context, pin PIN, clientID string, interval, timeout time.Duration) (string, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			return "", fmt.Errorf("mediaserver: pin authorization timed out")
		case <-ticker.C:
			token, err := PollPIN(ctx, pin, clientID)
			if err == nil {
				return token, nil
			}
			if !errors.Is(err, ErrPINNotAuthorized) {
				return "", err
			}
		}
	}
}

// ListResources lists the Plex servers reachable with an identity-flow
// auth token, filtered to entries that actually provide a server (as
// opposed to a player or other Plex.tv-registered device).
func ListResources(ctx context.Context, token string) ([]Resource, error) {
	q := url.Values{"includeHttps": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pinResourcesEndpoint+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("mediaserver: build resources request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var raw []struct {
		Name        string               `json:"name"`
		Product     string               `json:"product"`
		Version     string               `json:"productVersion"`
		Provides    string               `json:"provides"`
		Connections []ResourceConnection `json:"connections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("mediaserver: decode resources response: %w", err)
	}

	out := make([]Resource, 0, len(raw))
	for _, r := range raw {
		if !strings.Contains(r.Provides, "server") {
			continue
		}
		out = append(out, Resource{Name: r.Name, Product: r.Product, Version: r.Version, Connections: r.Connections})
	}
	return out, nil
}
