// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package mediaserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func withPinEndpoints(t *testing.T, createURL, resourcesURL string) {
	t.Helper()
	origCreate, origResources := pinCreateEndpoint, pinResourcesEndpoint
	pinCreateEndpoint, pinResourcesEndpoint = createURL, resourcesURL
	t.Cleanup(func() {
		pinCreateEndpoint, pinResourcesEndpoint = origCreate, origResources
	})
}

func TestCreatePIN(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("X-Plex-Client-Identifier") == "" {
			http.Error(w, "missing client identifier", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"id": 12345, "code": "ABC1"}); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()
	withPinEndpoints(t, server.URL, server.URL)

	pin, err := CreatePIN(context.Background(), "test-client-id")
	if err != nil {
		t.Fatalf("CreatePIN() error = %v", err)
	}
	if pin.ID != 12345 || pin.Code != "ABC1" {
		t.Errorf("CreatePIN() = %+v, want {ID:12345 Code:ABC1}", pin)
	}
}

func TestCreatePIN_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()
	withPinEndpoints(t, server.URL, server.URL)

	_, err := CreatePIN(context.Background(), "test-client-id")
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("CreatePIN() error = %v, want *ProtocolError", err)
	}
	if protoErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ProtocolError.StatusCode = %d, want %d", protoErr.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestPollPIN(t *testing.T) {
	tests := []struct {
		name      string
		authToken any
		wantErr   error
	}{
		{name: "not yet authorized", authToken: "", wantErr: ErrPINNotAuthorized},
		{name: "authorized", authToken: "secret-token", wantErr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/12345" {
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				if r.URL.Query().Get("code") != "ABC1" {
					http.Error(w, "missing code", http.StatusBadRequest)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				if err := json.NewEncoder(w).Encode(map[string]any{"authToken": tt.authToken}); err != nil {
					t.Fatalf("encode response: %v", err)
				}
			}))
			defer server.Close()
			withPinEndpoints(t, server.URL, server.URL)

			token, err := PollPIN(context.Background(), PIN{ID: 12345, Code: "ABC1"}, "test-client-id")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("PollPIN() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && token != "secret-token" {
				t.Errorf("PollPIN() token = %q, want %q", token, "secret-token")
			}
		})
	}
}

func TestPollPIN_Expired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()
	withPinEndpoints(t, server.URL, server.URL)

	_, err := PollPIN(context.Background(), PIN{ID: 99, Code: "XXXX"}, "test-client-id")
	if err == nil {
		t.Fatal("PollPIN() error = nil, want non-nil on 404")
	}
}

func TestPollPINUntilAuthorized(t *testing.T) {
	var attempt int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt++
		token := ""
		if attempt >= 3 {
			token = "secret-token"
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"authToken": token}); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()
	withPinEndpoints(t, server.URL, server.URL)

	token, err := PollPINUntilAuthorized(context.Background(), PIN{ID: 1, Code: "ABC1"}, "test-client-id", 10*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("PollPINUntilAuthorized() error = %v", err)
	}
	if token != "secret-token" {
		t.Errorf("PollPINUntilAuthorized() token = %q, want %q", token, "secret-token")
	}
}

func TestPollPINUntilAuthorized_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"authToken": ""}); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()
	withPinEndpoints(t, server.URL, server.URL)

	_, err := PollPINUntilAuthorized(context.Background(), PIN{ID: 1, Code: "ABC1"}, "test-client-id", 5*time.Millisecond, 30*time.Millisecond)
	if err == nil {
		t.Fatal("PollPINUntilAuthorized() error = nil, want timeout error")
	}
}

func TestListResources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "secret-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resources := []map[string]any{
			{
				"name":           "living-room-plex",
				"product":        "Plex Media Server",
				"productVersion": "1.40.0",
				"provides":       "server",
				"connections": []map[string]any{
					{"uri": "https://10.0.0.5:32400", "local": true},
				},
			},
			{
				"name":     "someones-phone",
				"product":  "Plex for iOS",
				"provides": "player",
			},
		}
		if err := json.NewEncoder(w).Encode(resources); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()
	withPinEndpoints(t, server.URL, server.URL)

	resources, err := ListResources(context.Background(), "secret-token")
	if err != nil {
		t.Fatalf("ListResources() error = %v", err)
	}
	if len(resources) != 1 {
		t.Fatalf("ListResources() returned %d resources, want 1 (player should be filtered out)", len(resources))
	}
	if resources[0].Name != "living-room-plex" {
		t.Errorf("ListResources()[0].Name = %q, want %q", resources[0].Name, "living-room-plex")
	}
}

func TestListResources_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()
	withPinEndpoints(t, server.URL, server.URL)

	_, err := ListResources(context.Background(), "bad-token")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ListResources() error = %v, want ErrUnauthorized", err)
	}
}

// sanity check that PollPIN's URL path matches strconv.Itoa(pin.ID), not
// fmt.Sprintf("%d", pin.ID) or similar — a regression here would silently
// 404 against the real plex.tv API.
func TestPollPIN_PathUsesDecimalID(t *testing.T) {
	const id = 777
	want := "/" + strconv.Itoa(id)

	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"authToken": "tok"}); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()
	withPinEndpoints(t, server.URL, server.URL)

	if _, err := PollPIN(context.Background(), PIN{ID: id, Code: "ABC1"}, "client"); err != nil {
		t.Fatalf("PollPIN() error = %v", err)
	}
	if gotPath != want {
		t.Errorf("PollPIN() request path = %q, want %q", gotPath, want)
	}
}
