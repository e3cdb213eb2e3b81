// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/eventbus"
	"github.com/tomtom215/cartographus/internal/logging"
)

const sseKeepalive = 30 * time.Second

// handleEvents streams scan and auto-apply progress over Server-Sent
// Events. Every connection receives a "connected" snapshot first, then
// live events as the engines publish them, with a periodic keepalive
// comment so intermediate proxies don't time out the connection.
func (rt *Router) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		NewResponseWriter(w, r).InternalError(fmt.Errorf("api: response writer does not support flushing"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	scanSub := rt.Scans.Subscribe()
	defer rt.Scans.Unsubscribe(scanSub)
	applySub := rt.AutoApply.Subscribe()
	defer rt.AutoApply.Unsubscribe(applySub)

	ticker := time.NewTicker(sseKeepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-scanSub.Events():
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				logging.Warn().Err(err).Msg("api: sse write failed, closing stream")
				return
			}
			flusher.Flush()
		case event, ok := <-applySub.Events():
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				logging.Warn().Err(err).Msg("api: sse write failed, closing stream")
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event eventbus.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
	return err
}

// handleWebSocket streams the same progress events over a WebSocket
// connection, for clients that prefer a bidirectional transport.
func (rt *Router) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	origin := checkOrigin(rt.Security.CORSOrigins)
	eventbus.ServeWS(rt.Scans.EventBus(), eventbus.Event{Data: rt.Scans.Snapshot()}, origin, w, r)
}
