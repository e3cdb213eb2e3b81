// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package eventbus

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/cartographus/internal/logging"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// Upgrader is the shared WebSocket upgrader. Origin checking is the caller's
// responsibility (CheckOrigin is overridden per request in ServeWS).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS upgrades r to a WebSocket connection and streams bus events to it
// until the client disconnects or the bus drops the subscriber. snapshot
// seeds the connected event, exactly as the SSE transport does. checkOrigin
// decides whether the request's Origin header is acceptable.
func ServeWS(bus *Bus, snapshot Event, checkOrigin func(*http.Request) bool, w http.ResponseWriter, r *http.Request) {
	u := upgrader
	u.CheckOrigin = checkOrigin
	conn, err := u.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("eventbus: websocket upgrade failed")
		return
	}

	sub := bus.Subscribe(snapshot)
	defer bus.Unsubscribe(sub)

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, sub, done)
}

// readPump discards client messages but keeps the read deadline alive via
// pong handling, and signals done when the client disconnects.
func readPump(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// writePump forwards bus events to the connection as JSON until the
// subscriber channel closes, the connection errors, or done fires.
func writePump(conn *websocket.Conn, sub *Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	defer func() { _ = conn.Close() }()

	for {
		select {
		case <-done:
			return
		case event, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
