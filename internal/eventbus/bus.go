// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package eventbus is the typed pub/sub primitive shared by the Scan Engine
// and Auto-Apply Engine to drive both the SSE and WebSocket live-progress
// endpoints. A new subscriber is seeded with a "connected" snapshot of
// current state before any further events arrive, so a client never has a
// window where it has nothing to render.
package eventbus

import (
	"sort"
	"sync"

	"github.com/tomtom215/cartographus/internal/logging"
)

// Kind discriminates event payloads. Scan-lifecycle kinds mirror
// models.ScanEventKind; connected/scan_progress/keepalive exist only on the
// live bus, never in the persisted ScanEvent log.
type Kind string

const (
	KindConnected     Kind = "connected"
	KindScanStarted   Kind = "scan_started"
	KindScanProgress  Kind = "scan_progress"
	KindScanPaused    Kind = "scan_paused"
	KindScanResumed   Kind = "scan_resumed"
	KindScanCancelled Kind = "scan_cancelled"
	KindScanCompleted Kind = "scan_completed"
	KindScanFailed    Kind = "scan_failed"
	KindKeepalive     Kind = "keepalive"
)

// Event is one message published to the bus.
type Event struct {
	Type Kind `json:"type"`
	Data any  `json:"data,omitempty"`
}

const subscriberBuffer = 64

// Subscriber is one connected client's event queue (backing one SSE or
// WebSocket connection).
type Subscriber struct {
	id int
	ch chan Event
}

// Events returns the channel to range over for delivery.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Bus fans out published events to every current subscriber, in
// deterministic subscriber-id order, dropping (with a log) rather than
// blocking a slow or disconnected client.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]*Subscriber
	nextID      int
	mirror      *NATSPublisher
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[int]*Subscriber)}
}

// SetMirror attaches a durable JetStream mirror: every future Publish call
// is also sent there, in addition to the in-memory subscriber fan-out.
// Passing nil detaches any existing mirror.
func (b *Bus) SetMirror(mirror *NATSPublisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mirror = mirror
}

// Subscribe registers a new subscriber and seeds its queue with a
// "connected" snapshot event before returning.
func (b *Bus) Subscribe(snapshot Event) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber{id: b.nextID, ch: make(chan Event, subscriberBuffer)}
	b.subscribers[sub.id] = sub

	snapshot.Type = KindConnected
	sub.ch <- snapshot

	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub.id]; ok {
		delete(b.subscribers, sub.id)
		close(sub.ch)
	}
}

// Publish delivers event to every subscriber in id order. A subscriber
// whose queue is full is dropped rather than blocking the publisher. The
// durable mirror, if any, is published to outside the subscriber lock so a
// slow NATS round-trip never stalls in-memory fan-out.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	mirror := b.mirror
	ids := make([]int, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		sub := b.subscribers[id]
		select {
		case sub.ch <- event:
		default:
			logging.Warn().Int("subscriber_id", id).Str("event_type", string(event.Type)).Msg("eventbus: subscriber queue full, dropping client")
			delete(b.subscribers, id)
			close(sub.ch)
		}
	}
	b.mu.Unlock()

	if mirror != nil {
		mirror.Publish(event)
	}
}

// SubscriberCount returns the number of currently connected subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
