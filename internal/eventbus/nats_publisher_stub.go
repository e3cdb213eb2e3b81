// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

//go:build !nats

package eventbus

import "fmt"

// NATSPublisherConfig configures the durable JetStream mirror of the
// in-memory Bus. Stubbed out here: build with -tags nats to enable it.
type NATSPublisherConfig struct {
	URL     string
	Subject string
}

// NATSPublisher is a stub for non-NATS builds.
type NATSPublisher struct{}

// NewNATSPublisher always errors in non-NATS builds.
func NewNATSPublisher(_ NATSPublisherConfig) (*NATSPublisher, error) {
	return nil, fmt.Errorf("eventbus: nats support not enabled (build with -tags nats)")
}

// Publish is a no-op stub.
func (p *NATSPublisher) Publish(_ Event) {}

// Close is a no-op stub.
func (p *NATSPublisher) Close() error { return nil }
