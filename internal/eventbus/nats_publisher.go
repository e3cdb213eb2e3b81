// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

//go:build nats

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/cartographus/internal/logging"
)

// NATSPublisherConfig configures the durable JetStream mirror of the
// in-memory Bus. Subject is a single JetStream subject; every Event is
// published there as JSON with its Kind in the Nats-Msg-Subject header so
// a replaying subscriber can route without decoding the body first.
type NATSPublisherConfig struct {
	URL     string
	Subject string
}

// NATSPublisher mirrors Bus.Publish calls onto a JetStream subject so a
// restarted subscriber (or a second process entirely) can replay progress
// the in-memory Bus would otherwise have dropped on disconnect.
type NATSPublisher struct {
	publisher message.Publisher
	subject   string
	log       *logging.EventLogger
}

// NewNATSPublisher dials NATS and wraps it in a Watermill publisher
// configured for JetStream. Connection is synchronous; callers should treat
// a non-nil error as "durable mirroring unavailable", not fatal to the bus
// itself, which always keeps working in-memory regardless.
func NewNATSPublisher(cfg NATSPublisherConfig) (*NATSPublisher, error) {
	logger := watermill.NewStdLogger(false, false)

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(10),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("eventbus: nats disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("eventbus: nats reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("eventbus: create nats publisher: %w", err)
	}

	eventLog := logging.NewEventLogger().WithFields(map[string]interface{}{"subject": cfg.Subject})
	eventLog.LogSubscriptionStarted(cfg.Subject, "")

	return &NATSPublisher{publisher: pub, subject: cfg.Subject, log: eventLog}, nil
}

// Publish mirrors one Event onto the configured JetStream subject. Failures
// are logged and swallowed: a durable-mirror outage must never block the
// in-memory fan-out Bus.Publish already completed.
func (p *NATSPublisher) Publish(event Event) {
	id := uuid.NewString()

	body, err := json.Marshal(event)
	if err != nil {
		p.log.LogEventFailed(context.Background(), id, fmt.Errorf("marshal event: %w", err))
		return
	}

	msg := message.NewMessage(id, body)
	msg.Metadata.Set("event_type", string(event.Type))

	if err := p.publisher.Publish(p.subject, msg); err != nil {
		p.log.LogEventFailed(context.Background(), id, err)
		return
	}
	p.log.LogEventPublished(context.Background(), id, p.subject)
}

// Close releases the underlying NATS connection.
func (p *NATSPublisher) Close() error {
	p.log.LogSubscriptionStopped(p.subject)
	return p.publisher.Close()
}
