// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/harrierpack/trailhound/internal/config"
)

const (
	subscriberMaxReconnects = -1
	subscriberReconnectWait = 2 * time.Second
	subscriberMaxDeliver    = 5
	subscriberMaxAckPending = 64
	subscriberAckWait       = 2 * time.Minute
)

// Subscriber is a durable JetStream consumer of the payload stream.
// Queue-group delivery balances payloads across instances; the durable
// name keeps the consumer's position across restarts.
type Subscriber struct {
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
}

// NewSubscriber creates a durable subscriber bound to the payload stream.
// The stream must already exist: the subscription topic is a wildcard,
// which cannot name a stream, so auto-provision stays off and the
// subscriber binds to the stream StreamInitializer provisioned.
func NewSubscriber(cfg config.NATSConfig, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = NewWatermillLogger("intake-subscriber")
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(subscriberMaxReconnects),
		natsgo.ReconnectWait(subscriberReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("subscriber reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(subscriberMaxDeliver),
		natsgo.MaxAckPending(subscriberMaxAckPending),
		natsgo.AckWait(subscriberAckWait),
		// Payloads published while the pipeline is down must still be
		// processed on restart, so the durable starts from the beginning
		// of the stream rather than from new messages only.
		natsgo.DeliverAll(),
		natsgo.BindStream(StreamName),
	}

	subscribersCount := cfg.SubscribersCount
	if subscribersCount <= 0 {
		subscribersCount = 1
	}
	closeTimeout := cfg.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 30 * time.Second
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: subscribersCount,
		AckWaitTimeout:   subscriberAckWait,
		CloseTimeout:     closeTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false, // synchronous acks; a lost ack means a redelivered run
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Subscriber{
		subscriber: sub,
		logger:     logger,
	}, nil
}

// Subscribe returns the message channel for a topic. The channel closes
// when the context is cancelled or the subscriber is closed.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.subscriber.Subscribe(ctx, topic)
}

// Close shuts the subscriber down.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
