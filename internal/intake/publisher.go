// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package intake

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
	"github.com/harrierpack/trailhound/internal/validation"
)

const (
	publisherMaxReconnects   = -1 // keep retrying; adapters outlive broker restarts
	publisherReconnectWait   = 2 * time.Second
	publisherReconnectBuffer = 8 * 1024 * 1024
)

// Publisher sends scrape payload envelopes to JetStream. Fetch adapters
// use it as their only hand-off point to the pipeline. Each message
// carries a Nats-Msg-Id so a retried publish inside the stream's
// duplicate window is dropped by the broker instead of merged twice.
type Publisher struct {
	publisher     message.Publisher
	subjectPrefix string
	breaker       *gobreaker.CircuitBreaker[interface{}]
	mu            sync.RWMutex
	closed        bool
}

// NewPublisher creates a JetStream publisher from the intake settings.
// The stream must already exist (see StreamInitializer); auto-provision
// is disabled because the wildcard subject cannot name a stream.
func NewPublisher(cfg config.NATSConfig, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = NewWatermillLogger("intake-publisher")
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(publisherMaxReconnects),
		natsgo.ReconnectWait(publisherReconnectWait),
		natsgo.ReconnectBufSize(publisherReconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("publisher disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("publisher reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{
		publisher:     pub,
		subjectPrefix: cfg.SubjectPrefix,
	}, nil
}

// SetCircuitBreaker attaches a breaker to publish operations. Without
// one, publishes go straight to the broker.
func (p *Publisher) SetCircuitBreaker(cb *gobreaker.CircuitBreaker[interface{}]) {
	p.breaker = cb
}

// NewPublisherBreaker returns a circuit breaker tuned for the intake
// publisher: it opens after five consecutive failed publishes and probes
// again after 30 seconds. State changes are exported as a gauge.
func NewPublisherBreaker() *gobreaker.CircuitBreaker[interface{}] {
	settings := gobreaker.Settings{
		Name:    "intake-publisher",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("publisher circuit breaker state change")
		},
	}
	return gobreaker.NewCircuitBreaker[interface{}](settings)
}

// Publish sends one message to the given subject. The message UUID
// doubles as the Nats-Msg-Id unless the caller already set one.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}
	msg.SetContext(ctx)

	var err error
	if p.breaker != nil {
		_, err = p.breaker.Execute(func() (interface{}, error) {
			return nil, p.publisher.Publish(topic, msg)
		})
	} else {
		err = p.publisher.Publish(topic, msg)
	}

	if err == nil {
		metrics.RecordNATSPublish()
	}
	return err
}

// PublishPayload validates, serializes, and publishes one scrape payload
// envelope to the source's subject.
func (p *Publisher) PublishPayload(ctx context.Context, payload *models.ScrapePayload) error {
	if payload == nil {
		return fmt.Errorf("payload is nil")
	}
	if verr := validation.ValidateStruct(payload); verr != nil {
		return fmt.Errorf("invalid payload: %w", verr)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("source_id", strconv.FormatInt(payload.SourceID, 10))
	msg.Metadata.Set("adapter_type", string(payload.AdapterType))

	return p.Publish(ctx, SubjectForSource(p.subjectPrefix, payload.SourceID), msg)
}

// Close shuts the publisher down. Safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
