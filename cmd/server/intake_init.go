// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/intake"
	"github.com/harrierpack/trailhound/internal/logging"
)

// IntakeComponents bundles the NATS intake path for lifecycle
// management: optional embedded broker, stream provisioning, Watermill
// subscriber, and the payload consumer loop. It satisfies the
// supervision wrapper's IntakeRunner interface, so a consumer crash
// tears the bundle down and brings it back up from scratch.
type IntakeComponents struct {
	// cfg keeps the resolved NATS settings so a supervised restart can
	// rebuild every component, embedded broker included.
	cfg      config.NATSConfig
	embedded bool
	runner   intake.Runner
	journal  intake.PayloadJournal

	server     *intake.EmbeddedServer
	natsConn   *natsgo.Conn
	subscriber *intake.Subscriber
	consumer   *intake.Consumer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan error
}

// InitIntake wires the intake path and brings the broker, stream, and
// subscriber up eagerly so misconfiguration surfaces at boot instead of
// on the first payload. Returns (nil, nil) when NATS intake is
// disabled.
func InitIntake(cfg *config.Config, runner intake.Runner, payloadJournal intake.PayloadJournal) (*IntakeComponents, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS intake disabled (TRAILHOUND_NATS_ENABLED=false)")
		return nil, nil
	}

	components := &IntakeComponents{
		cfg:      cfg.NATS,
		embedded: cfg.NATS.EmbeddedServer,
		runner:   runner,
		journal:  payloadJournal,
	}
	if err := components.bringUp(context.Background()); err != nil {
		return nil, err
	}
	return components, nil
}

// bringUp constructs the broker-to-consumer chain. On failure it tears
// down whatever came up, so callers never see a half-built bundle.
func (c *IntakeComponents) bringUp(ctx context.Context) error {
	cfg := c.cfg

	if c.embedded {
		server, err := intake.NewEmbeddedServer(cfg)
		if err != nil {
			return fmt.Errorf("start embedded NATS server: %w", err)
		}
		c.server = server
		cfg.URL = server.ClientURL()
		logging.Info().Str("url", cfg.URL).Msg("Embedded NATS server started")
	} else {
		logging.Info().Str("url", cfg.URL).Msg("Using external NATS server")
	}

	nc, err := natsgo.Connect(cfg.URL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2*time.Second),
	)
	if err != nil {
		c.tearDown(ctx)
		return fmt.Errorf("connect to NATS: %w", err)
	}
	c.natsConn = nc

	initializer, err := intake.NewStreamInitializerConn(nc, cfg)
	if err != nil {
		c.tearDown(ctx)
		return fmt.Errorf("create stream initializer: %w", err)
	}
	stream, err := initializer.EnsureStream(ctx)
	if err != nil {
		c.tearDown(ctx)
		return fmt.Errorf("ensure payload stream: %w", err)
	}
	info := stream.CachedInfo()
	logging.Info().
		Str("name", info.Config.Name).
		Strs("subjects", info.Config.Subjects).
		Dur("max_age", info.Config.MaxAge).
		Msg("JetStream payload stream ready")

	subscriber, err := intake.NewSubscriber(cfg, nil)
	if err != nil {
		c.tearDown(ctx)
		return fmt.Errorf("create payload subscriber: %w", err)
	}
	c.subscriber = subscriber
	c.consumer = intake.NewConsumer(subscriber, c.runner, c.journal, cfg)

	return nil
}

// tearDown closes components in consume-to-broker order. Callers hold
// the lock or have exclusive access during construction.
func (c *IntakeComponents) tearDown(ctx context.Context) {
	if c.subscriber != nil {
		if err := c.subscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing payload subscriber")
		}
		c.subscriber = nil
		c.consumer = nil
	}
	if c.natsConn != nil {
		c.natsConn.Close()
		c.natsConn = nil
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
		}
		c.server = nil
		logging.Info().Msg("Embedded NATS server stopped")
	}
}

// Start launches the consumer loop. After a Shutdown, the whole bundle
// is rebuilt first so supervised restarts recover from a dead broker.
func (c *IntakeComponents) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if c.subscriber == nil {
		if err := c.bringUp(ctx); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	consumer := c.consumer

	go func() {
		err := consumer.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			done <- err
		}
		close(done)
	}()

	c.cancel = cancel
	c.done = done
	c.running = true
	return nil
}

// Done reports the consumer loop ending for any reason other than
// shutdown. The supervision wrapper restarts the bundle when it fires.
func (c *IntakeComponents) Done() <-chan error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Shutdown stops the consumer loop, waits for it to drain, and tears
// the bundle down. Safe to call repeatedly.
func (c *IntakeComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}

	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.running = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	c.mu.Lock()
	c.tearDown(ctx)
	c.mu.Unlock()
}

// IsRunning reports whether the consumer loop is active.
func (c *IntakeComponents) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
