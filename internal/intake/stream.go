// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/harrierpack/trailhound/internal/config"
)

// JetStreamContext is the subset of jetstream.JetStream the initializer
// uses, extracted so tests can substitute a mock.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	DeleteStream(ctx context.Context, name string) error
}

// StreamInitializer provisions the payload stream before publishers and
// subscribers start. EnsureStream is idempotent: it updates the stream's
// configuration when the stream already exists and creates it otherwise,
// so restarts and config changes converge without manual intervention.
type StreamInitializer struct {
	js     JetStreamContext
	name   string
	config config.NATSConfig
}

// NewStreamInitializer builds an initializer over an existing JetStream
// context. The stream covers every subject under the configured prefix.
func NewStreamInitializer(js JetStreamContext, cfg config.NATSConfig) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("JetStream context required")
	}
	return &StreamInitializer{
		js:     js,
		name:   StreamName,
		config: cfg,
	}, nil
}

// NewStreamInitializerConn is a convenience that derives the JetStream
// context from a NATS connection.
func NewStreamInitializerConn(nc *natsgo.Conn, cfg config.NATSConfig) (*StreamInitializer, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	return NewStreamInitializer(js, cfg)
}

// EnsureStream creates or updates the payload stream.
//
// Retention is limits-based: payloads older than the configured retention
// window age out whether or not they were consumed, which bounds disk use
// when the pipeline is down for an extended stretch. The duplicate window
// lets JetStream drop re-published payloads by Nats-Msg-Id, the first
// line of defense before fingerprint deduplication in the merge stage.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	retentionDays := s.config.StreamRetentionDays
	if retentionDays <= 0 {
		retentionDays = 7
	}

	streamCfg := jetstream.StreamConfig{
		Name:        s.name,
		Subjects:    []string{SubjectWildcard(s.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      time.Duration(retentionDays) * 24 * time.Hour,
		MaxBytes:    s.config.MaxStore,
		Duplicates:  2 * time.Minute,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
	}

	_, err := s.js.Stream(ctx, s.name)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", s.name, err)
		}
		return stream, nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", s.name, err)
		}
		return stream, nil
	}

	return nil, fmt.Errorf("check stream %s: %w", s.name, err)
}

// IsHealthy reports whether the stream exists and is reachable.
func (s *StreamInitializer) IsHealthy(ctx context.Context) bool {
	_, err := s.js.Stream(ctx, s.name)
	return err == nil
}
