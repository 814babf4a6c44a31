// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package services

import (
	"context"
	"fmt"
	"time"
)

// IntakeRunner matches the lifecycle of the cmd-level intake bundle:
// embedded broker, stream provisioning, subscriber, and consumer
// started together and torn down together. Done reports the consumer
// loop ending for any reason other than context cancellation.
type IntakeRunner interface {
	Start(ctx context.Context) error
	Done() <-chan error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// IntakeService runs the NATS intake path under supervision. A dead
// consumer is the worst silent failure the pipeline has, so the loop's
// exit is surfaced to suture: the whole bundle is torn down and brought
// back up, which also re-provisions the stream if the broker was the
// casualty.
type IntakeService struct {
	runner          IntakeRunner
	shutdownTimeout time.Duration
	name            string
}

// NewIntakeService wraps an intake bundle for supervision.
func NewIntakeService(runner IntakeRunner, shutdownTimeout time.Duration) *IntakeService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &IntakeService{
		runner:          runner,
		shutdownTimeout: shutdownTimeout,
		name:            "intake",
	}
}

// Serve implements suture.Service.
func (s *IntakeService) Serve(ctx context.Context) error {
	if err := s.runner.Start(ctx); err != nil {
		return fmt.Errorf("intake start failed: %w", err)
	}

	var failure error
	select {
	case <-ctx.Done():
	case err := <-s.runner.Done():
		failure = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.runner.Shutdown(shutdownCtx)

	if failure != nil {
		return fmt.Errorf("intake consumer stopped: %w", failure)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *IntakeService) String() string {
	return s.name
}
