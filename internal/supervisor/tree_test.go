// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// stubService runs until its context ends, optionally failing a fixed
// number of times first.
type stubService struct {
	name       string
	starts     atomic.Int32
	stops      atomic.Int32
	failsLeft  atomic.Int32
	failErr    error
	registered atomic.Bool
}

func newStubService(name string, failures int32, failErr error) *stubService {
	s := &stubService{name: name, failErr: failErr}
	s.failsLeft.Store(failures)
	return s
}

func (s *stubService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	defer s.stops.Add(1)

	if s.failsLeft.Load() > 0 {
		s.failsLeft.Add(-1)
		return s.failErr
	}

	s.registered.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubService) String() string { return s.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewTree_Defaults(t *testing.T) {
	tree, err := NewTree(quietLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("expected default FailureThreshold 5.0, got %f", tree.config.FailureThreshold)
	}
	if tree.config.FailureDecay != 30.0 {
		t.Errorf("expected default FailureDecay 30.0, got %f", tree.config.FailureDecay)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("expected default FailureBackoff 15s, got %v", tree.config.FailureBackoff)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected default ShutdownTimeout 10s, got %v", tree.config.ShutdownTimeout)
	}
}

func TestNewTree_NilLoggerUsesZerologBridge(t *testing.T) {
	tree, err := NewTree(nil, DefaultTreeConfig())
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	if tree == nil {
		t.Fatal("expected tree")
	}
}

func TestTree_ServeAndShutdown(t *testing.T) {
	tree, err := NewTree(quietLogger(), TreeConfig{
		FailureBackoff:  100 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	data := newStubService("stub-data", 0, nil)
	messaging := newStubService("stub-messaging", 0, nil)
	api := newStubService("stub-api", 0, nil)
	tree.AddDataService(data)
	tree.AddMessagingService(messaging)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for data.starts.Load() == 0 || messaging.starts.Load() == 0 || api.starts.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("services did not start in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected serve error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not shut down in time")
	}

	if data.stops.Load() == 0 || messaging.stops.Load() == 0 || api.stops.Load() == 0 {
		t.Error("expected all services to stop")
	}
}

func TestTree_RestartsFailedService(t *testing.T) {
	tree, err := NewTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   50 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	flaky := newStubService("stub-flaky", 2, errors.New("transient failure"))
	tree.AddMessagingService(flaky)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(3 * time.Second)
	for !flaky.registered.Load() {
		select {
		case <-deadline:
			t.Fatalf("service was not restarted past its failures (starts=%d)", flaky.starts.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := flaky.starts.Load(); got < 3 {
		t.Errorf("expected at least 3 starts (2 failures + success), got %d", got)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not shut down in time")
	}
}
