// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/harrierpack/trailhound/internal/logging"
)

// TreeConfig holds supervision tree tuning.
type TreeConfig struct {
	// FailureThreshold is the number of failures before a layer enters
	// backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which accumulated failures decay, in
	// seconds.
	FailureDecay float64

	// FailureBackoff is how long a layer pauses once the threshold is
	// exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout bounds how long a service may take to stop before
	// it is reported as unstopped.
	ShutdownTimeout time.Duration
}

// withDefaults fills zero fields with suture's documented defaults.
func (c TreeConfig) withDefaults() TreeConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5.0
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = 30.0
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}

// DefaultTreeConfig returns the full default tuning.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{}.withDefaults()
}

// Tree is the three-layer supervision hierarchy described in the
// package documentation.
type Tree struct {
	root      *suture.Supervisor
	data      *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
	config    TreeConfig
}

// NewTree builds the supervision tree. A nil logger falls back to the
// zerolog-backed slog bridge so supervisor events land in the normal
// application log.
func NewTree(logger *slog.Logger, config TreeConfig) (*Tree, error) {
	config = config.withDefaults()
	if logger == nil {
		logger = logging.NewSlogLogger()
	}

	// sutureslog's hook constructor has a pointer receiver; MustHook
	// panics only on a nil logger, which is excluded above.
	rootSpec := suture.Spec{
		EventHook:        (&sutureslog.Handler{Logger: logger}).MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Child layers share the tuning but not the hook; events bubble up
	// to the root.
	layerSpec := rootSpec
	layerSpec.EventHook = nil

	root := suture.New("trailhound", rootSpec)
	layer := func(name string) *suture.Supervisor {
		s := suture.New(name, layerSpec)
		root.Add(s)
		return s
	}

	return &Tree{
		root:      root,
		data:      layer("data-layer"),
		messaging: layer("messaging-layer"),
		api:       layer("api-layer"),
		config:    config,
	}, nil
}

// AddDataService supervises a service in the data layer. Use this for
// journal maintenance loops.
func (t *Tree) AddDataService(svc suture.Service) suture.ServiceToken {
	return t.data.Add(svc)
}

// AddMessagingService supervises a service in the messaging layer. Use
// this for the embedded broker and the payload consumer.
func (t *Tree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// AddAPIService supervises a service in the API layer.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree and blocks until the context is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a background goroutine. The returned
// channel receives the terminal error, or nil, when the tree stops.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown
// timeout. Useful when a shutdown hangs.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
