// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches the *http.Server lifecycle methods the wrapper
// needs.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server under supervision. Serve
// blocks on ListenAndServe while a watcher goroutine waits for
// cancellation and drives the graceful Shutdown, bounded by the
// configured timeout.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService wraps an HTTP server for supervision.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements suture.Service. http.ErrServerClosed is the normal
// result of Shutdown and is not treated as a failure.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	serveDone := make(chan struct{})
	shutdownRes := make(chan error, 1)

	go func() {
		select {
		case <-ctx.Done():
			// The serve context is already canceled; shutdown gets its
			// own deadline.
			sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			shutdownRes <- s.server.Shutdown(sctx)
		case <-serveDone:
			shutdownRes <- nil
		}
	}()

	err := s.server.ListenAndServe()
	close(serveDone)

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}

	if serr := <-shutdownRes; serr != nil {
		return fmt.Errorf("http server shutdown: %w", serr)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *HTTPServerService) String() string {
	return s.name
}
