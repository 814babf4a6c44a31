// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package intake

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/harrierpack/trailhound/internal/config"
)

// EmbeddedServer wraps an in-process NATS server with lifecycle
// management. It keeps single-binary deployments self-contained: scrape
// adapters and the pipeline talk over localhost without an external
// broker to operate.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts an embedded NATS JetStream server
// listening on the host and port of cfg.URL, so out-of-process adapters
// can publish to the same address in-process components dial. Returns an
// error if the server is not ready within 30 seconds.
func NewEmbeddedServer(cfg config.NATSConfig) (*EmbeddedServer, error) {
	host, port := listenAddr(cfg.URL)

	opts := &server.Options{
		ServerName:         "trailhound-intake",
		Host:               host,
		Port:               port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		DontListen:         false,
		Debug:              false,
		Trace:              false,
		NoLog:              true,
		// Payload envelopes carry a whole scrape run; the largest real
		// catalogs are a few hundred KB, so 8MB leaves ample headroom.
		MaxPayload: 8 * 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL clients should dial.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server and waits for it to drain, or returns early
// when the context is cancelled.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// IsRunning reports whether the server is accepting connections.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// JetStreamEnabled reports whether JetStream started successfully.
func (s *EmbeddedServer) JetStreamEnabled() bool {
	return s.server.JetStreamEnabled()
}

// listenAddr extracts the host and port from a NATS URL, falling back to
// the client default when the URL is missing or unparseable.
func listenAddr(rawURL string) (string, int) {
	const defaultHost, defaultPort = "127.0.0.1", 4222

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return defaultHost, defaultPort
	}

	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return u.Host, defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defaultPort
	}
	return host, port
}
