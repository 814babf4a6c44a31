// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Unexported key types keep context values collision-free.
type (
	runIDKeyType     struct{}
	requestIDKeyType struct{}
	loggerKeyType    struct{}
)

// GenerateRequestID creates a new unique request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRunID returns a context carrying a scrape run ID. Every
// log line emitted through Ctx during the run includes it, which is
// what ties consumer, merge, and analyzer output together in search.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKeyType{}, id)
}

// RunIDFromContext returns the run ID, or "" when the context carries
// none.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runIDKeyType{}).(string)
	return id
}

// ContextWithRequestID returns a context carrying an HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKeyType{}, id)
}

// ContextWithNewRequestID returns a context carrying a freshly
// generated request ID.
func ContextWithNewRequestID(ctx context.Context) context.Context {
	return ContextWithRequestID(ctx, GenerateRequestID())
}

// RequestIDFromContext returns the request ID, or "" when the context
// carries none.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKeyType{}).(string)
	return id
}

// ContextWithLogger stores a specific logger in the context, overriding
// the global one for everything downstream that logs via Ctx.
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKeyType{}, logger)
}

// LoggerFromContext returns the context's logger, falling back to the
// global one.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKeyType{}).(zerolog.Logger); ok {
		return logger
	}
	return Logger()
}

// Ctx returns a logger carrying the context's run and request IDs as
// fields. This is how pipeline stages and HTTP handlers should log.
//
//	logging.Ctx(ctx).Info().Msg("merge complete")
func Ctx(ctx context.Context) *zerolog.Logger {
	c := LoggerFromContext(ctx).With()
	if id := RunIDFromContext(ctx); id != "" {
		c = c.Str("run_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		c = c.Str("request_id", id)
	}
	logger := c.Logger()
	return &logger
}

// CtxErr starts an error level message with context fields and the
// error attached. Shorthand for Ctx(ctx).Err(err).
func CtxErr(ctx context.Context, err error) *zerolog.Event {
	return Ctx(ctx).Err(err)
}

// WithComponent returns a child of the global logger tagged with a
// component field.
//
//	resolverLog := logging.WithComponent("resolver")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
