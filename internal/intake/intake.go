// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package intake

import (
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/harrierpack/trailhound/internal/logging"
)

// StreamName is the JetStream stream holding scrape payload envelopes.
// Stream names cannot contain dots, so the subject hierarchy lives in
// the stream's subject filter instead.
const StreamName = "SCRAPE_PAYLOADS"

// DefaultSubjectPrefix is used when the configuration leaves the payload
// subject prefix empty.
const DefaultSubjectPrefix = "scrape.payload"

// SubjectForSource returns the publish subject for one source's payloads,
// e.g. "scrape.payload.7".
func SubjectForSource(prefix string, sourceID int64) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + "." + strconv.FormatInt(sourceID, 10)
}

// SubjectWildcard returns the consumer-side subscription topic covering
// every source under the prefix, e.g. "scrape.payload.>".
func SubjectWildcard(prefix string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + ".>"
}

// wmLogger adapts the process zerolog logger to watermill.LoggerAdapter
// so the bus plumbing logs through the same sink as everything else.
type wmLogger struct {
	logger zerolog.Logger
}

// NewWatermillLogger returns a watermill.LoggerAdapter backed by the
// package-wide zerolog logger, tagged with the given component name.
func NewWatermillLogger(component string) watermill.LoggerAdapter {
	return &wmLogger{logger: logging.WithComponent(component)}
}

func (l *wmLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error().Err(err), fields).Msg(msg)
}

func (l *wmLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Info(), fields).Msg(msg)
}

func (l *wmLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), fields).Msg(msg)
}

func (l *wmLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), fields).Msg(msg)
}

func (l *wmLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &wmLogger{logger: ctx.Logger()}
}

func (l *wmLogger) event(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}
