// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogBridge adapts zerolog to the slog.Handler interface so libraries
// that speak slog, such as sutureslog, share the process-wide log
// configuration. Groups are flattened into dotted key prefixes.
// Attributes bound via WithAttrs are baked into the wrapped logger once
// rather than replayed on every record.
type slogBridge struct {
	logger zerolog.Logger
	prefix string
}

// NewSlogLogger returns an slog.Logger that writes through the global
// zerolog logger.
//
//	tree, err := supervisor.NewTree(logging.NewSlogLogger(), cfg)
func NewSlogLogger() *slog.Logger {
	return slog.New(&slogBridge{logger: Logger()})
}

// Enabled checks the record level against both the wrapped logger's
// level and the zerolog global level, which is where Init applies the
// configured threshold.
func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	lvl := zerologLevel(level)
	return lvl >= b.logger.GetLevel() && lvl >= zerolog.GlobalLevel()
}

func (b *slogBridge) Handle(_ context.Context, record slog.Record) error {
	evt := b.logger.WithLevel(zerologLevel(record.Level))
	record.Attrs(func(a slog.Attr) bool {
		evt = appendAttr(evt, b.prefix, a)
		return true
	})
	evt.Msg(record.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	ctx := b.logger.With()
	for _, a := range attrs {
		ctx = bindAttr(ctx, b.prefix, a)
	}
	return &slogBridge{logger: ctx.Logger(), prefix: b.prefix}
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	return &slogBridge{logger: b.logger, prefix: b.prefix + name + "."}
}

// appendAttr writes one attribute onto an in-flight event, flattening
// group values under their dotted prefix.
func appendAttr(evt *zerolog.Event, prefix string, a slog.Attr) *zerolog.Event {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := groupPrefix(prefix, a.Key)
		for _, ga := range v.Group() {
			evt = appendAttr(evt, p, ga)
		}
		return evt
	}

	key := prefix + a.Key
	switch v.Kind() {
	case slog.KindBool:
		return evt.Bool(key, v.Bool())
	case slog.KindDuration:
		return evt.Dur(key, v.Duration())
	case slog.KindFloat64:
		return evt.Float64(key, v.Float64())
	case slog.KindInt64:
		return evt.Int64(key, v.Int64())
	case slog.KindString:
		return evt.Str(key, v.String())
	case slog.KindTime:
		return evt.Time(key, v.Time())
	case slog.KindUint64:
		return evt.Uint64(key, v.Uint64())
	default:
		return evt.Interface(key, v.Any())
	}
}

// bindAttr is appendAttr for logger contexts, used when attributes are
// bound ahead of time through WithAttrs.
func bindAttr(ctx zerolog.Context, prefix string, a slog.Attr) zerolog.Context {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := groupPrefix(prefix, a.Key)
		for _, ga := range v.Group() {
			ctx = bindAttr(ctx, p, ga)
		}
		return ctx
	}

	key := prefix + a.Key
	switch v.Kind() {
	case slog.KindBool:
		return ctx.Bool(key, v.Bool())
	case slog.KindDuration:
		return ctx.Dur(key, v.Duration())
	case slog.KindFloat64:
		return ctx.Float64(key, v.Float64())
	case slog.KindInt64:
		return ctx.Int64(key, v.Int64())
	case slog.KindString:
		return ctx.Str(key, v.String())
	case slog.KindTime:
		return ctx.Time(key, v.Time())
	case slog.KindUint64:
		return ctx.Uint64(key, v.Uint64())
	default:
		return ctx.Interface(key, v.Any())
	}
}

// groupPrefix extends a dotted prefix by one group. An empty group name
// inlines its members, per the slog contract.
func groupPrefix(prefix, key string) string {
	if key == "" {
		return prefix
	}
	return prefix + key + "."
}

// zerologLevel maps an slog level onto the zerolog scale. Levels below
// debug become trace; levels above error stay at error.
func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelDebug:
		return zerolog.TraceLevel
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
