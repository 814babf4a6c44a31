// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum emitted level: trace, debug, info, warn,
	// error, fatal, panic, or disabled. Defaults to info.
	Level string

	// Format selects json or console output. Defaults to json; console
	// is for local development.
	Format string

	// Caller adds file:line to every record.
	Caller bool

	// Timestamp adds the time field. On by default.
	Timestamp bool

	// Output is the destination writer. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

// global holds the current logger. Swapped wholesale on Init, read on
// every log call, so it is an atomic pointer rather than a mutex.
var global atomic.Pointer[zerolog.Logger]

// fieldNamesOnce applies the zerolog package-level field naming exactly
// once; reconfiguring the logger never renames fields mid-process.
var fieldNamesOnce sync.Once

func init() {
	logger := build(DefaultConfig())
	global.Store(&logger)
}

// Init configures the global logger. Call it early in startup, before
// the supervision tree spins up. Calling it again reconfigures output
// and level; loggers already derived via With keep their old settings.
func Init(cfg Config) {
	logger := build(cfg)
	global.Store(&logger)
}

// build constructs a logger from the config and applies the global
// level threshold.
func build(cfg Config) zerolog.Logger {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	fieldNamesOnce.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		zerolog.TimestampFieldName = "time"
		zerolog.LevelFieldName = "level"
		zerolog.MessageFieldName = "message"
		zerolog.ErrorFieldName = "error"
		zerolog.CallerFieldName = "caller"
	})

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(out)
	if cfg.Timestamp {
		logger = logger.With().Timestamp().Logger()
	}
	if cfg.Caller {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// levelNames maps config strings onto zerolog levels.
var levelNames = map[string]zerolog.Level{
	"trace":    zerolog.TraceLevel,
	"debug":    zerolog.DebugLevel,
	"info":     zerolog.InfoLevel,
	"warn":     zerolog.WarnLevel,
	"warning":  zerolog.WarnLevel,
	"error":    zerolog.ErrorLevel,
	"fatal":    zerolog.FatalLevel,
	"panic":    zerolog.PanicLevel,
	"disabled": zerolog.Disabled,
}

// parseLevel converts a level string to zerolog.Level, defaulting to
// info for anything unrecognized.
func parseLevel(level string) zerolog.Level {
	if lvl, ok := levelNames[strings.ToLower(level)]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// Logger returns a copy of the global logger for callers that need the
// underlying zerolog.Logger directly.
func Logger() zerolog.Logger {
	return *global.Load()
}

// With starts a child logger context off the global logger.
//
//	mergeLogger := logging.With().Str("component", "merge").Logger()
func With() zerolog.Context {
	return global.Load().With()
}

// Trace starts a trace level message.
func Trace() *zerolog.Event {
	return global.Load().Trace()
}

// Debug starts a debug level message.
func Debug() *zerolog.Event {
	return global.Load().Debug()
}

// Info starts an info level message.
func Info() *zerolog.Event {
	return global.Load().Info()
}

// Warn starts a warning level message.
func Warn() *zerolog.Event {
	return global.Load().Warn()
}

// Error starts an error level message.
func Error() *zerolog.Event {
	return global.Load().Error()
}

// Fatal starts a fatal level message. The process exits after the
// message is written.
func Fatal() *zerolog.Event {
	return global.Load().Fatal()
}

// Err starts an error level message carrying err. Shorthand for
// Error().Err(err).
func Err(err error) *zerolog.Event {
	return global.Load().Err(err)
}

// GetLevel returns the current global log level.
func GetLevel() zerolog.Level {
	return zerolog.GlobalLevel()
}

// SetLevel updates the global log level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// SetLevelString updates the global log level from a config string.
// The config watcher calls this when the logging level changes on disk.
func SetLevelString(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// NewTestLogger returns a logger writing to w, for capturing output in
// tests.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
