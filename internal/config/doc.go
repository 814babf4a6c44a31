// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

/*
Package config provides centralized configuration management for Trailhound.

This package handles loading, validation, and parsing of configuration for
all application components. It ensures consistent configuration across the
pipeline services and provides sensible defaults for optional settings.

# Configuration Sources

Configuration is loaded in layers with later layers overriding earlier ones:

  - Built-in defaults (always present)
  - Optional YAML config file (config.yaml, or TRAILHOUND_CONFIG_PATH)
  - TRAILHOUND_* environment variables (highest priority)

# Configuration Structure

The package organizes configuration into logical groups:

  - ServerConfig: HTTP server settings (host, port, timeout)
  - DatabaseConfig: DuckDB path and performance tuning
  - NATSConfig: Intake bus (Watermill/NATS JetStream, embedded server)
  - JournalConfig: Badger write-ahead journal for intake payloads
  - PipelineConfig: Merge error cap, reconcile window, resolver cache, fill fields
  - HealthConfig: Rolling-baseline analyzer thresholds
  - AlertingConfig: Webhook notifier (breaker, rate limit)
  - APIConfig: Pagination, CORS, rate limiting
  - LoggingConfig: Level, format, caller info

# Environment Variables

Every setting maps to exactly one TRAILHOUND_* variable through an explicit
table; unmapped variables are ignored rather than guessed at. The full list
lives on each section struct's doc comment in config.go. Commonly used:

  - TRAILHOUND_HTTP_PORT: API listen port (default: 8421)
  - TRAILHOUND_DUCKDB_PATH: Database file path (default: /data/trailhound.duckdb)
  - TRAILHOUND_NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
  - TRAILHOUND_JOURNAL_PATH: Intake journal directory (default: /data/journal)
  - TRAILHOUND_RECONCILE_WINDOW_DAYS: Stale-event window (default: 30)
  - TRAILHOUND_LOG_LEVEL: Log verbosity (default: info)

# Validation

Load() validates the assembled configuration before returning it. Rules are
grouped per section in config_validate.go; error messages name the
environment variable an operator would change. Sections that are disabled
(NATS, journal, webhook alerting) skip their own validation.

# Usage

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.New(cfg.Database)

Config values are immutable after Load; hot-reload via WatchConfigFile is
limited to operations that are safe at runtime (log level changes).
*/
package config
