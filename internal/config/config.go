// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
// Provides centralized configuration management for the ingestion pipeline, persistence,
// intake bus, journal, health analysis, alerting, API, and logging.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via TRAILHOUND_* variables
//
// Example - Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.Database.Path, cfg.NATS.URL, etc. are now populated
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	NATS     NATSConfig     `koanf:"nats"`     // Intake bus (Watermill/NATS JetStream)
	Journal  JournalConfig  `koanf:"journal"`  // Intake write-ahead journal (Badger)
	Pipeline PipelineConfig `koanf:"pipeline"` // Merge/resolve/reconcile knobs
	Health   HealthConfig   `koanf:"health"`   // Rolling-baseline analyzer thresholds
	Alerting AlertingConfig `koanf:"alerting"` // Webhook notification of alerts
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings for the operational API and /metrics.
//
// Environment Variables:
//   - TRAILHOUND_HTTP_HOST: Bind address (default: 0.0.0.0)
//   - TRAILHOUND_HTTP_PORT: Listen port (default: 8421)
//   - TRAILHOUND_HTTP_TIMEOUT: Read/write timeout (default: 30s)
//   - TRAILHOUND_ENVIRONMENT: development or production (default: development)
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings for the canonical event store.
//
// Environment Variables:
//   - TRAILHOUND_DUCKDB_PATH: Database file path (default: /data/trailhound.duckdb)
//   - TRAILHOUND_DUCKDB_MAX_MEMORY: DuckDB memory limit (default: 1GB)
//   - TRAILHOUND_DUCKDB_THREADS: Worker threads, 0 = runtime.NumCPU() (default: 0)
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// NATSConfig holds intake bus settings. Scrape adapters publish payload
// envelopes to JetStream; the pipeline consumes them with a durable consumer.
// The embedded server option runs NATS in-process for single-binary
// deployments and tests.
//
// Environment Variables:
//   - TRAILHOUND_NATS_ENABLED: Enable the intake bus (default: true)
//   - TRAILHOUND_NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
//   - TRAILHOUND_NATS_EMBEDDED: Run embedded JetStream server (default: true)
//   - TRAILHOUND_NATS_STORE_DIR: JetStream storage directory (default: /data/nats/jetstream)
//   - TRAILHOUND_NATS_MAX_MEMORY: JetStream memory limit bytes (default: 256MB)
//   - TRAILHOUND_NATS_MAX_STORE: JetStream disk limit bytes (default: 2GB)
//   - TRAILHOUND_NATS_RETENTION_DAYS: Stream retention (default: 7)
//   - TRAILHOUND_NATS_SUBSCRIBERS: Concurrent payload consumers (default: 1)
//   - TRAILHOUND_NATS_DURABLE_NAME: Durable consumer name (default: trailhound-pipeline)
//   - TRAILHOUND_NATS_QUEUE_GROUP: Queue group (default: pipeline)
//   - TRAILHOUND_NATS_SUBJECT_PREFIX: Payload subject prefix (default: scrape.payload)
//   - TRAILHOUND_NATS_CLOSE_TIMEOUT: Subscriber close grace (default: 30s)
type NATSConfig struct {
	Enabled             bool          `koanf:"enabled"`
	URL                 string        `koanf:"url"`
	EmbeddedServer      bool          `koanf:"embedded_server"`
	StoreDir            string        `koanf:"store_dir"`
	MaxMemory           int64         `koanf:"max_memory"`
	MaxStore            int64         `koanf:"max_store"`
	StreamRetentionDays int           `koanf:"stream_retention_days"`
	SubscribersCount    int           `koanf:"subscribers_count"`
	DurableName         string        `koanf:"durable_name"`
	QueueGroup          string        `koanf:"queue_group"`
	SubjectPrefix       string        `koanf:"subject_prefix"`
	CloseTimeout        time.Duration `koanf:"close_timeout"`
}

// JournalConfig holds write-ahead journal settings. Payloads are journaled
// before processing and confirmed once the run's ScrapeLog is finalized, so
// a crash mid-run replays the payload on the next start. Replay is safe:
// fingerprint deduplication makes re-merging idempotent.
//
// Environment Variables:
//   - TRAILHOUND_JOURNAL_ENABLED: Enable the journal (default: true)
//   - TRAILHOUND_JOURNAL_PATH: Badger directory (default: /data/journal)
//   - TRAILHOUND_JOURNAL_SYNC_WRITES: fsync each write (default: false)
//   - TRAILHOUND_JOURNAL_REPLAY: Replay pending entries on startup (default: true)
//   - TRAILHOUND_JOURNAL_RETENTION: TTL for confirmed entries (default: 72h)
//   - TRAILHOUND_JOURNAL_GC_INTERVAL: Value-log GC cadence (default: 10m)
type JournalConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Path            string        `koanf:"path"`
	SyncWrites      bool          `koanf:"sync_writes"`
	ReplayOnStartup bool          `koanf:"replay_on_startup"`
	Retention       time.Duration `koanf:"retention"`
	GCInterval      time.Duration `koanf:"gc_interval"`
}

// PipelineConfig holds merge, resolver, and reconciler knobs.
//
// FillRateFields lists the raw-event fields whose per-run fill rates are
// recorded on the ScrapeLog and watched by the health analyzer.
//
// Environment Variables:
//   - TRAILHOUND_RECONCILE_WINDOW_DAYS: Stale-event scan window around today (default: 30)
//   - TRAILHOUND_MERGE_ERROR_CAP: Max per-event errors kept per run (default: 50)
//   - TRAILHOUND_FILL_RATE_FIELDS: Comma-separated tracked fields
//   - TRAILHOUND_RESOLVER_CACHE_SIZE: Per-run resolver LRU size (default: 1024)
//   - TRAILHOUND_SEED_PATTERN_RULES: Seed built-in pattern rules into an empty table (default: true)
type PipelineConfig struct {
	ReconcileWindowDays int      `koanf:"reconcile_window_days"`
	ErrorCap            int      `koanf:"error_cap"`
	FillRateFields      []string `koanf:"fill_rate_fields"`
	ResolverCacheSize   int      `koanf:"resolver_cache_size"`
	SeedPatternRules    bool     `koanf:"seed_pattern_rules"`
}

// HealthConfig holds rolling-baseline analyzer thresholds. The defaults
// implement the documented anomaly rules; changing them changes alerting
// sensitivity, not the mechanics.
//
// Environment Variables:
//   - TRAILHOUND_HEALTH_BASELINE_RUNS: Successful runs in the baseline (default: 10)
//   - TRAILHOUND_HEALTH_RECENT_RUNS: Any-status runs for failure streaks (default: 3)
//   - TRAILHOUND_HEALTH_PRIOR_FAILURES: Prior failures that escalate to CRITICAL (default: 2)
//   - TRAILHOUND_HEALTH_COUNT_DROP_RATIO: Fraction of baseline that trips the count check (default: 0.5)
//   - TRAILHOUND_HEALTH_COUNT_MIN_BASELINE: Baseline average below which drops are ignored (default: 5)
//   - TRAILHOUND_HEALTH_FILL_MIN_BASELINE: Minimum baseline fill %% before the fill check applies (default: 50)
//   - TRAILHOUND_HEALTH_FILL_DROP_POINTS: Percentage-point drop that trips the fill check (default: 30)
type HealthConfig struct {
	BaselineRuns     int     `koanf:"baseline_runs"`
	RecentRuns       int     `koanf:"recent_runs"`
	PriorFailures    int     `koanf:"prior_failures"`
	CountDropRatio   float64 `koanf:"count_drop_ratio"`
	CountMinBaseline float64 `koanf:"count_min_baseline"`
	FillMinBaseline  float64 `koanf:"fill_min_baseline"`
	FillDropPoints   float64 `koanf:"fill_drop_points"`
}

// AlertingConfig holds webhook notification settings. Dispatch is guarded by
// a circuit breaker and a rate limiter; notification failure never fails the
// pipeline.
//
// Environment Variables:
//   - TRAILHOUND_ALERT_WEBHOOK_ENABLED: Enable webhook dispatch (default: false)
//   - TRAILHOUND_ALERT_WEBHOOK_URL: Destination for alert JSON POSTs
//   - TRAILHOUND_ALERT_WEBHOOK_TIMEOUT: Per-request timeout (default: 10s)
//   - TRAILHOUND_ALERT_RATE_PER_MINUTE: Sustained dispatch rate (default: 30)
//   - TRAILHOUND_ALERT_RATE_BURST: Burst allowance (default: 10)
//   - TRAILHOUND_ALERT_BREAKER_THRESHOLD: Consecutive failures to open the breaker (default: 5)
//   - TRAILHOUND_ALERT_BREAKER_COOLDOWN: Open-state duration (default: 60s)
type AlertingConfig struct {
	WebhookEnabled   bool          `koanf:"webhook_enabled"`
	WebhookURL       string        `koanf:"webhook_url"`
	WebhookTimeout   time.Duration `koanf:"webhook_timeout"`
	RatePerMinute    float64       `koanf:"rate_per_minute"`
	RateBurst        int           `koanf:"rate_burst"`
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

// APIConfig holds pagination, CORS, and rate-limit settings for the
// operational API.
//
// Environment Variables:
//   - TRAILHOUND_API_DEFAULT_PAGE_SIZE: Default page size (default: 20)
//   - TRAILHOUND_API_MAX_PAGE_SIZE: Maximum page size (default: 100)
//   - TRAILHOUND_CORS_ORIGINS: Comma-separated allowed origins (default: *)
//   - TRAILHOUND_RATE_LIMIT_REQUESTS: Requests per window per IP (default: 100)
//   - TRAILHOUND_RATE_LIMIT_WINDOW: Rate-limit window (default: 1m)
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - TRAILHOUND_LOG_LEVEL: trace, debug, info, warn, error, fatal (default: info)
//   - TRAILHOUND_LOG_FORMAT: json or console (default: json)
//   - TRAILHOUND_LOG_CALLER: Include file:line caller info (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load loads configuration using the layered Koanf pipeline.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
