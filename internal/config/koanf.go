// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// defaultConfigPaths are tried in order when no explicit path is set.
var defaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/trailhound/config.yaml",
	"/etc/trailhound/config.yml",
}

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "TRAILHOUND_CONFIG_PATH"

// envPrefix is the prefix all configuration environment variables carry.
const envPrefix = "TRAILHOUND_"

// defaultConfig is the base layer every load starts from. A fresh
// install with no file and no env vars runs with exactly these values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8421,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:                   "/data/trailhound.duckdb",
			MaxMemory:              "1GB",
			Threads:                0, // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true,
		},
		NATS: NATSConfig{
			Enabled:             true,
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           256 << 20, // 256MB
			MaxStore:            2 << 30,   // 2GB
			StreamRetentionDays: 7,
			SubscribersCount:    1, // Runs for one source must stay sequential; concurrency is per-source
			DurableName:         "trailhound-pipeline",
			QueueGroup:          "pipeline",
			SubjectPrefix:       "scrape.payload",
			CloseTimeout:        30 * time.Second,
		},
		Journal: JournalConfig{
			Enabled:         true,
			Path:            "/data/journal",
			SyncWrites:      false,
			ReplayOnStartup: true,
			Retention:       72 * time.Hour,
			GCInterval:      10 * time.Minute,
		},
		Pipeline: PipelineConfig{
			ReconcileWindowDays: 30,
			ErrorCap:            50,
			FillRateFields:      []string{"description", "hares", "location", "start_time", "run_number"},
			ResolverCacheSize:   1024,
			SeedPatternRules:    true,
		},
		Health: HealthConfig{
			BaselineRuns:     10,
			RecentRuns:       3,
			PriorFailures:    2,
			CountDropRatio:   0.5,
			CountMinBaseline: 5,
			FillMinBaseline:  50,
			FillDropPoints:   30,
		},
		Alerting: AlertingConfig{
			WebhookEnabled:   false,
			WebhookURL:       "",
			WebhookTimeout:   10 * time.Second,
			RatePerMinute:    30,
			RateBurst:        10,
			BreakerThreshold: 5,
			BreakerCooldown:  60 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf assembles the runtime configuration from three layers,
// weakest first: built-in defaults, an optional YAML file, then
// TRAILHOUND_* environment variables. The merged result is validated
// before it is returned, so a *Config in hand is always usable.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := FindConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := expandSliceValues(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FindConfigFile returns the first config file that exists, checking
// the TRAILHOUND_CONFIG_PATH override before the default locations.
// Empty means run on defaults and env vars alone. Callers that want
// hot-reload pass the result to WatchConfigFile.
func FindConfigFile() string {
	candidates := defaultConfigPaths
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		candidates = append([]string{p}, candidates...)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// csvConfigPaths are list-valued settings that arrive as a single
// comma-separated string when set through the environment.
var csvConfigPaths = []string{
	"pipeline.fill_rate_fields",
	"api.cors_origins",
}

// expandSliceValues rewrites comma-separated strings into proper
// slices for the paths in csvConfigPaths. Values that came from YAML
// are already slices and pass through untouched.
func expandSliceValues(k *koanf.Koanf) error {
	for _, path := range csvConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		if parts := splitCSV(raw); len(parts) > 0 {
			if err := k.Set(path, parts); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envKeyMap routes each supported environment variable, minus the
// TRAILHOUND_ prefix and lowercased, to its config path. Variables
// not listed here are ignored rather than merged, so unrelated
// process environment never leaks into the config.
var envKeyMap = map[string]string{
	// Server
	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	// NATS intake
	"nats_enabled":        "nats.enabled",
	"nats_url":            "nats.url",
	"nats_embedded":       "nats.embedded_server",
	"nats_store_dir":      "nats.store_dir",
	"nats_max_memory":     "nats.max_memory",
	"nats_max_store":      "nats.max_store",
	"nats_retention_days": "nats.stream_retention_days",
	"nats_subscribers":    "nats.subscribers_count",
	"nats_durable_name":   "nats.durable_name",
	"nats_queue_group":    "nats.queue_group",
	"nats_subject_prefix": "nats.subject_prefix",
	"nats_close_timeout":  "nats.close_timeout",

	// Crash journal
	"journal_enabled":     "journal.enabled",
	"journal_path":        "journal.path",
	"journal_sync_writes": "journal.sync_writes",
	"journal_replay":      "journal.replay_on_startup",
	"journal_retention":   "journal.retention",
	"journal_gc_interval": "journal.gc_interval",

	// Pipeline
	"reconcile_window_days": "pipeline.reconcile_window_days",
	"merge_error_cap":       "pipeline.error_cap",
	"fill_rate_fields":      "pipeline.fill_rate_fields",
	"resolver_cache_size":   "pipeline.resolver_cache_size",
	"seed_pattern_rules":    "pipeline.seed_pattern_rules",

	// Health analyzer
	"health_baseline_runs":      "health.baseline_runs",
	"health_recent_runs":        "health.recent_runs",
	"health_prior_failures":     "health.prior_failures",
	"health_count_drop_ratio":   "health.count_drop_ratio",
	"health_count_min_baseline": "health.count_min_baseline",
	"health_fill_min_baseline":  "health.fill_min_baseline",
	"health_fill_drop_points":   "health.fill_drop_points",

	// Alerting
	"alert_webhook_enabled":   "alerting.webhook_enabled",
	"alert_webhook_url":       "alerting.webhook_url",
	"alert_webhook_timeout":   "alerting.webhook_timeout",
	"alert_rate_per_minute":   "alerting.rate_per_minute",
	"alert_rate_burst":        "alerting.rate_burst",
	"alert_breaker_threshold": "alerting.breaker_threshold",
	"alert_breaker_cooldown":  "alerting.breaker_cooldown",

	// API
	"api_default_page_size": "api.default_page_size",
	"api_max_page_size":     "api.max_page_size",
	"cors_origins":          "api.cors_origins",
	"rate_limit_requests":   "api.rate_limit_reqs",
	"rate_limit_window":     "api.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps a raw environment variable name to its koanf
// path, or "" to drop it. TRAILHOUND_HTTP_PORT becomes server.port.
func envTransformFunc(key string) string {
	return envKeyMap[strings.ToLower(strings.TrimPrefix(key, envPrefix))]
}

// WatchConfigFile invokes callback whenever the config file changes on
// disk. The callback reloads through LoadWithKoanf itself; this only
// reports that a change happened.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
