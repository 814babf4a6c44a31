// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package config

import (
	"fmt"
	"strings"
)

// Validate checks every config section and returns the first rule
// violation. Messages name the env var form of the offending setting
// since that is how operators most often set them.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateNATS,
		c.validateJournal,
		c.validatePipeline,
		c.validateHealth,
		c.validateAlerting,
		c.validateAPI,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("TRAILHOUND_HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("TRAILHOUND_HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("TRAILHOUND_DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("TRAILHOUND_DUCKDB_THREADS must be >= 0 (0 = all cores)")
	}
	return nil
}

// validateNATS covers the intake bus and its JetStream limits. A
// disabled bus skips the whole section so file-only deployments do not
// need NATS settings at all.
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}

	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("TRAILHOUND_NATS_URL is invalid: %w", err)
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("TRAILHOUND_NATS_STORE_DIR is required when the embedded server is enabled")
	}

	if c.NATS.MaxMemory < 1<<20 {
		return fmt.Errorf("TRAILHOUND_NATS_MAX_MEMORY must be at least 1MB, got %d", c.NATS.MaxMemory)
	}
	if c.NATS.MaxStore < c.NATS.MaxMemory {
		return fmt.Errorf("TRAILHOUND_NATS_MAX_STORE (%d) must be >= max memory (%d)", c.NATS.MaxStore, c.NATS.MaxMemory)
	}
	if c.NATS.StreamRetentionDays < 1 || c.NATS.StreamRetentionDays > 365 {
		return fmt.Errorf("TRAILHOUND_NATS_RETENTION_DAYS must be between 1 and 365, got %d", c.NATS.StreamRetentionDays)
	}
	if c.NATS.SubscribersCount < 1 || c.NATS.SubscribersCount > 64 {
		return fmt.Errorf("TRAILHOUND_NATS_SUBSCRIBERS must be between 1 and 64, got %d", c.NATS.SubscribersCount)
	}
	if c.NATS.DurableName == "" {
		return fmt.Errorf("TRAILHOUND_NATS_DURABLE_NAME is required when NATS is enabled")
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("TRAILHOUND_NATS_SUBJECT_PREFIX is required when NATS is enabled")
	}
	return nil
}

func (c *Config) validateJournal() error {
	if !c.Journal.Enabled {
		return nil
	}

	if c.Journal.Path == "" {
		return fmt.Errorf("TRAILHOUND_JOURNAL_PATH is required when the journal is enabled")
	}
	if c.Journal.Retention <= 0 {
		return fmt.Errorf("TRAILHOUND_JOURNAL_RETENTION must be positive")
	}
	if c.Journal.GCInterval <= 0 {
		return fmt.Errorf("TRAILHOUND_JOURNAL_GC_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ReconcileWindowDays < 1 || c.Pipeline.ReconcileWindowDays > 365 {
		return fmt.Errorf("TRAILHOUND_RECONCILE_WINDOW_DAYS must be between 1 and 365, got %d", c.Pipeline.ReconcileWindowDays)
	}
	if c.Pipeline.ErrorCap < 1 || c.Pipeline.ErrorCap > 1000 {
		return fmt.Errorf("TRAILHOUND_MERGE_ERROR_CAP must be between 1 and 1000, got %d", c.Pipeline.ErrorCap)
	}
	if c.Pipeline.ResolverCacheSize < 1 {
		return fmt.Errorf("TRAILHOUND_RESOLVER_CACHE_SIZE must be positive, got %d", c.Pipeline.ResolverCacheSize)
	}
	for _, f := range c.Pipeline.FillRateFields {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("TRAILHOUND_FILL_RATE_FIELDS contains an empty field name")
		}
	}
	return nil
}

// validateHealth keeps the analyzer thresholds inside the ranges the
// detectors are defined over. PriorFailures in particular must fit in
// the recent-runs window or the persistent-failure rule could never
// fire.
func (c *Config) validateHealth() error {
	if c.Health.BaselineRuns < 1 {
		return fmt.Errorf("TRAILHOUND_HEALTH_BASELINE_RUNS must be positive, got %d", c.Health.BaselineRuns)
	}
	if c.Health.RecentRuns < 1 {
		return fmt.Errorf("TRAILHOUND_HEALTH_RECENT_RUNS must be positive, got %d", c.Health.RecentRuns)
	}
	if c.Health.PriorFailures < 1 || c.Health.PriorFailures > c.Health.RecentRuns {
		return fmt.Errorf("TRAILHOUND_HEALTH_PRIOR_FAILURES must be between 1 and the recent-runs window (%d), got %d",
			c.Health.RecentRuns, c.Health.PriorFailures)
	}
	if c.Health.CountDropRatio <= 0 || c.Health.CountDropRatio > 1 {
		return fmt.Errorf("TRAILHOUND_HEALTH_COUNT_DROP_RATIO must be in (0, 1], got %v", c.Health.CountDropRatio)
	}
	if c.Health.CountMinBaseline < 0 {
		return fmt.Errorf("TRAILHOUND_HEALTH_COUNT_MIN_BASELINE must be >= 0, got %v", c.Health.CountMinBaseline)
	}
	if c.Health.FillMinBaseline < 0 || c.Health.FillMinBaseline > 100 {
		return fmt.Errorf("TRAILHOUND_HEALTH_FILL_MIN_BASELINE must be between 0 and 100, got %v", c.Health.FillMinBaseline)
	}
	if c.Health.FillDropPoints <= 0 || c.Health.FillDropPoints > 100 {
		return fmt.Errorf("TRAILHOUND_HEALTH_FILL_DROP_POINTS must be in (0, 100], got %v", c.Health.FillDropPoints)
	}
	return nil
}

func (c *Config) validateAlerting() error {
	if !c.Alerting.WebhookEnabled {
		return nil
	}

	if c.Alerting.WebhookURL == "" {
		return fmt.Errorf("TRAILHOUND_ALERT_WEBHOOK_URL is required when TRAILHOUND_ALERT_WEBHOOK_ENABLED=true")
	}
	if err := validateWebhookURL(c.Alerting.WebhookURL); err != nil {
		return fmt.Errorf("TRAILHOUND_ALERT_WEBHOOK_URL is invalid: %w", err)
	}
	if c.Alerting.WebhookTimeout <= 0 {
		return fmt.Errorf("TRAILHOUND_ALERT_WEBHOOK_TIMEOUT must be positive")
	}
	if c.Alerting.RatePerMinute <= 0 {
		return fmt.Errorf("TRAILHOUND_ALERT_RATE_PER_MINUTE must be positive, got %v", c.Alerting.RatePerMinute)
	}
	if c.Alerting.RateBurst < 1 {
		return fmt.Errorf("TRAILHOUND_ALERT_RATE_BURST must be positive, got %d", c.Alerting.RateBurst)
	}
	if c.Alerting.BreakerThreshold < 1 {
		return fmt.Errorf("TRAILHOUND_ALERT_BREAKER_THRESHOLD must be positive, got %d", c.Alerting.BreakerThreshold)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultPageSize < 1 {
		return fmt.Errorf("TRAILHOUND_API_DEFAULT_PAGE_SIZE must be positive, got %d", c.API.DefaultPageSize)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("TRAILHOUND_API_MAX_PAGE_SIZE (%d) must be >= default page size (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	if c.API.RateLimitReqs < 1 {
		return fmt.Errorf("TRAILHOUND_RATE_LIMIT_REQUESTS must be positive, got %d", c.API.RateLimitReqs)
	}
	if c.API.RateLimitWindow <= 0 {
		return fmt.Errorf("TRAILHOUND_RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("TRAILHOUND_LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("TRAILHOUND_LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

// IsProduction returns true when the server environment is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// IsDevelopment returns true when the server environment is development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, "development")
}
