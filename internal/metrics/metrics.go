// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Database query performance (DuckDB)
// - Pipeline run outcomes and durations
// - Merge engine event outcomes
// - Resolver cache efficiency
// - Alert lifecycle and webhook dispatch
// - NATS intake and the badger journal
// - API endpoint latency and throughput

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// Pipeline Run Metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs by source and final status",
		},
		[]string{"source_id", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "End-to-end duration of pipeline runs in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"source_id"},
	)

	// Merge Engine Metrics
	MergeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merge_events_total",
			Help: "Total number of raw events by merge outcome",
		},
		[]string{"outcome"}, // "created", "updated", "skipped", "blocked", "unmatched", "error"
	)

	MergeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "merge_duration_seconds",
			Help:    "Duration of merge engine batches in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Resolver Metrics
	ResolverLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_lookups_total",
			Help: "Total number of tag resolutions by cache and match outcome",
		},
		[]string{"cache", "matched"}, // cache: "hit", "miss"
	)

	// Health / Alert Metrics
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_emitted_total",
			Help: "Total number of alert candidates emitted by the health analyzer",
		},
		[]string{"type", "severity"},
	)

	AlertsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_persisted_total",
			Help: "Total number of alert lifecycle actions",
		},
		[]string{"action"}, // "created", "updated", "reopened", "untouched", "auto_resolved", "acknowledged", "snoozed", "resolved"
	)

	SourceHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_health_status",
			Help: "Source health (0=healthy, 1=degraded, 2=failing)",
		},
		[]string{"source_id"},
	)

	// Reconciler Metrics
	ReconcilerCancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_cancellations_total",
			Help: "Total number of stale events cancelled by the reconciler",
		},
		[]string{"source_id"},
	)

	// Webhook Notifier Metrics
	NotifierDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_dispatches_total",
			Help: "Total number of webhook notification attempts by result",
		},
		[]string{"result"}, // "success", "failure", "rejected", "rate_limited"
	)

	// Journal Metrics
	JournalPendingEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "journal_pending_entries",
			Help: "Current number of unconfirmed payloads in the intake journal",
		},
	)

	JournalWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_writes_total",
			Help: "Total number of payloads written to the intake journal",
		},
	)

	JournalReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "journal_replays_total",
			Help: "Total number of payloads replayed from the journal at startup",
		},
	)

	// NATS Intake Metrics
	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of scrape payloads published to NATS",
		},
	)

	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of scrape payloads consumed from NATS",
		},
	)

	NATSMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_processed_total",
			Help: "Total number of scrape payloads successfully processed",
		},
	)

	NATSMessagesParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_parse_failed_total",
			Help: "Total number of intake messages that failed to parse or validate",
		},
	)

	NATSProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_processing_duration_seconds",
			Help:    "Duration of intake message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordRun records a completed pipeline run
func RecordRun(sourceID int64, status string, duration time.Duration) {
	id := strconv.FormatInt(sourceID, 10)
	RunsTotal.WithLabelValues(id, status).Inc()
	RunDuration.WithLabelValues(id).Observe(duration.Seconds())
}

// RecordMergeOutcome records one raw event's merge outcome
func RecordMergeOutcome(outcome string) {
	MergeEventsTotal.WithLabelValues(outcome).Inc()
}

// RecordMergeDuration records the duration of one merge batch
func RecordMergeDuration(duration time.Duration) {
	MergeDuration.Observe(duration.Seconds())
}

// RecordResolverLookup records a tag resolution
func RecordResolverLookup(cacheHit, matched bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	m := "false"
	if matched {
		m = "true"
	}
	ResolverLookups.WithLabelValues(cache, m).Inc()
}

// RecordAlertEmitted records an alert candidate from the health analyzer
func RecordAlertEmitted(alertType, severity string) {
	AlertsEmitted.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertAction records an alert lifecycle action
func RecordAlertAction(action string) {
	AlertsPersisted.WithLabelValues(action).Inc()
}

// SetSourceHealth updates the health gauge for a source
func SetSourceHealth(sourceID int64, status string) {
	var v float64
	switch status {
	case "DEGRADED":
		v = 1
	case "FAILING":
		v = 2
	}
	SourceHealth.WithLabelValues(strconv.FormatInt(sourceID, 10)).Set(v)
}

// RecordReconcilerCancellations records stale events cancelled in one run
func RecordReconcilerCancellations(sourceID int64, count int) {
	if count > 0 {
		ReconcilerCancellations.WithLabelValues(strconv.FormatInt(sourceID, 10)).Add(float64(count))
	}
}

// RecordNotifierDispatch records a webhook notification attempt
func RecordNotifierDispatch(result string) {
	NotifierDispatches.WithLabelValues(result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordNATSPublish records a payload published to NATS
func RecordNATSPublish() {
	NATSMessagesPublished.Inc()
}

// RecordNATSConsume records a payload consumed from NATS
func RecordNATSConsume() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSProcessed records a payload successfully processed
func RecordNATSProcessed() {
	NATSMessagesProcessed.Inc()
}

// RecordNATSParseFailed records an intake message that failed to parse
func RecordNATSParseFailed() {
	NATSMessagesParseFailed.Inc()
}

// RecordNATSProcessingDuration records the duration of intake processing
func RecordNATSProcessingDuration(duration time.Duration) {
	NATSProcessingDuration.Observe(duration.Seconds())
}

// SetCircuitBreakerState updates a breaker's state gauge
func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// SetJournalPending updates the pending journal entries gauge
func SetJournalPending(count int64) {
	JournalPendingEntries.Set(float64(count))
}

// RecordJournalWrite records a payload written to the journal
func RecordJournalWrite() {
	JournalWrites.Inc()
}

// RecordJournalReplay records a payload replayed from the journal
func RecordJournalReplay() {
	JournalReplays.Inc()
}
