// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring pipeline throughput, data quality, and
system health.

# Overview

The package provides metrics for:
  - Pipeline run outcomes and durations per source
  - Merge engine event outcomes (created/updated/skipped/blocked)
  - Resolver cache hit rates
  - Alert emission and lifecycle actions
  - Reconciler cancellations
  - Database query performance
  - NATS intake and journal state
  - HTTP API latency and throughput

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8421/metrics

# Usage

Metrics are recorded through package-level helper functions so call sites
stay one line:

	metrics.RecordMergeOutcome("created")
	metrics.RecordRun(sourceID, "SUCCESS", elapsed)

All collectors are registered with the default registry via promauto at
package initialization; there is nothing to wire at startup.
*/
package metrics
