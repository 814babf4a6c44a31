// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package intake is the message-bus ingress for scrape payloads. Fetch
// adapters publish one ScrapePayload envelope per scrape run to NATS
// JetStream; the consumer journals each payload, hands it to the merge
// pipeline, and acknowledges only after the run's outcome is recorded.
//
//	┌──────────────┐  ┌──────────────┐  ┌──────────────┐
//	│ HTML adapter │  │ ICS adapter  │  │ Sheet adapter│
//	└──────┬───────┘  └──────┬───────┘  └──────┬───────┘
//	       │                 │                 │
//	       └────────────┬────┴─────────────────┘
//	                    ▼
//	          ┌──────────────────┐
//	          │  NATS JetStream  │   scrape.payload.<source_id>
//	          └────────┬─────────┘
//	                   ▼
//	          ┌──────────────────┐
//	          │     Consumer     │   journal → pipeline run → confirm
//	          └────────┬─────────┘
//	                   ▼
//	          ┌──────────────────┐
//	          │      DuckDB      │   events, raw_events, scrape_logs
//	          └──────────────────┘
//
// Delivery semantics: a payload that fails validation is acked and
// dropped (redelivering malformed JSON can never succeed), a payload
// whose run cannot be recorded is nacked for redelivery, and everything
// else is acked. Redelivery is safe because fingerprint deduplication
// makes re-merging a payload idempotent.
//
// Key components:
//
//   - EmbeddedServer: in-process NATS JetStream server for single-binary
//     deployments and tests
//   - StreamInitializer: idempotent stream provisioning, run once at startup
//   - Publisher: resilient Watermill publisher used by fetch adapters, with
//     circuit breaker and Nats-Msg-Id deduplication
//   - Subscriber: durable queue-group consumer bound to the payload stream
//   - Consumer: the per-message journal/run/confirm loop
package intake
