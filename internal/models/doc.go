// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package models provides the domain data models for Trailhound.
//
// The model set mirrors the durable contract of the ingestion pipeline:
//
//   - Source: an external feed configuration with a trust level and a set
//     of linked kennels it is allowed to write into.
//   - RawEvent: the immutable audit record of one fetched item, keyed by
//     (source, fingerprint).
//   - Event: the canonical, deduplicated record keyed by (kennel, date)
//     that the public catalog reads.
//   - EventLink: an alternate URL for an event, reported by a source other
//     than the one whose URL the event carries.
//   - Kennel / KennelAlias: the canonical name registry used by the tag
//     resolver.
//   - ScrapeLog: one row per pipeline run with counts, fill rates, and
//     error payloads.
//   - Alert: an operator-facing data quality issue with a lifecycle
//     (OPEN, ACKNOWLEDGED, SNOOZED, RESOLVED).
//
// Boundary types (ScrapePayload, RawEventInput) describe what fetch
// adapters deliver to the pipeline; they are validated at the intake
// boundary before any processing happens.
package models
