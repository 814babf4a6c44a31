// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package main is the Trailhound server entry point.
//
// Trailhound aggregates hash event listings scraped from heterogeneous
// sources (club calendars, regional spreadsheets, RSS feeds) into one
// deduplicated catalog. Scrape adapters publish payload envelopes to
// NATS JetStream; this process consumes them, resolves kennel tags,
// merges events by trust level, reconciles stale listings, analyzes
// source health, and serves the operational API.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, optional YAML file, TRAILHOUND_ env)
//  2. Logging (zerolog)
//  3. DuckDB catalog store, schema migration, pattern rule seeding
//  4. Pipeline assembly: resolver, merge engine, reconciler, health
//     analyzer, alert manager, scrape runner
//  5. Crash journal open and startup replay of unconfirmed payloads
//  6. Supervision tree: journal GC (data layer), NATS intake bundle
//     (messaging layer), HTTP server (api layer)
//
// Shutdown is signal-driven (SIGINT/SIGTERM): the supervision tree
// winds down its layers, then the journal and database close.
package main
