// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package logging is the process-wide zerolog facade. Pipeline stages,
// stores, and servers all log through it so field naming, output
// format, and level control stay uniform from the intake consumer down
// to the DuckDB layer.
//
// Initialize once from main, before the supervision tree starts:
//
//	logging.Init(logging.Config{
//	    Level:  cfg.Logging.Level,
//	    Format: cfg.Logging.Format,
//	})
//
// then log through the package helpers, or through Ctx when a run or
// request ID is in scope:
//
//	logging.Info().Int64("source_id", id).Msg("run scheduled")
//	logging.Ctx(ctx).Warn().Str("tag", tag).Msg("kennel tag unmatched")
//
// # Run ID Propagation
//
// The run orchestrator stamps each scrape run's context with a run ID
// via ContextWithRunID. Every stage logging through Ctx then carries
// the run_id field, so one run's lines can be correlated across the
// consumer, merge engine, health analyzer, and alert store. The HTTP
// middleware does the same with request IDs.
//
// # Output
//
// Format json emits machine-parseable lines for production; console is
// a human-readable form for local development. Prefer structured
// fields over Msgf formatting; dashboards key on the field names. The
// package also exposes NewSlogLogger, a bridge for libraries that log
// through slog, such as the suture supervision tree.
package logging
