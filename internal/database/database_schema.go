// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package database

import (
	"context"
	"fmt"
)

// createTables creates sequences and tables for the event catalog.
// Integer-keyed tables draw their IDs from explicit sequences because
// DuckDB has no auto-increment column type; events and raw events use
// UUID keys generated by the application.
func (db *DB) createTables(ctx context.Context) error {
	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// createIndexes creates lookup indexes. Columns already covered by a
// UNIQUE constraint are not indexed again.
func (db *DB) createIndexes(ctx context.Context) error {
	for _, query := range getIndexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func getTableCreationQueries() []string {
	return []string{
		// ID sequences
		`CREATE SEQUENCE IF NOT EXISTS sources_id_seq`,
		`CREATE SEQUENCE IF NOT EXISTS kennels_id_seq`,
		`CREATE SEQUENCE IF NOT EXISTS kennel_aliases_id_seq`,
		`CREATE SEQUENCE IF NOT EXISTS kennel_patterns_id_seq`,
		`CREATE SEQUENCE IF NOT EXISTS event_links_id_seq`,
		`CREATE SEQUENCE IF NOT EXISTS scrape_logs_id_seq`,
		`CREATE SEQUENCE IF NOT EXISTS alerts_id_seq`,

		// Scrape sources
		`CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY DEFAULT nextval('sources_id_seq'),
			name TEXT NOT NULL UNIQUE,
			adapter_type TEXT NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			trust_level INTEGER NOT NULL DEFAULT 5,
			enabled BOOLEAN NOT NULL DEFAULT true,
			health_status TEXT NOT NULL DEFAULT 'HEALTHY',
			last_run_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Organizing groups. Short names are deliberately not unique:
		// "queens" can name different kennels in different regions, and
		// source links disambiguate.
		`CREATE TABLE IF NOT EXISTS kennels (
			id INTEGER PRIMARY KEY DEFAULT nextval('kennels_id_seq'),
			name TEXT NOT NULL,
			short_name TEXT NOT NULL,
			region TEXT NOT NULL DEFAULT '',
			timezone TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Alternate spellings mapped to a kennel
		`CREATE TABLE IF NOT EXISTS kennel_aliases (
			id INTEGER PRIMARY KEY DEFAULT nextval('kennel_aliases_id_seq'),
			kennel_id INTEGER NOT NULL,
			alias TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Ordered regex rules rewriting free-text tags to a canonical name
		`CREATE TABLE IF NOT EXISTS kennel_patterns (
			id INTEGER PRIMARY KEY DEFAULT nextval('kennel_patterns_id_seq'),
			pattern TEXT NOT NULL,
			canonical_tag TEXT NOT NULL,
			position INTEGER NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Which kennels a source is expected to report on
		`CREATE TABLE IF NOT EXISTS source_kennels (
			source_id INTEGER NOT NULL,
			kennel_id INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (source_id, kennel_id)
		)`,

		// Canonical deduplicated events, one per (kennel, date)
		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY,
			kennel_id INTEGER NOT NULL,
			event_date DATE NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			hares TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			location_url TEXT NOT NULL DEFAULT '',
			start_time TEXT NOT NULL DEFAULT '',
			starts_at TIMESTAMP,
			timezone TEXT NOT NULL DEFAULT '',
			run_number INTEGER,
			source_url TEXT NOT NULL DEFAULT '',
			trust_level INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'CONFIRMED',
			series_parent_id UUID,
			is_series_parent BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (kennel_id, event_date)
		)`,

		// Immutable per-source payloads, deduplicated by fingerprint
		`CREATE TABLE IF NOT EXISTS raw_events (
			id UUID PRIMARY KEY,
			source_id INTEGER NOT NULL,
			fingerprint TEXT NOT NULL,
			payload JSON,
			processed BOOLEAN NOT NULL DEFAULT false,
			event_id UUID,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (source_id, fingerprint)
		)`,

		// Alternate source URLs attached to a canonical event
		`CREATE TABLE IF NOT EXISTS event_links (
			id INTEGER PRIMARY KEY DEFAULT nextval('event_links_id_seq'),
			event_id UUID NOT NULL,
			source_id INTEGER NOT NULL,
			url TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (event_id, url)
		)`,

		// Per-run metrics consumed by the health analyzer
		`CREATE TABLE IF NOT EXISTS scrape_logs (
			id INTEGER PRIMARY KEY DEFAULT nextval('scrape_logs_id_seq'),
			run_id UUID NOT NULL,
			source_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			events_found INTEGER NOT NULL DEFAULT 0,
			events_created INTEGER NOT NULL DEFAULT 0,
			events_updated INTEGER NOT NULL DEFAULT 0,
			events_skipped INTEGER NOT NULL DEFAULT 0,
			events_blocked INTEGER NOT NULL DEFAULT 0,
			events_cancelled INTEGER NOT NULL DEFAULT 0,
			unmatched_tags JSON,
			blocked_tags JSON,
			fill_rates JSON,
			structure_hash TEXT NOT NULL DEFAULT '',
			errors JSON,
			error_detail JSON,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Data-quality alerts, at most one active row per (source, type)
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY DEFAULT nextval('alerts_id_seq'),
			source_id INTEGER NOT NULL,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			details JSON,
			run_id UUID,
			snoozed_until TIMESTAMP,
			acknowledged_by TEXT NOT NULL DEFAULT '',
			acknowledged_at TIMESTAMP,
			resolved_at TIMESTAMP,
			resolution_note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
}

func getIndexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_sources_enabled ON sources(enabled)`,
		`CREATE INDEX IF NOT EXISTS idx_kennels_short_name ON kennels(short_name)`,
		`CREATE INDEX IF NOT EXISTS idx_kennel_aliases_kennel ON kennel_aliases(kennel_id)`,
		`CREATE INDEX IF NOT EXISTS idx_kennel_patterns_position ON kennel_patterns(position)`,
		`CREATE INDEX IF NOT EXISTS idx_events_date ON events(event_date)`,
		`CREATE INDEX IF NOT EXISTS idx_events_status ON events(status)`,
		`CREATE INDEX IF NOT EXISTS idx_events_series_parent ON events(series_parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_events_event ON raw_events(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_events_processed ON raw_events(processed)`,
		`CREATE INDEX IF NOT EXISTS idx_event_links_source ON event_links(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scrape_logs_source_created ON scrape_logs(source_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scrape_logs_run ON scrape_logs(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_source_type ON alerts(source_id, alert_type)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC)`,
	}
}
