// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/harrierpack/trailhound/internal/models"
)

const scrapeLogSelectColumns = `id, run_id, source_id, status,
	events_found, events_created, events_updated, events_skipped, events_blocked, events_cancelled,
	unmatched_tags, blocked_tags, fill_rates, structure_hash, errors, error_detail,
	started_at, completed_at, duration_ms, created_at`

// scanScrapeLogRow scans a single scrape log row, decoding the JSON metric
// columns back into their typed fields.
func scanScrapeLogRow(scanner interface {
	Scan(dest ...interface{}) error
}, log *models.ScrapeLog) error {
	var completedAt sql.NullTime
	var unmatchedTags, blockedTags, fillRates, errorList, errorDetail interface{}

	if err := scanner.Scan(
		&log.ID,
		&log.RunID,
		&log.SourceID,
		&log.Status,
		&log.EventsFound,
		&log.EventsCreated,
		&log.EventsUpdated,
		&log.EventsSkipped,
		&log.EventsBlocked,
		&log.EventsCancelled,
		&unmatchedTags,
		&blockedTags,
		&fillRates,
		&log.StructureHash,
		&errorList,
		&errorDetail,
		&log.StartedAt,
		&completedAt,
		&log.DurationMS,
		&log.CreatedAt,
	); err != nil {
		return err
	}

	if completedAt.Valid {
		t := completedAt.Time
		log.CompletedAt = &t
	}

	if err := decodeJSONColumn(unmatchedTags, &log.UnmatchedTags); err != nil {
		return fmt.Errorf("failed to decode unmatched tags: %w", err)
	}
	if err := decodeJSONColumn(blockedTags, &log.BlockedTags); err != nil {
		return fmt.Errorf("failed to decode blocked tags: %w", err)
	}
	if err := decodeJSONColumn(fillRates, &log.FillRates); err != nil {
		return fmt.Errorf("failed to decode fill rates: %w", err)
	}
	if err := decodeJSONColumn(errorList, &log.Errors); err != nil {
		return fmt.Errorf("failed to decode errors: %w", err)
	}
	if errorDetail != nil {
		if detailBytes, err := json.Marshal(errorDetail); err == nil {
			log.ErrorDetail = detailBytes
		}
	}

	return nil
}

// decodeJSONColumn re-marshals a JSON column value (returned by DuckDB as
// map[string]interface{} or []interface{}) into the typed destination.
func decodeJSONColumn(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// marshalJSONColumn encodes a value for a JSON column, mapping Go nil to
// SQL NULL. Returns []byte because the DuckDB driver rejects
// json.RawMessage directly.
func marshalJSONColumn(value interface{}) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

// CreateScrapeLog inserts the RUNNING row for a new pipeline run and fills
// in its generated ID.
func (db *DB) CreateScrapeLog(ctx context.Context, log *models.ScrapeLog) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if log.RunID == uuid.Nil {
		log.RunID = uuid.New()
	}
	if log.Status == "" {
		log.Status = models.ScrapeStatusRunning
	}
	now := time.Now()
	if log.StartedAt.IsZero() {
		log.StartedAt = now
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}

	query := `INSERT INTO scrape_logs (run_id, source_id, status, started_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`

	err := db.conn.QueryRowContext(ctx, query,
		log.RunID,
		log.SourceID,
		log.Status,
		log.StartedAt,
		log.CreatedAt,
	).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("failed to insert scrape log: %w", err)
	}

	return nil
}

// FinalizeScrapeLog writes the run's outcome: final status, counters, tag
// lists, fill rates, errors, and completion time. Called exactly once per
// run.
func (db *DB) FinalizeScrapeLog(ctx context.Context, log *models.ScrapeLog) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	unmatchedTags, err := marshalJSONColumn(log.UnmatchedTags)
	if err != nil {
		return fmt.Errorf("failed to marshal unmatched tags: %w", err)
	}
	blockedTags, err := marshalJSONColumn(log.BlockedTags)
	if err != nil {
		return fmt.Errorf("failed to marshal blocked tags: %w", err)
	}
	fillRates, err := marshalJSONColumn(log.FillRates)
	if err != nil {
		return fmt.Errorf("failed to marshal fill rates: %w", err)
	}
	errorList, err := marshalJSONColumn(log.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal errors: %w", err)
	}

	var errorDetail []byte
	if log.ErrorDetail != nil {
		errorDetail = []byte(log.ErrorDetail)
	}

	completedAt := time.Now()
	if log.CompletedAt != nil {
		completedAt = *log.CompletedAt
	} else {
		log.CompletedAt = &completedAt
	}
	if log.DurationMS == 0 {
		log.DurationMS = completedAt.Sub(log.StartedAt).Milliseconds()
	}

	query := `UPDATE scrape_logs SET
			status = ?,
			events_found = ?, events_created = ?, events_updated = ?,
			events_skipped = ?, events_blocked = ?, events_cancelled = ?,
			unmatched_tags = ?, blocked_tags = ?, fill_rates = ?,
			structure_hash = ?, errors = ?, error_detail = ?,
			completed_at = ?, duration_ms = ?
		WHERE id = ?`

	_, err = db.conn.ExecContext(ctx, query,
		log.Status,
		log.EventsFound,
		log.EventsCreated,
		log.EventsUpdated,
		log.EventsSkipped,
		log.EventsBlocked,
		log.EventsCancelled,
		unmatchedTags,
		blockedTags,
		fillRates,
		log.StructureHash,
		errorList,
		errorDetail,
		completedAt,
		log.DurationMS,
		log.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize scrape log: %w", err)
	}

	return nil
}

// RecentScrapeLogs returns up to limit finalized runs for a source, newest
// first, optionally restricted to a status set. excludeRunID drops the
// current run so a health baseline never includes the run under analysis.
func (db *DB) RecentScrapeLogs(ctx context.Context, sourceID int64, limit int, excludeRunID uuid.UUID, statuses ...models.ScrapeStatus) ([]models.ScrapeLog, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM scrape_logs WHERE source_id = ? AND run_id <> ?", scrapeLogSelectColumns)
	args := []interface{}{sourceID, excludeRunID}

	if len(statuses) > 0 {
		query += fmt.Sprintf(" AND status IN (%s)", buildPlaceholders(len(statuses)))
		for _, status := range statuses {
			args = append(args, status)
		}
	}

	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent scrape logs: %w", err)
	}
	defer rows.Close()

	return scanScrapeLogs(rows)
}

// ListScrapeLogs retrieves runs matching the filter, newest first.
func (db *DB) ListScrapeLogs(ctx context.Context, filter ScrapeLogFilter) ([]models.ScrapeLog, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	where, args := filter.buildWhereClause()
	query := fmt.Sprintf("SELECT %s FROM scrape_logs WHERE %s ORDER BY started_at DESC, id DESC",
		scrapeLogSelectColumns, where)
	query, args = applyPagination(query, args, filter.Limit, filter.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scrape logs: %w", err)
	}
	defer rows.Close()

	return scanScrapeLogs(rows)
}

// scanScrapeLogs scans multiple scrape log rows.
func scanScrapeLogs(rows *sql.Rows) ([]models.ScrapeLog, error) {
	var logs []models.ScrapeLog
	for rows.Next() {
		var log models.ScrapeLog
		if err := scanScrapeLogRow(rows, &log); err != nil {
			return nil, fmt.Errorf("failed to scan scrape log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
