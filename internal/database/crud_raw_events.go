// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/harrierpack/trailhound/internal/models"
)

// scanRawEventRow scans a single raw event row with nullable fields and
// JSON payload handling.
func scanRawEventRow(scanner interface {
	Scan(dest ...interface{}) error
}, raw *models.RawEvent) error {
	var eventID uuid.NullUUID
	var payload interface{} // DuckDB returns JSON as map[string]interface{}

	if err := scanner.Scan(
		&raw.ID,
		&raw.SourceID,
		&raw.Fingerprint,
		&payload,
		&raw.Processed,
		&eventID,
		&raw.CreatedAt,
		&raw.UpdatedAt,
	); err != nil {
		return err
	}

	if eventID.Valid {
		id := eventID.UUID
		raw.EventID = &id
	}

	// Convert payload back to JSON bytes
	if payload != nil {
		if payloadBytes, err := json.Marshal(payload); err == nil {
			raw.Payload = payloadBytes
		}
	}

	return nil
}

// RawEventByFingerprint retrieves the raw event persisted for a
// (source, fingerprint) pair. Returns (nil, nil) when the content has
// never been seen from this source.
func (db *DB) RawEventByFingerprint(ctx context.Context, sourceID int64, fingerprint string) (*models.RawEvent, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `SELECT id, source_id, fingerprint, payload, processed, event_id, created_at, updated_at
		FROM raw_events WHERE source_id = ? AND fingerprint = ?`

	raw := &models.RawEvent{}
	err := scanRawEventRow(db.conn.QueryRowContext(ctx, query, sourceID, fingerprint), raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw event: %w", err)
	}

	return raw, nil
}

// CreateRawEvent persists an immutable raw event in its unprocessed state.
func (db *DB) CreateRawEvent(ctx context.Context, raw *models.RawEvent) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if raw.ID == uuid.Nil {
		raw.ID = uuid.New()
	}
	now := time.Now()
	if raw.CreatedAt.IsZero() {
		raw.CreatedAt = now
	}
	raw.UpdatedAt = now

	query := `INSERT INTO raw_events (id, source_id, fingerprint, payload, processed, event_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	// Cast Payload to []byte to avoid DuckDB driver issue with
	// json.RawMessage (the driver rejects json.Marshaler but accepts []byte)
	var payload []byte
	if raw.Payload != nil {
		payload = []byte(raw.Payload)
	}

	_, err := db.conn.ExecContext(ctx, query,
		raw.ID,
		raw.SourceID,
		raw.Fingerprint,
		payload,
		raw.Processed,
		raw.EventID,
		raw.CreatedAt,
		raw.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert raw event: %w", err)
	}

	return nil
}

// RefreshRawEventPayload replaces the stored payload of a raw event that
// has not been processed yet. Duplicate fetches of already-merged content
// are no-ops, but an unprocessed duplicate keeps the freshest diagnostic
// sample for the unmatched-tag workflow. Returns whether a row changed.
func (db *DB) RefreshRawEventPayload(ctx context.Context, id uuid.UUID, payload json.RawMessage) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `UPDATE raw_events SET payload = ?, updated_at = ? WHERE id = ? AND NOT processed`

	var body []byte
	if payload != nil {
		body = []byte(payload)
	}

	result, err := db.conn.ExecContext(ctx, query, body, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to refresh raw event payload: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// MarkRawEventProcessed links a raw event to the canonical event it was
// merged into.
func (db *DB) MarkRawEventProcessed(ctx context.Context, id, eventID uuid.UUID) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `UPDATE raw_events SET processed = true, event_id = ?, updated_at = ? WHERE id = ?`

	_, err := db.conn.ExecContext(ctx, query, eventID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark raw event processed: %w", err)
	}

	return nil
}

// HasRawEventFromOtherSource reports whether any source other than the
// given one has contributed a raw event to this canonical event. The
// reconciler only cancels sole-source events; corroborated ones survive
// a single source dropping them.
func (db *DB) HasRawEventFromOtherSource(ctx context.Context, eventID uuid.UUID, sourceID int64) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `SELECT COUNT(*) FROM raw_events WHERE event_id = ? AND source_id <> ?`

	var count int
	if err := db.conn.QueryRowContext(ctx, query, eventID, sourceID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count corroborating raw events: %w", err)
	}
	return count > 0, nil
}
