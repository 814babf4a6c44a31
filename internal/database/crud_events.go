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

	"github.com/google/uuid"
	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/models"
)

const eventSelectColumns = `id, kennel_id, event_date, title, description, hares,
	location, location_url, start_time, starts_at, timezone, run_number,
	source_url, trust_level, status, series_parent_id, is_series_parent,
	created_at, updated_at`

// scanEventRow scans a single event row with nullable fields handling.
func scanEventRow(scanner interface {
	Scan(dest ...interface{}) error
}, event *models.Event) error {
	var startsAt sql.NullTime
	var runNumber sql.NullInt64
	var seriesParentID uuid.NullUUID

	if err := scanner.Scan(
		&event.ID,
		&event.KennelID,
		&event.Date,
		&event.Title,
		&event.Description,
		&event.Hares,
		&event.Location,
		&event.LocationURL,
		&event.StartTime,
		&startsAt,
		&event.Timezone,
		&runNumber,
		&event.SourceURL,
		&event.TrustLevel,
		&event.Status,
		&seriesParentID,
		&event.IsSeriesParent,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return err
	}

	if startsAt.Valid {
		t := startsAt.Time
		event.StartsAt = &t
	}
	if runNumber.Valid {
		n := int(runNumber.Int64)
		event.RunNumber = &n
	}
	if seriesParentID.Valid {
		id := seriesParentID.UUID
		event.SeriesParentID = &id
	}
	return nil
}

// scanEvents scans multiple event rows.
func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := scanEventRow(rows, &event); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// EventByID retrieves a canonical event. Returns (nil, nil) when it does
// not exist.
func (db *DB) EventByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM events WHERE id = ?", eventSelectColumns)

	event := &models.Event{}
	err := scanEventRow(db.conn.QueryRowContext(ctx, query, id), event)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// EventByKennelAndDate retrieves the canonical event for a (kennel, date)
// pair, the catalog's natural key. Returns (nil, nil) when none exists.
func (db *DB) EventByKennelAndDate(ctx context.Context, kennelID int64, date time.Time) (*models.Event, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM events WHERE kennel_id = ? AND event_date = ?", eventSelectColumns)

	event := &models.Event{}
	err := scanEventRow(db.conn.QueryRowContext(ctx, query, kennelID, date.Format(models.DateLayout)), event)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event by kennel and date: %w", err)
	}

	return event, nil
}

// CreateEvent inserts a canonical event. Returns false without error when
// another run created an event for the same (kennel, date) first; the
// caller then re-reads and takes the update path instead.
func (db *DB) CreateEvent(ctx context.Context, event *models.Event) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = models.EventStatusConfirmed
	}

	query := `INSERT INTO events (
			id, kennel_id, event_date, title, description, hares,
			location, location_url, start_time, starts_at, timezone, run_number,
			source_url, trust_level, status, series_parent_id, is_series_parent,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kennel_id, event_date) DO NOTHING`

	result, err := db.conn.ExecContext(ctx, query,
		event.ID,
		event.KennelID,
		event.Date.Format(models.DateLayout),
		event.Title,
		event.Description,
		event.Hares,
		event.Location,
		event.LocationURL,
		event.StartTime,
		event.StartsAt,
		event.Timezone,
		event.RunNumber,
		event.SourceURL,
		event.TrustLevel,
		event.Status,
		event.SeriesParentID,
		event.IsSeriesParent,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// UpdateEventContent overwrites an event's content fields with the values
// carried by the given event, but only while the stored trust level does
// not exceed the incoming one. The trust guard lives in the WHERE clause
// so a concurrent higher-trust write between read and write cannot be
// clobbered. Status, source URL, and series linkage are never touched
// here. Returns whether the overwrite happened.
func (db *DB) UpdateEventContent(ctx context.Context, event *models.Event) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `UPDATE events SET
			title = ?, description = ?, hares = ?, location = ?,
			location_url = ?, start_time = ?, starts_at = ?, timezone = ?,
			run_number = ?, trust_level = ?, updated_at = ?
		WHERE id = ? AND trust_level <= ?`

	result, err := db.conn.ExecContext(ctx, query,
		event.Title,
		event.Description,
		event.Hares,
		event.Location,
		event.LocationURL,
		event.StartTime,
		event.StartsAt,
		event.Timezone,
		event.RunNumber,
		event.TrustLevel,
		time.Now(),
		event.ID,
		event.TrustLevel,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update event content: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// UpsertEventLink records an alternate source URL for an event. Returns
// false without error when the (event, url) pair is already recorded.
func (db *DB) UpsertEventLink(ctx context.Context, link *models.EventLink) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	query := `INSERT INTO event_links (event_id, source_id, url, label, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (event_id, url) DO NOTHING
		RETURNING id`

	err := db.conn.QueryRowContext(ctx, query,
		link.EventID,
		link.SourceID,
		link.URL,
		link.Label,
		link.CreatedAt,
	).Scan(&link.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert event link: %w", err)
	}

	return true, nil
}

// ListEventLinks returns all alternate source URLs recorded for an event.
func (db *DB) ListEventLinks(ctx context.Context, eventID uuid.UUID) ([]models.EventLink, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `SELECT id, event_id, source_id, url, label, created_at
		FROM event_links WHERE event_id = ? ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event links: %w", err)
	}
	defer rows.Close()

	var links []models.EventLink
	for rows.Next() {
		var link models.EventLink
		if err := rows.Scan(&link.ID, &link.EventID, &link.SourceID, &link.URL, &link.Label, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// ApplySeriesLinks flags the parent of a multi-day series and points the
// children at it, atomically. The merge engine accumulates groupings in
// memory during the batch and commits them here in one transaction.
func (db *DB) ApplySeriesLinks(ctx context.Context, parentID uuid.UUID, childIDs []uuid.UUID) (err error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().
					Err(rbErr).
					AnErr("original_error", err).
					Msg("Series link rollback failed")
			}
		}
	}()

	now := time.Now()

	if _, err = tx.ExecContext(ctx,
		`UPDATE events SET is_series_parent = true, updated_at = ? WHERE id = ?`,
		now, parentID,
	); err != nil {
		return fmt.Errorf("failed to flag series parent: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE events SET series_parent_id = ?, updated_at = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare series child update: %w", err)
	}
	defer closeWithLog(stmt, "series child statement")

	for _, childID := range childIDs {
		if _, err = stmt.ExecContext(ctx, parentID, now, childID); err != nil {
			return fmt.Errorf("failed to link series child %s: %w", childID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit series links: %w", err)
	}
	return nil
}

// ConfirmedEventsInWindow returns all CONFIRMED events for the given
// kennels whose date falls inside [from, to]. The reconciler diffs this
// set against the current scrape to find orphaned events.
func (db *DB) ConfirmedEventsInWindow(ctx context.Context, kennelIDs []int64, from, to time.Time) ([]models.Event, error) {
	if len(kennelIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM events
		WHERE kennel_id IN (%s) AND status = ? AND event_date >= ? AND event_date <= ?
		ORDER BY event_date, kennel_id`,
		eventSelectColumns, buildPlaceholders(len(kennelIDs)))

	args := make([]interface{}, 0, len(kennelIDs)+3)
	for _, id := range kennelIDs {
		args = append(args, id)
	}
	args = append(args, models.EventStatusConfirmed, from.Format(models.DateLayout), to.Format(models.DateLayout))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events in window: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CancelEvents marks the given events CANCELLED in one batched update.
// Already-cancelled events are not counted again; cancellation never
// reverts through this path.
func (db *DB) CancelEvents(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`UPDATE events SET status = ?, updated_at = ?
		WHERE id IN (%s) AND status = ?`, buildPlaceholders(len(ids)))

	args := make([]interface{}, 0, len(ids)+3)
	args = append(args, models.EventStatusCancelled, time.Now())
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, models.EventStatusConfirmed)

	result, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// ListEvents retrieves events matching the filter, newest date first.
func (db *DB) ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	where, args := filter.buildWhereClause()
	query := fmt.Sprintf("SELECT %s FROM events WHERE %s ORDER BY event_date DESC, kennel_id",
		eventSelectColumns, where)
	query, args = applyPagination(query, args, filter.Limit, filter.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}
