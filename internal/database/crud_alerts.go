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

const alertSelectColumns = `id, source_id, alert_type, severity, status, title, message,
	details, run_id, snoozed_until, acknowledged_by, acknowledged_at,
	resolved_at, resolution_note, created_at, updated_at`

// activeStatusesClause matches the alert states that count against the
// one-active-alert-per-(source, type) guarantee.
const activeStatusesClause = `status IN ('OPEN', 'ACKNOWLEDGED', 'SNOOZED')`

// scanAlertRow scans a single alert row with nullable fields handling.
func scanAlertRow(scanner interface {
	Scan(dest ...interface{}) error
}, alert *models.Alert) error {
	var details interface{} // DuckDB returns JSON as map[string]interface{}
	var runID uuid.NullUUID
	var snoozedUntil, acknowledgedAt, resolvedAt sql.NullTime

	if err := scanner.Scan(
		&alert.ID,
		&alert.SourceID,
		&alert.Type,
		&alert.Severity,
		&alert.Status,
		&alert.Title,
		&alert.Message,
		&details,
		&runID,
		&snoozedUntil,
		&alert.AcknowledgedBy,
		&acknowledgedAt,
		&resolvedAt,
		&alert.ResolutionNote,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		return err
	}

	if runID.Valid {
		id := runID.UUID
		alert.RunID = &id
	}
	if snoozedUntil.Valid {
		t := snoozedUntil.Time
		alert.SnoozedUntil = &t
	}
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		alert.AcknowledgedAt = &t
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		alert.ResolvedAt = &t
	}

	// Convert details back to JSON bytes
	if details != nil {
		if detailBytes, err := json.Marshal(details); err == nil {
			alert.Details = detailBytes
		}
	}

	return nil
}

// ActiveAlert retrieves the single active alert for a (source, type) pair,
// or (nil, nil) when none exists. The lifecycle manager guarantees at most
// one active row per pair.
func (db *DB) ActiveAlert(ctx context.Context, sourceID int64, alertType models.AlertType) (*models.Alert, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM alerts
		WHERE source_id = ? AND alert_type = ? AND %s
		ORDER BY created_at DESC LIMIT 1`, alertSelectColumns, activeStatusesClause)

	alert := &models.Alert{}
	err := scanAlertRow(db.conn.QueryRowContext(ctx, query, sourceID, alertType), alert)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active alert: %w", err)
	}

	return alert, nil
}

// GetAlert retrieves an alert by ID. Returns (nil, nil) when it does not
// exist.
func (db *DB) GetAlert(ctx context.Context, id int64) (*models.Alert, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM alerts WHERE id = ?", alertSelectColumns)

	alert := &models.Alert{}
	err := scanAlertRow(db.conn.QueryRowContext(ctx, query, id), alert)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// CreateAlert persists a new alert and fills in its generated ID.
func (db *DB) CreateAlert(ctx context.Context, alert *models.Alert) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	now := time.Now()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	alert.UpdatedAt = now
	if alert.Status == "" {
		alert.Status = models.AlertStatusOpen
	}

	// Cast Details to []byte to avoid DuckDB driver issue with
	// json.RawMessage (the driver rejects json.Marshaler but accepts []byte)
	var details []byte
	if alert.Details != nil {
		details = []byte(alert.Details)
	}

	query := `INSERT INTO alerts (source_id, alert_type, severity, status, title, message, details, run_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := db.conn.QueryRowContext(ctx, query,
		alert.SourceID,
		alert.Type,
		alert.Severity,
		alert.Status,
		alert.Title,
		alert.Message,
		details,
		alert.RunID,
		alert.CreatedAt,
		alert.UpdatedAt,
	).Scan(&alert.ID)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

// UpdateAlertForRun refreshes an existing active alert in place with the
// latest detection: severity, message, details, and the run that produced
// it. Operator state (status, acknowledgment, snooze) is untouched.
func (db *DB) UpdateAlertForRun(ctx context.Context, id int64, severity models.AlertSeverity, title, message string, details json.RawMessage, runID uuid.UUID) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var detailBytes []byte
	if details != nil {
		detailBytes = []byte(details)
	}

	query := `UPDATE alerts SET severity = ?, title = ?, message = ?, details = ?, run_id = ?, updated_at = ?
		WHERE id = ?`

	_, err := db.conn.ExecContext(ctx, query, severity, title, message, detailBytes, runID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	return nil
}

// ReopenAlert returns an expired-snooze alert to OPEN with fresh detection
// details, clearing the snooze and any prior acknowledgment.
func (db *DB) ReopenAlert(ctx context.Context, id int64, severity models.AlertSeverity, title, message string, details json.RawMessage, runID uuid.UUID) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var detailBytes []byte
	if details != nil {
		detailBytes = []byte(details)
	}

	query := `UPDATE alerts SET
			status = ?, severity = ?, title = ?, message = ?, details = ?, run_id = ?,
			snoozed_until = NULL, acknowledged_by = '', acknowledged_at = NULL, updated_at = ?
		WHERE id = ?`

	_, err := db.conn.ExecContext(ctx, query,
		models.AlertStatusOpen, severity, title, message, detailBytes, runID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to reopen alert: %w", err)
	}

	return nil
}

// AcknowledgeAlert marks an OPEN alert as acknowledged by an operator.
// Returns false when the alert is not currently OPEN.
func (db *DB) AcknowledgeAlert(ctx context.Context, id int64, acknowledgedBy string) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `UPDATE alerts SET status = ?, acknowledged_by = ?, acknowledged_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	now := time.Now()
	result, err := db.conn.ExecContext(ctx, query,
		models.AlertStatusAcknowledged, acknowledgedBy, now, now, id, models.AlertStatusOpen)
	if err != nil {
		return false, fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// SnoozeAlert silences an active alert until the given time. Returns false
// when the alert is not active.
func (db *DB) SnoozeAlert(ctx context.Context, id int64, until time.Time) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`UPDATE alerts SET status = ?, snoozed_until = ?, updated_at = ?
		WHERE id = ? AND %s`, activeStatusesClause)

	result, err := db.conn.ExecContext(ctx, query,
		models.AlertStatusSnoozed, until, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to snooze alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ResolveAlert closes an active alert with a resolution note. Returns
// false when the alert is not active.
func (db *DB) ResolveAlert(ctx context.Context, id int64, note string) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`UPDATE alerts SET status = ?, resolved_at = ?, resolution_note = ?, updated_at = ?
		WHERE id = ? AND %s`, activeStatusesClause)

	now := time.Now()
	result, err := db.conn.ExecContext(ctx, query,
		models.AlertStatusResolved, now, note, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ResolveActiveAlert closes whatever active alert exists for a
// (source, type) pair. Used by the health analyzer to auto-resolve a
// structural alert once the source's structure hash returns to baseline.
// Returns false when no active alert existed.
func (db *DB) ResolveActiveAlert(ctx context.Context, sourceID int64, alertType models.AlertType, note string) (bool, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf(`UPDATE alerts SET status = ?, resolved_at = ?, resolution_note = ?, updated_at = ?
		WHERE source_id = ? AND alert_type = ? AND %s`, activeStatusesClause)

	now := time.Now()
	result, err := db.conn.ExecContext(ctx, query,
		models.AlertStatusResolved, now, note, now, sourceID, alertType)
	if err != nil {
		return false, fmt.Errorf("failed to resolve active alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListAlerts retrieves alerts matching the filter, newest first.
func (db *DB) ListAlerts(ctx context.Context, filter AlertFilter) ([]models.Alert, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	where, args := filter.buildWhereClause()
	query := fmt.Sprintf("SELECT %s FROM alerts WHERE %s ORDER BY created_at DESC, id DESC",
		alertSelectColumns, where)
	query, args = applyPagination(query, args, filter.Limit, filter.Offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var alert models.Alert
		if err := scanAlertRow(rows, &alert); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}
