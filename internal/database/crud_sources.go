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

	"github.com/harrierpack/trailhound/internal/models"
)

const sourceSelectColumns = `id, name, adapter_type, url, trust_level, enabled,
	health_status, last_run_at, created_at, updated_at`

// scanSourceRow scans a single source row with nullable fields handling.
func scanSourceRow(scanner interface {
	Scan(dest ...interface{}) error
}, source *models.Source) error {
	var lastRunAt sql.NullTime

	if err := scanner.Scan(
		&source.ID,
		&source.Name,
		&source.AdapterType,
		&source.URL,
		&source.TrustLevel,
		&source.Enabled,
		&source.HealthStatus,
		&lastRunAt,
		&source.CreatedAt,
		&source.UpdatedAt,
	); err != nil {
		return err
	}

	if lastRunAt.Valid {
		t := lastRunAt.Time
		source.LastRunAt = &t
	}
	return nil
}

// CreateSource persists a new scrape source and fills in its generated ID.
func (db *DB) CreateSource(ctx context.Context, source *models.Source) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	now := time.Now()
	if source.CreatedAt.IsZero() {
		source.CreatedAt = now
	}
	source.UpdatedAt = now
	if source.HealthStatus == "" {
		source.HealthStatus = models.HealthStatusHealthy
	}

	// RETURNING is required to get the generated ID; DuckDB does not
	// support LastInsertId with sequences.
	query := `INSERT INTO sources (name, adapter_type, url, trust_level, enabled, health_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := db.conn.QueryRowContext(ctx, query,
		source.Name,
		source.AdapterType,
		source.URL,
		source.TrustLevel,
		source.Enabled,
		source.HealthStatus,
		source.CreatedAt,
		source.UpdatedAt,
	).Scan(&source.ID)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}

	return nil
}

// GetSource retrieves a source by ID. Returns (nil, nil) when no source
// with that ID exists.
func (db *DB) GetSource(ctx context.Context, id int64) (*models.Source, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM sources WHERE id = ?", sourceSelectColumns)

	source := &models.Source{}
	err := scanSourceRow(db.conn.QueryRowContext(ctx, query, id), source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

// ListSources retrieves all sources ordered by ID.
func (db *DB) ListSources(ctx context.Context) ([]models.Source, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM sources ORDER BY id", sourceSelectColumns)

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []models.Source
	for rows.Next() {
		var source models.Source
		if err := scanSourceRow(rows, &source); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// UpdateSourceHealth records the health verdict and completion time of the
// latest run for a source.
func (db *DB) UpdateSourceHealth(ctx context.Context, id int64, status models.HealthStatus, lastRunAt time.Time) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `UPDATE sources SET health_status = ?, last_run_at = ?, updated_at = ? WHERE id = ?`

	_, err := db.conn.ExecContext(ctx, query, status, lastRunAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update source health: %w", err)
	}

	return nil
}

// LinkSourceKennel declares that a source is expected to report events for
// a kennel. Linked kennels form the per-run guard set: resolved events for
// kennels outside it are blocked from the canonical catalog.
func (db *DB) LinkSourceKennel(ctx context.Context, sourceID, kennelID int64) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `INSERT INTO source_kennels (source_id, kennel_id)
		VALUES (?, ?)
		ON CONFLICT (source_id, kennel_id) DO NOTHING`

	_, err := db.conn.ExecContext(ctx, query, sourceID, kennelID)
	if err != nil {
		return fmt.Errorf("failed to link source kennel: %w", err)
	}

	return nil
}

// LinkedKennelIDs returns the IDs of all kennels linked to a source.
func (db *DB) LinkedKennelIDs(ctx context.Context, sourceID int64) ([]int64, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `SELECT kennel_id FROM source_kennels WHERE source_id = ? ORDER BY kennel_id`

	rows, err := db.conn.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked kennels: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan kennel ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
