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
	"github.com/harrierpack/trailhound/internal/resolver"
)

const kennelSelectColumns = `id, name, short_name, region, timezone, created_at, updated_at`

// scanKennelRow scans a single kennel row.
func scanKennelRow(scanner interface {
	Scan(dest ...interface{}) error
}, kennel *models.Kennel) error {
	return scanner.Scan(
		&kennel.ID,
		&kennel.Name,
		&kennel.ShortName,
		&kennel.Region,
		&kennel.Timezone,
		&kennel.CreatedAt,
		&kennel.UpdatedAt,
	)
}

// queryKennel runs a single-row kennel query, mapping sql.ErrNoRows to
// (nil, nil). The resolver treats a miss as "unmatched", not an error.
func (db *DB) queryKennel(ctx context.Context, query string, args ...interface{}) (*models.Kennel, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	kennel := &models.Kennel{}
	err := scanKennelRow(db.conn.QueryRowContext(ctx, query, args...), kennel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query kennel: %w", err)
	}

	return kennel, nil
}

// CreateKennel persists a new kennel and fills in its generated ID.
func (db *DB) CreateKennel(ctx context.Context, kennel *models.Kennel) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	now := time.Now()
	if kennel.CreatedAt.IsZero() {
		kennel.CreatedAt = now
	}
	kennel.UpdatedAt = now

	query := `INSERT INTO kennels (name, short_name, region, timezone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`

	err := db.conn.QueryRowContext(ctx, query,
		kennel.Name,
		kennel.ShortName,
		kennel.Region,
		kennel.Timezone,
		kennel.CreatedAt,
		kennel.UpdatedAt,
	).Scan(&kennel.ID)
	if err != nil {
		return fmt.Errorf("failed to insert kennel: %w", err)
	}

	return nil
}

// GetKennel retrieves a kennel by ID. Returns (nil, nil) when it does not
// exist.
func (db *DB) GetKennel(ctx context.Context, id int64) (*models.Kennel, error) {
	query := fmt.Sprintf("SELECT %s FROM kennels WHERE id = ?", kennelSelectColumns)
	return db.queryKennel(ctx, query, id)
}

// KennelByShortName matches a kennel by its canonical short name,
// case-insensitively and unscoped. Short names can collide across
// organizations; collisions resolve to the oldest kennel, and callers
// needing the right one pass a source scope instead.
func (db *DB) KennelByShortName(ctx context.Context, shortName string) (*models.Kennel, error) {
	query := fmt.Sprintf("SELECT %s FROM kennels WHERE LOWER(short_name) = LOWER(?) ORDER BY id LIMIT 1",
		kennelSelectColumns)
	return db.queryKennel(ctx, query, shortName)
}

// KennelByShortNameForSource matches a kennel by short name among the
// kennels linked to the given source. A tag like "queens" can name
// different kennels in different regions; the source link disambiguates.
func (db *DB) KennelByShortNameForSource(ctx context.Context, shortName string, sourceID int64) (*models.Kennel, error) {
	query := fmt.Sprintf(`SELECT %s FROM kennels k
		JOIN source_kennels sk ON sk.kennel_id = k.id
		WHERE sk.source_id = ? AND LOWER(k.short_name) = LOWER(?)
		ORDER BY k.id LIMIT 1`,
		`k.id, k.name, k.short_name, k.region, k.timezone, k.created_at, k.updated_at`)
	return db.queryKennel(ctx, query, sourceID, shortName)
}

// KennelByAlias matches a kennel through its alias table,
// case-insensitively.
func (db *DB) KennelByAlias(ctx context.Context, alias string) (*models.Kennel, error) {
	query := fmt.Sprintf(`SELECT %s FROM kennels k
		JOIN kennel_aliases ka ON ka.kennel_id = k.id
		WHERE LOWER(ka.alias) = LOWER(?)`,
		`k.id, k.name, k.short_name, k.region, k.timezone, k.created_at, k.updated_at`)
	return db.queryKennel(ctx, query, alias)
}

// CreateKennelAlias records an alternate spelling for a kennel.
func (db *DB) CreateKennelAlias(ctx context.Context, alias *models.KennelAlias) error {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = time.Now()
	}

	query := `INSERT INTO kennel_aliases (kennel_id, alias, created_at)
		VALUES (?, ?, ?)
		RETURNING id`

	err := db.conn.QueryRowContext(ctx, query,
		alias.KennelID,
		alias.Alias,
		alias.CreatedAt,
	).Scan(&alias.ID)
	if err != nil {
		return fmt.Errorf("failed to insert kennel alias: %w", err)
	}

	return nil
}

// ListPatternRules returns the enabled tag-rewrite rules in evaluation
// order. First match wins, so position ordering is a correctness concern,
// not a presentation one.
func (db *DB) ListPatternRules(ctx context.Context) ([]resolver.PatternRule, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	query := `SELECT pattern, canonical_tag FROM kennel_patterns
		WHERE enabled ORDER BY position, id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern rules: %w", err)
	}
	defer rows.Close()

	var rules []resolver.PatternRule
	for rows.Next() {
		var rule resolver.PatternRule
		if err := rows.Scan(&rule.Pattern, &rule.Canonical); err != nil {
			return nil, fmt.Errorf("failed to scan pattern rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SeedPatternRules inserts the given rules when the pattern table is
// empty, preserving their order as positions. Returns the number of rules
// inserted; an already-populated table is left untouched so operator edits
// survive restarts.
func (db *DB) SeedPatternRules(ctx context.Context, rules []resolver.PatternRule) (int, error) {
	ctx, cancel := ensureContext(ctx)
	defer cancel()

	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM kennel_patterns`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pattern rules: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	query := `INSERT INTO kennel_patterns (pattern, canonical_tag, position, enabled, created_at)
		VALUES (?, ?, ?, true, ?)`

	now := time.Now()
	for i, rule := range rules {
		if _, err := db.conn.ExecContext(ctx, query, rule.Pattern, rule.Canonical, i, now); err != nil {
			return i, fmt.Errorf("failed to seed pattern rule %q: %w", rule.Pattern, err)
		}
	}
	return len(rules), nil
}
