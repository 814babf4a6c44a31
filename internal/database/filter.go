// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package database

import (
	"fmt"
	"time"

	"github.com/harrierpack/trailhound/internal/models"
)

// defaultListLimit caps unpaginated list queries.
const defaultListLimit = 100

// EventFilter filters canonical event listings. All fields are optional
// and combine with AND; nil pointer fields are skipped.
type EventFilter struct {
	KennelID *int64
	From     *time.Time
	To       *time.Time
	Status   *models.EventStatus
	Limit    int
	Offset   int
}

// buildWhereClause returns a WHERE body starting at "1=1" for safe AND
// concatenation, plus the query arguments.
func (f EventFilter) buildWhereClause() (string, []interface{}) {
	where := "1=1"
	args := make([]interface{}, 0)

	if f.KennelID != nil {
		where += " AND kennel_id = ?"
		args = append(args, *f.KennelID)
	}
	if f.From != nil {
		where += " AND event_date >= ?"
		args = append(args, f.From.Format(models.DateLayout))
	}
	if f.To != nil {
		where += " AND event_date <= ?"
		args = append(args, f.To.Format(models.DateLayout))
	}
	if f.Status != nil {
		where += " AND status = ?"
		args = append(args, *f.Status)
	}

	return where, args
}

// AlertFilter filters alert listings.
type AlertFilter struct {
	SourceID   *int64
	Types      []models.AlertType
	Severities []models.AlertSeverity
	Statuses   []models.AlertStatus
	Limit      int
	Offset     int
}

func (f AlertFilter) buildWhereClause() (string, []interface{}) {
	where := "1=1"
	args := make([]interface{}, 0)

	if f.SourceID != nil {
		where += " AND source_id = ?"
		args = append(args, *f.SourceID)
	}
	if len(f.Types) > 0 {
		where += fmt.Sprintf(" AND alert_type IN (%s)", buildPlaceholders(len(f.Types)))
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if len(f.Severities) > 0 {
		where += fmt.Sprintf(" AND severity IN (%s)", buildPlaceholders(len(f.Severities)))
		for _, s := range f.Severities {
			args = append(args, s)
		}
	}
	if len(f.Statuses) > 0 {
		where += fmt.Sprintf(" AND status IN (%s)", buildPlaceholders(len(f.Statuses)))
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}

	return where, args
}

// ScrapeLogFilter filters per-run scrape log listings.
type ScrapeLogFilter struct {
	SourceID *int64
	Status   *models.ScrapeStatus
	Limit    int
	Offset   int
}

func (f ScrapeLogFilter) buildWhereClause() (string, []interface{}) {
	where := "1=1"
	args := make([]interface{}, 0)

	if f.SourceID != nil {
		where += " AND source_id = ?"
		args = append(args, *f.SourceID)
	}
	if f.Status != nil {
		where += " AND status = ?"
		args = append(args, *f.Status)
	}

	return where, args
}

// buildPlaceholders creates a comma-separated string of ? placeholders.
func buildPlaceholders(count int) string {
	if count == 0 {
		return ""
	}
	placeholders := "?"
	for i := 1; i < count; i++ {
		placeholders += ", ?"
	}
	return placeholders
}

// applyPagination appends LIMIT and OFFSET clauses, defaulting the limit
// so an unfiltered listing cannot drag the whole catalog into memory.
func applyPagination(query string, args []interface{}, limit, offset int) (string, []interface{}) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	} else {
		query += fmt.Sprintf(" LIMIT %d", defaultListLimit)
	}
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}
	return query, args
}
