// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// AlertType identifies the anomaly class an alert reports. Every anomaly
// the health analyzer can detect maps to exactly one type; the lifecycle
// manager deduplicates per (source, type).
type AlertType string

const (
	AlertTypeScrapeFailure        AlertType = "SCRAPE_FAILURE"
	AlertTypeConsecutiveFailures  AlertType = "CONSECUTIVE_FAILURES"
	AlertTypeEventCountAnomaly    AlertType = "EVENT_COUNT_ANOMALY"
	AlertTypeFillRateDrop         AlertType = "FILL_RATE_DROP"
	AlertTypeStructureChange      AlertType = "STRUCTURE_CHANGE"
	AlertTypeNewUnmatchedTags     AlertType = "NEW_UNMATCHED_TAGS"
	AlertTypeSourceKennelMismatch AlertType = "SOURCE_KENNEL_MISMATCH"
)

// AlertSeverity indicates how urgent an alert is.
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "INFO"
	AlertSeverityWarning  AlertSeverity = "WARNING"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// AlertStatus is the operator-facing lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "OPEN"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusSnoozed      AlertStatus = "SNOOZED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
)

// Active reports whether the status still demands operator attention.
// At most one active alert exists per (source, type) at any time.
func (s AlertStatus) Active() bool {
	return s == AlertStatusOpen || s == AlertStatusAcknowledged || s == AlertStatusSnoozed
}

// Alert is one data-quality issue for a source. Created and updated by
// the alert lifecycle manager; acknowledged/snoozed/resolved by operators
// through the API.
type Alert struct {
	ID       int64     `json:"id" db:"id"`
	SourceID int64     `json:"source_id" db:"source_id"`
	Type     AlertType `json:"type" db:"alert_type"`

	Severity AlertSeverity `json:"severity" db:"severity"`
	Status   AlertStatus   `json:"status" db:"status"`

	Title   string `json:"title" db:"title"`
	Message string `json:"message" db:"message"`

	// Details carries check-specific structured context (baseline
	// averages, affected fields, novel tags) for operator triage.
	Details json.RawMessage `json:"details,omitempty" db:"details"`

	// RunID references the scrape run that most recently produced or
	// refreshed this alert.
	RunID *uuid.UUID `json:"run_id,omitempty" db:"run_id"`

	SnoozedUntil   *time.Time `json:"snoozed_until,omitempty" db:"snoozed_until"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolutionNote string     `json:"resolution_note,omitempty" db:"resolution_note"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SnoozeExpired reports whether a snoozed alert's snooze window has
// passed as of now.
func (a *Alert) SnoozeExpired(now time.Time) bool {
	return a.Status == AlertStatusSnoozed &&
		(a.SnoozedUntil == nil || !a.SnoozedUntil.After(now))
}
