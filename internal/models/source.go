// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package models

import "time"

// AdapterType identifies the kind of fetch adapter that feeds a source.
type AdapterType string

const (
	AdapterTypeHTML        AdapterType = "html"
	AdapterTypeCalendar    AdapterType = "calendar"
	AdapterTypeSpreadsheet AdapterType = "spreadsheet"
	AdapterTypeRSS         AdapterType = "rss"
	AdapterTypeRecurring   AdapterType = "recurring"
)

// HealthStatus is the rolled-up health of a source, derived from the most
// recent run's alert set.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "HEALTHY"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFailing  HealthStatus = "FAILING"
)

// Source is an external feed configuration. The pipeline reads trust level
// and linked kennels; both are mutated only by administrative workflows.
type Source struct {
	ID          int64       `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	AdapterType AdapterType `json:"adapter_type" db:"adapter_type"`
	URL         string      `json:"url,omitempty" db:"url"`

	// TrustLevel is the arbitration weight (1-10) used by the merge
	// engine when two sources disagree on a canonical event's fields.
	TrustLevel int `json:"trust_level" db:"trust_level" validate:"min=1,max=10"`

	Enabled      bool         `json:"enabled" db:"enabled"`
	HealthStatus HealthStatus `json:"health_status" db:"health_status"`
	LastRunAt    *time.Time   `json:"last_run_at,omitempty" db:"last_run_at"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}
