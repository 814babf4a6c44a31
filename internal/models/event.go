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

// EventStatus is the lifecycle status of a canonical event.
type EventStatus string

const (
	EventStatusConfirmed EventStatus = "CONFIRMED"

	// EventStatusCancelled is set only by the reconciler, when a
	// sole-source event disappears from a fresh scrape. The pipeline
	// never transitions an event back to CONFIRMED.
	EventStatusCancelled EventStatus = "CANCELLED"
)

// Event is the canonical, deduplicated record the public catalog reads.
// At most one Event exists per (KennelID, Date) pair; the merge engine
// enforces this with a trust-weighted upsert.
type Event struct {
	ID       uuid.UUID `json:"id" db:"id"`
	KennelID int64     `json:"kennel_id" db:"kennel_id"`

	// Date is the event's calendar date, stored date-only. Combined with
	// KennelID it is the canonical identity of the event.
	Date time.Time `json:"date" db:"event_date"`

	Title       string `json:"title,omitempty" db:"title"`
	Description string `json:"description,omitempty" db:"description"`
	Hares       string `json:"hares,omitempty" db:"hares"`
	Location    string `json:"location,omitempty" db:"location"`
	LocationURL string `json:"location_url,omitempty" db:"location_url"`

	// StartTime is the wall-clock start as reported ("19:00"); StartsAt
	// is the derived UTC instant using the kennel's timezone.
	StartTime string     `json:"start_time,omitempty" db:"start_time"`
	StartsAt  *time.Time `json:"starts_at,omitempty" db:"starts_at"`
	Timezone  string     `json:"timezone,omitempty" db:"timezone"`

	RunNumber *int   `json:"run_number,omitempty" db:"run_number"`
	SourceURL string `json:"source_url,omitempty" db:"source_url"`

	// TrustLevel records the trust of the source whose values currently
	// populate the content fields. An incoming write with trust >= this
	// value replaces them.
	TrustLevel int `json:"trust_level" db:"trust_level"`

	Status EventStatus `json:"status" db:"status"`

	// SeriesParentID links the later days of a multi-day series to the
	// earliest day's event; IsSeriesParent marks that earliest event.
	SeriesParentID *uuid.UUID `json:"series_parent_id,omitempty" db:"series_parent_id"`
	IsSeriesParent bool       `json:"is_series_parent" db:"is_series_parent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RawEvent is the immutable audit record of one fetched item. Rows are
// created once per unique (SourceID, Fingerprint) and never mutated except
// to flip Processed and attach EventID.
type RawEvent struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	SourceID    int64           `json:"source_id" db:"source_id"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	Payload     json.RawMessage `json:"payload,omitempty" db:"payload"`
	Processed   bool            `json:"processed" db:"processed"`
	EventID     *uuid.UUID      `json:"event_id,omitempty" db:"event_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// EventLink records an alternate URL/label for an event, reported by a
// different source than the one that set the event's SourceURL. Unique per
// (EventID, URL); append-only.
type EventLink struct {
	ID        int64     `json:"id" db:"id"`
	EventID   uuid.UUID `json:"event_id" db:"event_id"`
	SourceID  int64     `json:"source_id" db:"source_id"`
	URL       string    `json:"url" db:"url"`
	Label     string    `json:"label,omitempty" db:"label"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
