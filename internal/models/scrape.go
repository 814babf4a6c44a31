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

// DateLayout is the ISO date format used for raw event dates throughout
// the pipeline ("2006-01-02").
const DateLayout = "2006-01-02"

// ScrapeStatus is the lifecycle status of one pipeline run.
type ScrapeStatus string

const (
	ScrapeStatusRunning ScrapeStatus = "RUNNING"

	// ScrapeStatusSuccess: the run completed with no per-event errors.
	ScrapeStatusSuccess ScrapeStatus = "SUCCESS"

	// ScrapeStatusPartial: the run completed but some events failed
	// individually. Counts and fill rates are still usable as baseline.
	ScrapeStatusPartial ScrapeStatus = "PARTIAL"

	// ScrapeStatusFailed: the run as a whole failed (adapter fetch error
	// or an error escaping the orchestration).
	ScrapeStatusFailed ScrapeStatus = "FAILED"
)

// ScrapeError is one bounded per-event error entry in a ScrapeLog.
type ScrapeError struct {
	Date    string `json:"date,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Message string `json:"message"`
}

// ScrapeLog is the durable record of one pipeline run. A row is inserted
// when the run starts and finalized exactly once when it ends; it is never
// touched after that.
type ScrapeLog struct {
	ID       int64     `json:"id" db:"id"`
	RunID    uuid.UUID `json:"run_id" db:"run_id"`
	SourceID int64     `json:"source_id" db:"source_id"`

	Status ScrapeStatus `json:"status" db:"status"`

	EventsFound     int `json:"events_found" db:"events_found"`
	EventsCreated   int `json:"events_created" db:"events_created"`
	EventsUpdated   int `json:"events_updated" db:"events_updated"`
	EventsSkipped   int `json:"events_skipped" db:"events_skipped"`
	EventsBlocked   int `json:"events_blocked" db:"events_blocked"`
	EventsCancelled int `json:"events_cancelled" db:"events_cancelled"`

	UnmatchedTags []string `json:"unmatched_tags,omitempty" db:"unmatched_tags"`
	BlockedTags   []string `json:"blocked_tags,omitempty" db:"blocked_tags"`

	// FillRates maps tracked field names to the fraction (0..1) of this
	// run's raw events that populated the field.
	FillRates map[string]float64 `json:"fill_rates,omitempty" db:"fill_rates"`

	// StructureHash is the adapter-computed hash of the source's page or
	// feed structure, used to detect upstream format changes.
	StructureHash string `json:"structure_hash,omitempty" db:"structure_hash"`

	Errors      []ScrapeError   `json:"errors,omitempty" db:"errors"`
	ErrorDetail json.RawMessage `json:"error_detail,omitempty" db:"error_detail"`

	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	DurationMS  int64      `json:"duration_ms" db:"duration_ms"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// ExternalLink is an additional URL/label pair reported alongside a raw
// event (e.g. a Facebook event page next to the primary listing).
type ExternalLink struct {
	URL   string `json:"url" validate:"required,url"`
	Label string `json:"label,omitempty"`
}

// RawEventInput is one item as delivered by a fetch adapter, before any
// resolution or merging. Optional fields are pointers so the merge engine
// can distinguish "adapter never attempted this field" (nil) from
// "adapter deliberately reports it empty" (pointer to "").
type RawEventInput struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	KennelTag string `json:"kennel_tag"`

	RunNumber   *int    `json:"run_number,omitempty"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Hares       *string `json:"hares,omitempty"`
	Location    *string `json:"location,omitempty"`
	LocationURL *string `json:"location_url,omitempty"`
	StartTime   *string `json:"start_time,omitempty"`
	SourceURL   *string `json:"source_url,omitempty"`

	// SeriesID groups the days of a multi-day event (e.g. a weekend
	// campout); the merge engine links members after the main loop.
	SeriesID *string `json:"series_id,omitempty"`

	ExternalLinks []ExternalLink `json:"external_links,omitempty" validate:"dive"`
}

// ScrapePayload is the envelope a fetch adapter publishes for one scrape
// of one source. Fetch errors ride along as data; they never enter the
// merge stage as exceptions.
type ScrapePayload struct {
	SourceID    int64       `json:"source_id" validate:"required,gt=0"`
	AdapterType AdapterType `json:"adapter_type" validate:"required"`
	FetchedAt   time.Time   `json:"fetched_at"`

	// Events are deliberately not validated with the envelope. A payload
	// with malformed events must still reach the merge stage, which
	// records per-event problems as run errors instead of rejecting the
	// whole scrape.
	Events []RawEventInput `json:"events"`

	Errors        []string        `json:"errors,omitempty"`
	ErrorDetail   json.RawMessage `json:"error_detail,omitempty"`
	StructureHash string          `json:"structure_hash,omitempty"`
}

// Failed reports whether the fetch itself failed. A payload with fetch
// errors and no events is a failed run; per-event merge errors are a
// separate, later concern.
func (p *ScrapePayload) Failed() bool {
	return len(p.Errors) > 0 && len(p.Events) == 0
}
