// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package api

// AcknowledgeAlertRequest is the body of POST /api/v1/alerts/{id}/acknowledge.
type AcknowledgeAlertRequest struct {
	// AcknowledgedBy names the operator taking ownership of the alert.
	AcknowledgedBy string `json:"acknowledged_by" validate:"required,max=120"`
}

// SnoozeAlertRequest is the body of POST /api/v1/alerts/{id}/snooze.
type SnoozeAlertRequest struct {
	// Hours is how long the alert stays quiet before the analyzer may
	// reopen it. Capped at 30 days.
	Hours int `json:"hours" validate:"required,min=1,max=720"`
}

// ResolveAlertRequest is the body of POST /api/v1/alerts/{id}/resolve.
type ResolveAlertRequest struct {
	Note string `json:"note" validate:"omitempty,max=500"`
}
