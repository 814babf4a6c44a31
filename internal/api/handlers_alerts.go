// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/harrierpack/trailhound/internal/database"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
	"github.com/harrierpack/trailhound/internal/validation"
)

// Alerts lists alerts filtered by source, type, severity, and status.
// The type, severity, and status parameters accept comma-separated
// values; an unknown value in any of them is a client error rather than
// an empty match.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	filter, ok := h.alertFilter(rw, r)
	if !ok {
		return
	}

	alerts, err := h.store.ListAlerts(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(alerts, paginationFor(len(alerts), filter.Limit, filter.Offset))
}

// AcknowledgeAlert marks an open alert as acknowledged by an operator.
// Acknowledging keeps the alert active: the analyzer still updates it
// on subsequent runs, it just no longer counts as unhandled.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, ok := h.pathID(rw, r, "id")
	if !ok {
		return
	}

	var req AcknowledgeAlertRequest
	if !decodeRequest(rw, r, &req) {
		return
	}

	if !h.alertExists(rw, r, id) {
		return
	}

	applied, err := h.store.AcknowledgeAlert(r.Context(), id, req.AcknowledgedBy)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if !applied {
		rw.Conflict("alert is not open")
		return
	}

	metrics.RecordAlertAction("acknowledged")
	h.respondWithAlert(rw, r, id)
}

// SnoozeAlert silences an active alert for a number of hours. A snoozed
// alert is still updated by the analyzer but is suppressed from
// notification dispatch until the snooze expires.
func (h *Handler) SnoozeAlert(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, ok := h.pathID(rw, r, "id")
	if !ok {
		return
	}

	var req SnoozeAlertRequest
	if !decodeRequest(rw, r, &req) {
		return
	}

	if !h.alertExists(rw, r, id) {
		return
	}

	until := time.Now().UTC().Add(time.Duration(req.Hours) * time.Hour)
	applied, err := h.store.SnoozeAlert(r.Context(), id, until)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if !applied {
		rw.Conflict("alert is not active")
		return
	}

	metrics.RecordAlertAction("snoozed")
	h.respondWithAlert(rw, r, id)
}

// ResolveAlert closes an active alert with an optional note. The
// analyzer may open a fresh alert for the same condition on a later
// run; resolution never suppresses future detection.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, ok := h.pathID(rw, r, "id")
	if !ok {
		return
	}

	var req ResolveAlertRequest
	if !decodeRequest(rw, r, &req) {
		return
	}

	if !h.alertExists(rw, r, id) {
		return
	}

	applied, err := h.store.ResolveAlert(r.Context(), id, req.Note)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if !applied {
		rw.Conflict("alert is not active")
		return
	}

	metrics.RecordAlertAction("resolved")
	h.respondWithAlert(rw, r, id)
}

// alertFilter builds an AlertFilter from query parameters.
func (h *Handler) alertFilter(rw *ResponseWriter, r *http.Request) (database.AlertFilter, bool) {
	var filter database.AlertFilter
	query := r.URL.Query()

	if raw := query.Get("source"); raw != "" {
		sourceID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || sourceID <= 0 {
			rw.BadRequest("invalid source: must be a positive integer")
			return filter, false
		}
		filter.SourceID = &sourceID
	}

	for _, raw := range parseCommaSeparated(query.Get("type")) {
		alertType, ok := parseAlertType(raw)
		if !ok {
			rw.BadRequest("invalid type: " + raw)
			return filter, false
		}
		filter.Types = append(filter.Types, alertType)
	}

	for _, raw := range parseCommaSeparated(query.Get("severity")) {
		severity, ok := parseAlertSeverity(raw)
		if !ok {
			rw.BadRequest("invalid severity: " + raw)
			return filter, false
		}
		filter.Severities = append(filter.Severities, severity)
	}

	for _, raw := range parseCommaSeparated(query.Get("status")) {
		status, ok := parseAlertStatus(raw)
		if !ok {
			rw.BadRequest("invalid status: " + raw)
			return filter, false
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	filter.Limit, filter.Offset = h.pageParams(r)
	return filter, true
}

// alertExists checks that an alert row exists, writing a 404 response
// when it does not. Existence is checked separately from the action
// update so a missing alert and an alert in the wrong state produce
// different status codes.
func (h *Handler) alertExists(rw *ResponseWriter, r *http.Request, id int64) bool {
	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		rw.DatabaseError(err)
		return false
	}
	if alert == nil {
		rw.NotFound("alert not found")
		return false
	}
	return true
}

// respondWithAlert returns the post-action state of an alert.
func (h *Handler) respondWithAlert(rw *ResponseWriter, r *http.Request, id int64) {
	alert, err := h.store.GetAlert(r.Context(), id)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(alert)
}

// decodeRequest decodes and validates a JSON request body, writing the
// error response itself and reporting success to the caller.
func decodeRequest(rw *ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		rw.BadRequest("invalid JSON body")
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		rw.ValidationError(verr)
		return false
	}
	return true
}

func parseAlertType(raw string) (models.AlertType, bool) {
	alertType := models.AlertType(strings.ToUpper(raw))
	switch alertType {
	case models.AlertTypeScrapeFailure, models.AlertTypeConsecutiveFailures,
		models.AlertTypeEventCountAnomaly, models.AlertTypeFillRateDrop,
		models.AlertTypeStructureChange, models.AlertTypeNewUnmatchedTags,
		models.AlertTypeSourceKennelMismatch:
		return alertType, true
	}
	return "", false
}

func parseAlertSeverity(raw string) (models.AlertSeverity, bool) {
	severity := models.AlertSeverity(strings.ToUpper(raw))
	switch severity {
	case models.AlertSeverityInfo, models.AlertSeverityWarning, models.AlertSeverityCritical:
		return severity, true
	}
	return "", false
}

func parseAlertStatus(raw string) (models.AlertStatus, bool) {
	status := models.AlertStatus(strings.ToUpper(raw))
	switch status {
	case models.AlertStatusOpen, models.AlertStatusAcknowledged,
		models.AlertStatusSnoozed, models.AlertStatusResolved:
		return status, true
	}
	return "", false
}
