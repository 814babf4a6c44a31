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

	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/database"
	"github.com/harrierpack/trailhound/internal/models"
)

// Events lists canonical events filtered by kennel, date window, and
// status. Dates use the YYYY-MM-DD calendar-day form that events are
// keyed on; time-of-day never participates in filtering.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	filter, ok := h.eventFilter(rw, r)
	if !ok {
		return
	}

	events, err := h.store.ListEvents(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(events, paginationFor(len(events), filter.Limit, filter.Offset))
}

// eventDetailResponse pairs an event with the alternate source links
// collected for it across feeds.
type eventDetailResponse struct {
	Event *models.Event      `json:"event"`
	Links []models.EventLink `json:"links,omitempty"`
}

// EventDetail returns a single event by ID along with its cross-source
// links.
func (h *Handler) EventDetail(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := uuid.Parse(pathParam(r, "id"))
	if err != nil {
		rw.BadRequest("invalid event id: must be a UUID")
		return
	}

	event, err := h.store.EventByID(r.Context(), id)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if event == nil {
		rw.NotFound("event not found")
		return
	}

	links, err := h.store.ListEventLinks(r.Context(), id)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(eventDetailResponse{Event: event, Links: links})
}

// eventFilter builds an EventFilter from query parameters, writing a
// 400 response when a parameter does not parse.
func (h *Handler) eventFilter(rw *ResponseWriter, r *http.Request) (database.EventFilter, bool) {
	var filter database.EventFilter
	query := r.URL.Query()

	if raw := query.Get("kennel"); raw != "" {
		kennelID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || kennelID <= 0 {
			rw.BadRequest("invalid kennel: must be a positive integer")
			return filter, false
		}
		filter.KennelID = &kennelID
	}

	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			rw.BadRequest("invalid from date: expected YYYY-MM-DD")
			return filter, false
		}
		filter.From = &from
	}

	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			rw.BadRequest("invalid to date: expected YYYY-MM-DD")
			return filter, false
		}
		filter.To = &to
	}

	if raw := query.Get("status"); raw != "" {
		status := models.EventStatus(strings.ToUpper(raw))
		if status != models.EventStatusConfirmed && status != models.EventStatusCancelled {
			rw.BadRequest("invalid status: " + raw)
			return filter, false
		}
		filter.Status = &status
	}

	filter.Limit, filter.Offset = h.pageParams(r)
	return filter, true
}
