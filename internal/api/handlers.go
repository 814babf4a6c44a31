// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/database"
	"github.com/harrierpack/trailhound/internal/models"
)

// Store is the slice of the database layer the API reads from. Alert
// actions are the only writes; everything else is catalog and run
// history lookups for dashboards.
type Store interface {
	Ping(ctx context.Context) error

	ListSources(ctx context.Context) ([]models.Source, error)
	GetSource(ctx context.Context, id int64) (*models.Source, error)
	ListScrapeLogs(ctx context.Context, filter database.ScrapeLogFilter) ([]models.ScrapeLog, error)

	ListEvents(ctx context.Context, filter database.EventFilter) ([]models.Event, error)
	EventByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListEventLinks(ctx context.Context, eventID uuid.UUID) ([]models.EventLink, error)

	ListAlerts(ctx context.Context, filter database.AlertFilter) ([]models.Alert, error)
	GetAlert(ctx context.Context, id int64) (*models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id int64, acknowledgedBy string) (bool, error)
	SnoozeAlert(ctx context.Context, id int64, until time.Time) (bool, error)
	ResolveAlert(ctx context.Context, id int64, note string) (bool, error)
}

// Handler serves the operational API: catalog reads, run history, and
// alert lifecycle actions.
type Handler struct {
	store     Store
	cfg       config.APIConfig
	startTime time.Time
}

// NewHandler creates an API handler. Page size limits fall back to
// sensible defaults when the configuration leaves them unset.
func NewHandler(store Store, cfg config.APIConfig) *Handler {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 50
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 500
	}
	return &Handler{
		store:     store,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// healthResponse is the payload of GET /api/v1/healthz.
type healthResponse struct {
	Status            string  `json:"status"`
	DatabaseConnected bool    `json:"database_connected"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// Healthz reports process liveness plus a database round trip. A failed
// ping degrades the status and the response code so load balancers stop
// routing to an instance that cannot serve catalog reads.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	dbConnected := h.store.Ping(r.Context()) == nil

	health := healthResponse{
		Status:            "healthy",
		DatabaseConnected: dbConnected,
		UptimeSeconds:     time.Since(h.startTime).Seconds(),
	}
	if !dbConnected {
		health.Status = "degraded"
		rw.writeJSON(http.StatusServiceUnavailable, APIResponse{Success: false, Data: health})
		return
	}

	rw.Success(health)
}

// Sources lists every registered source with its trust level and
// current health classification.
func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sources, err := h.store.ListSources(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(sources)
}

// SourceRuns lists the scrape run history of one source, newest first.
// Supports a status filter and limit/offset pagination.
func (h *Handler) SourceRuns(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sourceID, ok := h.pathID(rw, r, "id")
	if !ok {
		return
	}

	source, err := h.store.GetSource(r.Context(), sourceID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if source == nil {
		rw.NotFound("source not found")
		return
	}

	filter := database.ScrapeLogFilter{SourceID: &sourceID}
	filter.Limit, filter.Offset = h.pageParams(r)

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := parseScrapeStatus(raw)
		if !ok {
			rw.BadRequest("invalid status: " + raw)
			return
		}
		filter.Status = &status
	}

	logs, err := h.store.ListScrapeLogs(r.Context(), filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithPagination(logs, paginationFor(len(logs), filter.Limit, filter.Offset))
}

// pageParams extracts limit/offset query parameters, clamping the limit
// to the configured maximum.
func (h *Handler) pageParams(r *http.Request) (limit, offset int) {
	limit = getIntParam(r, "limit", h.cfg.DefaultPageSize)
	if limit <= 0 {
		limit = h.cfg.DefaultPageSize
	}
	if limit > h.cfg.MaxPageSize {
		limit = h.cfg.MaxPageSize
	}
	offset = getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// pathID parses a numeric chi path parameter, writing a 400 response on
// failure.
func (h *Handler) pathID(rw *ResponseWriter, r *http.Request, key string) (int64, bool) {
	raw := pathParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		rw.BadRequest("invalid " + key + ": must be a positive integer")
		return 0, false
	}
	return id, true
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// parseCommaSeparated splits a comma-separated query value, dropping
// empty entries.
func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// paginationFor derives pagination metadata from a result page. HasMore
// is inferred from a full page rather than a count query.
func paginationFor(count, limit, offset int) *PaginationMeta {
	return &PaginationMeta{
		Count:   count,
		Offset:  offset,
		Limit:   limit,
		HasMore: limit > 0 && count == limit,
	}
}

func parseScrapeStatus(raw string) (models.ScrapeStatus, bool) {
	status := models.ScrapeStatus(strings.ToUpper(raw))
	switch status {
	case models.ScrapeStatusRunning, models.ScrapeStatusSuccess,
		models.ScrapeStatusPartial, models.ScrapeStatusFailed:
		return status, true
	}
	return "", false
}
