// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package api serves the operational HTTP surface: catalog and run
// history reads, alert lifecycle actions, and Prometheus metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harrierpack/trailhound/internal/config"
)

// Router assembles the chi route tree around a Handler.
type Router struct {
	handler *Handler
	cfg     config.APIConfig
}

// NewRouter creates a router for the given handler.
func NewRouter(handler *Handler, cfg config.APIConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup builds the HTTP handler with the full middleware stack.
//
// The health endpoint sits outside the rate limiter so monitoring
// probes are never throttled; everything else under /api/v1 shares the
// configured IP-keyed limit. Prometheus metrics are served from the
// root, not /api/v1, matching the scrape config convention.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger())
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(router.cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Metrics())

		r.Get("/healthz", router.handler.Healthz)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(router.cfg))

			r.Get("/sources", router.handler.Sources)
			r.Get("/sources/{id}/runs", router.handler.SourceRuns)

			r.Get("/events", router.handler.Events)
			r.Get("/events/{id}", router.handler.EventDetail)

			r.Get("/alerts", router.handler.Alerts)
			r.Post("/alerts/{id}/acknowledge", router.handler.AcknowledgeAlert)
			r.Post("/alerts/{id}/snooze", router.handler.SnoozeAlert)
			r.Post("/alerts/{id}/resolve", router.handler.ResolveAlert)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// pathParam returns a chi URL parameter.
func pathParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
