// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package scrape orchestrates one scrape run end to end: open the run
// log, merge the payload, compute fill rates, reconcile stale events,
// finalize the log, analyze health, and persist alerts.
//
// The runner is deliberately thin. All domain rules live in the stage
// packages; this one sequences them and guarantees that a failing stage
// leaves a FAILED run log and a FAILING source behind instead of a
// crashed process.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/health"
	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/merge"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
	"github.com/harrierpack/trailhound/internal/reconcile"
)

// ErrUnknownSource is returned when a payload names a source that is not
// registered. The failure is permanent: redelivering the same payload
// cannot succeed until an operator registers the source, so intake drops
// such payloads instead of retrying them.
var ErrUnknownSource = errors.New("unknown source")

// Store is the run bookkeeping surface. *database.DB satisfies it.
type Store interface {
	GetSource(ctx context.Context, id int64) (*models.Source, error)
	CreateScrapeLog(ctx context.Context, log *models.ScrapeLog) error
	FinalizeScrapeLog(ctx context.Context, log *models.ScrapeLog) error
	UpdateSourceHealth(ctx context.Context, id int64, status models.HealthStatus, lastRunAt time.Time) error
}

// Merger upserts a payload's raw events into the canonical catalog.
type Merger interface {
	Process(ctx context.Context, sourceID int64, rawEvents []models.RawEventInput) (*merge.Result, error)
}

// Reconciler cancels stale sole-source events after a clean fetch.
type Reconciler interface {
	Reconcile(ctx context.Context, sourceID int64, scraped []models.RawEventInput, windowDays int) (*reconcile.Result, error)
}

// Analyzer scores a finished run against the source's rolling history.
type Analyzer interface {
	Analyze(ctx context.Context, current *models.ScrapeLog) (*health.Analysis, error)
}

// AlertManager persists alert candidates and auto-resolves cleared ones.
type AlertManager interface {
	Persist(ctx context.Context, sourceID int64, runID uuid.UUID, candidates []health.Candidate) error
	AutoResolve(ctx context.Context, sourceID int64, alertType models.AlertType, note string) error
}

// Runner sequences the pipeline stages for one scrape payload.
type Runner struct {
	store    Store
	merger   Merger
	recon    Reconciler
	analyzer Analyzer
	alerts   AlertManager
	cfg      config.PipelineConfig
}

// NewRunner assembles a runner from its stages. Zero pipeline knobs
// fall back to package defaults.
func NewRunner(store Store, merger Merger, recon Reconciler, analyzer Analyzer, alerts AlertManager, cfg config.PipelineConfig) *Runner {
	if cfg.ReconcileWindowDays <= 0 {
		cfg.ReconcileWindowDays = reconcile.DefaultWindowDays
	}
	if cfg.ErrorCap <= 0 {
		cfg.ErrorCap = merge.DefaultErrorCap
	}
	return &Runner{
		store:    store,
		merger:   merger,
		recon:    recon,
		analyzer: analyzer,
		alerts:   alerts,
		cfg:      cfg,
	}
}

// Run processes one payload end to end and returns the finalized run
// log. An error is returned only when the run could not be recorded at
// all (unknown source, log row not writable); once the run log exists,
// stage failures are absorbed into a FAILED run instead, so a caller
// retrying on error never duplicates a recorded run.
func (r *Runner) Run(ctx context.Context, payload *models.ScrapePayload) (*models.ScrapeLog, error) {
	source, err := r.store.GetSource(ctx, payload.SourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source %d: %w", payload.SourceID, err)
	}
	if source == nil {
		return nil, fmt.Errorf("source %d: %w", payload.SourceID, ErrUnknownSource)
	}

	log := &models.ScrapeLog{
		SourceID:      payload.SourceID,
		Status:        models.ScrapeStatusRunning,
		StructureHash: payload.StructureHash,
	}
	if err := r.store.CreateScrapeLog(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to open scrape log: %w", err)
	}

	ctx = logging.ContextWithRunID(ctx, log.RunID.String())
	logging.Ctx(ctx).Info().
		Int64("source_id", source.ID).
		Str("adapter", string(payload.AdapterType)).
		Int("events", len(payload.Events)).
		Int("fetch_errors", len(payload.Errors)).
		Msg("scrape run started")

	r.execute(ctx, source, payload, log)

	if err := r.store.FinalizeScrapeLog(ctx, log); err != nil {
		// The merge work is committed but the run row is stuck in
		// RUNNING. Redelivery is safe: re-merging the same payload only
		// produces skips.
		return log, fmt.Errorf("failed to finalize scrape log: %w", err)
	}

	r.report(ctx, source, log)

	metrics.RecordRun(source.ID, string(log.Status), time.Since(log.StartedAt))
	logging.Ctx(ctx).Info().
		Int64("source_id", source.ID).
		Str("status", string(log.Status)).
		Int("created", log.EventsCreated).
		Int("updated", log.EventsUpdated).
		Int("skipped", log.EventsSkipped).
		Int("blocked", log.EventsBlocked).
		Int("cancelled", log.EventsCancelled).
		Int64("duration_ms", log.DurationMS).
		Msg("scrape run finished")

	return log, nil
}

// execute runs the data stages and fills the run log. It never returns
// an error: stage failures and panics downgrade the run to FAILED.
func (r *Runner) execute(ctx context.Context, source *models.Source, payload *models.ScrapePayload, log *models.ScrapeLog) {
	defer func() {
		if p := recover(); p != nil {
			logging.Ctx(ctx).Error().
				Interface("panic", p).
				Int64("source_id", source.ID).
				Msg("scrape run panicked")
			log.Status = models.ScrapeStatusFailed
			r.appendError(log, models.ScrapeError{Message: fmt.Sprintf("run panicked: %v", p)})
		}
	}()

	log.EventsFound = len(payload.Events)
	log.ErrorDetail = payload.ErrorDetail
	for _, msg := range payload.Errors {
		r.appendError(log, models.ScrapeError{Message: msg})
	}

	if payload.Failed() {
		log.Status = models.ScrapeStatusFailed
		return
	}

	mergeRes, err := r.merger.Process(ctx, source.ID, payload.Events)
	if err != nil {
		logging.CtxErr(ctx, err).Int64("source_id", source.ID).Msg("merge stage failed")
		log.Status = models.ScrapeStatusFailed
		r.appendError(log, models.ScrapeError{Message: fmt.Sprintf("merge failed: %v", err)})
		return
	}

	log.EventsCreated = mergeRes.Created
	log.EventsUpdated = mergeRes.Updated
	log.EventsSkipped = mergeRes.Skipped
	log.EventsBlocked = mergeRes.Blocked
	log.UnmatchedTags = mergeRes.UnmatchedTags
	log.BlockedTags = mergeRes.BlockedTags
	for _, e := range mergeRes.Errors {
		r.appendError(log, e)
	}
	log.FillRates = ComputeFillRates(payload.Events, r.cfg.FillRateFields)

	// Cancellation decisions need a complete listing. A partial fetch
	// may simply have missed events that are still published, so
	// reconciliation only runs after a clean fetch.
	if len(payload.Errors) == 0 {
		recRes, err := r.recon.Reconcile(ctx, source.ID, payload.Events, r.cfg.ReconcileWindowDays)
		if err != nil {
			logging.CtxErr(ctx, err).Int64("source_id", source.ID).Msg("reconcile stage failed")
			log.Status = models.ScrapeStatusFailed
			r.appendError(log, models.ScrapeError{Message: fmt.Sprintf("reconcile failed: %v", err)})
			return
		}
		log.EventsCancelled = recRes.Cancelled
	}

	if len(log.Errors) > 0 {
		log.Status = models.ScrapeStatusPartial
	} else {
		log.Status = models.ScrapeStatusSuccess
	}
}

// report runs health analysis over the finalized log and pushes the
// outcome into alerts and the source row. Analysis problems are logged,
// never escalated: the run itself already committed.
func (r *Runner) report(ctx context.Context, source *models.Source, log *models.ScrapeLog) {
	completedAt := time.Now()
	if log.CompletedAt != nil {
		completedAt = *log.CompletedAt
	}

	analysis, err := r.analyzer.Analyze(ctx, log)
	if err != nil {
		logging.CtxErr(ctx, err).Int64("source_id", source.ID).Msg("health analysis failed")
		if log.Status == models.ScrapeStatusFailed {
			// A failed run forces FAILING even when the analyzer is
			// unavailable.
			r.setSourceHealth(ctx, source.ID, models.HealthStatusFailing, completedAt)
		}
		return
	}

	if err := r.alerts.Persist(ctx, source.ID, log.RunID, analysis.Candidates); err != nil {
		logging.CtxErr(ctx, err).Int64("source_id", source.ID).Msg("alert persistence incomplete")
	}
	if analysis.StructureRestored {
		if err := r.alerts.AutoResolve(ctx, source.ID, models.AlertTypeStructureChange, "structure hash matches the baseline again"); err != nil {
			logging.CtxErr(ctx, err).Int64("source_id", source.ID).Msg("structure alert auto-resolve failed")
		}
	}

	r.setSourceHealth(ctx, source.ID, analysis.Status, completedAt)
}

func (r *Runner) setSourceHealth(ctx context.Context, sourceID int64, status models.HealthStatus, lastRunAt time.Time) {
	if err := r.store.UpdateSourceHealth(ctx, sourceID, status, lastRunAt); err != nil {
		logging.CtxErr(ctx, err).Int64("source_id", sourceID).Msg("failed to update source health")
		return
	}
	metrics.SetSourceHealth(sourceID, string(status))
}

func (r *Runner) appendError(log *models.ScrapeLog, e models.ScrapeError) {
	if len(log.Errors) >= r.cfg.ErrorCap {
		return
	}
	log.Errors = append(log.Errors, e)
}
