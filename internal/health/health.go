// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package health evaluates each completed scrape run against the source's
// rolling baseline and produces alert candidates.
//
// The baseline is the last N successful runs (events found, per-field
// fill rates, structure hash) plus the last few runs of any status for
// failure-streak detection, always excluding the run under analysis. Each
// check yields zero or one candidate (the fill-rate check yields up to
// one per tracked field); the overall health status derives from the
// worst candidate severity.
package health

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
)

// Store is the run-history lookup surface the analyzer needs. *database.DB
// satisfies it.
type Store interface {
	RecentScrapeLogs(ctx context.Context, sourceID int64, limit int, excludeRunID uuid.UUID, statuses ...models.ScrapeStatus) ([]models.ScrapeLog, error)
}

// Candidate is one detected anomaly, ready for the alert lifecycle
// manager to persist.
type Candidate struct {
	Type     models.AlertType     `json:"type"`
	Severity models.AlertSeverity `json:"severity"`
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Details  json.RawMessage      `json:"details,omitempty"`
}

// Analysis is the verdict for one run. StructureRestored reports that the
// source's structure hash matches baseline again, so any open structural
// alert can be auto-resolved.
type Analysis struct {
	Status            models.HealthStatus `json:"status"`
	Candidates        []Candidate         `json:"candidates,omitempty"`
	StructureRestored bool                `json:"structure_restored,omitempty"`
}

// Analyzer evaluates completed runs. It only reads run history; persisting
// alerts and health status is the caller's concern.
type Analyzer struct {
	store Store
	cfg   config.HealthConfig
}

// New creates an analyzer. Zero config fields fall back to the documented
// defaults.
func New(store Store, cfg config.HealthConfig) *Analyzer {
	if cfg.BaselineRuns <= 0 {
		cfg.BaselineRuns = 10
	}
	if cfg.RecentRuns <= 0 {
		cfg.RecentRuns = 3
	}
	if cfg.PriorFailures <= 0 {
		cfg.PriorFailures = 2
	}
	if cfg.CountDropRatio <= 0 {
		cfg.CountDropRatio = 0.5
	}
	if cfg.CountMinBaseline <= 0 {
		cfg.CountMinBaseline = 5
	}
	if cfg.FillMinBaseline <= 0 {
		cfg.FillMinBaseline = 50
	}
	if cfg.FillDropPoints <= 0 {
		cfg.FillDropPoints = 30
	}
	return &Analyzer{store: store, cfg: cfg}
}

// Analyze evaluates one finalized run. The run's own log carries the
// source, run ID, and current metrics; history is read fresh from the
// store with the current run excluded.
func (a *Analyzer) Analyze(ctx context.Context, current *models.ScrapeLog) (*Analysis, error) {
	baselineLogs, err := a.store.RecentScrapeLogs(ctx, current.SourceID, a.cfg.BaselineRuns, current.RunID,
		models.ScrapeStatusSuccess, models.ScrapeStatusPartial)
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline runs: %w", err)
	}
	recentLogs, err := a.store.RecentScrapeLogs(ctx, current.SourceID, a.cfg.RecentRuns, current.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent runs: %w", err)
	}

	base := buildBaseline(baselineLogs)
	analysis := &Analysis{}

	failed := current.Status == models.ScrapeStatusFailed
	if failed {
		a.checkFailure(analysis, current, recentLogs)
	} else {
		// Data-quality checks only make sense when the run produced data.
		countAnomaly := a.checkEventCount(analysis, current, base)
		fillAnomaly := a.checkFillRates(analysis, current, base)
		a.checkStructure(analysis, current, base, countAnomaly || fillAnomaly)
		a.checkNewUnmatched(analysis, current, base)
		a.checkBlocked(analysis, current)
	}

	analysis.Status = deriveStatus(failed, analysis.Candidates)

	for _, c := range analysis.Candidates {
		metrics.RecordAlertEmitted(string(c.Type), string(c.Severity))
	}

	logging.Ctx(ctx).Info().
		Int64("source_id", current.SourceID).
		Str("status", string(analysis.Status)).
		Int("candidates", len(analysis.Candidates)).
		Int("baseline_runs", base.runs).
		Msg("health analysis completed")

	return analysis, nil
}

// deriveStatus maps the candidate set to an overall verdict: any CRITICAL
// or an outright run failure means FAILING, any WARNING means DEGRADED.
func deriveStatus(failed bool, candidates []Candidate) models.HealthStatus {
	if failed {
		return models.HealthStatusFailing
	}
	status := models.HealthStatusHealthy
	for _, c := range candidates {
		switch c.Severity {
		case models.AlertSeverityCritical:
			return models.HealthStatusFailing
		case models.AlertSeverityWarning:
			status = models.HealthStatusDegraded
		}
	}
	return status
}

// baselineStats aggregates the successful-run history a single analysis
// compares against.
type baselineStats struct {
	runs       int
	avgEvents  float64
	fieldAvgs  map[string]float64
	latestHash string
	unmatched  map[string]struct{}
}

// buildBaseline folds baseline logs (newest first) into the aggregates
// the checks need.
func buildBaseline(logs []models.ScrapeLog) *baselineStats {
	base := &baselineStats{
		runs:      len(logs),
		fieldAvgs: make(map[string]float64),
		unmatched: make(map[string]struct{}),
	}
	if len(logs) == 0 {
		return base
	}

	var totalEvents int
	fieldSums := make(map[string]float64)
	fieldCounts := make(map[string]int)

	for _, log := range logs {
		totalEvents += log.EventsFound
		for field, rate := range log.FillRates {
			fieldSums[field] += rate
			fieldCounts[field]++
		}
		for _, tag := range log.UnmatchedTags {
			base.unmatched[tag] = struct{}{}
		}
		if base.latestHash == "" && log.StructureHash != "" {
			base.latestHash = log.StructureHash
		}
	}

	base.avgEvents = float64(totalEvents) / float64(len(logs))
	for field, sum := range fieldSums {
		base.fieldAvgs[field] = sum / float64(fieldCounts[field])
	}
	return base
}

// detailsJSON encodes check details; marshal failures degrade to nil
// rather than failing the analysis.
func detailsJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
