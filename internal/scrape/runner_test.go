// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package scrape

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/database"
	"github.com/harrierpack/trailhound/internal/health"
	"github.com/harrierpack/trailhound/internal/merge"
	"github.com/harrierpack/trailhound/internal/models"
	"github.com/harrierpack/trailhound/internal/reconcile"
)

// The runner persists through the real store in production.
var _ Store = (*database.DB)(nil)

type fakeRunStore struct {
	source      *models.Source
	createErr   error
	finalizeErr error

	finalized *models.ScrapeLog
	healthSet []models.HealthStatus
}

func (s *fakeRunStore) GetSource(_ context.Context, id int64) (*models.Source, error) {
	if s.source == nil || s.source.ID != id {
		return nil, nil
	}
	return s.source, nil
}

func (s *fakeRunStore) CreateScrapeLog(_ context.Context, log *models.ScrapeLog) error {
	if s.createErr != nil {
		return s.createErr
	}
	log.ID = 1
	log.RunID = uuid.New()
	log.StartedAt = time.Now()
	return nil
}

func (s *fakeRunStore) FinalizeScrapeLog(_ context.Context, log *models.ScrapeLog) error {
	if s.finalizeErr != nil {
		return s.finalizeErr
	}
	now := time.Now()
	log.CompletedAt = &now
	cp := *log
	s.finalized = &cp
	return nil
}

func (s *fakeRunStore) UpdateSourceHealth(_ context.Context, _ int64, status models.HealthStatus, _ time.Time) error {
	s.healthSet = append(s.healthSet, status)
	return nil
}

type fakeMerger struct {
	result   *merge.Result
	err      error
	panicMsg string

	calls int
}

func (m *fakeMerger) Process(_ context.Context, _ int64, rawEvents []models.RawEventInput) (*merge.Result, error) {
	m.calls++
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &merge.Result{Created: len(rawEvents)}, nil
}

type fakeReconciler struct {
	result *reconcile.Result
	err    error

	calls     int
	gotWindow int
}

func (r *fakeReconciler) Reconcile(_ context.Context, _ int64, _ []models.RawEventInput, windowDays int) (*reconcile.Result, error) {
	r.calls++
	r.gotWindow = windowDays
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &reconcile.Result{}, nil
}

type fakeAnalyzer struct {
	analysis *health.Analysis
	err      error

	got *models.ScrapeLog
}

func (a *fakeAnalyzer) Analyze(_ context.Context, current *models.ScrapeLog) (*health.Analysis, error) {
	cp := *current
	a.got = &cp
	if a.err != nil {
		return nil, a.err
	}
	if a.analysis != nil {
		return a.analysis, nil
	}
	return &health.Analysis{Status: models.HealthStatusHealthy}, nil
}

type fakeAlerts struct {
	persisted [][]health.Candidate
	resolved  []models.AlertType
}

func (a *fakeAlerts) Persist(_ context.Context, _ int64, _ uuid.UUID, candidates []health.Candidate) error {
	a.persisted = append(a.persisted, candidates)
	return nil
}

func (a *fakeAlerts) AutoResolve(_ context.Context, _ int64, alertType models.AlertType, _ string) error {
	a.resolved = append(a.resolved, alertType)
	return nil
}

type runnerFixture struct {
	store    *fakeRunStore
	merger   *fakeMerger
	recon    *fakeReconciler
	analyzer *fakeAnalyzer
	alerts   *fakeAlerts
	runner   *Runner
}

func newRunnerFixture() *runnerFixture {
	f := &runnerFixture{
		store: &fakeRunStore{
			source: &models.Source{ID: 7, Name: "nych3-site", TrustLevel: 5, Enabled: true},
		},
		merger:   &fakeMerger{},
		recon:    &fakeReconciler{},
		analyzer: &fakeAnalyzer{},
		alerts:   &fakeAlerts{},
	}
	f.runner = NewRunner(f.store, f.merger, f.recon, f.analyzer, f.alerts, config.PipelineConfig{
		ReconcileWindowDays: 14,
		ErrorCap:            5,
		FillRateFields:      []string{"description"},
	})
	return f
}

func testPayload(events int, fetchErrors ...string) *models.ScrapePayload {
	p := &models.ScrapePayload{
		SourceID:      7,
		AdapterType:   models.AdapterTypeHTML,
		FetchedAt:     time.Now(),
		StructureHash: "deadbeef",
		Errors:        fetchErrors,
	}
	for i := 0; i < events; i++ {
		desc := fmt.Sprintf("trail %d", i)
		p.Events = append(p.Events, models.RawEventInput{
			Date:        time.Now().UTC().AddDate(0, 0, i+1).Format(models.DateLayout),
			KennelTag:   "NYCH3",
			Description: &desc,
		})
	}
	return p
}

func TestRun_SuccessfulRun(t *testing.T) {
	f := newRunnerFixture()
	f.merger.result = &merge.Result{Created: 2, UnmatchedTags: []string{"mystery"}}
	f.recon.result = &reconcile.Result{Cancelled: 1}

	log, err := f.runner.Run(context.Background(), testPayload(2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if log.Status != models.ScrapeStatusSuccess {
		t.Errorf("expected SUCCESS, got %s", log.Status)
	}
	if log.EventsFound != 2 || log.EventsCreated != 2 || log.EventsCancelled != 1 {
		t.Errorf("unexpected counters: found=%d created=%d cancelled=%d",
			log.EventsFound, log.EventsCreated, log.EventsCancelled)
	}
	if len(log.UnmatchedTags) != 1 || log.UnmatchedTags[0] != "mystery" {
		t.Errorf("expected unmatched tags carried over, got %v", log.UnmatchedTags)
	}
	if got := log.FillRates["description"]; got != 1.0 {
		t.Errorf("expected description fill rate 1.0, got %v", got)
	}
	if f.recon.gotWindow != 14 {
		t.Errorf("expected window 14 passed to reconciler, got %d", f.recon.gotWindow)
	}
	if f.store.finalized == nil || f.store.finalized.Status != models.ScrapeStatusSuccess {
		t.Error("expected run log finalized as SUCCESS")
	}
	if f.analyzer.got == nil || f.analyzer.got.EventsCreated != 2 {
		t.Error("expected analyzer to see the finalized counters")
	}
	if len(f.alerts.persisted) != 1 {
		t.Errorf("expected one alert persistence pass, got %d", len(f.alerts.persisted))
	}
	if len(f.store.healthSet) != 1 || f.store.healthSet[0] != models.HealthStatusHealthy {
		t.Errorf("expected source marked HEALTHY, got %v", f.store.healthSet)
	}
}

func TestRun_FailedFetchSkipsMergeAndReconcile(t *testing.T) {
	f := newRunnerFixture()
	f.analyzer.analysis = &health.Analysis{
		Status: models.HealthStatusFailing,
		Candidates: []health.Candidate{
			{Type: models.AlertTypeScrapeFailure, Severity: models.AlertSeverityWarning},
		},
	}

	log, err := f.runner.Run(context.Background(), testPayload(0, "connection refused"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if log.Status != models.ScrapeStatusFailed {
		t.Errorf("expected FAILED, got %s", log.Status)
	}
	if f.merger.calls != 0 {
		t.Errorf("expected merge skipped for a failed fetch, got %d calls", f.merger.calls)
	}
	if f.recon.calls != 0 {
		t.Errorf("expected reconcile skipped for a failed fetch, got %d calls", f.recon.calls)
	}
	if len(log.Errors) != 1 || log.Errors[0].Message != "connection refused" {
		t.Errorf("expected fetch error recorded, got %v", log.Errors)
	}
	if len(f.store.healthSet) != 1 || f.store.healthSet[0] != models.HealthStatusFailing {
		t.Errorf("expected source marked FAILING, got %v", f.store.healthSet)
	}
}

func TestRun_PartialFetchMergesButSkipsReconcile(t *testing.T) {
	f := newRunnerFixture()

	log, err := f.runner.Run(context.Background(), testPayload(2, "page 3 timed out"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if log.Status != models.ScrapeStatusPartial {
		t.Errorf("expected PARTIAL, got %s", log.Status)
	}
	if f.merger.calls != 1 {
		t.Errorf("expected merge to run, got %d calls", f.merger.calls)
	}
	if f.recon.calls != 0 {
		t.Errorf("expected reconcile skipped after an incomplete fetch, got %d calls", f.recon.calls)
	}
}

func TestRun_MergeErrorsMakePartial(t *testing.T) {
	f := newRunnerFixture()
	f.merger.result = &merge.Result{
		Created: 1,
		Errors:  []models.ScrapeError{{Date: "not-a-date", Tag: "NYCH3", Message: "failed to parse event date"}},
	}

	log, err := f.runner.Run(context.Background(), testPayload(2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if log.Status != models.ScrapeStatusPartial {
		t.Errorf("expected PARTIAL, got %s", log.Status)
	}
	if len(log.Errors) != 1 || log.Errors[0].Tag != "NYCH3" {
		t.Errorf("expected merge error carried into the log, got %v", log.Errors)
	}
	if f.recon.calls != 1 {
		t.Errorf("expected reconcile to still run after per-event errors, got %d calls", f.recon.calls)
	}
}

func TestRun_MergeFailureMarksRunFailed(t *testing.T) {
	f := newRunnerFixture()
	f.merger.err = errors.New("store unavailable")

	log, err := f.runner.Run(context.Background(), testPayload(2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if log.Status != models.ScrapeStatusFailed {
		t.Errorf("expected FAILED, got %s", log.Status)
	}
	if f.recon.calls != 0 {
		t.Errorf("expected reconcile skipped after merge failure, got %d calls", f.recon.calls)
	}
	if f.store.finalized == nil || f.store.finalized.Status != models.ScrapeStatusFailed {
		t.Error("expected run log finalized as FAILED")
	}
}

func TestRun_ReconcileFailureMarksRunFailed(t *testing.T) {
	f := newRunnerFixture()
	f.recon.err = errors.New("store unavailable")

	log, err := f.runner.Run(context.Background(), testPayload(2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if log.Status != models.ScrapeStatusFailed {
		t.Errorf("expected FAILED, got %s", log.Status)
	}
	if log.EventsCreated != 2 {
		t.Errorf("expected merge counters preserved, got created=%d", log.EventsCreated)
	}
}

func TestRun_PanicRecovered(t *testing.T) {
	f := newRunnerFixture()
	f.merger.panicMsg = "nil map write"

	log, err := f.runner.Run(context.Background(), testPayload(1))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if log.Status != models.ScrapeStatusFailed {
		t.Errorf("expected FAILED after panic, got %s", log.Status)
	}
	if len(log.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(log.Errors))
	}
	if f.store.finalized == nil {
		t.Error("expected run log finalized despite panic")
	}
}

func TestRun_UnknownSource(t *testing.T) {
	f := newRunnerFixture()

	payload := testPayload(1)
	payload.SourceID = 999

	_, err := f.runner.Run(context.Background(), payload)
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
	if !errors.Is(err, ErrUnknownSource) {
		t.Errorf("expected ErrUnknownSource, got %v", err)
	}
	if f.merger.calls != 0 {
		t.Errorf("expected no merge for unknown source, got %d calls", f.merger.calls)
	}
}

func TestRun_CreateLogFailureAborts(t *testing.T) {
	f := newRunnerFixture()
	f.store.createErr = errors.New("disk full")

	if _, err := f.runner.Run(context.Background(), testPayload(1)); err == nil {
		t.Fatal("expected error when the run log cannot be opened")
	}
	if f.merger.calls != 0 {
		t.Errorf("expected no merge without a run log, got %d calls", f.merger.calls)
	}
}

func TestRun_FinalizeFailureReturnsError(t *testing.T) {
	f := newRunnerFixture()
	f.store.finalizeErr = errors.New("disk full")

	log, err := f.runner.Run(context.Background(), testPayload(1))
	if err == nil {
		t.Fatal("expected error when finalize fails")
	}
	if log == nil || log.Status != models.ScrapeStatusSuccess {
		t.Errorf("expected the in-memory log to reflect the completed run, got %+v", log)
	}
	if len(f.alerts.persisted) != 0 {
		t.Errorf("expected no alert pass without a finalized log, got %d", len(f.alerts.persisted))
	}
}

func TestRun_StructureRestoredAutoResolves(t *testing.T) {
	f := newRunnerFixture()
	f.analyzer.analysis = &health.Analysis{
		Status:            models.HealthStatusHealthy,
		StructureRestored: true,
	}

	if _, err := f.runner.Run(context.Background(), testPayload(1)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.alerts.resolved) != 1 || f.alerts.resolved[0] != models.AlertTypeStructureChange {
		t.Errorf("expected STRUCTURE_CHANGE auto-resolved, got %v", f.alerts.resolved)
	}
}

func TestRun_AnalyzerErrorOnFailedRunStillForcesFailing(t *testing.T) {
	f := newRunnerFixture()
	f.analyzer.err = errors.New("history query failed")

	log, err := f.runner.Run(context.Background(), testPayload(0, "connection refused"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if log.Status != models.ScrapeStatusFailed {
		t.Errorf("expected FAILED, got %s", log.Status)
	}
	if len(f.store.healthSet) != 1 || f.store.healthSet[0] != models.HealthStatusFailing {
		t.Errorf("expected FAILING forced despite analyzer error, got %v", f.store.healthSet)
	}
	if len(f.alerts.persisted) != 0 {
		t.Errorf("expected no alert pass without analysis, got %d", len(f.alerts.persisted))
	}
}

func TestRun_FetchErrorListBounded(t *testing.T) {
	f := newRunnerFixture()

	var fetchErrors []string
	for i := 0; i < 20; i++ {
		fetchErrors = append(fetchErrors, fmt.Sprintf("error %d", i))
	}

	log, err := f.runner.Run(context.Background(), testPayload(0, fetchErrors...))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(log.Errors) != 5 {
		t.Errorf("expected error list capped at 5, got %d", len(log.Errors))
	}
}
