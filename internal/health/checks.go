// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package health

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harrierpack/trailhound/internal/models"
)

func (a *Analysis) add(c Candidate) {
	a.Candidates = append(a.Candidates, c)
}

// checkFailure handles a FAILED run: a WARNING for the failure itself,
// escalating to a separate CRITICAL alert when the prior runs show a
// streak.
func (a *Analyzer) checkFailure(analysis *Analysis, current *models.ScrapeLog, recent []models.ScrapeLog) {
	msg := "The latest scrape run failed"
	if len(current.Errors) > 0 {
		msg = fmt.Sprintf("The latest scrape run failed: %s", current.Errors[0].Message)
	}
	analysis.add(Candidate{
		Type:     models.AlertTypeScrapeFailure,
		Severity: models.AlertSeverityWarning,
		Title:    "Scrape failure",
		Message:  msg,
		Details:  detailsJSON(map[string]interface{}{"errors": current.Errors}),
	})

	priorFailures := 0
	for _, log := range recent {
		if log.Status == models.ScrapeStatusFailed {
			priorFailures++
		}
	}
	if priorFailures >= a.cfg.PriorFailures {
		analysis.add(Candidate{
			Type:     models.AlertTypeConsecutiveFailures,
			Severity: models.AlertSeverityCritical,
			Title:    "Consecutive scrape failures",
			Message:  fmt.Sprintf("This run and %d of the prior %d runs failed", priorFailures, len(recent)),
			Details: detailsJSON(map[string]interface{}{
				"prior_failures": priorFailures,
				"window":         len(recent),
			}),
		})
	}
}

// checkEventCount compares this run's count to the baseline average.
// Returns true when an anomaly was flagged, for the structural check's
// materiality decision.
func (a *Analyzer) checkEventCount(analysis *Analysis, current *models.ScrapeLog, base *baselineStats) bool {
	if base.runs == 0 {
		return false
	}

	if current.EventsFound == 0 && base.avgEvents > 0 {
		analysis.add(Candidate{
			Type:     models.AlertTypeEventCountAnomaly,
			Severity: models.AlertSeverityCritical,
			Title:    "No events found",
			Message:  fmt.Sprintf("Source reported 0 events; the baseline average is %.1f", base.avgEvents),
			Details: detailsJSON(map[string]interface{}{
				"current":      0,
				"baseline_avg": base.avgEvents,
			}),
		})
		return true
	}

	if base.avgEvents > a.cfg.CountMinBaseline && float64(current.EventsFound) < base.avgEvents*a.cfg.CountDropRatio {
		dropPct := (1 - float64(current.EventsFound)/base.avgEvents) * 100
		analysis.add(Candidate{
			Type:     models.AlertTypeEventCountAnomaly,
			Severity: models.AlertSeverityWarning,
			Title:    "Event count drop",
			Message: fmt.Sprintf("Source reported %d events, %.0f%% below the baseline average of %.1f",
				current.EventsFound, dropPct, base.avgEvents),
			Details: detailsJSON(map[string]interface{}{
				"current":      current.EventsFound,
				"baseline_avg": base.avgEvents,
				"drop_percent": dropPct,
			}),
		})
		return true
	}

	return false
}

// checkFillRates flags tracked fields whose fill rate fell hard against a
// solid baseline. Sparse fields (baseline below the minimum) never alert.
func (a *Analyzer) checkFillRates(analysis *Analysis, current *models.ScrapeLog, base *baselineStats) bool {
	if base.runs == 0 {
		return false
	}

	fields := make([]string, 0, len(base.fieldAvgs))
	for field := range base.fieldAvgs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	flagged := false
	for _, field := range fields {
		baselinePct := base.fieldAvgs[field] * 100
		if baselinePct < a.cfg.FillMinBaseline {
			continue
		}
		currentPct := current.FillRates[field] * 100
		drop := baselinePct - currentPct
		if drop <= a.cfg.FillDropPoints {
			continue
		}
		flagged = true
		analysis.add(Candidate{
			Type:     models.AlertTypeFillRateDrop,
			Severity: models.AlertSeverityWarning,
			Title:    "Field fill rate drop",
			Message:  fmt.Sprintf("Field %q fill rate dropped from %.0f%% to %.0f%%", field, baselinePct, currentPct),
			Details: detailsJSON(map[string]interface{}{
				"field":        field,
				"baseline_pct": baselinePct,
				"current_pct":  currentPct,
				"drop_points":  drop,
			}),
		})
	}
	return flagged
}

// checkStructure compares the run's structure hash against the most
// recent baseline hash. A differing hash alerts (WARNING when the change
// had material count or fill impact, INFO otherwise); a matching hash
// marks any open structural alert for auto-resolution.
func (a *Analyzer) checkStructure(analysis *Analysis, current *models.ScrapeLog, base *baselineStats, material bool) {
	if current.StructureHash == "" || base.latestHash == "" {
		return
	}

	if current.StructureHash == base.latestHash {
		analysis.StructureRestored = true
		return
	}

	severity := models.AlertSeverityInfo
	if material {
		severity = models.AlertSeverityWarning
	}
	analysis.add(Candidate{
		Type:     models.AlertTypeStructureChange,
		Severity: severity,
		Title:    "Source structure changed",
		Message: fmt.Sprintf("Structure hash changed from %s to %s",
			shortHash(base.latestHash), shortHash(current.StructureHash)),
		Details: detailsJSON(map[string]interface{}{
			"baseline_hash": base.latestHash,
			"current_hash":  current.StructureHash,
			"material":      material,
		}),
	})
}

// checkNewUnmatched alerts only on unmatched tags never seen in the
// baseline window, so a known stray tag does not re-alert every run.
func (a *Analyzer) checkNewUnmatched(analysis *Analysis, current *models.ScrapeLog, base *baselineStats) {
	if len(current.UnmatchedTags) == 0 {
		return
	}

	var novel []string
	for _, tag := range current.UnmatchedTags {
		if _, known := base.unmatched[tag]; !known {
			novel = append(novel, tag)
		}
	}
	if len(novel) == 0 {
		return
	}

	analysis.add(Candidate{
		Type:     models.AlertTypeNewUnmatchedTags,
		Severity: models.AlertSeverityInfo,
		Title:    "New unmatched kennel tags",
		Message:  fmt.Sprintf("%d new unmatched kennel tags: %s", len(novel), strings.Join(novel, ", ")),
		Details:  detailsJSON(map[string]interface{}{"tags": novel}),
	})
}

// checkBlocked always alerts on resolved-but-blocked tags; a source
// writing outside its linked kennels needs operator attention regardless
// of baseline.
func (a *Analyzer) checkBlocked(analysis *Analysis, current *models.ScrapeLog) {
	if len(current.BlockedTags) == 0 {
		return
	}

	analysis.add(Candidate{
		Type:     models.AlertTypeSourceKennelMismatch,
		Severity: models.AlertSeverityWarning,
		Title:    "Source-kennel mismatch",
		Message: fmt.Sprintf("Source reported events for kennels it is not linked to: %s",
			strings.Join(current.BlockedTags, ", ")),
		Details: detailsJSON(map[string]interface{}{"tags": current.BlockedTags}),
	})
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
