// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package merge

import (
	"context"
	"testing"
	"time"

	// Zone lookups must work even in minimal images without tzdata.
	_ "time/tzdata"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/database"
	"github.com/harrierpack/trailhound/internal/fingerprint"
	"github.com/harrierpack/trailhound/internal/models"
	"github.com/harrierpack/trailhound/internal/resolver"
)

// The merge engine runs against the real store in production; keep the
// interface aligned with it.
var _ Store = (*database.DB)(nil)

// testDBSemaphore serializes database creation. Concurrent DuckDB CGO
// calls from parallel tests can hang under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	type result struct {
		db  *database.DB
		err error
	}

	resultCh := make(chan result, 1)
	go func() {
		db, err := database.New(cfg)
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Failed to close test database: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s")
		return nil
	}
}

func seedKennel(t *testing.T, db *database.DB, name, shortName string) *models.Kennel {
	t.Helper()
	kennel := &models.Kennel{
		Name:      name,
		ShortName: shortName,
		Region:    "NYC Metro",
		Timezone:  "America/New_York",
	}
	if err := db.CreateKennel(context.Background(), kennel); err != nil {
		t.Fatalf("Failed to create test kennel %s: %v", shortName, err)
	}
	return kennel
}

func seedSource(t *testing.T, db *database.DB, name string, trustLevel int) *models.Source {
	t.Helper()
	source := &models.Source{
		Name:        name,
		AdapterType: models.AdapterTypeHTML,
		URL:         "https://example.com/" + name,
		TrustLevel:  trustLevel,
		Enabled:     true,
	}
	if err := db.CreateSource(context.Background(), source); err != nil {
		t.Fatalf("Failed to create test source %s: %v", name, err)
	}
	return source
}

func linkKennel(t *testing.T, db *database.DB, sourceID, kennelID int64) {
	t.Helper()
	if err := db.LinkSourceKennel(context.Background(), sourceID, kennelID); err != nil {
		t.Fatalf("Failed to link source %d to kennel %d: %v", sourceID, kennelID, err)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestProcess_CreatesEvents(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	kennel := seedKennel(t, db, "New York City H3", "NYCH3")
	source := seedSource(t, db, "nych3-site", 7)
	linkKennel(t, db, source.ID, kennel.ID)

	engine := New(db, nil, 0, 0)
	batch := []models.RawEventInput{
		{
			Date:      "2026-02-01",
			KennelTag: "NYCH3",
			RunNumber: intPtr(2101),
			Title:     strPtr("Run #2101"),
			Hares:     strPtr("Just Alice"),
			Location:  strPtr("Prospect Park"),
			StartTime: strPtr("3:00 PM"),
			SourceURL: strPtr("https://example.com/nych3-site/2101"),
		},
		{
			Date:      "2026-02-08",
			KennelTag: "nych3",
			RunNumber: intPtr(2102),
			Title:     strPtr("Run #2102"),
		},
	}

	result, err := engine.Process(ctx, source.ID, batch)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Created != 2 {
		t.Errorf("expected 2 created, got %d", result.Created)
	}
	if result.Updated != 0 || result.Skipped != 0 || result.Blocked != 0 {
		t.Errorf("expected clean create run, got updated=%d skipped=%d blocked=%d",
			result.Updated, result.Skipped, result.Blocked)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}

	date, _ := time.Parse(models.DateLayout, "2026-02-01")
	event, err := db.EventByKennelAndDate(ctx, kennel.ID, date)
	if err != nil {
		t.Fatalf("EventByKennelAndDate failed: %v", err)
	}
	if event == nil {
		t.Fatal("expected canonical event, got nil")
	}
	if event.Title != "Run #2101" || event.Hares != "Just Alice" {
		t.Errorf("expected seeded content, got title=%q hares=%q", event.Title, event.Hares)
	}
	if event.TrustLevel != 7 {
		t.Errorf("expected event trust 7 from source, got %d", event.TrustLevel)
	}
	if event.SourceURL != "https://example.com/nych3-site/2101" {
		t.Errorf("expected source URL recorded, got %q", event.SourceURL)
	}
	if event.StartsAt == nil {
		t.Error("expected starts_at derived from start time and kennel timezone")
	}

	// The raw event is linked to the canonical one
	fp := fingerprint.Compute("2026-02-01", "NYCH3", intPtr(2101), strPtr("Run #2101"))
	raw, err := db.RawEventByFingerprint(ctx, source.ID, fp)
	if err != nil {
		t.Fatalf("RawEventByFingerprint failed: %v", err)
	}
	if raw == nil {
		t.Fatal("expected raw event, got nil")
	}
	if !raw.Processed {
		t.Error("expected raw event marked processed")
	}
	if raw.EventID == nil || *raw.EventID != event.ID {
		t.Errorf("expected raw event linked to %s, got %v", event.ID, raw.EventID)
	}
}

func TestProcess_SecondRunSkips(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	kennel := seedKennel(t, db, "New York City H3", "NYCH3")
	source := seedSource(t, db, "nych3-site", 7)
	linkKennel(t, db, source.ID, kennel.ID)

	engine := New(db, nil, 0, 0)
	batch := []models.RawEventInput{
		{Date: "2026-02-01", KennelTag: "NYCH3", Title: strPtr("Run #2101")},
		{Date: "2026-02-08", KennelTag: "NYCH3", Title: strPtr("Run #2102")},
	}

	first, err := engine.Process(ctx, source.ID, batch)
	if err != nil {
		t.Fatalf("first Process failed: %v", err)
	}
	if first.Created != 2 || first.Updated != 0 {
		t.Errorf("expected created=2 updated=0, got created=%d updated=%d", first.Created, first.Updated)
	}

	second, err := engine.Process(ctx, source.ID, batch)
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}
	if second.Created != 0 || second.Skipped != 2 {
		t.Errorf("expected created=0 skipped=2, got created=%d skipped=%d", second.Created, second.Skipped)
	}

	events, err := db.ListEvents(ctx, database.EventFilter{KennelID: &kennel.ID})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 canonical events after both runs, got %d", len(events))
	}
}

func TestProcess_LowerTrustLeavesContentButLinksRaw(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	kennel := seedKennel(t, db, "New York City H3", "NYCH3")
	trusted := seedSource(t, db, "official-site", 8)
	scraper := seedSource(t, db, "aggregator", 5)
	linkKennel(t, db, trusted.ID, kennel.ID)
	linkKennel(t, db, scraper.ID, kennel.ID)

	engine := New(db, nil, 0, 0)

	_, err := engine.Process(ctx, trusted.ID, []models.RawEventInput{
		{Date: "2026-02-01", KennelTag: "NYCH3", Title: strPtr("Official Title"), Hares: strPtr("Just Alice")},
	})
	if err != nil {
		t.Fatalf("trusted Process failed: %v", err)
	}

	result, err := engine.Process(ctx, scraper.ID, []models.RawEventInput{
		{Date: "2026-02-01", KennelTag: "NYCH3", Title: strPtr("Scraped Title"), Hares: strPtr("")},
	})
	if err != nil {
		t.Fatalf("scraper Process failed: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("expected updated=1, got %d", result.Updated)
	}

	date, _ := time.Parse(models.DateLayout, "2026-02-01")
	event, err := db.EventByKennelAndDate(ctx, kennel.ID, date)
	if err != nil {
		t.Fatalf("EventByKennelAndDate failed: %v", err)
	}
	if event.Title != "Official Title" || event.Hares != "Just Alice" {
		t.Errorf("expected trusted content preserved, got title=%q hares=%q", event.Title, event.Hares)
	}
	if event.TrustLevel != 8 {
		t.Errorf("expected trust 8 preserved, got %d", event.TrustLevel)
	}

	// The lower-trust raw event is still recorded and linked
	fp := fingerprint.Compute("2026-02-01", "NYCH3", nil, strPtr("Scraped Title"))
	raw, err := db.RawEventByFingerprint(ctx, scraper.ID, fp)
	if err != nil {
		t.Fatalf("RawEventByFingerprint failed: %v", err)
	}
	if raw == nil || !raw.Processed {
		t.Fatalf("expected processed raw event from scraper, got %+v", raw)
	}
	if raw.EventID == nil || *raw.EventID != event.ID {
		t.Errorf("expected raw linked to canonical event, got %v", raw.EventID)
	}
}

func TestProcess_EqualTrustOverwritesAndClears(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	kennel := seedKennel(t, db, "New York City H3", "NYCH3")
	first := seedSource(t, db, "site-a", 5)
	second := seedSource(t, db, "site-b", 5)
	linkKennel(t, db, first.ID, kennel.ID)
	linkKennel(t, db, second.ID, kennel.ID)

	engine := New(db, nil, 0, 0)

	_, err := engine.Process(ctx, first.ID, []models.RawEventInput{
		{
			Date:        "2026-02-01",
			KennelTag:   "NYCH3",
			Title:       strPtr("Original"),
			Hares:       strPtr("Just Alice"),
			Description: strPtr("Bring ice"),
		},
	})
	if err != nil {
		t.Fatalf("first Process failed: %v", err)
	}

	// Equal trust: title replaced, hares deliberately cleared,
	// description untouched because the adapter never sent it.
	_, err = engine.Process(ctx, second.ID, []models.RawEventInput{
		{
			Date:      "2026-02-01",
			KennelTag: "NYCH3",
			Title:     strPtr("Updated"),
			Hares:     strPtr(""),
		},
	})
	if err != nil {
		t.Fatalf("second Process failed: %v", err)
	}

	date, _ := time.Parse(models.DateLayout, "2026-02-01")
	event, err := db.EventByKennelAndDate(ctx, kennel.ID, date)
	if err != nil {
		t.Fatalf("EventByKennelAndDate failed: %v", err)
	}
	if event.Title != "Updated" {
		t.Errorf("expected equal-trust title overwrite, got %q", event.Title)
	}
	if event.Hares != "" {
		t.Errorf("expected hares cleared by present-but-empty value, got %q", event.Hares)
	}
	if event.Description != "Bring ice" {
		t.Errorf("expected description untouched, got %q", event.Description)
	}
}

func TestProcess_GuardBlocksUnlinkedKennel(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	linked := seedKennel(t, db, "New York City H3", "NYCH3")
	unlinked := seedKennel(t, db, "Brooklyn H3", "BH3")
	source := seedSource(t, db, "nych3-site", 5)
	linkKennel(t, db, source.ID, linked.ID)

	engine := New(db, nil, 0, 0)
	result, err := engine.Process(ctx, source.ID, []models.RawEventInput{
		{Date: "2026-02-01", KennelTag: "BH3", Title: strPtr("Run A")},
		{Date: "2026-02-08", KennelTag: "bh3", Title: strPtr("Run B")},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.Blocked != 2 {
		t.Errorf("expected 2 blocked events, got %d", result.Blocked)
	}
	if len(result.BlockedTags) != 1 || result.BlockedTags[0] != "bh3" {
		t.Errorf("expected tag recorded once, got %v", result.BlockedTags)
	}
	if result.Created != 0 || result.Updated != 0 {
		t.Errorf("expected no canonical writes, got created=%d updated=%d", result.Created, result.Updated)
	}

	events, err := db.ListEvents(ctx, database.EventFilter{KennelID: &unlinked.ID})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events for unlinked kennel, got %d", len(events))
	}
}

func TestProcess_UnmatchedTagIsDeferredNotError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := seedSource(t, db, "nych3-site", 5)

	engine := New(db, nil, 0, 0)
	result, err := engine.Process(ctx, source.ID, []models.RawEventInput{
		{Date: "2026-02-01", KennelTag: "Mystery Hash", Title: strPtr("Run A")},
		{Date: "2026-02-08", KennelTag: "MYSTERY HASH", Title: strPtr("Run B")},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(result.UnmatchedTags) != 1 || result.UnmatchedTags[0] != "mystery hash" {
		t.Errorf("expected one normalized unmatched tag, got %v", result.UnmatchedTags)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected unmatched tags not to be errors, got %v", result.Errors)
	}

	// Raw events persist unprocessed, waiting for the kennel to exist
	fp := fingerprint.Compute("2026-02-01", "Mystery Hash", nil, strPtr("Run A"))
	raw, err := db.RawEventByFingerprint(ctx, source.ID, fp)
	if err != nil {
		t.Fatalf("RawEventByFingerprint failed: %v", err)
	}
	if raw == nil {
		t.Fatal("expected raw event persisted")
	}
	if raw.Processed {
		t.Error("expected raw event to stay unprocessed")
	}
}

func TestProcess_PatternTableResolvesTag(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	kennel := seedKennel(t, db, "New York City H3", "NYCH3")
	source := seedSource(t, db, "nych3-site", 5)
	linkKennel(t, db, source.ID, kennel.ID)

	patterns, err := resolver.NewPatternTable([]resolver.PatternRule{
		{Pattern: `^new york city hash.*`, Canonical: "NYCH3"},
	})
	if err != nil {
		t.Fatalf("NewPatternTable failed: %v", err)
	}

	engine := New(db, patterns, 0, 0)
	result, err := engine.Process(ctx, source.ID, []models.RawEventInput{
		{Date: "2026-02-01", KennelTag: "New York City Hash House Harriers", Title: strPtr("Run #2101")},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Created != 1 {
		t.Errorf("expected pattern-resolved event created, got created=%d unmatched=%v",
			result.Created, result.UnmatchedTags)
	}
}

func TestProcess_SeriesLinksEarliestAsParent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	kennel := seedKennel(t, db, "New York City H3", "NYCH3")
	source := seedSource(t, db, "nych3-site", 5)
	linkKennel(t, db, source.ID, kennel.ID)

	engine := New(db, nil, 0, 0)
	// Deliberately out of date order: parent selection must not depend
	// on batch position.
	result, err := engine.Process(ctx, source.ID, []models.RawEventInput{
		{Date: "2026-05-02", KennelTag: "NYCH3", Title: strPtr("Campout Day 2"), SeriesID: strPtr("campout-2026")},
		{Date: "2026-05-03", KennelTag: "NYCH3", Title: strPtr("Campout Day 3"), SeriesID: strPtr("campout-2026")},
		{Date: "2026-05-01", KennelTag: "NYCH3", Title: strPtr("Campout Day 1"), SeriesID: strPtr("campout-2026")},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Created != 3 {
		t.Fatalf("expected 3 created, got %d", result.Created)
	}

	day1, _ := time.Parse(models.DateLayout, "2026-05-01")
	parent, err := db.EventByKennelAndDate(ctx, kennel.ID, day1)
	if err != nil {
		t.Fatalf("EventByKennelAndDate failed: %v", err)
	}
	if !parent.IsSeriesParent {
		t.Error("expected earliest-dated event flagged as series parent")
	}
	if parent.SeriesParentID != nil {
		t.Errorf("expected parent to have no parent reference, got %v", parent.SeriesParentID)
	}

	for _, d := range []string{"2026-05-02", "2026-05-03"} {
		date, _ := time.Parse(models.DateLayout, d)
		child, err := db.EventByKennelAndDate(ctx, kennel.ID, date)
		if err != nil {
			t.Fatalf("EventByKennelAndDate failed: %v", err)
		}
		if child.IsSeriesParent {
			t.Errorf("expected %s not to be a parent", d)
		}
		if child.SeriesParentID == nil || *child.SeriesParentID != parent.ID {
			t.Errorf("expected %s to reference parent %s, got %v", d, parent.ID, child.SeriesParentID)
		}
	}
}

func TestProcess_SingleMemberSeriesNotLinked(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	kennel := seedKennel(t, db, "New York City H3", "NYCH3")
	source := seedSource(t, db, "nych3-site", 5)
	linkKennel(t, db, source.ID, kennel.ID)

	engine := New(db, nil, 0, 0)
	_, err := engine.Process(ctx, source.ID, []models.RawEventInput{
		{Date: "2026-05-01", KennelTag: "NYCH3", Title: strPtr("Lone Run"), SeriesID: strPtr("solo")},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	date, _ := time.Parse(models.DateLayout, "2026-05-01")
	event, err := db.EventByKennelAndDate(ctx, kennel.ID, date)
	if err != nil {
		t.Fatalf("EventByKennelAndDate failed: %v", err)
	}
	if event.IsSeriesParent || event.SeriesParentID != nil {
		t.Errorf("expected single-member series unlinked, got parent=%v ref=%v",
			event.IsSeriesParent, event.SeriesParentID)
	}
}

func TestProcess_BadDateDoesNotAbortBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	kennel := seedKennel(t, db, "New York City H3", "NYCH3")
	source := seedSource(t, db, "nych3-site", 5)
	linkKennel(t, db, source.ID, kennel.ID)

	engine := New(db, nil, 0, 0)
	result, err := engine.Process(ctx, source.ID, []models.RawEventInput{
		{Date: "2026-02-01", KennelTag: "NYCH3", Title: strPtr("Good Run")},
		{Date: "not-a-date", KennelTag: "NYCH3", Title: strPtr("Bad Run")},
		{Date: "2026-02-08", KennelTag: "NYCH3", Title: strPtr("Another Good Run")},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.Created != 2 {
		t.Errorf("expected 2 created despite one failure, got %d", result.Created)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %d", len(result.Errors))
	}
	if result.Errors[0].Date != "not-a-date" || result.Errors[0].Tag != "NYCH3" {
		t.Errorf("expected error with date and tag context, got %+v", result.Errors[0])
	}
}

func TestProcess_ErrorListBounded(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	source := seedSource(t, db, "nych3-site", 5)

	engine := New(db, nil, 0, 2)
	result, err := engine.Process(ctx, source.ID, []models.RawEventInput{
		{Date: "bad-1", KennelTag: "NYCH3"},
		{Date: "bad-2", KennelTag: "NYCH3"},
		{Date: "bad-3", KennelTag: "NYCH3"},
		{Date: "bad-4", KennelTag: "NYCH3"},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Errors) != 2 {
		t.Errorf("expected error list capped at 2, got %d", len(result.Errors))
	}
}

func TestProcess_DifferingSourceURLBecomesLink(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	kennel := seedKennel(t, db, "New York City H3", "NYCH3")
	official := seedSource(t, db, "official-site", 8)
	aggregator := seedSource(t, db, "aggregator", 5)
	linkKennel(t, db, official.ID, kennel.ID)
	linkKennel(t, db, aggregator.ID, kennel.ID)

	engine := New(db, nil, 0, 0)

	_, err := engine.Process(ctx, official.ID, []models.RawEventInput{
		{
			Date:      "2026-02-01",
			KennelTag: "NYCH3",
			Title:     strPtr("Run #2101"),
			SourceURL: strPtr("https://official.example.com/2101"),
		},
	})
	if err != nil {
		t.Fatalf("official Process failed: %v", err)
	}

	_, err = engine.Process(ctx, aggregator.ID, []models.RawEventInput{
		{
			Date:      "2026-02-01",
			KennelTag: "NYCH3",
			Title:     strPtr("Run 2101 (mirror)"),
			SourceURL: strPtr("https://aggregator.example.com/nych3/2101"),
		},
	})
	if err != nil {
		t.Fatalf("aggregator Process failed: %v", err)
	}

	date, _ := time.Parse(models.DateLayout, "2026-02-01")
	event, err := db.EventByKennelAndDate(ctx, kennel.ID, date)
	if err != nil {
		t.Fatalf("EventByKennelAndDate failed: %v", err)
	}
	if event.SourceURL != "https://official.example.com/2101" {
		t.Errorf("expected original source URL untouched, got %q", event.SourceURL)
	}

	links, err := db.ListEventLinks(ctx, event.ID)
	if err != nil {
		t.Fatalf("ListEventLinks failed: %v", err)
	}
	found := false
	for _, link := range links {
		if link.URL == "https://aggregator.example.com/nych3/2101" && link.SourceID == aggregator.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected aggregator URL recorded as event link, got %+v", links)
	}
}

func TestProcess_UnknownSourceFailsRun(t *testing.T) {
	db := setupTestDB(t)

	engine := New(db, nil, 0, 0)
	_, err := engine.Process(context.Background(), 9999, []models.RawEventInput{
		{Date: "2026-02-01", KennelTag: "NYCH3"},
	})
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
}
