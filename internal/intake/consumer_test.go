// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package intake

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/journal"
	"github.com/harrierpack/trailhound/internal/models"
	"github.com/harrierpack/trailhound/internal/scrape"
)

// Compile-time interface checks against the real implementations.
var (
	_ PayloadSource  = (*Subscriber)(nil)
	_ Runner         = (*scrape.Runner)(nil)
	_ PayloadJournal = (*journal.Journal)(nil)
)

type fakeSource struct {
	ch     chan *message.Message
	subErr error
	topic  string
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan *message.Message, 8)}
}

func (f *fakeSource) Subscribe(_ context.Context, topic string) (<-chan *message.Message, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.topic = topic
	return f.ch, nil
}

func (f *fakeSource) Close() error { return nil }

type fakeRunner struct {
	calls int
	got   *models.ScrapePayload
	err   error
}

func (f *fakeRunner) Run(_ context.Context, payload *models.ScrapePayload) (*models.ScrapeLog, error) {
	f.calls++
	f.got = payload
	if f.err != nil {
		return nil, f.err
	}
	return &models.ScrapeLog{
		ID:       1,
		RunID:    uuid.New(),
		SourceID: payload.SourceID,
		Status:   models.ScrapeStatusSuccess,
	}, nil
}

type fakeJournal struct {
	writeErr   error
	confirmErr error
	nextID     int
	written    []int64
	confirmed  []string
	failed     []string
}

func (f *fakeJournal) Write(_ context.Context, payload *models.ScrapePayload) (string, error) {
	if f.writeErr != nil {
		return "", f.writeErr
	}
	f.nextID++
	f.written = append(f.written, payload.SourceID)
	return fmt.Sprintf("entry-%d", f.nextID), nil
}

func (f *fakeJournal) Confirm(_ context.Context, entryID string) error {
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.confirmed = append(f.confirmed, entryID)
	return nil
}

func (f *fakeJournal) Fail(_ context.Context, entryID string, _ error) error {
	f.failed = append(f.failed, entryID)
	return nil
}

type consumerFixture struct {
	source  *fakeSource
	runner  *fakeRunner
	journal *fakeJournal
	done    chan error
}

// startConsumer runs a consumer against channel-backed fakes and tears
// it down with the test.
func startConsumer(t *testing.T) *consumerFixture {
	t.Helper()

	f := &consumerFixture{
		source:  newFakeSource(),
		runner:  &fakeRunner{},
		journal: &fakeJournal{},
		done:    make(chan error, 1),
	}

	consumer := NewConsumer(f.source, f.runner, f.journal, config.NATSConfig{SubjectPrefix: "scrape.payload"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		f.done <- consumer.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-f.done:
		case <-time.After(2 * time.Second):
			t.Error("consumer did not stop after cancellation")
		}
	})

	return f
}

func payloadMessage(t *testing.T, sourceID int64) *message.Message {
	t.Helper()

	payload := &models.ScrapePayload{
		SourceID:    sourceID,
		AdapterType: models.AdapterTypeHTML,
		FetchedAt:   time.Now().UTC(),
		Events: []models.RawEventInput{
			{Date: "2026-09-05", KennelTag: "NYCH3"},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return message.NewMessage(watermill.NewUUID(), data)
}

// awaitOutcome blocks until the message is acked or nacked.
func awaitOutcome(t *testing.T, msg *message.Message) string {
	t.Helper()
	select {
	case <-msg.Acked():
		return "ack"
	case <-msg.Nacked():
		return "nack"
	case <-time.After(2 * time.Second):
		t.Fatal("message neither acked nor nacked")
		return ""
	}
}

func TestConsumer_ProcessesValidPayload(t *testing.T) {
	f := startConsumer(t)

	msg := payloadMessage(t, 7)
	f.source.ch <- msg

	if outcome := awaitOutcome(t, msg); outcome != "ack" {
		t.Fatalf("expected ack, got %s", outcome)
	}
	if f.runner.calls != 1 {
		t.Fatalf("expected 1 pipeline run, got %d", f.runner.calls)
	}
	if f.runner.got.SourceID != 7 {
		t.Errorf("expected source 7, got %d", f.runner.got.SourceID)
	}
	if len(f.journal.written) != 1 || len(f.journal.confirmed) != 1 {
		t.Errorf("expected journal write+confirm, got %d writes, %d confirms",
			len(f.journal.written), len(f.journal.confirmed))
	}
	if len(f.journal.failed) != 0 {
		t.Errorf("expected no journal failures, got %d", len(f.journal.failed))
	}
	if f.source.topic != "scrape.payload.>" {
		t.Errorf("expected wildcard topic, got %q", f.source.topic)
	}
}

func TestConsumer_MalformedJSONDropped(t *testing.T) {
	f := startConsumer(t)

	msg := message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	f.source.ch <- msg

	if outcome := awaitOutcome(t, msg); outcome != "ack" {
		t.Fatalf("expected poison message acked, got %s", outcome)
	}
	if f.runner.calls != 0 {
		t.Errorf("expected no pipeline run for malformed payload, got %d", f.runner.calls)
	}
	if len(f.journal.written) != 0 {
		t.Errorf("expected no journal entry for malformed payload, got %d", len(f.journal.written))
	}
}

func TestConsumer_InvalidEnvelopeDropped(t *testing.T) {
	f := startConsumer(t)

	payload := &models.ScrapePayload{AdapterType: models.AdapterTypeHTML} // SourceID missing
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	f.source.ch <- msg

	if outcome := awaitOutcome(t, msg); outcome != "ack" {
		t.Fatalf("expected invalid envelope acked, got %s", outcome)
	}
	if f.runner.calls != 0 {
		t.Errorf("expected no pipeline run, got %d", f.runner.calls)
	}
}

// A payload whose events are individually broken still reaches the
// pipeline; the merge stage records per-event problems as run errors.
func TestConsumer_EventLevelProblemsReachRunner(t *testing.T) {
	f := startConsumer(t)

	payload := &models.ScrapePayload{
		SourceID:    3,
		AdapterType: models.AdapterTypeCalendar,
		Events: []models.RawEventInput{
			{Date: "not-a-date", KennelTag: "NYCH3"},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	f.source.ch <- msg

	if outcome := awaitOutcome(t, msg); outcome != "ack" {
		t.Fatalf("expected ack, got %s", outcome)
	}
	if f.runner.calls != 1 {
		t.Errorf("expected event-level problems to reach the pipeline, got %d runs", f.runner.calls)
	}
}

func TestConsumer_UnrecordableRunNacked(t *testing.T) {
	f := startConsumer(t)
	f.runner.err = errors.New("database is down")

	msg := payloadMessage(t, 7)
	f.source.ch <- msg

	if outcome := awaitOutcome(t, msg); outcome != "nack" {
		t.Fatalf("expected nack for unrecordable run, got %s", outcome)
	}
	if len(f.journal.failed) != 1 {
		t.Errorf("expected journal entry marked failed, got %d", len(f.journal.failed))
	}
	if len(f.journal.confirmed) != 0 {
		t.Errorf("expected no confirm, got %d", len(f.journal.confirmed))
	}
}

func TestConsumer_UnknownSourceDropped(t *testing.T) {
	f := startConsumer(t)
	f.runner.err = fmt.Errorf("source 999: %w", scrape.ErrUnknownSource)

	msg := payloadMessage(t, 999)
	f.source.ch <- msg

	if outcome := awaitOutcome(t, msg); outcome != "ack" {
		t.Fatalf("expected unknown-source payload acked, got %s", outcome)
	}
	// The journal entry is retired so startup replay does not spin on it.
	if len(f.journal.confirmed) != 1 {
		t.Errorf("expected journal entry retired, got %d confirms", len(f.journal.confirmed))
	}
	if len(f.journal.failed) != 0 {
		t.Errorf("expected no fail-mark, got %d", len(f.journal.failed))
	}
}

func TestConsumer_JournalWriteFailureStillProcesses(t *testing.T) {
	f := startConsumer(t)
	f.journal.writeErr = errors.New("disk full")

	msg := payloadMessage(t, 7)
	f.source.ch <- msg

	if outcome := awaitOutcome(t, msg); outcome != "ack" {
		t.Fatalf("expected ack, got %s", outcome)
	}
	if f.runner.calls != 1 {
		t.Errorf("expected pipeline run despite journal failure, got %d", f.runner.calls)
	}
	if len(f.journal.confirmed) != 0 {
		t.Errorf("expected no confirm without an entry, got %d", len(f.journal.confirmed))
	}
}

func TestConsumer_ConfirmFailureStillAcks(t *testing.T) {
	f := startConsumer(t)
	f.journal.confirmErr = errors.New("journal closed")

	msg := payloadMessage(t, 7)
	f.source.ch <- msg

	if outcome := awaitOutcome(t, msg); outcome != "ack" {
		t.Fatalf("expected ack despite confirm failure, got %s", outcome)
	}
}

func TestConsumer_NilJournal(t *testing.T) {
	source := newFakeSource()
	runner := &fakeRunner{}
	consumer := NewConsumer(source, runner, nil, config.NATSConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	msg := payloadMessage(t, 7)
	source.ch <- msg

	if outcome := awaitOutcome(t, msg); outcome != "ack" {
		t.Fatalf("expected ack, got %s", outcome)
	}
	if runner.calls != 1 {
		t.Errorf("expected 1 pipeline run, got %d", runner.calls)
	}

	cancel()
	<-done
}

func TestConsumer_SubscribeErrorPropagates(t *testing.T) {
	source := newFakeSource()
	source.subErr = errors.New("no such stream")
	consumer := NewConsumer(source, &fakeRunner{}, nil, config.NATSConfig{})

	if err := consumer.Run(context.Background()); err == nil {
		t.Fatal("expected subscribe error")
	}
}

func TestConsumer_ChannelCloseEndsRun(t *testing.T) {
	source := newFakeSource()
	consumer := NewConsumer(source, &fakeRunner{}, nil, config.NATSConfig{})

	done := make(chan error, 1)
	go func() { done <- consumer.Run(context.Background()) }()

	close(source.ch)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean stop on channel close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after channel close")
	}
}

func TestConsumer_CancellationEndsRun(t *testing.T) {
	source := newFakeSource()
	consumer := NewConsumer(source, &fakeRunner{}, nil, config.NATSConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
}
