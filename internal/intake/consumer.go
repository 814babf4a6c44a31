// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
	"github.com/harrierpack/trailhound/internal/scrape"
	"github.com/harrierpack/trailhound/internal/validation"
)

// PayloadSource yields payload messages. *Subscriber satisfies it; tests
// substitute a channel-backed fake.
type PayloadSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// Runner is the pipeline entry point. *scrape.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, payload *models.ScrapePayload) (*models.ScrapeLog, error)
}

// PayloadJournal is the crash-recovery surface the consumer writes
// through. *journal.Journal satisfies it.
type PayloadJournal interface {
	Write(ctx context.Context, payload *models.ScrapePayload) (string, error)
	Confirm(ctx context.Context, entryID string) error
	Fail(ctx context.Context, entryID string, cause error) error
}

// Consumer drains the payload stream into the pipeline. Each message is
// journaled before the run and confirmed after it, so a crash between
// the two replays the payload on the next start.
//
// Acknowledgement policy:
//   - undecodable or invalid payloads are acked and dropped; redelivery
//     cannot fix malformed JSON
//   - payloads for unregistered sources are acked and dropped for the
//     same reason
//   - runs that could not be recorded are nacked for redelivery
//   - everything else, including FAILED runs, is acked; the failure
//     lives in the scrape log, not the bus
type Consumer struct {
	source  PayloadSource
	runner  Runner
	journal PayloadJournal
	topic   string
}

// NewConsumer wires a consumer. journal may be nil when the journal is
// disabled; crash recovery then relies on JetStream redelivery alone.
func NewConsumer(source PayloadSource, runner Runner, journal PayloadJournal, cfg config.NATSConfig) *Consumer {
	return &Consumer{
		source:  source,
		runner:  runner,
		journal: journal,
		topic:   SubjectWildcard(cfg.SubjectPrefix),
	}
}

// Run consumes messages until the context is cancelled or the source's
// channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.source.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}

	logging.Info().Str("topic", c.topic).Msg("intake consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg *message.Message) {
	if err := c.handle(ctx, msg); err != nil {
		logging.Err(err).
			Str("message_uuid", msg.UUID).
			Msg("payload processing failed; message will be redelivered")
		msg.Nack()
		return
	}
	msg.Ack()
}

// handle returns nil when the message should be acked, including dropped
// poison messages, and an error when it should be redelivered.
func (c *Consumer) handle(ctx context.Context, msg *message.Message) error {
	metrics.RecordNATSConsume()
	start := time.Now()

	payload, err := decodePayload(msg.Payload)
	if err != nil {
		metrics.RecordNATSParseFailed()
		logging.Warn().
			Err(err).
			Str("message_uuid", msg.UUID).
			Msg("dropping undecodable payload")
		return nil
	}

	entryID := c.journalWrite(ctx, payload)

	scrapeLog, err := c.runner.Run(ctx, payload)
	if err != nil {
		if errors.Is(err, scrape.ErrUnknownSource) {
			c.journalDrop(ctx, entryID, err)
			logging.Warn().
				Err(err).
				Str("message_uuid", msg.UUID).
				Int64("source_id", payload.SourceID).
				Msg("dropping payload for unregistered source")
			return nil
		}
		c.journalFail(ctx, entryID, err)
		return fmt.Errorf("pipeline run for source %d: %w", payload.SourceID, err)
	}

	c.journalConfirm(ctx, entryID)

	metrics.RecordNATSProcessed()
	metrics.RecordNATSProcessingDuration(time.Since(start))

	logging.Debug().
		Str("run_id", scrapeLog.RunID.String()).
		Int64("source_id", payload.SourceID).
		Str("status", string(scrapeLog.Status)).
		Msg("payload processed")
	return nil
}

// journalWrite records the payload before processing. A sick journal
// degrades crash recovery but never blocks ingestion, so errors are
// logged and swallowed.
func (c *Consumer) journalWrite(ctx context.Context, payload *models.ScrapePayload) string {
	if c.journal == nil {
		return ""
	}
	entryID, err := c.journal.Write(ctx, payload)
	if err != nil {
		logging.Warn().
			Err(err).
			Int64("source_id", payload.SourceID).
			Msg("journal write failed; continuing without crash protection")
		return ""
	}
	return entryID
}

func (c *Consumer) journalConfirm(ctx context.Context, entryID string) {
	if c.journal == nil || entryID == "" {
		return
	}
	// A failed confirm means a spurious replay on the next start, which
	// fingerprint deduplication absorbs, so the run is still acked.
	if err := c.journal.Confirm(ctx, entryID); err != nil {
		logging.Warn().
			Err(err).
			Str("entry_id", entryID).
			Msg("journal confirm failed; entry will replay on next start")
	}
}

func (c *Consumer) journalFail(ctx context.Context, entryID string, cause error) {
	if c.journal == nil || entryID == "" {
		return
	}
	if err := c.journal.Fail(ctx, entryID, cause); err != nil {
		logging.Warn().
			Err(err).
			Str("entry_id", entryID).
			Msg("journal fail-mark failed")
	}
}

// journalDrop confirms a permanently unprocessable entry so startup
// replay does not spin on it forever.
func (c *Consumer) journalDrop(ctx context.Context, entryID string, cause error) {
	if c.journal == nil || entryID == "" {
		return
	}
	if err := c.journal.Confirm(ctx, entryID); err != nil {
		logging.Warn().
			Err(err).
			Str("entry_id", entryID).
			Str("cause", cause.Error()).
			Msg("could not retire journal entry for dropped payload")
	}
}

// decodePayload unmarshals and validates one envelope.
func decodePayload(data []byte) (*models.ScrapePayload, error) {
	var payload models.ScrapePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if verr := validation.ValidateStruct(&payload); verr != nil {
		return nil, fmt.Errorf("invalid payload: %w", verr)
	}
	return &payload, nil
}
