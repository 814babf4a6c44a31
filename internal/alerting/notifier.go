// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package alerting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
)

// WebhookPayload is the JSON body posted to the webhook endpoint.
type WebhookPayload struct {
	Alert     *models.Alert `json:"alert"`
	EventType string        `json:"event_type"` // source_alert
	Timestamp time.Time     `json:"timestamp"`
	Source    string        `json:"source"` // trailhound
}

// WebhookNotifier posts alerts to a configured webhook endpoint. Sends
// are rate limited and wrapped in a circuit breaker so a dead endpoint
// cannot stall the pipeline.
type WebhookNotifier struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[interface{}]
}

// NewWebhookNotifier creates a webhook notifier from alerting config.
// Zero config values fall back to safe defaults.
func NewWebhookNotifier(cfg config.AlertingConfig) *WebhookNotifier {
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}
	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "alert-webhook",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, breakerStateValue(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("webhook circuit breaker state changed")
		},
	}

	return &WebhookNotifier{
		url:     cfg.WebhookURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), burst),
		breaker: gobreaker.NewCircuitBreaker[interface{}](settings),
	}
}

// Notify posts the alert to the webhook endpoint. A response status of
// 400 or above counts as a failure toward the circuit breaker.
func (n *WebhookNotifier) Notify(ctx context.Context, alert *models.Alert) error {
	if n.url == "" {
		return nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		metrics.RecordNotifierDispatch("rate_limited")
		return err
	}

	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.post(ctx, alert)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordNotifierDispatch("rejected")
		} else {
			metrics.RecordNotifierDispatch("failure")
		}
		return err
	}
	metrics.RecordNotifierDispatch("success")
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, alert *models.Alert) error {
	payload := WebhookPayload{
		Alert:     alert,
		EventType: "source_alert",
		Timestamp: time.Now(),
		Source:    "trailhound",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
