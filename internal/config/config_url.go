// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Endpoint URLs come from operator config, so the messages here are
// aimed at someone editing an env file. Validate wraps each with the
// env var name.

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if u.Host == "" {
		return nil, errors.New("host is required")
	}
	return u, nil
}

// validateNATSURL accepts the schemes the NATS client dials: plain,
// TLS, and websocket transports.
func validateNATSURL(raw string) error {
	u, err := parseEndpoint(raw)
	if err != nil {
		return err
	}

	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
		return nil
	default:
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", u.Scheme)
	}
}

// validateWebhookURL accepts HTTP and HTTPS destinations. Paths and
// query parameters stay, webhook endpoints are rarely bare hosts.
func validateWebhookURL(raw string) error {
	u, err := parseEndpoint(raw)
	if err != nil {
		return err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %s", u.Scheme)
	}
	return nil
}
