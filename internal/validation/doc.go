// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package validation wraps go-playground/validator v10 behind a shared
// instance and a translation layer that turns tag failures into
// messages fit for logs and API responses.
//
// It guards the two trust boundaries of the pipeline. Scrape payloads
// are checked when the intake consumer decodes them off the stream,
// before any row is written, and HTTP request bodies are checked in
// the API handlers before they reach the alert store. Both boundaries
// call the same entry point:
//
//	if verr := validation.ValidateStruct(&payload); verr != nil {
//	    return fmt.Errorf("rejecting payload: %w", verr)
//	}
//
// Validation rules live on the struct tags of the models package. The
// intake and API structs lean on a small set of built-in tags:
// required, gt and min/max for bounds, datetime=2006-01-02 for event
// dates, url for external links, oneof for adapter and status enums,
// and dive to apply element rules across payload event slices.
//
// # Failure Shape
//
// A failed call returns *RequestValidationError holding one
// ValidationError per failed field. Each carries the field name, the
// tag, its parameter, and the offending value, and renders a message
// such as "Date must be a date matching layout 2006-01-02". The
// aggregate Error joins the field messages with semicolons, which is
// the form the intake consumer logs when it drops a payload.
//
// HTTP handlers instead call ToAPIError and serialize the result. One
// failed field produces flat detail keys:
//
//	{"field": "Hours", "tag": "max", "value": 1000}
//
// while several produce a per-field list under "fields", with the
// combined message prefixed by field names. The API layer maps either
// form to a 400 with code VALIDATION_ERROR.
//
// GetValidator exposes the underlying shared instance for callers
// that need tag registration or direct Var checks. The instance caches
// struct metadata on first use and is safe for concurrent use from
// every handler and consumer goroutine.
package validation
