// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package services adapts the pipeline's long-running components to
// suture.Service so the supervision tree can restart them
// independently.
//
// Each wrapper translates a component lifecycle (blocking Run, HTTP
// ListenAndServe, periodic tick) into suture's context-driven Serve
// contract. Wrappers depend on small local interfaces rather than the
// concrete component packages, so cmd-level wiring structs can satisfy
// them without import cycles.
package services
