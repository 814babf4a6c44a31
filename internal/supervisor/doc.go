// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

// Package supervisor builds the Suture supervision tree that keeps the
// pipeline's long-running components alive.
//
// The tree has three layers under one root:
//
//	trailhound
//	├── data-layer        journal garbage collection
//	├── messaging-layer   embedded NATS broker and payload consumer
//	└── api-layer         HTTP server
//
// Layering isolates failures: a crashing consumer restarts inside the
// messaging layer without taking down the API, and vice versa. Restart
// pacing follows suture's failure threshold and backoff semantics;
// supervisor events are logged through sutureslog into the application's
// zerolog output.
//
// Long-running components are adapted to suture.Service by small
// wrappers in the services subpackage.
package supervisor
