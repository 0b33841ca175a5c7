// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

/*
Package models defines the persisted entities, queue payloads, and API
shapes shared across Hotspot.

Persisted entities (JSON documents in the store):

  - CaseEvent: immutable raw case report
  - DedupAnchor: idempotency marker keyed by event id
  - HourBucket: per condition/cell/hour counter
  - Rollup: trailing-window sum per condition/cell
  - ClusterAlert: dispatch and verdict record per cluster id

Queue payloads:

  - ClusterJob: clustering request handed to the worker

Field names on the wire use snake_case except ClusterJob, whose camelCase
layout is consumed by external queue tooling and must stay stable.
*/
package models
