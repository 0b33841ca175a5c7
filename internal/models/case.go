// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package models

import "time"

// CaseEvent is a raw case report. Created once per event id, never mutated.
type CaseEvent struct {
	EventID    string    `json:"event_id"`
	EventTime  time.Time `json:"event_time"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Condition  string    `json:"condition"`
	CellID     string    `json:"cell_id"`
	Geohash    string    `json:"geohash"`
	IngestedAt time.Time `json:"ingested_at"`
}

// DedupAnchor marks an event id as already ingested.
type DedupAnchor struct {
	EventID   string    `json:"event_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpireAt  time.Time `json:"expire_at"`
}

// HourBucket counts accepted events for one condition/cell/hour.
type HourBucket struct {
	Condition  string    `json:"condition"`
	CellID     string    `json:"cell_id"`
	HourAnchor string    `json:"hour_anchor"`
	Count      int64     `json:"count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Rollup is the trailing-window event count for one condition/cell.
// SumT1 equals the sum of HourBucket counts over the window ending at
// LastBucketAnchor, inclusive.
type Rollup struct {
	Condition        string    `json:"condition"`
	CellID           string    `json:"cell_id"`
	SumT1            int64     `json:"sum_T1"`
	LastBucketAnchor string    `json:"last_bucket_anchor"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}
