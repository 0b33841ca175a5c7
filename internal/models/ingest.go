// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package models

// IngestRequest is the body of POST /api/v1/cases.
// Lat and Lng are pointers so a missing value is distinguishable from 0.
type IngestRequest struct {
	EventID      string   `json:"event_id" validate:"required,max=256"`
	EventTimeUTC string   `json:"event_time_utc" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	Lat          *float64 `json:"lat" validate:"required,latitude"`
	Lng          *float64 `json:"lng" validate:"required,longitude"`
	Condition    string   `json:"condition" validate:"required,max=64,excludesall=0x7C"`
}

// Ingest statuses.
const (
	IngestAccepted         = "accepted"
	IngestDuplicateSkipped = "duplicate_skipped"
)

// IngestResult is the response of a successful ingest call. For duplicates
// only OK, Status and EventID are populated.
type IngestResult struct {
	OK             bool   `json:"ok"`
	Status         string `json:"status,omitempty"`
	EventID        string `json:"event_id"`
	H3             string `json:"h3,omitempty"`
	DensityT1      *int64 `json:"density_T1,omitempty"`
	AlertTriggered *bool  `json:"alert_triggered,omitempty"`
}

// Duplicate reports whether the event was skipped by the idempotency check.
func (r IngestResult) Duplicate() bool {
	return r.Status == IngestDuplicateSkipped
}
