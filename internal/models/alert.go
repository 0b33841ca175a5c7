// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package models

import "time"

// AlertState is the verdict of a cluster alert.
type AlertState string

const (
	AlertPreAlert  AlertState = "pre_alert"
	AlertConfirmed AlertState = "confirmed"
	AlertRejected  AlertState = "rejected"
)

// JobStatus tracks the clustering job for an alert:
// enqueued -> processing -> completed | failed.
type JobStatus string

const (
	JobEnqueued   JobStatus = "enqueued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Confirm labels attached to a terminal alert.
const (
	LabelClusterFound       = "cluster_found"
	LabelInsufficientPoints = "insufficient_points"
	LabelNoiseOnly          = "noise_only"
)

// ClusterAlert is keyed by condition|h3Center|hourKey.
type ClusterAlert struct {
	ClusterID     string          `json:"cluster_id"`
	Condition     string          `json:"condition"`
	H3Center      string          `json:"h3_center"`
	HourKey       string          `json:"hour_key"`
	State         AlertState      `json:"state"`
	JobStatus     JobStatus       `json:"job_status"`
	Neighbors     []string        `json:"neighbors"`
	DensityT1     int64           `json:"density_T1"`
	MinPtsH3      int             `json:"min_pts_h3"`
	WinAnchor     string          `json:"win_anchor"`
	FirstSeenAt   time.Time       `json:"first_seen_at"`
	LastSeenAt    time.Time       `json:"last_seen_at"`
	JobStartedAt  *time.Time      `json:"job_started_at,omitempty"`
	JobFinishedAt *time.Time      `json:"job_finished_at,omitempty"`
	ConfirmLabel  string          `json:"confirm_label,omitempty"`
	DBSCANResults *ClusterResults `json:"dbscan_results,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
}

// ClusterResults summarizes a clustering pass.
type ClusterResults struct {
	ClusterCount        int                 `json:"cluster_count"`
	PointsInClusters    int                 `json:"points_in_clusters"`
	NoiseCount          int                 `json:"noise_count"`
	TotalPointsAnalyzed int                 `json:"total_points_analyzed"`
	EpsilonKm           float64             `json:"epsilon_km"`
	MinPoints           int                 `json:"min_points"`
	ClustersPreview     map[string][]string `json:"clusters_preview,omitempty"`
}

// ClusterJob is the queue payload handed to the clustering worker.
type ClusterJob struct {
	ClusterID   string    `json:"clusterId"`
	Condition   string    `json:"condition"`
	H3Center    string    `json:"h3Center"`
	NeighborsH3 []string  `json:"neighborsH3"`
	SinceUTC    time.Time `json:"sinceUTC"`
}
