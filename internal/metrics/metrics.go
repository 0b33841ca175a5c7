// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

// Package metrics holds the Prometheus collectors for every pipeline stage.
// Collectors are registered on the default registry and exposed at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotspot_ingest_total",
			Help: "Ingest calls by outcome (accepted, duplicate_skipped, invalid, error)",
		},
		[]string{"status"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hotspot_ingest_duration_seconds",
			Help:    "End-to-end ingest latency including rollup, density, and dispatch",
			Buckets: prometheus.DefBuckets,
		},
	)

	RollupUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotspot_rollup_updates_total",
			Help: "Rollup transactions by branch (seed, same_hour, advance, late_in_window, late_out_of_window)",
		},
		[]string{"branch"},
	)

	DensityT1 = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hotspot_density_t1",
			Help:    "Observed 1-ring trailing-window density per accepted event",
			Buckets: []float64{1, 2, 5, 8, 12, 20, 50, 100, 250, 1000},
		},
	)

	TxnConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotspot_txn_conflicts_total",
			Help: "Optimistic transaction conflicts that triggered a retry",
		},
		[]string{"txn"},
	)

	// Dispatch
	AlertDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotspot_alert_dispatch_total",
			Help: "Alert dispatch transactions by result (enqueued, refreshed)",
		},
		[]string{"result"},
	)

	DispatchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hotspot_dispatch_failures_total",
			Help: "Jobs committed as enqueued whose queue submission failed",
		},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotspot_queue_circuit_state",
			Help: "Job publisher circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	QueuePublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hotspot_queue_published_total",
			Help: "Jobs accepted by the queue",
		},
	)

	// Worker
	WorkerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotspot_worker_jobs_total",
			Help: "Clustering jobs by outcome (confirmed, rejected, failed, orphaned, malformed)",
		},
		[]string{"outcome"},
	)

	WorkerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hotspot_worker_duration_seconds",
			Help:    "Clustering job latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	WorkerPointsAnalyzed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hotspot_worker_points_analyzed",
			Help:    "Points per clustering pass",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 1500},
		},
	)

	// Retention
	RetentionDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotspot_retention_deleted_total",
			Help: "Documents removed by the retention sweep",
		},
		[]string{"category"},
	)

	RetentionErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotspot_retention_errors_total",
			Help: "Retention sweep category failures",
		},
		[]string{"category"},
	)

	// Runtime config
	RuntimeConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotspot_runtime_config_reloads_total",
			Help: "Runtime parameter snapshot reloads by source (store, defaults, error)",
		},
		[]string{"source"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotspot_api_requests_total",
			Help: "HTTP requests by method, route, and status code",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hotspot_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotspot_websocket_clients",
			Help: "Connected alert stream clients",
		},
	)
)

// RecordIngest records the outcome and latency of one ingest call.
func RecordIngest(status string, duration time.Duration) {
	IngestTotal.WithLabelValues(status).Inc()
	IngestDuration.Observe(duration.Seconds())
}

// RecordRollupBranch counts a rollup transaction by branch.
func RecordRollupBranch(branch string) {
	RollupUpdatesTotal.WithLabelValues(branch).Inc()
}

// RecordDensity observes a density evaluation.
func RecordDensity(density int64) {
	DensityT1.Observe(float64(density))
}

// RecordTxnConflict counts a retried transaction conflict.
func RecordTxnConflict(txn string) {
	TxnConflictsTotal.WithLabelValues(txn).Inc()
}

// RecordDispatch counts an alert dispatch transaction result.
func RecordDispatch(result string) {
	AlertDispatchTotal.WithLabelValues(result).Inc()
}

// RecordDispatchFailure counts a failed post-commit queue submission.
func RecordDispatchFailure() {
	DispatchFailuresTotal.Inc()
}

// RecordQueuePublish counts a job accepted by the queue.
func RecordQueuePublish() {
	QueuePublishedTotal.Inc()
}

// SetCircuitState publishes the breaker state as a gauge.
func SetCircuitState(state int) {
	CircuitBreakerState.Set(float64(state))
}

// RecordWorkerJob records a clustering job outcome.
func RecordWorkerJob(outcome string, points int, duration time.Duration) {
	WorkerJobsTotal.WithLabelValues(outcome).Inc()
	WorkerDuration.Observe(duration.Seconds())
	if points > 0 {
		WorkerPointsAnalyzed.Observe(float64(points))
	}
}

// RecordRetention records one category of a retention sweep.
func RecordRetention(category string, deleted int, err error) {
	RetentionDeletedTotal.WithLabelValues(category).Add(float64(deleted))
	if err != nil {
		RetentionErrorsTotal.WithLabelValues(category).Inc()
	}
}

// RecordRuntimeReload counts a runtime snapshot reload.
func RecordRuntimeReload(source string) {
	RuntimeConfigReloads.WithLabelValues(source).Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
