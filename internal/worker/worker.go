// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

// Package worker confirms or rejects cluster alerts by re-reading the raw
// cases around the alert and clustering them.
//
// Job state machine:
//
//	enqueued -> processing -> completed (confirmed | rejected)
//	                       -> failed
//
// Every delivery recomputes the verdict from the store, so redelivered
// jobs are safe.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/hotspot/internal/cluster"
	"github.com/tomtom215/hotspot/internal/config"
	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/metrics"
	"github.com/tomtom215/hotspot/internal/models"
	"github.com/tomtom215/hotspot/internal/queue"
	"github.com/tomtom215/hotspot/internal/store"
)

// ErrMalformedJob is returned for payloads that cannot be a ClusterJob.
var ErrMalformedJob = errors.New("malformed cluster job")

// Notifier is told about every terminal verdict.
type Notifier interface {
	AlertUpdated(alert *models.ClusterAlert)
}

// RuntimeSource yields the parameter snapshot for one job.
type RuntimeSource interface {
	Get(ctx context.Context) *config.Runtime
}

// Worker processes clustering jobs.
type Worker struct {
	store    *store.Store
	runtime  RuntimeSource
	notifier Notifier
	now      func() time.Time
}

// Option configures a Worker.
type Option func(*Worker)

// WithNotifier sets the verdict notifier.
func WithNotifier(n Notifier) Option {
	return func(w *Worker) { w.notifier = n }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// New creates a Worker.
func New(st *store.Store, rt RuntimeSource, opts ...Option) *Worker {
	w := &Worker{store: st, runtime: rt, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handle is the router handler for job messages. Payloads that do not
// decode into a usable job are rejected as permanent failures.
func (w *Worker) Handle(msg *message.Message) error {
	var job models.ClusterJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		metrics.RecordWorkerJob("malformed", 0, 0)
		return queue.Permanent(fmt.Errorf("%w: %w", ErrMalformedJob, err))
	}
	if job.ClusterID == "" || job.Condition == "" || len(job.NeighborsH3) == 0 {
		metrics.RecordWorkerJob("malformed", 0, 0)
		return queue.Permanent(fmt.Errorf("%w: missing cluster id, condition or neighbors", ErrMalformedJob))
	}

	ctx := msg.Context()
	if id := middleware.MessageCorrelationID(msg); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	}
	return w.Process(ctx, job)
}

// verdict is the terminal outcome of one pass.
type verdict struct {
	state   models.AlertState
	label   string
	results *models.ClusterResults
}

// Process runs one job to a terminal state. A missing alert is logged and
// treated as done. Any other failure marks the alert failed and is
// returned so the queue can redeliver.
func (w *Worker) Process(ctx context.Context, job models.ClusterJob) error {
	start := time.Now()
	rt := w.runtime.Get(ctx)
	log := logging.Ctx(ctx).With().Str("cluster_id", job.ClusterID).Logger()

	found, err := w.begin(ctx, job.ClusterID)
	if err != nil {
		return w.fail(ctx, job.ClusterID, err, start)
	}
	if !found {
		log.Warn().Msg("alert not found, acknowledging job")
		metrics.RecordWorkerJob("orphaned", 0, time.Since(start))
		return nil
	}

	points, err := w.Points(ctx, job, rt.DBSCANQueryLimit)
	if err != nil {
		return w.fail(ctx, job.ClusterID, err, start)
	}

	var v verdict
	if len(points) < rt.MinPtsDBSCAN {
		log.Info().Int("points", len(points)).Msg("insufficient points for clustering")
		v = verdict{state: models.AlertRejected, label: models.LabelInsufficientPoints}
	} else {
		params := cluster.Params{EpsilonKm: rt.EpsilonKm, MinPoints: rt.MinPtsDBSCAN}
		summary := cluster.Summary(points, cluster.DBSCAN(points, params), params)
		v = verdict{state: models.AlertRejected, label: models.LabelNoiseOnly, results: &summary}
		if summary.ClusterCount > 0 {
			v.state = models.AlertConfirmed
			v.label = models.LabelClusterFound
		}
	}

	alert, err := w.finish(ctx, job.ClusterID, v)
	if err != nil {
		return w.fail(ctx, job.ClusterID, err, start)
	}

	metrics.RecordWorkerJob(v.label, len(points), time.Since(start))
	event := log.Info().Str("state", string(v.state)).Str("label", v.label).Int("points", len(points))
	if v.results != nil {
		event = event.Int("clusters", v.results.ClusterCount).Int("noise", v.results.NoiseCount)
	}
	event.Msg("clustering job completed")

	if w.notifier != nil {
		w.notifier.AlertUpdated(alert)
	}
	return nil
}

// begin moves the alert to processing. It reports false when the alert
// does not exist.
func (w *Worker) begin(ctx context.Context, clusterID string) (bool, error) {
	var found bool
	err := w.store.Update(ctx, "worker_begin", func(txn *store.Txn) error {
		var a models.ClusterAlert
		var err error
		found, err = txn.Get(store.AlertKey(clusterID), &a)
		if err != nil || !found {
			return err
		}
		started := w.now().UTC()
		a.JobStatus = models.JobProcessing
		a.JobStartedAt = &started
		return txn.Set(store.AlertKey(clusterID), a)
	})
	return found, err
}

func (w *Worker) finish(ctx context.Context, clusterID string, v verdict) (*models.ClusterAlert, error) {
	var a models.ClusterAlert
	err := w.store.Update(ctx, "worker_finish", func(txn *store.Txn) error {
		found, err := txn.Get(store.AlertKey(clusterID), &a)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("alert %q: %w", clusterID, store.ErrNotFound)
		}
		finished := w.now().UTC()
		a.JobStatus = models.JobCompleted
		a.State = v.state
		a.ConfirmLabel = v.label
		a.DBSCANResults = v.results
		a.JobFinishedAt = &finished
		a.ErrorMessage = ""
		return txn.Set(store.AlertKey(clusterID), a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// fail records cause on the alert and returns it. The write is attempted
// with a fresh context so a cancelled job still leaves a trace.
func (w *Worker) fail(ctx context.Context, clusterID string, cause error, start time.Time) error {
	metrics.RecordWorkerJob("failed", 0, time.Since(start))
	log := logging.Ctx(ctx).With().Str("cluster_id", clusterID).Logger()
	log.Error().Err(cause).Msg("clustering job failed")

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := w.store.Update(writeCtx, "worker_fail", func(txn *store.Txn) error {
		var a models.ClusterAlert
		found, err := txn.Get(store.AlertKey(clusterID), &a)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("alert %q: %w", clusterID, store.ErrNotFound)
		}
		finished := w.now().UTC()
		a.JobStatus = models.JobFailed
		a.ErrorMessage = cause.Error()
		a.JobFinishedAt = &finished
		return txn.Set(store.AlertKey(clusterID), a)
	})
	if err != nil {
		log.Error().Err(err).AnErr("cause", cause).Bool("fatal_operational", true).
			Msg("could not mark clustering job as failed; alert left in processing")
	}
	return fmt.Errorf("cluster job %s: %w", clusterID, cause)
}
