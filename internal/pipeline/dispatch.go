// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/hotspot/internal/config"
	"github.com/tomtom215/hotspot/internal/geo"
	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/metrics"
	"github.com/tomtom215/hotspot/internal/models"
	"github.com/tomtom215/hotspot/internal/store"
)

// DispatchOutcome reports what Dispatch did. Enqueued is true when the call
// armed the alert and submitted a job. EnqueueErr holds a failed submission;
// it does not fail the dispatch since the alert stays enqueued and the
// trigger stands.
type DispatchOutcome struct {
	ClusterID  string
	Enqueued   bool
	EnqueueErr error
}

// Dispatch upserts the alert for condition at loc in the hour of now and
// submits one clustering job per arming. An alert that is already
// enqueued only has its density and last-seen time refreshed.
func (s *Service) Dispatch(ctx context.Context, rt *config.Runtime, condition string, loc geo.Location, density int64, now time.Time) (DispatchOutcome, error) {
	clusterID := store.ClusterID(condition, loc.Cell, geo.HourKey(now))
	key := store.AlertKey(clusterID)
	out := DispatchOutcome{ClusterID: clusterID}

	err := s.store.Update(ctx, "dispatch", func(txn *store.Txn) error {
		out.Enqueued = false

		var a models.ClusterAlert
		found, err := txn.Get(key, &a)
		if err != nil {
			return err
		}
		if found && a.JobStatus == models.JobEnqueued {
			a.DensityT1 = density
			a.LastSeenAt = now
			return txn.Set(key, a)
		}

		if !found {
			a.FirstSeenAt = now
		}
		a.ClusterID = clusterID
		a.Condition = condition
		a.H3Center = loc.Cell
		a.HourKey = geo.HourKey(now)
		a.State = models.AlertPreAlert
		a.JobStatus = models.JobEnqueued
		a.Neighbors = loc.Ring
		a.DensityT1 = density
		a.MinPtsH3 = rt.MinPtsH3
		a.WinAnchor = geo.HourAnchor(now)
		a.LastSeenAt = now
		if err := txn.Set(key, a); err != nil {
			return err
		}
		out.Enqueued = true
		return nil
	})
	if err != nil {
		metrics.RecordDispatch("error")
		return out, fmt.Errorf("dispatch %s: %w", clusterID, err)
	}
	if !out.Enqueued {
		metrics.RecordDispatch("refreshed")
		return out, nil
	}

	job := models.ClusterJob{
		ClusterID:   clusterID,
		Condition:   condition,
		H3Center:    loc.Cell,
		NeighborsH3: loc.Ring,
		SinceUTC:    now.Add(-rt.Window()),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		out.EnqueueErr = err
		metrics.RecordDispatchFailure()
		logging.Ctx(ctx).Error().Err(err).
			Str("cluster_id", clusterID).
			Msg("failed to enqueue clustering job; alert left enqueued")
		return out, nil
	}

	metrics.RecordDispatch("enqueued")
	logging.Ctx(ctx).Info().
		Str("cluster_id", clusterID).
		Int64("density_T1", density).
		Msg("clustering job enqueued")
	return out, nil
}
