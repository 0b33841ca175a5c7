// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package worker

import (
	"context"
	"fmt"

	"github.com/tomtom215/hotspot/internal/cluster"
	"github.com/tomtom215/hotspot/internal/models"
	"github.com/tomtom215/hotspot/internal/store"
)

// Points loads up to limit cases of job.Condition in job.NeighborsH3 with
// an event time at or after job.SinceUTC. Cells are read in order, each
// from oldest to newest.
func (w *Worker) Points(ctx context.Context, job models.ClusterJob, limit int) ([]cluster.Point, error) {
	var points []cluster.Point
	seen := make(map[string]struct{}, len(job.NeighborsH3))

	err := w.store.View(ctx, func(txn *store.Txn) error {
		points = points[:0]
		for _, cell := range job.NeighborsH3 {
			if _, dup := seen[cell]; dup {
				continue
			}
			seen[cell] = struct{}{}

			prefix := store.CaseIndexPrefix(job.Condition, cell)
			seek := append(append([]byte(nil), prefix...), store.SortableTime(job.SinceUTC)...)
			err := txn.Scan(prefix, seek, func(_, val []byte) (bool, error) {
				var c models.CaseEvent
				found, err := txn.Get(store.CaseKey(string(val)), &c)
				if err != nil {
					return false, err
				}
				if found {
					points = append(points, cluster.Point{ID: c.EventID, Lat: c.Lat, Lng: c.Lng})
				}
				return limit <= 0 || len(points) < limit, nil
			})
			if err != nil {
				return err
			}
			if limit > 0 && len(points) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load points for %s: %w", job.ClusterID, err)
	}
	return points, nil
}
