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
	"github.com/tomtom215/hotspot/internal/metrics"
	"github.com/tomtom215/hotspot/internal/models"
	"github.com/tomtom215/hotspot/internal/store"
)

// RollupBranch names the path UpdateRollup took.
type RollupBranch string

const (
	BranchSeed            RollupBranch = "seed"
	BranchSameHour        RollupBranch = "same_hour"
	BranchAdvance         RollupBranch = "advance"
	BranchLateInWindow    RollupBranch = "late_in_window"
	BranchLateOutOfWindow RollupBranch = "late_out_of_window"
)

// UpdateRollup folds one accepted event at eventHour into the rollup for
// condition/cell.
//
// With window W and stored anchor L, the window ending at L covers the W
// hours L-(W-1) .. L inclusive. When the event moves the anchor forward
// by k hours, the min(k, W) oldest hours leave the window and the new
// event enters it. Late events count only while their hour is still
// inside the window.
func (s *Service) UpdateRollup(ctx context.Context, rt *config.Runtime, condition, cell, eventHour string, now time.Time) (RollupBranch, error) {
	window := rt.RollupWindowHours
	key := store.RollupKey(condition, cell)

	var branch RollupBranch
	err := s.store.Update(ctx, "rollup", func(txn *store.Txn) error {
		var r models.Rollup
		found, err := txn.Get(key, &r)
		if err != nil {
			return err
		}

		if !found {
			start, err := geo.AddHours(eventHour, -(window - 1))
			if err != nil {
				return err
			}
			sum, err := sumBuckets(txn, condition, cell, start, window)
			if err != nil {
				return err
			}
			r = models.Rollup{
				Condition:        condition,
				CellID:           cell,
				SumT1:            sum,
				LastBucketAnchor: eventHour,
			}
			branch = BranchSeed
		} else {
			k, err := geo.HoursBetween(r.LastBucketAnchor, eventHour)
			if err != nil {
				return err
			}
			switch {
			case k == 0:
				r.SumT1++
				branch = BranchSameHour
			case k > 0:
				oldest, err := geo.AddHours(r.LastBucketAnchor, -(window - 1))
				if err != nil {
					return err
				}
				expired, err := sumBuckets(txn, condition, cell, oldest, min(k, window))
				if err != nil {
					return err
				}
				r.SumT1 += 1 - expired
				r.LastBucketAnchor = eventHour
				branch = BranchAdvance
			case -k <= window-1:
				r.SumT1++
				branch = BranchLateInWindow
			default:
				branch = BranchLateOutOfWindow
			}
		}

		if r.SumT1 < 0 {
			r.SumT1 = 0
		}
		r.LastUpdatedAt = now
		return txn.Set(key, r)
	})
	if err != nil {
		return "", fmt.Errorf("rollup %s|%s: %w", condition, cell, err)
	}

	metrics.RecordRollupBranch(string(branch))
	return branch, nil
}

// sumBuckets adds the counts of count consecutive hour buckets starting at
// startAnchor. Missing buckets count as zero.
func sumBuckets(txn *store.Txn, condition, cell, startAnchor string, count int) (int64, error) {
	start, err := geo.ParseHourAnchor(startAnchor)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, anchor := range geo.AnchorRange(start, count) {
		var b models.HourBucket
		found, err := txn.Get(store.BucketKey(condition, cell, anchor), &b)
		if err != nil {
			return 0, err
		}
		if found {
			sum += b.Count
		}
	}
	return sum, nil
}
