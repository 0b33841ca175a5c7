// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package pipeline

import (
	"context"
	"fmt"

	"github.com/tomtom215/hotspot/internal/config"
	"github.com/tomtom215/hotspot/internal/geo"
	"github.com/tomtom215/hotspot/internal/models"
	"github.com/tomtom215/hotspot/internal/store"
)

// IngestCase stores event and bumps its hour bucket in one transaction.
// It returns false when the event id was seen before, in which case
// nothing is written. The stored case outlives its dedup anchor, so an id
// whose anchor was already swept is still a duplicate while the case is
// retained.
func (s *Service) IngestCase(ctx context.Context, rt *config.Runtime, event models.CaseEvent) (bool, error) {
	hour := geo.HourAnchor(event.EventTime)
	bucketKey := store.BucketKey(event.Condition, event.CellID, hour)

	var accepted bool
	err := s.store.Update(ctx, "ingest", func(txn *store.Txn) error {
		accepted = false

		seen, err := txn.Exists(store.DedupKey(event.EventID))
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
		stored, err := txn.Exists(store.CaseKey(event.EventID))
		if err != nil {
			return err
		}
		if stored {
			return nil
		}

		var bucket models.HourBucket
		found, err := txn.Get(bucketKey, &bucket)
		if err != nil {
			return err
		}
		if !found {
			bucket = models.HourBucket{
				Condition:  event.Condition,
				CellID:     event.CellID,
				HourAnchor: hour,
			}
		}
		bucket.Count++
		bucket.UpdatedAt = event.IngestedAt

		anchor := models.DedupAnchor{
			EventID:   event.EventID,
			CreatedAt: event.IngestedAt,
			ExpireAt:  event.IngestedAt.Add(rt.IdempotencyTTL()),
		}
		if err := txn.Set(store.DedupKey(event.EventID), anchor); err != nil {
			return err
		}
		if err := txn.SetRaw(store.DedupExpiryKey(anchor.ExpireAt, event.EventID), []byte(event.EventID)); err != nil {
			return err
		}
		if err := txn.Set(store.CaseKey(event.EventID), event); err != nil {
			return err
		}
		if err := txn.SetRaw(store.CaseIndexKey(event.Condition, event.CellID, event.EventTime, event.EventID), []byte(event.EventID)); err != nil {
			return err
		}
		if err := txn.SetRaw(store.CaseAgeKey(event.IngestedAt, event.EventID), []byte(event.EventID)); err != nil {
			return err
		}
		if err := txn.Set(bucketKey, bucket); err != nil {
			return err
		}

		accepted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ingest %s: %w", event.EventID, err)
	}
	return accepted, nil
}
