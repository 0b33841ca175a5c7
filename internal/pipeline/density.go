// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package pipeline

import (
	"context"
	"fmt"

	"github.com/tomtom215/hotspot/internal/models"
	"github.com/tomtom215/hotspot/internal/store"
)

// Density sums the rollups of every cell in ring from one snapshot.
// Cells without a rollup contribute zero.
func (s *Service) Density(ctx context.Context, condition string, ring []string) (int64, error) {
	var total int64
	err := s.store.View(ctx, func(txn *store.Txn) error {
		total = 0
		for _, cell := range ring {
			var r models.Rollup
			found, err := txn.Get(store.RollupKey(condition, cell), &r)
			if err != nil {
				return err
			}
			if found {
				total += r.SumT1
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("density %s: %w", condition, err)
	}
	return total, nil
}
