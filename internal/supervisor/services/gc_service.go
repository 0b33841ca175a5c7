// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package services

import (
	"context"
	"time"

	"github.com/tomtom215/hotspot/internal/logging"
)

// GCRunner is satisfied by *store.Store.
type GCRunner interface {
	RunGC() error
}

// StoreGCService runs value log GC on a fixed interval. A failed pass is
// logged and retried at the next tick.
type StoreGCService struct {
	store    GCRunner
	interval time.Duration
	name     string
}

// NewStoreGCService wraps store. A non-positive interval means 10 minutes.
func NewStoreGCService(store GCRunner, interval time.Duration) *StoreGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StoreGCService{store: store, interval: interval, name: "store-gc"}
}

// Serve implements suture.Service.
func (s *StoreGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.store.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("store value log GC failed")
				continue
			}
			logging.Debug().Dur("duration", time.Since(start)).Msg("store value log GC complete")
		}
	}
}

func (s *StoreGCService) String() string {
	return s.name
}
