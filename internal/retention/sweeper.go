// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

// Package retention deletes expired dedup anchors and aged-out cases on a
// schedule. The two categories are swept independently; a failure in one
// does not stop the other.
package retention

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/hotspot/internal/config"
	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/metrics"
	"github.com/tomtom215/hotspot/internal/models"
	"github.com/tomtom215/hotspot/internal/store"
)

// Categories, as used in metrics labels.
const (
	CategoryDedup = "dedup_anchors"
	CategoryCases = "cases"
)

// Report summarizes one sweep.
type Report struct {
	DedupDeleted int
	CasesDeleted int
	DedupErr     error
	CasesErr     error
	Duration     time.Duration
}

// Err joins the per-category errors.
func (r Report) Err() error {
	return errors.Join(r.DedupErr, r.CasesErr)
}

// Sweeper runs retention sweeps.
type Sweeper struct {
	store   *store.Store
	cfg     config.RetentionConfig
	limiter *rate.Limiter
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	last    Report
	lastRun time.Time
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

// New creates a Sweeper. Deletes are paced at cfg.DeletesPerSec.
func New(st *store.Store, cfg config.RetentionConfig, opts ...Option) *Sweeper {
	limit := rate.Inf
	burst := 1
	if cfg.DeletesPerSec > 0 {
		limit = rate.Limit(cfg.DeletesPerSec)
		burst = max(1, int(cfg.DeletesPerSec))
	}
	s := &Sweeper{
		store:   st,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the periodic sweep loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	logging.Info().Dur("interval", s.cfg.Interval).Msg("retention sweeper started")
	return nil
}

// Stop ends the loop and waits for an in-progress sweep.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info().Msg("retention sweeper stopped")
}

// IsRunning reports whether the loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastReport returns the most recent sweep report and when it ran.
func (s *Sweeper) LastReport() (Report, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastRun
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.RunNow(s.ctx)
		}
	}
}

// RunNow performs one sweep of both categories.
func (s *Sweeper) RunNow(ctx context.Context) Report {
	start := time.Now()
	now := s.now().UTC()

	var r Report
	r.DedupDeleted, r.DedupErr = s.sweepDedup(ctx, now)
	metrics.RecordRetention(CategoryDedup, r.DedupDeleted, r.DedupErr)

	cutoff := now.Add(-time.Duration(s.cfg.CasesTTLDays) * 24 * time.Hour)
	r.CasesDeleted, r.CasesErr = s.sweepCases(ctx, cutoff)
	metrics.RecordRetention(CategoryCases, r.CasesDeleted, r.CasesErr)
	r.Duration = time.Since(start)

	s.mu.Lock()
	s.last = r
	s.lastRun = now
	s.mu.Unlock()

	event := logging.Info()
	if r.Err() != nil {
		event = logging.Error().Err(r.Err())
	}
	event.
		Int("dedup_deleted", r.DedupDeleted).
		Int("cases_deleted", r.CasesDeleted).
		Time("cases_cutoff", cutoff).
		Dur("duration", r.Duration).
		Msg("retention sweep finished")
	return r
}

func (s *Sweeper) batchLimit() int {
	if s.cfg.BatchLimit <= 0 {
		return 1000
	}
	return s.cfg.BatchLimit
}

// sweepDedup deletes anchors whose expire_at is before now. It walks the
// expiry index from the oldest entry and stops at the first live one, so
// the cost is bounded by the batch limit, not by the number of anchors.
func (s *Sweeper) sweepDedup(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.scanBefore(ctx, store.PrefixDedupExp, now)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, expKey := range expired {
		if err := s.limiter.Wait(ctx); err != nil {
			return deleted, err
		}
		var removed bool
		err := s.store.Update(ctx, "retention_dedup", func(txn *store.Txn) error {
			removed = false
			id, found, err := txn.GetRaw(expKey)
			if err != nil || !found {
				return err
			}

			anchorKey := store.DedupKey(string(id))
			raw, found, err := txn.GetRaw(anchorKey)
			if err != nil {
				return err
			}
			if found {
				var a models.DedupAnchor
				if err := json.Unmarshal(raw, &a); err != nil {
					logging.Warn().Err(err).Str("key", string(anchorKey)).Msg("deleting undecodable dedup anchor")
				} else if !a.ExpireAt.Before(now) {
					// Re-anchored with a later expiry; that write has its own index row.
					return txn.Delete(expKey)
				}
				if err := txn.Delete(anchorKey); err != nil {
					return err
				}
				removed = true
			}
			return txn.Delete(expKey)
		})
		if err != nil {
			return deleted, err
		}
		if removed {
			deleted++
		}
	}
	return deleted, nil
}

// scanBefore collects up to batchLimit keys of a time-ordered index whose
// timestamp is before t.
func (s *Sweeper) scanBefore(ctx context.Context, prefix string, t time.Time) ([][]byte, error) {
	limit := s.batchLimit()
	bound := []byte(prefix + store.SortableTime(t))

	var keys [][]byte
	err := s.store.View(ctx, func(txn *store.Txn) error {
		return txn.Scan([]byte(prefix), nil, func(key, _ []byte) (bool, error) {
			if bytes.Compare(key, bound) >= 0 {
				return false, nil
			}
			keys = append(keys, key)
			return len(keys) < limit, nil
		})
	})
	return keys, err
}

// sweepCases deletes cases ingested before cutoff, together with their
// index rows.
func (s *Sweeper) sweepCases(ctx context.Context, cutoff time.Time) (int, error) {
	aged, err := s.scanBefore(ctx, store.PrefixCaseAge, cutoff)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, ageKey := range aged {
		if err := s.limiter.Wait(ctx); err != nil {
			return deleted, err
		}
		var removed bool
		err := s.store.Update(ctx, "retention_cases", func(txn *store.Txn) error {
			removed = false
			id, found, err := txn.GetRaw(ageKey)
			if err != nil || !found {
				return err
			}

			var c models.CaseEvent
			found, err = txn.Get(store.CaseKey(string(id)), &c)
			if err != nil {
				return err
			}
			if found {
				if err := txn.Delete(store.CaseIndexKey(c.Condition, c.CellID, c.EventTime, c.EventID)); err != nil {
					return err
				}
				if err := txn.Delete(store.CaseKey(c.EventID)); err != nil {
					return err
				}
			}
			removed = true
			return txn.Delete(ageKey)
		})
		if err != nil {
			return deleted, err
		}
		if removed {
			deleted++
		}
	}
	return deleted, nil
}
