// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

// Package pipeline implements ingestion, rollup maintenance, density
// evaluation, and alert dispatch.
//
// One accepted event runs three store transactions in sequence:
//
//	ingest   dedup anchor + case + index rows + hour bucket increment
//	rollup   trailing-window sum for (condition, cell)
//	dispatch alert upsert when the 1-ring density crosses the threshold
//
// Each transaction commits independently. A failure after ingest is
// reported to the caller but the accepted case stays; re-ingestion is
// blocked by the dedup anchor.
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
	"github.com/tomtom215/hotspot/internal/validation"
)

// JobQueue accepts clustering jobs. Submission happens after the dispatch
// transaction commits and is never retried here.
type JobQueue interface {
	Enqueue(ctx context.Context, job models.ClusterJob) error
}

// RuntimeSource yields the parameter snapshot for one operation.
// Satisfied by *config.RuntimeCache and *config.Runtime.
type RuntimeSource interface {
	Get(ctx context.Context) *config.Runtime
}

// Service runs the ingestion pipeline.
type Service struct {
	store   *store.Store
	runtime RuntimeSource
	queue   JobQueue
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the pipeline.
func NewService(st *store.Store, rt RuntimeSource, q JobQueue, opts ...Option) *Service {
	s := &Service{store: st, runtime: rt, queue: q, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest validates req and runs it through the pipeline.
func (s *Service) Ingest(ctx context.Context, req models.IngestRequest) (result models.IngestResult, err error) {
	start := time.Now()
	status := "error"
	defer func() { metrics.RecordIngest(status, time.Since(start)) }()

	if verr := validation.ValidateStruct(&req); verr != nil {
		status = "invalid"
		return models.IngestResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, verr)
	}
	eventTime, err := time.Parse(time.RFC3339, req.EventTimeUTC)
	if err != nil {
		status = "invalid"
		return models.IngestResult{}, fmt.Errorf("%w: event_time_utc: %w", ErrInvalidInput, err)
	}

	rt := s.runtime.Get(ctx)
	loc, err := geo.Locate(*req.Lat, *req.Lng, rt.H3Resolution)
	if err != nil {
		status = "invalid"
		return models.IngestResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	now := s.now().UTC()
	event := models.CaseEvent{
		EventID:    req.EventID,
		EventTime:  eventTime.UTC(),
		Lat:        *req.Lat,
		Lng:        *req.Lng,
		Condition:  req.Condition,
		CellID:     loc.Cell,
		Geohash:    geo.Geohash(*req.Lat, *req.Lng, rt.GeohashPrecision),
		IngestedAt: now,
	}
	log := logging.Ctx(ctx).With().Str("event_id", event.EventID).Str("h3", loc.Cell).Logger()

	accepted, err := s.IngestCase(ctx, rt, event)
	if err != nil {
		log.Error().Err(err).Msg("ingest transaction failed")
		return models.IngestResult{}, err
	}
	if !accepted {
		status = models.IngestDuplicateSkipped
		log.Debug().Msg("duplicate event skipped")
		return models.IngestResult{OK: true, Status: models.IngestDuplicateSkipped, EventID: event.EventID}, nil
	}

	hour := geo.HourAnchor(event.EventTime)
	if _, err := s.UpdateRollup(ctx, rt, event.Condition, loc.Cell, hour, now); err != nil {
		log.Error().Err(err).Msg("rollup update failed after case was accepted")
		return models.IngestResult{}, err
	}

	density, err := s.Density(ctx, event.Condition, loc.Ring)
	if err != nil {
		log.Error().Err(err).Msg("density evaluation failed after case was accepted")
		return models.IngestResult{}, err
	}
	metrics.RecordDensity(density)

	triggered := density >= int64(rt.MinPtsH3)
	if triggered {
		log.Info().Int64("density_T1", density).Int("min_pts_h3", rt.MinPtsH3).Msg("density threshold met")
		if _, err := s.Dispatch(ctx, rt, event.Condition, loc, density, now); err != nil {
			log.Error().Err(err).Msg("alert dispatch failed after case was accepted")
			return models.IngestResult{}, err
		}
	}

	status = models.IngestAccepted
	return models.IngestResult{
		OK:             true,
		EventID:        event.EventID,
		H3:             loc.Cell,
		DensityT1:      &density,
		AlertTriggered: &triggered,
	}, nil
}

// Alert returns the alert stored under clusterID.
func (s *Service) Alert(ctx context.Context, clusterID string) (*models.ClusterAlert, error) {
	var a models.ClusterAlert
	found, err := s.store.Get(ctx, store.AlertKey(clusterID), &a)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("alert %q: %w", clusterID, store.ErrNotFound)
	}
	return &a, nil
}

// Rollup returns the rollup for condition/cell.
func (s *Service) Rollup(ctx context.Context, condition, cell string) (*models.Rollup, error) {
	var r models.Rollup
	found, err := s.store.Get(ctx, store.RollupKey(condition, cell), &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("rollup %s|%s: %w", condition, cell, store.ErrNotFound)
	}
	return &r, nil
}
