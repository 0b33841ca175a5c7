// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/metrics"
)

// ErrInvalidRuntime is returned by Update for out-of-range overrides.
var ErrInvalidRuntime = errors.New("invalid runtime config")

// Runtime is an immutable snapshot of the pipeline parameters. Components
// receive it per operation and never read configuration from globals.
type Runtime struct {
	PipelineConfig
	Source   string
	LoadedAt time.Time
}

// Get lets a fixed snapshot stand in wherever a cache is expected.
func (r *Runtime) Get(context.Context) *Runtime {
	return r
}

// Window returns the rollup window length.
func (r *Runtime) Window() time.Duration {
	return time.Duration(r.RollupWindowHours) * time.Hour
}

// IdempotencyTTL returns how long dedup anchors live.
func (r *Runtime) IdempotencyTTL() time.Duration {
	return time.Duration(r.IdempotencyTTLHours) * time.Hour
}

// RuntimeDocument is the stored override document. Nil fields keep the
// static value. Window length and TTLs are not overridable because existing
// rollups are only consistent with the window they were built under.
type RuntimeDocument struct {
	H3Resolution     *int     `json:"h3_res,omitempty"`
	MinPtsH3         *int     `json:"min_pts_h3,omitempty"`
	MinPtsDBSCAN     *int     `json:"min_pts_dbscan,omitempty"`
	EpsilonKm        *float64 `json:"epsilon_km,omitempty"`
	DBSCANQueryLimit *int     `json:"dbscan_query_limit,omitempty"`
}

// Apply overlays the document onto base.
func (d RuntimeDocument) Apply(base PipelineConfig) PipelineConfig {
	if d.H3Resolution != nil {
		base.H3Resolution = *d.H3Resolution
	}
	if d.MinPtsH3 != nil {
		base.MinPtsH3 = *d.MinPtsH3
	}
	if d.MinPtsDBSCAN != nil {
		base.MinPtsDBSCAN = *d.MinPtsDBSCAN
	}
	if d.EpsilonKm != nil {
		base.EpsilonKm = *d.EpsilonKm
	}
	if d.DBSCANQueryLimit != nil {
		base.DBSCANQueryLimit = *d.DBSCANQueryLimit
	}
	return base
}

// DocumentStore reads and writes JSON documents. Satisfied by *store.Store.
type DocumentStore interface {
	Get(ctx context.Context, key []byte, v any) (bool, error)
	Put(ctx context.Context, key []byte, v any) error
}

// Snapshot sources.
const (
	SourceStore    = "store"
	SourceDefaults = "defaults"
	SourceStale    = "stale"
)

type cachedRuntime struct {
	rt      *Runtime
	expires time.Time
}

// RuntimeCache serves Runtime snapshots, reloading the stored document at
// most once per TTL. Concurrent reloads are collapsed into one read.
type RuntimeCache struct {
	docs DocumentStore
	key  []byte
	base PipelineConfig
	ttl  time.Duration
	now  func() time.Time

	current atomic.Pointer[cachedRuntime]
	group   singleflight.Group
	writeMu sync.Mutex
}

// NewRuntimeCache creates a cache over the document stored at key.
//
//nolint:gocritic // PipelineConfig is copied into the cache on purpose
func NewRuntimeCache(docs DocumentStore, key []byte, base PipelineConfig, ttl time.Duration) *RuntimeCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RuntimeCache{docs: docs, key: key, base: base, ttl: ttl, now: time.Now}
}

// Get returns the current snapshot, reloading it when expired.
func (c *RuntimeCache) Get(ctx context.Context) *Runtime {
	if cur := c.current.Load(); cur != nil && c.now().Before(cur.expires) {
		return cur.rt
	}
	v, _, _ := c.group.Do("runtime", func() (interface{}, error) {
		if cur := c.current.Load(); cur != nil && c.now().Before(cur.expires) {
			return cur.rt, nil
		}
		rt := c.load(ctx)
		c.current.Store(&cachedRuntime{rt: rt, expires: c.now().Add(c.ttl)})
		return rt, nil
	})
	return v.(*Runtime)
}

func (c *RuntimeCache) load(ctx context.Context) *Runtime {
	var doc RuntimeDocument
	found, err := c.docs.Get(ctx, c.key, &doc)
	if err != nil {
		metrics.RecordRuntimeReload("error")
		if cur := c.current.Load(); cur != nil {
			logging.Warn().Err(err).Msg("runtime config reload failed, keeping previous snapshot")
			stale := *cur.rt
			stale.Source = SourceStale
			return &stale
		}
		logging.Warn().Err(err).Msg("runtime config reload failed, using static defaults")
		return c.defaults()
	}
	if !found {
		metrics.RecordRuntimeReload(SourceDefaults)
		return c.defaults()
	}

	merged := doc.Apply(c.base)
	if err := merged.Validate(); err != nil {
		metrics.RecordRuntimeReload("error")
		logging.Warn().Err(err).Msg("stored runtime config is invalid, using static defaults")
		return c.defaults()
	}
	metrics.RecordRuntimeReload(SourceStore)
	return &Runtime{PipelineConfig: merged, Source: SourceStore, LoadedAt: c.now().UTC()}
}

func (c *RuntimeCache) defaults() *Runtime {
	return &Runtime{PipelineConfig: c.base, Source: SourceDefaults, LoadedAt: c.now().UTC()}
}

// Invalidate forces the next Get to reload.
func (c *RuntimeCache) Invalidate() {
	c.current.Store(nil)
}

// Update validates and stores a new override document, then invalidates.
func (c *RuntimeCache) Update(ctx context.Context, doc RuntimeDocument) (*Runtime, error) {
	if err := doc.Apply(c.base).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRuntime, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.docs.Put(ctx, c.key, doc); err != nil {
		return nil, fmt.Errorf("store runtime config: %w", err)
	}
	c.Invalidate()
	logging.Info().Msg("runtime config updated")
	return c.Get(ctx), nil
}
