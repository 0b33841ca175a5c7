// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	return errors.Join(
		c.validateServer(),
		c.validateStore(),
		c.validateQueue(),
		c.Pipeline.Validate(),
		c.validateRetention(),
		c.validateLogging(),
	)
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return errors.New("store.path is required unless store.in_memory is set")
	}
	if c.Store.MaxTxnRetries < 1 {
		return fmt.Errorf("store.max_txn_retries must be at least 1, got %d", c.Store.MaxTxnRetries)
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case "nats":
		if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
			return errors.New("nats.url is required when the embedded server is disabled")
		}
	case "memory":
	default:
		return fmt.Errorf("queue.backend must be nats or memory, got %q", c.Queue.Backend)
	}
	if c.Queue.Topic == "" {
		return errors.New("queue.topic is required")
	}
	if c.Queue.Subscribers < 1 {
		return fmt.Errorf("queue.subscribers must be at least 1, got %d", c.Queue.Subscribers)
	}
	return nil
}

// Validate checks the pipeline parameter ranges.
func (p PipelineConfig) Validate() error {
	var errs []error
	if p.H3Resolution < 0 || p.H3Resolution > 15 {
		errs = append(errs, fmt.Errorf("pipeline.h3_res must be 0..15, got %d", p.H3Resolution))
	}
	if p.GeohashPrecision < 1 || p.GeohashPrecision > 12 {
		errs = append(errs, fmt.Errorf("pipeline.geohash_precision must be 1..12, got %d", p.GeohashPrecision))
	}
	if p.MinPtsH3 < 1 {
		errs = append(errs, fmt.Errorf("pipeline.min_pts_h3 must be at least 1, got %d", p.MinPtsH3))
	}
	if p.MinPtsDBSCAN < 1 {
		errs = append(errs, fmt.Errorf("pipeline.min_pts_dbscan must be at least 1, got %d", p.MinPtsDBSCAN))
	}
	if p.EpsilonKm <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.epsilon_km must be positive, got %v", p.EpsilonKm))
	}
	if p.RollupWindowHours < 1 || p.RollupWindowHours > 720 {
		errs = append(errs, fmt.Errorf("pipeline.rollup_window_hours must be 1..720, got %d", p.RollupWindowHours))
	}
	if p.IdempotencyTTLHours < 1 {
		errs = append(errs, fmt.Errorf("pipeline.idempotency_ttl_hours must be at least 1, got %d", p.IdempotencyTTLHours))
	}
	if p.DBSCANQueryLimit < 1 {
		errs = append(errs, fmt.Errorf("pipeline.dbscan_query_limit must be at least 1, got %d", p.DBSCANQueryLimit))
	}
	return errors.Join(errs...)
}

func (c *Config) validateRetention() error {
	if !c.Retention.Enabled {
		return nil
	}
	if c.Retention.CasesTTLDays < 1 {
		return fmt.Errorf("retention.cases_ttl_days must be at least 1, got %d", c.Retention.CasesTTLDays)
	}
	if c.Retention.BatchLimit < 1 {
		return fmt.Errorf("retention.batch_limit must be at least 1, got %d", c.Retention.BatchLimit)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
}
