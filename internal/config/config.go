// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

// Package config loads static process configuration (defaults, YAML file,
// environment) and caches the runtime-tunable pipeline parameters that are
// stored as a document in the store.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the full static configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	NATS      NATSConfig      `koanf:"nats"`
	Queue     QueueConfig     `koanf:"queue"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Retention RetentionConfig `koanf:"retention"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	RateLimit       int           `koanf:"rate_limit"`
	RateWindow      time.Duration `koanf:"rate_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// StoreConfig configures BadgerDB.
type StoreConfig struct {
	Path          string        `koanf:"path"`
	InMemory      bool          `koanf:"in_memory"`
	SyncWrites    bool          `koanf:"sync_writes"`
	Compression   bool          `koanf:"compression"`
	MaxTxnRetries int           `koanf:"max_txn_retries"`
	GCInterval    time.Duration `koanf:"gc_interval"`
	GCRatio       float64       `koanf:"gc_ratio"`
}

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	URL             string        `koanf:"url"`
	EmbeddedServer  bool          `koanf:"embedded_server"`
	StoreDir        string        `koanf:"store_dir"`
	Port            int           `koanf:"port"`
	MaxMemory       int64         `koanf:"max_memory"`
	MaxStore        int64         `koanf:"max_store"`
	DurableName     string        `koanf:"durable_name"`
	QueueGroup      string        `koanf:"queue_group"`
	AckWait         time.Duration `koanf:"ack_wait"`
	MaxDeliver      int           `koanf:"max_deliver"`
	StreamMaxAge    time.Duration `koanf:"stream_max_age"`
	DuplicateWindow time.Duration `koanf:"duplicate_window"`
}

// QueueConfig configures the job queue and its router.
type QueueConfig struct {
	// Backend is "nats" or "memory".
	Backend              string        `koanf:"backend"`
	Topic                string        `koanf:"topic"`
	PoisonTopic          string        `koanf:"poison_topic"`
	Subscribers          int           `koanf:"subscribers"`
	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
	BreakerMaxFailures   uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout       time.Duration `koanf:"breaker_timeout"`
}

// PipelineConfig holds the static pipeline parameters. The runtime snapshot
// starts from these values and may be overridden by the store document.
type PipelineConfig struct {
	H3Resolution        int     `koanf:"h3_res"`
	GeohashPrecision    uint    `koanf:"geohash_precision"`
	MinPtsH3            int     `koanf:"min_pts_h3"`
	MinPtsDBSCAN        int     `koanf:"min_pts_dbscan"`
	EpsilonKm           float64 `koanf:"epsilon_km"`
	RollupWindowHours   int     `koanf:"rollup_window_hours"`
	IdempotencyTTLHours int     `koanf:"idempotency_ttl_hours"`
	DBSCANQueryLimit    int     `koanf:"dbscan_query_limit"`
}

// RetentionConfig configures the retention sweep.
type RetentionConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Interval      time.Duration `koanf:"interval"`
	CasesTTLDays  int           `koanf:"cases_ttl_days"`
	BatchLimit    int           `koanf:"batch_limit"`
	DeletesPerSec float64       `koanf:"deletes_per_sec"`
}

// RuntimeConfig configures the runtime snapshot cache.
type RuntimeConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
