// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/hotspot/config.yaml",
	"/etc/hotspot/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    64 << 10,
			RateLimit:       600,
			RateWindow:      time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Store: StoreConfig{
			Path:          "/data/hotspot",
			SyncWrites:    true,
			Compression:   true,
			MaxTxnRetries: 16,
			GCInterval:    10 * time.Minute,
			GCRatio:       0.5,
		},
		NATS: NATSConfig{
			URL:             "nats://127.0.0.1:4222",
			EmbeddedServer:  true,
			StoreDir:        "/data/nats/jetstream",
			Port:            4222,
			MaxMemory:       256 << 20,
			MaxStore:        4 << 30,
			DurableName:     "hotspot-worker",
			QueueGroup:      "hotspot-workers",
			AckWait:         60 * time.Second,
			MaxDeliver:      10,
			StreamMaxAge:    7 * 24 * time.Hour,
			DuplicateWindow: 2 * time.Minute,
		},
		Queue: QueueConfig{
			Backend:              "nats",
			Topic:                "hotspot.jobs.dbscan",
			PoisonTopic:          "hotspot.jobs.poison",
			Subscribers:          2,
			RetryCount:           3,
			RetryInitialInterval: 500 * time.Millisecond,
			RetryMaxInterval:     10 * time.Second,
			CloseTimeout:         30 * time.Second,
			BreakerMaxFailures:   5,
			BreakerTimeout:       30 * time.Second,
		},
		Pipeline: PipelineConfig{
			H3Resolution:        8,
			GeohashPrecision:    7,
			MinPtsH3:            12,
			MinPtsDBSCAN:        5,
			EpsilonKm:           1.0,
			RollupWindowHours:   72,
			IdempotencyTTLHours: 96,
			DBSCANQueryLimit:    1500,
		},
		Retention: RetentionConfig{
			Enabled:       true,
			Interval:      24 * time.Hour,
			CasesTTLDays:  90,
			BatchLimit:    1000,
			DeletesPerSec: 500,
		},
		Runtime: RuntimeConfig{
			TTL: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in defaults without reading file or environment.
func Default() *Config {
	return defaultConfig()
}

// Load layers defaults, the optional YAML file, and environment variables,
// then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitCommaList(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// splitCommaList turns a comma-separated env value into a slice.
func splitCommaList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if err := k.Set(path, out); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}

// envMappings maps environment variables (lower-cased) to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"http_max_body_bytes":   "server.max_body_bytes",
	"http_rate_limit":       "server.rate_limit",
	"http_rate_window":      "server.rate_window",
	"cors_origins":          "server.cors_origins",

	"store_path":            "store.path",
	"store_in_memory":       "store.in_memory",
	"store_sync_writes":     "store.sync_writes",
	"store_compression":     "store.compression",
	"store_max_txn_retries": "store.max_txn_retries",
	"store_gc_interval":     "store.gc_interval",

	"nats_url":             "nats.url",
	"nats_embedded_server": "nats.embedded_server",
	"nats_store_dir":       "nats.store_dir",
	"nats_port":            "nats.port",
	"nats_durable_name":    "nats.durable_name",
	"nats_queue_group":     "nats.queue_group",
	"nats_ack_wait":        "nats.ack_wait",
	"nats_max_deliver":     "nats.max_deliver",
	"nats_stream_max_age":  "nats.stream_max_age",
	"nats_dup_window":      "nats.duplicate_window",

	"queue_backend":         "queue.backend",
	"queue_topic":           "queue.topic",
	"queue_poison_topic":    "queue.poison_topic",
	"queue_subscribers":     "queue.subscribers",
	"queue_retry_count":     "queue.retry_count",
	"queue_breaker_max":     "queue.breaker_max_failures",
	"queue_breaker_timeout": "queue.breaker_timeout",

	"h3_res":                "pipeline.h3_res",
	"geohash_precision":     "pipeline.geohash_precision",
	"min_pts_h3":            "pipeline.min_pts_h3",
	"min_pts_dbscan":        "pipeline.min_pts_dbscan",
	"epsilon_km":            "pipeline.epsilon_km",
	"rollup_window_hours":   "pipeline.rollup_window_hours",
	"idempotency_ttl_hours": "pipeline.idempotency_ttl_hours",
	"dbscan_query_limit":    "pipeline.dbscan_query_limit",

	"retention_enabled":         "retention.enabled",
	"retention_interval":        "retention.interval",
	"cases_ttl_days":            "retention.cases_ttl_days",
	"retention_batch_limit":     "retention.batch_limit",
	"retention_deletes_per_sec": "retention.deletes_per_sec",

	"runtime_config_ttl": "runtime.ttl",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps HTTP_PORT to server.port and drops unknown variables.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
