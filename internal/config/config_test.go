// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	p := cfg.Pipeline
	if p.H3Resolution != 8 || p.MinPtsH3 != 12 || p.MinPtsDBSCAN != 5 || p.EpsilonKm != 1.0 {
		t.Errorf("unexpected pipeline defaults: %+v", p)
	}
	if p.RollupWindowHours != 72 || p.IdempotencyTTLHours != 96 || p.DBSCANQueryLimit != 1500 {
		t.Errorf("unexpected window defaults: %+v", p)
	}
	if cfg.Retention.CasesTTLDays != 90 || cfg.Retention.BatchLimit != 1000 {
		t.Errorf("unexpected retention defaults: %+v", cfg.Retention)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("MIN_PTS_H3", "20")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("RETENTION_INTERVAL", "6h")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SOME_UNRELATED_VAR", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Pipeline.MinPtsH3 != 20 {
		t.Errorf("Pipeline.MinPtsH3 = %d, want 20", cfg.Pipeline.MinPtsH3)
	}
	if cfg.Queue.Backend != "memory" {
		t.Errorf("Queue.Backend = %q, want memory", cfg.Queue.Backend)
	}
	if cfg.Retention.Interval != 6*time.Hour {
		t.Errorf("Retention.Interval = %v, want 6h", cfg.Retention.Interval)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 7000
pipeline:
  epsilon_km: 0.5
store:
  in_memory: true
  path: ""
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 || cfg.Pipeline.EpsilonKm != 0.5 || !cfg.Store.InMemory {
		t.Errorf("file values not applied: port=%d eps=%v mem=%v", cfg.Server.Port, cfg.Pipeline.EpsilonKm, cfg.Store.InMemory)
	}
	if cfg.Pipeline.MinPtsH3 != 12 {
		t.Errorf("default lost after file load: MinPtsH3=%d", cfg.Pipeline.MinPtsH3)
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Port = 0
	cfg.Pipeline.H3Resolution = 16
	cfg.Queue.Backend = "kafka"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "pipeline.h3_res", "queue.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8080}
	if s.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr = %s", s.Addr())
	}
}
