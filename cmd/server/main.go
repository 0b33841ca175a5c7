// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomtom215/hotspot/internal/config"
	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Hotspot outbreak-detection pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (overrides CONFIG_PATH)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, configPath); err != nil {
			return nil, fmt.Errorf("set %s: %w", config.ConfigPathEnvVar, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	return cfg, nil
}

func openStore(cfg config.StoreConfig) (*store.Store, error) {
	sc := store.DefaultConfig(cfg.Path)
	sc.InMemory = cfg.InMemory
	sc.SyncWrites = cfg.SyncWrites
	sc.Compression = cfg.Compression
	sc.MaxTxnRetries = cfg.MaxTxnRetries
	sc.GCRatio = cfg.GCRatio
	return store.Open(sc)
}
