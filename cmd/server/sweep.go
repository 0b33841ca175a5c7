// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/retention"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one retention sweep and exit",
	Long: `Delete expired dedup anchors and cases older than the configured TTL,
bounded by retention.batch_limit per category.

Do not run this against a store that a running server holds open; BadgerDB
allows a single process per directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg.Store)
		if err != nil {
			return err
		}
		defer func() {
			if err := st.Close(); err != nil {
				logging.Error().Err(err).Msg("error closing store")
			}
		}()

		report := retention.New(st, cfg.Retention).RunNow(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "dedup anchors deleted: %d\ncases deleted: %d\nduration: %s\n",
			report.DedupDeleted, report.CasesDeleted, report.Duration)
		if err := report.Err(); err != nil {
			return fmt.Errorf("sweep incomplete: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
