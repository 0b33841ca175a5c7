// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "hotspot dev") {
		t.Errorf("output = %q", out)
	}
}

func TestSweepCommandInMemory(t *testing.T) {
	t.Setenv("STORE_IN_MEMORY", "true")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CONFIG_PATH", "")

	out, err := execute(t, "sweep")
	if err != nil {
		t.Fatalf("sweep: %v (output %q)", err, out)
	}
	for _, want := range []string{"dedup anchors deleted: 0", "cases deleted: 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestSweepCommandInvalidConfig(t *testing.T) {
	t.Setenv("STORE_IN_MEMORY", "true")
	t.Setenv("H3_RES", "99")

	if _, err := execute(t, "sweep"); err == nil {
		t.Fatal("sweep with h3_res=99 should fail validation")
	}
}
