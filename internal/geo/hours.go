// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package geo

import (
	"fmt"
	"time"
)

const (
	// HourLayout formats an hour anchor, e.g. 2026-09-24T14:00:00Z.
	HourLayout = "2006-01-02T15:00:00Z"

	// HourKeyLayout formats the dispatch-hour key, e.g. 2026-09-24T14.
	HourKeyLayout = "2006-01-02T15"
)

// FloorHour truncates t to the start of its UTC hour.
func FloorHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// HourAnchor returns the hour-floored anchor string for t.
func HourAnchor(t time.Time) string {
	return FloorHour(t).Format(HourLayout)
}

// HourKey returns the dispatch-hour key for t.
func HourKey(t time.Time) string {
	return FloorHour(t).Format(HourKeyLayout)
}

// ParseHourAnchor parses an anchor produced by HourAnchor.
func ParseHourAnchor(anchor string) (time.Time, error) {
	t, err := time.Parse(HourLayout, anchor)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse hour anchor %q: %w", anchor, err)
	}
	return t.UTC(), nil
}

// AddHours shifts an anchor by n hours (n may be negative).
func AddHours(anchor string, n int) (string, error) {
	t, err := ParseHourAnchor(anchor)
	if err != nil {
		return "", err
	}
	return t.Add(time.Duration(n) * time.Hour).Format(HourLayout), nil
}

// HoursBetween returns the whole hours from a to b (b - a).
func HoursBetween(a, b string) (int, error) {
	ta, err := ParseHourAnchor(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseHourAnchor(b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta) / time.Hour), nil
}

// AnchorRange returns count consecutive anchors starting at start.
func AnchorRange(start time.Time, count int) []string {
	if count <= 0 {
		return nil
	}
	start = FloorHour(start)
	out := make([]string, count)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour).Format(HourLayout)
	}
	return out
}
