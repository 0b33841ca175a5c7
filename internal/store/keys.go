// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package store

import "time"

// Sep joins the parts of composite keys. Conditions must not contain it.
const Sep = "|"

// Key prefixes. The layout is persisted and must stay stable.
const (
	PrefixCase      = "cases/"
	PrefixDedup     = "dedup/"
	PrefixBucket    = "buckets_1h/"
	PrefixRollup    = "rollups_1h/"
	PrefixAlert     = "alerts/"
	PrefixCaseIndex = "caseidx/"
	PrefixCaseAge   = "caseage/"
	PrefixDedupExp  = "dedupexp/"

	RuntimeConfigKey = "config/runtime"
)

// sortableTimeLayout is fixed width so lexical order equals time order.
const sortableTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SortableTime formats t for use inside ordered index keys.
func SortableTime(t time.Time) string {
	return t.UTC().Format(sortableTimeLayout)
}

func CaseKey(eventID string) []byte  { return []byte(PrefixCase + eventID) }
func DedupKey(eventID string) []byte { return []byte(PrefixDedup + eventID) }
func AlertKey(clusterID string) []byte {
	return []byte(PrefixAlert + clusterID)
}

// BucketKey addresses the HourBucket for condition/cell/hourAnchor.
func BucketKey(condition, cell, hourAnchor string) []byte {
	return []byte(PrefixBucket + condition + Sep + cell + Sep + hourAnchor)
}

// RollupKey addresses the Rollup for condition/cell.
func RollupKey(condition, cell string) []byte {
	return []byte(PrefixRollup + condition + Sep + cell)
}

// ClusterID derives the alert id for a dispatch hour.
func ClusterID(condition, h3Center, hourKey string) string {
	return condition + Sep + h3Center + Sep + hourKey
}

// CaseIndexPrefix covers every indexed case of condition in cell.
func CaseIndexPrefix(condition, cell string) []byte {
	return []byte(PrefixCaseIndex + condition + Sep + cell + Sep)
}

// CaseIndexKey orders cases of condition/cell by event time. The entry
// value is the event id.
func CaseIndexKey(condition, cell string, eventTime time.Time, eventID string) []byte {
	return append(CaseIndexPrefix(condition, cell), SortableTime(eventTime)+Sep+eventID...)
}

// CaseAgeKey orders all cases by ingestion time, for retention.
func CaseAgeKey(ingestedAt time.Time, eventID string) []byte {
	return []byte(PrefixCaseAge + SortableTime(ingestedAt) + Sep + eventID)
}

// DedupExpiryKey orders dedup anchors by expiry so the sweeper can stop at
// the first live one.
func DedupExpiryKey(expireAt time.Time, eventID string) []byte {
	return []byte(PrefixDedupExp + SortableTime(expireAt) + Sep + eventID)
}
