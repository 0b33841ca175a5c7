// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordIngest(t *testing.T) {
	before := testutil.ToFloat64(IngestTotal.WithLabelValues("accepted"))
	RecordIngest("accepted", 5*time.Millisecond)
	RecordIngest("accepted", 7*time.Millisecond)
	if got := testutil.ToFloat64(IngestTotal.WithLabelValues("accepted")) - before; got != 2 {
		t.Errorf("accepted delta = %v, want 2", got)
	}
}

func TestRecordRetention(t *testing.T) {
	deletedBefore := testutil.ToFloat64(RetentionDeletedTotal.WithLabelValues("cases"))
	errorsBefore := testutil.ToFloat64(RetentionErrorsTotal.WithLabelValues("cases"))

	RecordRetention("cases", 40, nil)
	RecordRetention("cases", 2, errors.New("disk full"))

	if got := testutil.ToFloat64(RetentionDeletedTotal.WithLabelValues("cases")) - deletedBefore; got != 42 {
		t.Errorf("deleted delta = %v, want 42", got)
	}
	if got := testutil.ToFloat64(RetentionErrorsTotal.WithLabelValues("cases")) - errorsBefore; got != 1 {
		t.Errorf("errors delta = %v, want 1", got)
	}
}

func TestRecordAPIRequestLabels(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/cases", "201"))
	RecordAPIRequest("POST", "/api/v1/cases", 201, time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/cases", "201")) - before; got != 1 {
		t.Errorf("request delta = %v, want 1", got)
	}
}

func TestCircuitGauge(t *testing.T) {
	SetCircuitState(2)
	if got := testutil.ToFloat64(CircuitBreakerState); got != 2 {
		t.Errorf("circuit gauge = %v, want 2", got)
	}
	SetCircuitState(0)
}
