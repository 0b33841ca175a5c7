// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/hotspot/internal/config"
	"github.com/tomtom215/hotspot/internal/geo"
	"github.com/tomtom215/hotspot/internal/models"
	"github.com/tomtom215/hotspot/internal/store"
	"github.com/tomtom215/hotspot/internal/validation"
)

const (
	testLat = 37.775938728915946
	testLng = -122.41795063018799
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []models.ClusterJob
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job models.ClusterJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) Jobs() []models.ClusterJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.ClusterJob(nil), q.jobs...)
}

type testEnv struct {
	svc   *Service
	store *store.Store
	rt    *config.Runtime
	queue *fakeQueue
	now   time.Time
}

func newTestEnv(t *testing.T, mutate func(*config.PipelineConfig)) *testEnv {
	t.Helper()
	st, err := store.Open(store.Config{InMemory: true, NumCompactors: 2, MaxTxnRetries: 1000})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	pc := config.Default().Pipeline
	if mutate != nil {
		mutate(&pc)
	}
	rt := &config.Runtime{PipelineConfig: pc, Source: "test"}
	q := &fakeQueue{}
	now := time.Date(2026, 9, 24, 14, 30, 0, 0, time.UTC)
	svc := NewService(st, rt, q, WithClock(func() time.Time { return now }))
	return &testEnv{svc: svc, store: st, rt: rt, queue: q, now: now}
}

func request(id string, eventTime time.Time, lat, lng float64) models.IngestRequest {
	return models.IngestRequest{
		EventID:      id,
		EventTimeUTC: eventTime.UTC().Format(time.RFC3339),
		Lat:          &lat,
		Lng:          &lng,
		Condition:    "measles",
	}
}

func (e *testEnv) ingest(t *testing.T, id string, eventTime time.Time) models.IngestResult {
	t.Helper()
	res, err := e.svc.Ingest(context.Background(), request(id, eventTime, testLat, testLng))
	if err != nil {
		t.Fatalf("Ingest(%s): %v", id, err)
	}
	return res
}

func (e *testEnv) rollup(t *testing.T, cell string) models.Rollup {
	t.Helper()
	r, err := e.svc.Rollup(context.Background(), "measles", cell)
	if err != nil {
		t.Fatalf("Rollup: %v", err)
	}
	return *r
}

func (e *testEnv) bucket(t *testing.T, cell string, at time.Time) int64 {
	t.Helper()
	var b models.HourBucket
	found, err := e.store.Get(context.Background(), store.BucketKey("measles", cell, geo.HourAnchor(at)), &b)
	if err != nil {
		t.Fatalf("Get bucket: %v", err)
	}
	if !found {
		return 0
	}
	return b.Count
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	at := env.now.Add(-time.Hour)

	first := env.ingest(t, "evt-1", at)
	if first.Duplicate() || !first.OK || first.H3 == "" {
		t.Fatalf("first ingest = %+v", first)
	}

	second := env.ingest(t, "evt-1", at)
	if !second.Duplicate() || !second.OK || second.EventID != "evt-1" {
		t.Fatalf("second ingest = %+v, want duplicate_skipped", second)
	}
	if second.DensityT1 != nil || second.AlertTriggered != nil {
		t.Errorf("duplicate result carries pipeline fields: %+v", second)
	}

	if got := env.bucket(t, first.H3, at); got != 1 {
		t.Errorf("bucket count = %d, want 1", got)
	}
	if got := env.rollup(t, first.H3).SumT1; got != 1 {
		t.Errorf("sum_T1 = %d, want 1", got)
	}
}

func TestIngestStaysIdempotentAfterAnchorExpiry(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	ctx := context.Background()
	at := env.now.Add(-time.Hour)

	first := env.ingest(t, "evt-1", at)
	if first.Duplicate() {
		t.Fatalf("first ingest = %+v", first)
	}

	// The sweeper drops anchors long before the case itself ages out.
	if err := env.store.Update(ctx, "test", func(txn *store.Txn) error {
		return txn.Delete(store.DedupKey("evt-1"))
	}); err != nil {
		t.Fatal(err)
	}

	earlier := at.Add(-time.Hour)
	second := env.ingest(t, "evt-1", earlier)
	if !second.Duplicate() {
		t.Fatalf("re-ingest after anchor removal = %+v, want duplicate_skipped", second)
	}

	if got := env.bucket(t, first.H3, at); got != 1 {
		t.Errorf("bucket(%s) = %d, want 1", at, got)
	}
	if got := env.bucket(t, first.H3, earlier); got != 0 {
		t.Errorf("bucket(%s) = %d, want 0", earlier, got)
	}
	if got := env.rollup(t, first.H3).SumT1; got != 1 {
		t.Errorf("sum_T1 = %d, want 1", got)
	}

	rows := 0
	err := env.store.View(ctx, func(txn *store.Txn) error {
		return txn.Scan(store.CaseIndexPrefix("measles", first.H3), nil, func(_, _ []byte) (bool, error) {
			rows++
			return true, nil
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("case index rows = %d, want 1", rows)
	}
}

func TestIngestWritesCaseAndAnchor(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	at := time.Date(2026, 9, 24, 9, 15, 0, 0, time.UTC)
	res := env.ingest(t, "evt-1", at)
	ctx := context.Background()

	var c models.CaseEvent
	if found, err := env.store.Get(ctx, store.CaseKey("evt-1"), &c); err != nil || !found {
		t.Fatalf("case lookup = %v, %v", found, err)
	}
	if c.CellID != res.H3 || c.Geohash == "" || !c.EventTime.Equal(at) {
		t.Errorf("stored case = %+v", c)
	}

	var a models.DedupAnchor
	if found, err := env.store.Get(ctx, store.DedupKey("evt-1"), &a); err != nil || !found {
		t.Fatalf("anchor lookup = %v, %v", found, err)
	}
	if want := env.now.Add(96 * time.Hour); !a.ExpireAt.Equal(want) {
		t.Errorf("expire_at = %v, want %v", a.ExpireAt, want)
	}

	err := env.store.View(ctx, func(txn *store.Txn) error {
		for _, key := range [][]byte{
			store.CaseIndexKey("measles", res.H3, at, "evt-1"),
			store.CaseAgeKey(env.now, "evt-1"),
			store.DedupExpiryKey(env.now.Add(96*time.Hour), "evt-1"),
		} {
			ok, err := txn.Exists(key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("missing index key %s", key)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	at := env.now.Format(time.RFC3339)
	lat, lng := testLat, testLng

	tests := []struct {
		name string
		req  models.IngestRequest
	}{
		{"missing event id", models.IngestRequest{EventTimeUTC: at, Lat: &lat, Lng: &lng, Condition: "measles"}},
		{"missing lat", models.IngestRequest{EventID: "e", EventTimeUTC: at, Lng: &lng, Condition: "measles"}},
		{"bad time", models.IngestRequest{EventID: "e", EventTimeUTC: "yesterday", Lat: &lat, Lng: &lng, Condition: "measles"}},
		{"separator in condition", models.IngestRequest{EventID: "e", EventTimeUTC: at, Lat: &lat, Lng: &lng, Condition: "a|b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Ingest(context.Background(), tt.req)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
			var verr *validation.RequestValidationError
			if !errors.As(err, &verr) {
				t.Errorf("err = %v, want field details", err)
			}
		})
	}

	found, err := env.store.Get(context.Background(), store.DedupKey("e"), &models.DedupAnchor{})
	if err != nil || found {
		t.Errorf("invalid input reached the store: %v, %v", found, err)
	}
}

func TestSameHourEventsAccumulate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(p *config.PipelineConfig) { p.MinPtsH3 = 1000 })
	at := env.now.Add(-2 * time.Hour)

	const n = 7
	var cell string
	for i := 0; i < n; i++ {
		res := env.ingest(t, fmt.Sprintf("evt-%d", i), at.Add(time.Duration(i)*time.Minute))
		cell = res.H3
		if got := *res.DensityT1; got != int64(i+1) {
			t.Errorf("event %d density = %d, want %d", i, got, i+1)
		}
	}
	r := env.rollup(t, cell)
	if r.SumT1 != n || r.LastBucketAnchor != geo.HourAnchor(at) {
		t.Errorf("rollup = %+v, want sum %d at %s", r, n, geo.HourAnchor(at))
	}
}

func TestWindowAdvanceExpiresOldHours(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(p *config.PipelineConfig) { p.MinPtsH3 = 1000 })
	h0 := time.Date(2026, 9, 1, 0, 10, 0, 0, time.UTC)

	var cell string
	for i := 0; i < 3; i++ {
		cell = env.ingest(t, fmt.Sprintf("h0-%d", i), h0).H3
	}
	env.ingest(t, "h1", h0.Add(time.Hour))
	if got := env.rollup(t, cell).SumT1; got != 4 {
		t.Fatalf("sum after one-hour advance = %d, want 4", got)
	}

	// Window [h0+1, h0+72] drops the three events of h0.
	env.ingest(t, "h72", h0.Add(72*time.Hour))
	r := env.rollup(t, cell)
	if r.SumT1 != 2 {
		t.Errorf("sum after advance = %d, want 2", r.SumT1)
	}
	if want := geo.HourAnchor(h0.Add(72 * time.Hour)); r.LastBucketAnchor != want {
		t.Errorf("anchor = %s, want %s", r.LastBucketAnchor, want)
	}

	// Jumping further than a window leaves only the new event.
	env.ingest(t, "far", h0.Add(500*time.Hour))
	if got := env.rollup(t, cell).SumT1; got != 1 {
		t.Errorf("sum after long gap = %d, want 1", got)
	}
}

func TestRollupTracksSlidingWindow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(p *config.PipelineConfig) { p.MinPtsH3 = 1000 })
	h0 := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	window := env.rt.RollupWindowHours

	var cell string
	for i := 0; i < 2*window; i++ {
		cell = env.ingest(t, fmt.Sprintf("tick-%d", i), h0.Add(time.Duration(i)*time.Hour)).H3
		want := int64(min(i+1, window))
		if got := env.rollup(t, cell).SumT1; got != want {
			t.Fatalf("after hour %d sum = %d, want %d", i, got, want)
		}
	}
}

func TestLateArrivals(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(p *config.PipelineConfig) { p.MinPtsH3 = 1000 })
	anchor := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	cell := env.ingest(t, "anchor", anchor).H3

	// Oldest hour still inside the window.
	inside := anchor.Add(-71 * time.Hour)
	env.ingest(t, "late-in", inside)
	if got := env.rollup(t, cell).SumT1; got != 2 {
		t.Errorf("sum after late in-window = %d, want 2", got)
	}

	outside := anchor.Add(-72 * time.Hour)
	env.ingest(t, "late-out", outside)
	r := env.rollup(t, cell)
	if r.SumT1 != 2 {
		t.Errorf("sum after late out-of-window = %d, want 2", r.SumT1)
	}
	if r.LastBucketAnchor != geo.HourAnchor(anchor) {
		t.Errorf("late event moved anchor to %s", r.LastBucketAnchor)
	}
	if got := env.bucket(t, cell, outside); got != 1 {
		t.Errorf("out-of-window bucket = %d, want 1", got)
	}
}

func TestRollupSeedsFromExistingBuckets(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	ctx := context.Background()
	loc, err := geo.Locate(testLat, testLng, env.rt.H3Resolution)
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{-80 * time.Hour, -5 * time.Hour, 0} {
		ev := models.CaseEvent{
			EventID:    fmt.Sprintf("seed-%d", i),
			EventTime:  at.Add(offset),
			Condition:  "measles",
			CellID:     loc.Cell,
			IngestedAt: env.now,
		}
		if _, err := env.svc.IngestCase(ctx, env.rt, ev); err != nil {
			t.Fatalf("IngestCase: %v", err)
		}
	}

	branch, err := env.svc.UpdateRollup(ctx, env.rt, "measles", loc.Cell, geo.HourAnchor(at), env.now)
	if err != nil {
		t.Fatalf("UpdateRollup: %v", err)
	}
	if branch != BranchSeed {
		t.Errorf("branch = %s, want seed", branch)
	}
	if got := env.rollup(t, loc.Cell).SumT1; got != 2 {
		t.Errorf("seeded sum = %d, want 2", got)
	}
}

func TestDensitySumsRing(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	ctx := context.Background()
	loc, err := geo.Locate(testLat, testLng, env.rt.H3Resolution)
	if err != nil {
		t.Fatal(err)
	}

	put := func(cell string, sum int64) {
		t.Helper()
		if err := env.store.Put(ctx, store.RollupKey("measles", cell), models.Rollup{SumT1: sum}); err != nil {
			t.Fatal(err)
		}
	}
	put(loc.Cell, 4)
	put(loc.Ring[1], 3)
	put(loc.Ring[len(loc.Ring)-1], 2)
	if err := env.store.Put(ctx, store.RollupKey("mumps", loc.Cell), models.Rollup{SumT1: 50}); err != nil {
		t.Fatal(err)
	}

	got, err := env.svc.Density(ctx, "measles", loc.Ring)
	if err != nil {
		t.Fatalf("Density: %v", err)
	}
	if got != 9 {
		t.Errorf("density = %d, want 9", got)
	}
}

func TestThresholdTriggersSingleJob(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	at := env.now.Add(-3 * time.Hour)

	var last models.IngestResult
	for i := 0; i < 12; i++ {
		last = env.ingest(t, fmt.Sprintf("evt-%02d", i), at.Add(time.Duration(i)*time.Minute))
		if i < 11 && *last.AlertTriggered {
			t.Fatalf("event %d triggered with density %d", i, *last.DensityT1)
		}
	}
	if !*last.AlertTriggered || *last.DensityT1 != 12 {
		t.Fatalf("twelfth event = density %d triggered %v", *last.DensityT1, *last.AlertTriggered)
	}

	clusterID := store.ClusterID("measles", last.H3, geo.HourKey(env.now))
	alert, err := env.svc.Alert(context.Background(), clusterID)
	if err != nil {
		t.Fatalf("Alert: %v", err)
	}
	if alert.State != models.AlertPreAlert || alert.JobStatus != models.JobEnqueued {
		t.Errorf("alert = %s/%s, want pre_alert/enqueued", alert.State, alert.JobStatus)
	}
	if alert.DensityT1 != 12 || alert.MinPtsH3 != 12 || len(alert.Neighbors) != 7 {
		t.Errorf("alert = %+v", alert)
	}

	// A thirteenth event refreshes the alert without a second job.
	thirteenth := env.ingest(t, "evt-12", at)
	if !*thirteenth.AlertTriggered {
		t.Error("thirteenth event did not report a trigger")
	}
	jobs := env.queue.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
	if jobs[0].ClusterID != clusterID || !jobs[0].SinceUTC.Equal(env.now.Add(-72*time.Hour)) {
		t.Errorf("job = %+v", jobs[0])
	}
	if alert, _ = env.svc.Alert(context.Background(), clusterID); alert.DensityT1 != 13 {
		t.Errorf("refreshed density = %d, want 13", alert.DensityT1)
	}
}

func TestEnqueueFailureStillTriggers(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, func(p *config.PipelineConfig) { p.MinPtsH3 = 1 })
	env.queue.err = errors.New("broker down")

	res := env.ingest(t, "evt-1", env.now)
	if !*res.AlertTriggered {
		t.Fatal("alert_triggered = false, want true")
	}
	clusterID := store.ClusterID("measles", res.H3, geo.HourKey(env.now))
	alert, err := env.svc.Alert(context.Background(), clusterID)
	if err != nil {
		t.Fatalf("Alert: %v", err)
	}
	if alert.JobStatus != models.JobEnqueued {
		t.Errorf("job_status = %s, want enqueued", alert.JobStatus)
	}
}

func TestConcurrentDispatchEnqueuesOnce(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	loc, err := geo.Locate(testLat, testLng, env.rt.H3Resolution)
	if err != nil {
		t.Fatal(err)
	}

	const callers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		enqueued int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(density int64) {
			defer wg.Done()
			out, err := env.svc.Dispatch(context.Background(), env.rt, "measles", loc, density, env.now)
			if err != nil {
				t.Errorf("Dispatch: %v", err)
				return
			}
			if out.Enqueued {
				mu.Lock()
				enqueued++
				mu.Unlock()
			}
		}(int64(12 + i))
	}
	wg.Wait()

	if enqueued != 1 || len(env.queue.Jobs()) != 1 {
		t.Errorf("enqueued = %d, jobs = %d, want 1 and 1", enqueued, len(env.queue.Jobs()))
	}
}

func TestDispatchRearmsTerminalAlert(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	ctx := context.Background()
	loc, err := geo.Locate(testLat, testLng, env.rt.H3Resolution)
	if err != nil {
		t.Fatal(err)
	}

	first, err := env.svc.Dispatch(ctx, env.rt, "measles", loc, 12, env.now)
	if err != nil || !first.Enqueued {
		t.Fatalf("first dispatch = %+v, %v", first, err)
	}
	alert, _ := env.svc.Alert(ctx, first.ClusterID)
	firstSeen := alert.FirstSeenAt
	alert.JobStatus = models.JobCompleted
	alert.State = models.AlertRejected
	if err := env.store.Put(ctx, store.AlertKey(first.ClusterID), alert); err != nil {
		t.Fatal(err)
	}

	later := env.now.Add(10 * time.Minute)
	second, err := env.svc.Dispatch(ctx, env.rt, "measles", loc, 14, later)
	if err != nil || !second.Enqueued || second.ClusterID != first.ClusterID {
		t.Fatalf("second dispatch = %+v, %v", second, err)
	}
	alert, _ = env.svc.Alert(ctx, first.ClusterID)
	if alert.State != models.AlertPreAlert || alert.JobStatus != models.JobEnqueued {
		t.Errorf("alert = %s/%s, want pre_alert/enqueued", alert.State, alert.JobStatus)
	}
	if !alert.FirstSeenAt.Equal(firstSeen) || !alert.LastSeenAt.Equal(later) {
		t.Errorf("first_seen_at = %v last_seen_at = %v", alert.FirstSeenAt, alert.LastSeenAt)
	}
	if len(env.queue.Jobs()) != 2 {
		t.Errorf("jobs = %d, want 2", len(env.queue.Jobs()))
	}
}

func TestLookupsReportNotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)
	ctx := context.Background()
	if _, err := env.svc.Alert(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Alert err = %v", err)
	}
	if _, err := env.svc.Rollup(ctx, "measles", "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Rollup err = %v", err)
	}
}
