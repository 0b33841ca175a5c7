// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/hotspot/internal/config"
	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/models"
)

func testJob() models.ClusterJob {
	return models.ClusterJob{
		ClusterID:   "measles|88283082a3fffff|2026-09-24T14",
		Condition:   "measles",
		H3Center:    "88283082a3fffff",
		NeighborsH3: []string{"88283082a3fffff", "88283082a1fffff"},
		SinceUTC:    time.Date(2026, 9, 21, 14, 30, 0, 0, time.UTC),
	}
}

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestJobMessageID(t *testing.T) {
	t.Parallel()
	job := testJob()
	if JobMessageID(job) != JobMessageID(job) {
		t.Error("id is not deterministic")
	}
	rearmed := job
	rearmed.SinceUTC = job.SinceUTC.Add(10 * time.Minute)
	if JobMessageID(job) == JobMessageID(rearmed) {
		t.Error("re-armed job shares the id of the first arming")
	}
}

func TestPublisherEnqueue(t *testing.T) {
	t.Parallel()
	ch := NewMemory(logging.NewWatermillLogger())
	t.Cleanup(func() { _ = ch.Close() })

	msgs, err := ch.Subscribe(context.Background(), "jobs")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	pub := NewPublisher(ch, "jobs", NewCircuitBreaker("test", 3, time.Second))
	job := testJob()
	ctx := logging.ContextWithRequestID(context.Background(), "req-1")
	if err := pub.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	msg := receive(t, msgs)
	if msg.UUID != JobMessageID(job) {
		t.Errorf("uuid = %s, want %s", msg.UUID, JobMessageID(job))
	}
	if msg.Metadata.Get(natsgo.MsgIdHdr) != msg.UUID {
		t.Errorf("Nats-Msg-Id = %q", msg.Metadata.Get(natsgo.MsgIdHdr))
	}
	if msg.Metadata.Get(MetadataClusterID) != job.ClusterID {
		t.Errorf("cluster_id metadata = %q", msg.Metadata.Get(MetadataClusterID))
	}

	var got models.ClusterJob
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.ClusterID != job.ClusterID || !got.SinceUTC.Equal(job.SinceUTC) || len(got.NeighborsH3) != 2 {
		t.Errorf("payload = %+v", got)
	}
}

func TestPublisherClosed(t *testing.T) {
	t.Parallel()
	pub := NewPublisher(NewMemory(logging.NewWatermillLogger()), "jobs", nil)
	if err := pub.Close(); err != nil {
		t.Fatal(err)
	}
	if err := pub.Enqueue(context.Background(), testJob()); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("err = %v, want ErrPublisherClosed", err)
	}
	if pub.Healthy() {
		t.Error("closed publisher reports healthy")
	}
}

type failingPublisher struct {
	calls atomic.Int32
}

func (f *failingPublisher) Publish(string, ...*message.Message) error {
	f.calls.Add(1)
	return errors.New("no responders")
}

func (f *failingPublisher) Close() error { return nil }

func TestBreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()
	fp := &failingPublisher{}
	pub := NewPublisher(fp, "jobs", NewCircuitBreaker("test", 2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := pub.Enqueue(ctx, testJob()); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("attempt %d err = %v, want publish error", i, err)
		}
	}
	if err := pub.Enqueue(ctx, testJob()); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if fp.calls.Load() != 2 {
		t.Errorf("publish calls = %d, want 2", fp.calls.Load())
	}
	if pub.Healthy() {
		t.Error("publisher healthy with open breaker")
	}
}

func TestPermanent(t *testing.T) {
	t.Parallel()
	base := errors.New("bad payload")
	err := Permanent(base)
	if !IsPermanent(err) || !errors.Is(err, base) {
		t.Errorf("Permanent(%v) = %v", base, err)
	}
	if IsPermanent(base) || Permanent(nil) != nil {
		t.Error("plain errors must not be permanent")
	}
}

func startRouter(t *testing.T, h message.NoPublishHandlerFunc) (publish func(*message.Message), poisoned <-chan *message.Message) {
	t.Helper()
	logger := logging.NewWatermillLogger()
	ch := NewMemory(logger)

	cfg := config.Default().Queue
	cfg.Topic = "jobs"
	cfg.PoisonTopic = "poison"
	cfg.RetryCount = 3
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	cfg.CloseTimeout = time.Second

	r, err := NewRouter(cfg, ch, logger)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	r.AddConsumerHandler("test", cfg.Topic, ch, h)

	poison, err := ch.Subscribe(context.Background(), cfg.PoisonTopic)
	if err != nil {
		t.Fatalf("Subscribe poison: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	<-r.Running()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = ch.Close()
	})

	return func(msg *message.Message) {
		if err := ch.Publish(cfg.Topic, msg); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}, poison
}

func TestRouterSendsPermanentFailuresToPoison(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	publish, poison := startRouter(t, func(*message.Message) error {
		attempts.Add(1)
		return Permanent(errors.New("malformed"))
	})

	publish(message.NewMessage("m-1", []byte("{")))
	msg := receive(t, poison)
	if msg.UUID != "m-1" {
		t.Errorf("poisoned uuid = %s", msg.UUID)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestRouterRetriesTransientFailures(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	handled := make(chan struct{})
	publish, _ := startRouter(t, func(*message.Message) error {
		if attempts.Add(1) < 3 {
			return errors.New("store busy")
		}
		close(handled)
		return nil
	})

	publish(message.NewMessage("m-1", []byte("{}")))
	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never succeeded")
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestRouterRecoversPanics(t *testing.T) {
	t.Parallel()
	publish, poison := startRouter(t, func(*message.Message) error {
		panic("boom")
	})
	publish(message.NewMessage("m-1", nil))
	if msg := receive(t, poison); msg.UUID != "m-1" {
		t.Errorf("poisoned uuid = %s", msg.UUID)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Queue.Backend = "kafka"
	if _, err := Open(context.Background(), cfg, logging.NewWatermillLogger()); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("err = %v, want ErrUnknownBackend", err)
	}
}

func TestOpenMemory(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Queue.Backend = BackendMemory
	tr, err := Open(context.Background(), cfg, logging.NewWatermillLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if tr.Publisher == nil || tr.Subscriber == nil || tr.Server != nil {
		t.Errorf("transport = %+v", tr)
	}
	if err := tr.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}
