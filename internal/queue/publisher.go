// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/metrics"
	"github.com/tomtom215/hotspot/internal/models"
)

// jobNamespace scopes job message ids.
var jobNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/tomtom215/hotspot/jobs"))

// Metadata keys set on job messages.
const (
	MetadataClusterID = "cluster_id"
	MetadataKind      = "kind"
)

// Publisher submits clustering jobs with circuit breaker protection.
// It does not own the underlying message.Publisher.
type Publisher struct {
	publisher message.Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker[any]
	mu        sync.RWMutex
	closed    bool
}

// NewPublisher wraps pub. A nil breaker disables circuit breaking.
func NewPublisher(pub message.Publisher, topic string, breaker *gobreaker.CircuitBreaker[any]) *Publisher {
	return &Publisher{publisher: pub, topic: topic, breaker: breaker}
}

// JobMessageID derives the message id for one arming of a cluster alert.
// Re-publishing the same job yields the same id, so JetStream drops the
// copy inside its duplicate window.
func JobMessageID(job models.ClusterJob) string {
	name := job.ClusterID + "|" + job.SinceUTC.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(jobNamespace, []byte(name)).String()
}

// Enqueue publishes job to the jobs topic.
func (p *Publisher) Enqueue(ctx context.Context, job models.ClusterJob) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPublisherClosed
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ClusterID, err)
	}

	msg := message.NewMessage(JobMessageID(job), payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	msg.Metadata.Set(MetadataClusterID, job.ClusterID)
	msg.Metadata.Set(MetadataKind, "cluster_job")
	if id := logging.RequestIDFromContext(ctx); id != "" {
		middleware.SetCorrelationID(id, msg)
	}
	msg.SetContext(ctx)

	if p.breaker == nil {
		err = p.publisher.Publish(p.topic, msg)
	} else {
		_, err = p.breaker.Execute(func() (any, error) {
			return nil, p.publisher.Publish(p.topic, msg)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
	}
	if err != nil {
		return fmt.Errorf("publish job %s: %w", job.ClusterID, err)
	}

	metrics.RecordQueuePublish()
	return nil
}

// Healthy reports whether jobs can currently be published.
func (p *Publisher) Healthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	return p.breaker == nil || p.breaker.State() != gobreaker.StateOpen
}

// Close stops accepting jobs.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
