// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package queue

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/hotspot/internal/config"
)

// Router wraps the Watermill router with the job-consumer middleware.
// Middleware, outermost first:
//   - PoisonQueue: failed messages go to the poison topic and are acked
//   - Retry: exponential backoff, skipped for Permanent errors
//   - Recoverer: panics become errors
type Router struct {
	router  *message.Router
	logger  watermill.LoggerAdapter
	running atomic.Bool
}

// NewRouter builds a router. poison may be nil to disable the poison topic,
// in which case exhausted messages are nacked.
func NewRouter(cfg config.QueueConfig, poison message.Publisher, logger watermill.LoggerAdapter) (*Router, error) {
	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	if poison != nil && cfg.PoisonTopic != "" {
		pq, err := middleware.PoisonQueue(poison, cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		wmRouter.AddMiddleware(pq)
	}

	wmRouter.AddMiddleware(
		retryTransient(middleware.Retry{
			MaxRetries:      cfg.RetryCount,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
			Multiplier:      2.0,
			Logger:          logger,
		}),
		middleware.Recoverer,
	)

	return &Router{router: wmRouter, logger: logger}, nil
}

// retryTransient applies retry to every error except Permanent ones.
func retryTransient(retry middleware.Retry) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			var permanent error
			inner := retry.Middleware(func(m *message.Message) ([]*message.Message, error) {
				msgs, err := h(m)
				if IsPermanent(err) {
					permanent = err
					return nil, nil
				}
				return msgs, err
			})
			msgs, err := inner(msg)
			if permanent != nil {
				return nil, permanent
			}
			return msgs, err
		}
	}
}

// AddConsumerHandler registers a handler that publishes nothing.
func (r *Router) AddConsumerHandler(name, topic string, sub message.Subscriber, h message.NoPublishHandlerFunc) *message.Handler {
	return r.router.AddConsumerHandler(name, topic, sub, h)
}

// Run blocks until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)
	return r.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether Run is active.
func (r *Router) IsRunning() bool {
	return r.running.Load()
}

// Close waits up to CloseTimeout for in-flight handlers.
func (r *Router) Close() error {
	return r.router.Close()
}

// String implements fmt.Stringer for supervisor logs.
func (r *Router) String() string {
	return "queue-router"
}
