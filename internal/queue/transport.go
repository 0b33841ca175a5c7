// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/hotspot/internal/config"
	"github.com/tomtom215/hotspot/internal/logging"
)

// Backends.
const (
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Transport is the publisher/subscriber pair for the configured backend.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	Server     *EmbeddedServer

	closers []func() error
}

// Open connects the configured backend. For nats with an embedded server,
// the server is started first and its URL replaces cfg.NATS.URL.
func Open(ctx context.Context, cfg *config.Config, logger watermill.LoggerAdapter) (*Transport, error) {
	switch cfg.Queue.Backend {
	case BackendMemory:
		ch := NewMemory(logger)
		return &Transport{
			Publisher:  ch,
			Subscriber: ch,
			closers:    []func() error{ch.Close},
		}, nil

	case BackendNATS:
		t := &Transport{}
		url := cfg.NATS.URL
		if cfg.NATS.EmbeddedServer {
			srv, err := NewEmbeddedServer(cfg.NATS)
			if err != nil {
				return nil, err
			}
			t.Server = srv
			url = srv.ClientURL()
			logging.Info().Str("url", url).Msg("embedded NATS server started")
		}

		spec := StreamSpec{
			Name:            StreamName,
			Subjects:        []string{cfg.Queue.Topic, cfg.Queue.PoisonTopic},
			MaxAge:          cfg.NATS.StreamMaxAge,
			DuplicateWindow: cfg.NATS.DuplicateWindow,
		}
		if err := EnsureStream(ctx, url, spec); err != nil {
			_ = t.Close(ctx)
			return nil, err
		}

		pub, err := NewNATSPublisher(url, logger)
		if err != nil {
			_ = t.Close(ctx)
			return nil, err
		}
		t.Publisher = pub
		t.closers = append(t.closers, pub.Close)

		sub, err := NewNATSSubscriber(url, StreamName, cfg.NATS, cfg.Queue, logger)
		if err != nil {
			_ = t.Close(ctx)
			return nil, err
		}
		t.Subscriber = sub
		t.closers = append(t.closers, sub.Close)
		return t, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Queue.Backend)
	}
}

// Close releases the publisher and subscriber, then stops any embedded
// server.
func (t *Transport) Close(ctx context.Context) error {
	var errs []error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	t.closers = nil
	if t.Server != nil {
		if err := t.Server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		t.Server = nil
	}
	return errors.Join(errs...)
}
