// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package services

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"
)

// MessageRouter is satisfied by *queue.Router.
type MessageRouter interface {
	Run(ctx context.Context) error
}

// QueueRouterService runs the job consumer router.
//
// A Watermill router cannot be run twice, so when it stops on its own the
// whole tree is terminated and the process exits for the orchestrator to
// restart.
type QueueRouterService struct {
	router MessageRouter
	name   string
}

// NewQueueRouterService wraps router.
func NewQueueRouterService(router MessageRouter) *QueueRouterService {
	return &QueueRouterService{router: router, name: "queue-router"}
}

// Serve implements suture.Service.
func (s *QueueRouterService) Serve(ctx context.Context) error {
	err := s.router.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return fmt.Errorf("queue router stopped unexpectedly: %w", suture.ErrTerminateSupervisorTree)
	}
	return fmt.Errorf("queue router failed: %w: %w", err, suture.ErrTerminateSupervisorTree)
}

func (s *QueueRouterService) String() string {
	return s.name
}
