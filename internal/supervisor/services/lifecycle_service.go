// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package services

import (
	"context"
	"fmt"
)

// StartStopper is a component with its own background loop, such as
// *retention.Sweeper.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// LifecycleService starts a StartStopper and stops it on shutdown.
type LifecycleService struct {
	component StartStopper
	name      string
}

// NewLifecycleService wraps component under name.
func NewLifecycleService(name string, component StartStopper) *LifecycleService {
	return &LifecycleService{component: component, name: name}
}

// NewRetentionSweeperService names the adapter for the retention sweeper.
func NewRetentionSweeperService(sweeper StartStopper) *LifecycleService {
	return NewLifecycleService("retention-sweeper", sweeper)
}

// Serve implements suture.Service.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	s.component.Stop()
	return ctx.Err()
}

func (s *LifecycleService) String() string {
	return s.name
}
