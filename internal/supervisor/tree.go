// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer names one of the three child supervisors under the root.
//
// A crash in one layer restarts services of that layer only. The layers are
// ordered by dependency: the API accepts cases into the store and hands
// dispatch jobs to messaging, so a flapping broker connection never takes
// the ingest endpoint down with it.
type Layer int

const (
	// LayerData holds store maintenance: Badger value-log GC and the
	// retention sweeper.
	LayerData Layer = iota

	// LayerMessaging holds the Watermill job router and the alert
	// WebSocket hub.
	LayerMessaging

	// LayerAPI holds the HTTP ingest server.
	LayerAPI
)

var layerNames = [...]string{
	LayerData:      "data-layer",
	LayerMessaging: "messaging-layer",
	LayerAPI:       "api-layer",
}

func (l Layer) String() string {
	if l < 0 || int(l) >= len(layerNames) {
		return fmt.Sprintf("layer(%d)", int(l))
	}
	return layerNames[l]
}

// ErrUnknownLayer is returned by Add for a layer outside LayerData..LayerAPI.
var ErrUnknownLayer = errors.New("unknown supervisor layer")

// TreeConfig holds the restart policy shared by every supervisor in the tree.
type TreeConfig struct {
	// FailureThreshold is the failure count that puts a supervisor into
	// backoff. Default: 5
	FailureThreshold float64

	// FailureDecay is the half-life, in seconds, of the failure count.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is how long a supervisor waits once the threshold is
	// crossed before restarting anything. Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is how long each service gets to return from Serve
	// after its context is cancelled. It should be at least the HTTP
	// server's own drain timeout. Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns the defaults applied to zero TreeConfig fields.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

func (c TreeConfig) spec() suture.Spec {
	return suture.Spec{
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	}
}

// SupervisorTree is the process-wide supervision hierarchy:
//
//	hotspot (root)
//	├── data-layer       store GC, retention sweeper
//	├── messaging-layer  job router, websocket hub
//	└── api-layer        HTTP ingest server
//
// Supervisor events from every level are logged through one slog logger
// via sutureslog.
//
// Example usage:
//
//	tree, err := supervisor.NewSupervisorTree(logger, supervisor.TreeConfig{})
//	if err != nil {
//		return err
//	}
//	if _, err := tree.Add(supervisor.LayerAPI, httpService); err != nil {
//		return err
//	}
//	err = tree.Serve(ctx) // nil after ctx is cancelled
type SupervisorTree struct {
	root   *suture.Supervisor
	layers [len(layerNames)]*suture.Supervisor
	logger *slog.Logger
	config TreeConfig

	mu     sync.Mutex
	counts [len(layerNames)]int
}

// NewSupervisorTree builds the root and its three layers. Zero config fields
// take the values of DefaultTreeConfig. The logger is required.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		return nil, errors.New("supervisor logger is required")
	}
	config = config.withDefaults()

	// MustHook has a pointer receiver.
	handler := &sutureslog.Handler{Logger: logger}
	rootSpec := config.spec()
	rootSpec.EventHook = handler.MustHook()

	t := &SupervisorTree{
		root:   suture.New("hotspot", rootSpec),
		logger: logger,
		config: config,
	}
	// Children inherit the EventHook when added to the root.
	for i := range t.layers {
		t.layers[i] = suture.New(Layer(i).String(), config.spec())
		t.root.Add(t.layers[i])
	}
	return t, nil
}

// Root returns the root supervisor.
func (t *SupervisorTree) Root() *suture.Supervisor {
	return t.root
}

// Add registers svc under layer. Services added after Serve starts are
// started immediately.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) (suture.ServiceToken, error) {
	if layer < 0 || int(layer) >= len(t.layers) {
		return suture.ServiceToken{}, fmt.Errorf("%w: %d", ErrUnknownLayer, int(layer))
	}
	if svc == nil {
		return suture.ServiceToken{}, fmt.Errorf("nil service for %s", layer)
	}
	t.mu.Lock()
	t.counts[layer]++
	t.mu.Unlock()
	return t.layers[layer].Add(svc), nil
}

// Services returns how many services were added to each layer.
func (t *SupervisorTree) Services() map[Layer]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[Layer]int, len(t.counts))
	for i, n := range t.counts {
		out[Layer(i)] = n
	}
	return out
}

// Serve runs the tree until ctx is cancelled or the root terminates.
// Cancellation is a normal stop and returns nil.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	t.logStart()
	return stopErr(t.root.Serve(ctx))
}

// ServeBackground runs the tree in a goroutine. The channel receives the
// same result Serve would return, then closes.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	t.logStart()
	in := t.root.ServeBackground(ctx)
	out := make(chan error, 1)
	go func() {
		defer close(out)
		out <- stopErr(<-in)
	}()
	return out
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
// Call it after Serve returns.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

func (t *SupervisorTree) logStart() {
	counts := t.Services()
	t.logger.Info("starting supervisor tree",
		"data", counts[LayerData],
		"messaging", counts[LayerMessaging],
		"api", counts[LayerAPI])
}

func stopErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
