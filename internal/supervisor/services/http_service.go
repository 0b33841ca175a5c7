// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/hotspot/internal/logging"
)

// HTTPServer is the part of *http.Server the service drives.
//
// The service binds the listener itself and hands it to Serve, so a port
// conflict surfaces as a Serve error of the service before any request is
// accepted, and tests can bind port 0 and read the chosen port back from
// HTTPServerService.Addr.
//
// Satisfied by *http.Server from net/http:
//   - Serve(l net.Listener) error
//   - Shutdown(ctx context.Context) error
type HTTPServer interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the ingest API as a supervised service.
//
// Each Serve call:
//
//  1. Binds addr (a restart after a crash binds again)
//  2. Runs the server on that listener in a goroutine
//  3. On context cancellation, drains in-flight ingest requests for up
//     to shutdownTimeout before returning
//
// Example usage:
//
//	server := &http.Server{Handler: router}
//	svc := services.NewHTTPServerService(server, cfg.Server.Addr(), cfg.Server.ShutdownTimeout)
//	tree.Add(supervisor.LayerAPI, svc)
type HTTPServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
	name            string

	mu    sync.RWMutex
	bound net.Addr
}

// NewHTTPServerService creates the service for server listening on addr.
//
// shutdownTimeout bounds how long Shutdown waits for open requests; a
// non-positive value means 10 seconds. Ingest requests are short, so the
// configured server.shutdown_timeout (15s by default) is normally enough to
// let every accepted case finish its three transactions.
func NewHTTPServerService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Addr returns the bound listener address, or nil while not listening.
func (h *HTTPServerService) Addr() net.Addr {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bound
}

func (h *HTTPServerService) setAddr(a net.Addr) {
	h.mu.Lock()
	h.bound = a
	h.mu.Unlock()
}

// Serve implements suture.Service.
//
// Returns ctx.Err() after a graceful shutdown, a wrapped bind error when
// addr cannot be listened on, and a wrapped server error if the server
// stops by itself. http.ErrServerClosed is not treated as a failure.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", h.addr)
	if err != nil {
		return fmt.Errorf("http server listen on %s: %w", h.addr, err)
	}
	h.setAddr(ln.Addr())
	defer h.setAddr(nil)
	logging.Info().Str("addr", ln.Addr().String()).Msg("http server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// ctx is already cancelled, so shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		logging.Info().Msg("http server stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer; suture uses it in supervisor events.
func (h *HTTPServerService) String() string {
	return h.name
}
