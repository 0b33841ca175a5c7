// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/hotspot/internal/config"
	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/models"
	ws "github.com/tomtom215/hotspot/internal/websocket"
)

// Pipeline is the ingestion service. Satisfied by *pipeline.Service.
type Pipeline interface {
	Ingest(ctx context.Context, req models.IngestRequest) (models.IngestResult, error)
	Alert(ctx context.Context, clusterID string) (*models.ClusterAlert, error)
	Rollup(ctx context.Context, condition, cell string) (*models.Rollup, error)
}

// RuntimeConfig reads and updates runtime parameters. Satisfied by
// *config.RuntimeCache.
type RuntimeConfig interface {
	Get(ctx context.Context) *config.Runtime
	Update(ctx context.Context, doc config.RuntimeDocument) (*config.Runtime, error)
}

// Pinger reports store availability. Satisfied by *store.Store.
type Pinger interface {
	Ping() error
}

// QueueHealth reports whether jobs can be published. Satisfied by
// *queue.Publisher.
type QueueHealth interface {
	Healthy() bool
}

// Handler holds the dependencies of every route.
type Handler struct {
	pipeline     Pipeline
	runtime      RuntimeConfig
	store        Pinger
	queue        QueueHealth
	hub          *ws.Hub
	maxBodyBytes int64
	origins      []string
	startTime    time.Time
}

// HandlerDeps groups the collaborators passed to NewHandler. Hub and Queue
// may be nil.
type HandlerDeps struct {
	Pipeline Pipeline
	Runtime  RuntimeConfig
	Store    Pinger
	Queue    QueueHealth
	Hub      *ws.Hub
}

// NewHandler creates a Handler.
func NewHandler(cfg config.ServerConfig, deps HandlerDeps) *Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 64 << 10
	}
	return &Handler{
		pipeline:     deps.Pipeline,
		runtime:      deps.Runtime,
		store:        deps.Store,
		queue:        deps.Queue,
		hub:          deps.Hub,
		maxBodyBytes: maxBody,
		origins:      cfg.CORSOrigins,
		startTime:    time.Now(),
	}
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin allows requests without Origin (non-browser clients)
// and browser requests from a configured origin.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket connection rejected from unauthorized origin")
	return false
}
