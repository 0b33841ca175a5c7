// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package api

import (
	"net/http"
	"time"
)

// HealthStatus is returned by the health endpoints.
type HealthStatus struct {
	Status         string  `json:"status"`
	StoreAvailable bool    `json:"store_available"`
	QueueHealthy   bool    `json:"queue_healthy"`
	WebSocketConns int     `json:"websocket_clients"`
	Uptime         float64 `json:"uptime_seconds"`
}

// HealthLive handles GET /api/v1/health/live. It only reports that the
// process is serving HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, time.Now(), HealthStatus{
		Status: "alive",
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles GET /api/v1/health/ready: 200 when the store is open
// and the queue publisher can accept jobs, 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := HealthStatus{
		StoreAvailable: h.store != nil && h.store.Ping() == nil,
		QueueHealthy:   h.queue == nil || h.queue.Healthy(),
		Uptime:         time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		status.WebSocketConns = h.hub.ClientCount()
	}

	code := http.StatusOK
	status.Status = "ready"
	if !status.StoreAvailable || !status.QueueHealthy {
		code = http.StatusServiceUnavailable
		status.Status = "not_ready"
	}
	respondData(w, r, code, start, status)
}
