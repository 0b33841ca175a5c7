// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/store"
	ws "github.com/tomtom215/hotspot/internal/websocket"
)

// GetAlert handles GET /api/v1/alerts/{id}. The id is the cluster id
// condition|h3Center|hourKey, URL-escaped.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || id == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "alert id is required", nil)
		return
	}

	alert, err := h.pipeline.Alert(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "alert not found", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, internalErrorMessage, err)
		return
	}
	respondData(w, r, http.StatusOK, start, alert)
}

// GetRollup handles GET /api/v1/rollups/{condition}/{cell}.
func (h *Handler) GetRollup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	condition, err := url.PathUnescape(chi.URLParam(r, "condition"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid condition", nil)
		return
	}
	cell := chi.URLParam(r, "cell")

	rollup, err := h.pipeline.Rollup(r.Context(), condition, cell)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "rollup not found", nil)
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, internalErrorMessage, err)
		return
	}
	respondData(w, r, http.StatusOK, start, rollup)
}

// AlertStream handles GET /api/v1/alerts/stream by upgrading to a websocket
// registered with the verdict hub.
func (h *Handler) AlertStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "alert stream unavailable", nil)
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.NewClient(h.hub, conn).Start()
}
