// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hotspot/internal/config"
)

// runtimeView is the JSON form of a runtime snapshot.
type runtimeView struct {
	H3Resolution        int       `json:"h3_res"`
	GeohashPrecision    uint      `json:"geohash_precision"`
	MinPtsH3            int       `json:"min_pts_h3"`
	MinPtsDBSCAN        int       `json:"min_pts_dbscan"`
	EpsilonKm           float64   `json:"epsilon_km"`
	RollupWindowHours   int       `json:"rollup_window_hours"`
	IdempotencyTTLHours int       `json:"idempotency_ttl_hours"`
	DBSCANQueryLimit    int       `json:"dbscan_query_limit"`
	Source              string    `json:"source"`
	LoadedAt            time.Time `json:"loaded_at"`
}

func newRuntimeView(rt *config.Runtime) runtimeView {
	return runtimeView{
		H3Resolution:        rt.H3Resolution,
		GeohashPrecision:    rt.GeohashPrecision,
		MinPtsH3:            rt.MinPtsH3,
		MinPtsDBSCAN:        rt.MinPtsDBSCAN,
		EpsilonKm:           rt.EpsilonKm,
		RollupWindowHours:   rt.RollupWindowHours,
		IdempotencyTTLHours: rt.IdempotencyTTLHours,
		DBSCANQueryLimit:    rt.DBSCANQueryLimit,
		Source:              rt.Source,
		LoadedAt:            rt.LoadedAt,
	}
}

// GetRuntimeConfig handles GET /api/v1/config/runtime.
func (h *Handler) GetRuntimeConfig(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	respondData(w, r, http.StatusOK, start, newRuntimeView(h.runtime.Get(r.Context())))
}

// PutRuntimeConfig handles PUT /api/v1/config/runtime. Omitted fields keep
// their static values.
func (h *Handler) PutRuntimeConfig(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "request body too large", nil)
			return
		}
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body", nil)
		return
	}

	var doc config.RuntimeDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "request body must be a JSON object", nil)
		return
	}

	rt, err := h.runtime.Update(r.Context(), doc)
	if err != nil {
		if errors.Is(err, config.ErrInvalidRuntime) {
			respondErrorDetails(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "invalid runtime config",
				map[string]interface{}{"reason": err.Error()})
			return
		}
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, internalErrorMessage, err)
		return
	}
	respondData(w, r, http.StatusOK, start, newRuntimeView(rt))
}
