// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/models"
	"github.com/tomtom215/hotspot/internal/pipeline"
	"github.com/tomtom215/hotspot/internal/validation"
)

// ingestError is the flat error body of the ingest endpoint.
type ingestError struct {
	OK      bool                    `json:"ok"`
	Status  string                  `json:"status"`
	Message string                  `json:"message"`
	Errors  []validation.FieldError `json:"errors,omitempty"`
}

func respondIngestError(w http.ResponseWriter, status int, message string, fields []validation.FieldError) {
	writeJSON(w, status, ingestError{OK: false, Status: "error", Message: message, Errors: fields})
}

// IngestCase handles POST /api/v1/cases.
func (h *Handler) IngestCase(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondIngestError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		respondIngestError(w, http.StatusBadRequest, "failed to read request body", nil)
		return
	}

	var req models.IngestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondIngestError(w, http.StatusBadRequest, "request body must be a JSON object", nil)
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidInput) {
			var verr *validation.RequestValidationError
			if errors.As(err, &verr) {
				respondIngestError(w, http.StatusBadRequest, verr.Error(), verr.Fields)
				return
			}
			respondIngestError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Str("event_id", sanitizeLogValue(req.EventID)).Msg("ingest failed")
		respondIngestError(w, http.StatusInternalServerError, internalErrorMessage, nil)
		return
	}

	status := http.StatusCreated
	if result.Duplicate() {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}
