// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cellarsync/internal/logging"
)

// APIResponse wraps every JSON body the server returns.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError is the error half of APIResponse.
type APIError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	Details       any    `json:"details,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// APIMeta carries tracing and timing for a response.
type APIMeta struct {
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	DurationMs    int64     `json:"duration_ms"`
}

// Error codes
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeExternalServiceFail = "EXTERNAL_SERVICE_FAILED"
	ErrCodeNoTruth             = "NO_TRUTH_INVENTORY"
)

// ResponseWriter writes APIResponse envelopes.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a response writer for one request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, startTime: time.Now()}
}

// Success writes 200 with data.
func (rw *ResponseWriter) Success(data any) {
	rw.writeJSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: rw.meta()})
}

// Created writes 201 with data.
func (rw *ResponseWriter) Created(data any) {
	rw.writeJSON(http.StatusCreated, APIResponse{Success: true, Data: data, Meta: rw.meta()})
}

// NoContent writes 204.
func (rw *ResponseWriter) NoContent() {
	rw.w.WriteHeader(http.StatusNoContent)
}

// Error writes an error envelope.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.ErrorWithDetails(statusCode, code, message, nil)
}

// ErrorWithDetails writes an error envelope with details.
func (rw *ResponseWriter) ErrorWithDetails(statusCode int, code, message string, details any) {
	meta := rw.meta()
	rw.writeJSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:          code,
			Message:       message,
			Details:       details,
			CorrelationID: meta.CorrelationID,
		},
		Meta: meta,
	})
}

func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

func (rw *ResponseWriter) Conflict(message string) {
	rw.Error(http.StatusConflict, ErrCodeConflict, message)
}

func (rw *ResponseWriter) InternalError(message string) {
	rw.Error(http.StatusInternalServerError, ErrCodeInternalError, message)
}

func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// ValidationError writes 400 with per-field details.
func (rw *ResponseWriter) ValidationError(message string, details any) {
	rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, message, details)
}

// ExternalServiceError writes 502 carrying the upstream message.
func (rw *ResponseWriter) ExternalServiceError(message string, statusCode int) {
	rw.ErrorWithDetails(http.StatusBadGateway, ErrCodeExternalServiceFail, message,
		map[string]int{"upstream_status": statusCode})
}

func (rw *ResponseWriter) meta() *APIMeta {
	return &APIMeta{
		CorrelationID: logging.CorrelationIDFromContext(rw.r.Context()),
		Timestamp:     time.Now(),
		DurationMs:    time.Since(rw.startTime).Milliseconds(),
	}
}

func (rw *ResponseWriter) writeJSON(statusCode int, data any) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
