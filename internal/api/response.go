// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package api is the control-plane HTTP API: scan lifecycle, issue review,
// schedule management, and live progress streaming over SSE and WebSocket.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/logging"
)

// Error codes returned in APIError.Code. Stable across releases; clients may
// switch on these.
const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeTooManyReqs    = "TOO_MANY_REQUESTS"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeUnavailable    = "SERVICE_UNAVAILABLE"
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeExternal       = "EXTERNAL_SERVICE_ERROR"
)

// APIResponse is the envelope every endpoint responds with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIMeta carries response metadata: correlation, timing, and pagination.
type APIMeta struct {
	RequestID  string          `json:"request_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	DurationMs int64           `json:"duration_ms,omitempty"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

// PaginationMeta describes a page of a larger result set.
type PaginationMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ResponseWriter writes APIResponse envelopes, stamping the request ID
// carried on the request context by RequestIDWithLogging.
type ResponseWriter struct {
	w         http.ResponseWriter
	requestID string
}

// NewResponseWriter builds a ResponseWriter bound to r's request ID.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, requestID: logging.RequestIDFromContext(r.Context())}
}

func (rw *ResponseWriter) writeJSON(status int, resp APIResponse) {
	if resp.Meta == nil {
		resp.Meta = &APIMeta{}
	}
	resp.Meta.RequestID = rw.requestID
	resp.Meta.Timestamp = time.Now().UTC()
	if resp.Error != nil {
		resp.Error.RequestID = rw.requestID
	}

	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("api: failed to encode response")
	}
}

// Success writes a 200 with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.writeJSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// SuccessWithPagination writes a 200 with data and pagination metadata.
func (rw *ResponseWriter) SuccessWithPagination(data interface{}, page PaginationMeta) {
	rw.writeJSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: &APIMeta{Pagination: &page}})
}

// Created writes a 201 with data.
func (rw *ResponseWriter) Created(data interface{}) {
	rw.writeJSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// NoContent writes a 204 with no body.
func (rw *ResponseWriter) NoContent() {
	rw.w.WriteHeader(http.StatusNoContent)
}

// Error writes an error envelope at the given status.
func (rw *ResponseWriter) Error(status int, code, message string) {
	rw.writeJSON(status, APIResponse{Success: false, Error: &APIError{Code: code, Message: message}})
}

// ErrorWithDetails writes an error envelope with structured details.
func (rw *ResponseWriter) ErrorWithDetails(status int, code, message string, details interface{}) {
	rw.writeJSON(status, APIResponse{Success: false, Error: &APIError{Code: code, Message: message, Details: details}})
}

// BadRequest writes a 400.
func (rw *ResponseWriter) BadRequest(message string) { rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message) }

// ValidationError writes a 400 with field-level details.
func (rw *ResponseWriter) ValidationError(details interface{}) {
	rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidation, "request validation failed", details)
}

// NotFound writes a 404.
func (rw *ResponseWriter) NotFound(message string) { rw.Error(http.StatusNotFound, ErrCodeNotFound, message) }

// Conflict writes a 409.
func (rw *ResponseWriter) Conflict(message string) { rw.Error(http.StatusConflict, ErrCodeConflict, message) }

// TooManyRequests writes a 429.
func (rw *ResponseWriter) TooManyRequests(message string) {
	rw.Error(http.StatusTooManyRequests, ErrCodeTooManyReqs, message)
}

// InternalError writes a 500 and logs the underlying cause.
func (rw *ResponseWriter) InternalError(err error) {
	logging.Error().Err(err).Str("request_id", rw.requestID).Msg("api: internal error")
	rw.Error(http.StatusInternalServerError, ErrCodeInternal, "an internal error occurred")
}

// DatabaseError writes a 500 tagged as a database failure and logs it.
func (rw *ResponseWriter) DatabaseError(err error) {
	logging.Error().Err(err).Str("request_id", rw.requestID).Msg("api: database error")
	rw.Error(http.StatusInternalServerError, ErrCodeDatabase, "a database error occurred")
}

// ServiceUnavailable writes a 503.
func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.Error(http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}
