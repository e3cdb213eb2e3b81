// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

func TestResponseWriterSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	NewResponseWriter(w, r).Success(map[string]any{"ok": true})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Success || resp.Error != nil {
		t.Errorf("Success() response = %+v, want success=true, error=nil", resp)
	}
	if resp.Meta == nil || resp.Meta.Timestamp.IsZero() {
		t.Errorf("Success() response meta = %+v, want a stamped timestamp", resp.Meta)
	}
}

func TestResponseWriterCreatedStatus(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	NewResponseWriter(w, r).Created(map[string]any{"scan_id": "abc"})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestResponseWriterNoContentHasEmptyBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/", nil)

	NewResponseWriter(w, r).NoContent()

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestResponseWriterErrorEnvelopes(t *testing.T) {
	cases := []struct {
		name       string
		call       func(rw *ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{"BadRequest", func(rw *ResponseWriter) { rw.BadRequest("bad") }, http.StatusBadRequest, ErrCodeBadRequest},
		{"NotFound", func(rw *ResponseWriter) { rw.NotFound("missing") }, http.StatusNotFound, ErrCodeNotFound},
		{"Conflict", func(rw *ResponseWriter) { rw.Conflict("busy") }, http.StatusConflict, ErrCodeConflict},
		{"TooManyRequests", func(rw *ResponseWriter) { rw.TooManyRequests("slow down") }, http.StatusTooManyRequests, ErrCodeTooManyReqs},
		{"ServiceUnavailable", func(rw *ResponseWriter) { rw.ServiceUnavailable("down") }, http.StatusServiceUnavailable, ErrCodeUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.call(NewResponseWriter(w, r))

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var resp APIResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if resp.Success {
				t.Error("Success = true, want false on error response")
			}
			if resp.Error == nil || resp.Error.Code != tc.wantCode {
				t.Errorf("Error = %+v, want code %q", resp.Error, tc.wantCode)
			}
		})
	}
}

func TestResponseWriterValidationErrorCarriesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	NewResponseWriter(w, r).ValidationError(map[string]string{"kind": "required"})

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != ErrCodeValidation || resp.Error.Details == nil {
		t.Errorf("ValidationError() response = %+v, want VALIDATION_ERROR with details", resp.Error)
	}
}

func TestResponseWriterStampsRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	NewResponseWriter(w, r).NotFound("missing")

	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	// No request ID middleware ran ahead of this handler in the test, so the
	// stamped field is present but empty; this only confirms Meta/Error
	// request-ID plumbing doesn't panic on a bare context.
	if resp.Meta == nil {
		t.Fatal("Meta is nil, want a populated APIMeta")
	}
}
