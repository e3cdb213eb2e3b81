// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/autoapply"
	"github.com/tomtom215/cartographus/internal/validation"
)

// startAutoApplyRequest is the POST /autoapply request body.
type startAutoApplyRequest struct {
	ScanID        string `json:"scan_id"`
	SkipUnmatched bool   `json:"skip_unmatched"`
	MinScore      int    `json:"min_score" validate:"min=0,max=100"`
}

func (rt *Router) handleStartAutoApply(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)

	var req startAutoApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.BadRequest("malformed request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		resp.ValidationError(verr.ToAPIError().Details)
		return
	}

	opts := autoapply.Options{ScanID: req.ScanID, SkipUnmatched: req.SkipUnmatched, MinScore: req.MinScore}
	if err := rt.AutoApply.Start(r.Context(), opts); err != nil {
		if errors.Is(err, autoapply.ErrAlreadyRunning) {
			resp.Conflict("an auto-apply pass is already running")
			return
		}
		resp.InternalError(err)
		return
	}
	resp.Created(rt.AutoApply.Snapshot())
}

func (rt *Router) handleAutoApplyStatus(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	resp.Success(rt.AutoApply.Snapshot())
}

func (rt *Router) handleCancelAutoApply(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	rt.AutoApply.Cancel()
	resp.Success(rt.AutoApply.Snapshot())
}
