// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/detector"
	"github.com/tomtom215/cartographus/internal/edition"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/scan"
	"github.com/tomtom215/cartographus/internal/validation"
)

// startScanRequest is the POST /scans request body.
type startScanRequest struct {
	Kind                    string   `json:"kind" validate:"required,oneof=artwork edition both"`
	Libraries               []string `json:"libraries"`
	CheckUnmatched          bool     `json:"check_unmatched"`
	CheckPosters            bool     `json:"check_posters"`
	CheckBackgrounds        bool     `json:"check_backgrounds"`
	CheckPlaceholders       bool     `json:"check_placeholders"`
	CheckLogos              bool     `json:"check_logos"`
	EditionEnabled          bool     `json:"edition_enabled"`
	EditionExcludedLanguages []string `json:"edition_excluded_languages"`
}

// @Summary Start a scan
// @Description Starts an artwork/edition scan over one or more libraries; fails with 409 if a scan is already running.
// @Tags Scans
// @Accept json
// @Produce json
// @Param body body startScanRequest true "Scan parameters"
// @Success 201 {object} APIResponse
// @Failure 400 {object} APIResponse
// @Failure 409 {object} APIResponse "a scan is already running"
// @Router /scans [post]
func (rt *Router) handleStartScan(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)

	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.BadRequest("malformed request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		resp.ValidationError(verr.ToAPIError().Details)
		return
	}

	priority, err := rt.Configs.ProviderPriority(r.Context())
	if err != nil {
		resp.DatabaseError(err)
		return
	}

	cfg := scan.StartConfig{
		Kind:      models.ScanKind(req.Kind),
		Libraries: req.Libraries,
		TriggeredBy: "manual",
		Rules: detector.Rules{
			CheckUnmatched:    req.CheckUnmatched,
			CheckPosters:      req.CheckPosters,
			CheckBackgrounds:  req.CheckBackgrounds,
			CheckPlaceholders: req.CheckPlaceholders,
			CheckLogos:        req.CheckLogos,
		},
		EditionEnabled:   req.EditionEnabled,
		EditionSettings:  edition.Settings{ExcludedLanguages: req.EditionExcludedLanguages},
		ProviderPriority: priority,
	}

	scanID, err := rt.Scans.Start(r.Context(), cfg)
	if err != nil {
		if errors.Is(err, scan.ErrAlreadyRunning) {
			resp.Conflict("a scan is already running")
			return
		}
		resp.InternalError(err)
		return
	}
	resp.Created(map[string]any{"scan_id": scanID})
}

func (rt *Router) handleActiveScan(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	resp.Success(rt.Scans.Snapshot())
}

func (rt *Router) handlePauseScan(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	if err := rt.Scans.Pause(r.Context()); err != nil {
		if errors.Is(err, scan.ErrNotRunning) {
			resp.Conflict("no running scan to pause")
			return
		}
		resp.InternalError(err)
		return
	}
	resp.Success(rt.Scans.Snapshot())
}

func (rt *Router) handleResumeScan(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	if err := rt.Scans.Resume(r.Context()); err != nil {
		if errors.Is(err, scan.ErrNotRunning) {
			resp.Conflict("no paused scan to resume")
			return
		}
		resp.InternalError(err)
		return
	}
	resp.Success(rt.Scans.Snapshot())
}

func (rt *Router) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	if err := rt.Scans.Cancel(r.Context()); err != nil {
		if errors.Is(err, scan.ErrNotRunning) {
			resp.Conflict("no running scan to cancel")
			return
		}
		resp.InternalError(err)
		return
	}
	resp.Success(rt.Scans.Snapshot())
}

func (rt *Router) handleListInterrupted(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	scans, err := rt.Scans.ListInterrupted(r.Context())
	if err != nil {
		resp.DatabaseError(err)
		return
	}
	resp.Success(scans)
}

func (rt *Router) handleDiscardInterrupted(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	scanID := chi.URLParam(r, "scanID")
	if err := rt.Scans.DiscardInterrupted(r.Context(), scanID); err != nil {
		resp.DatabaseError(err)
		return
	}
	resp.NoContent()
}

func (rt *Router) handleGetScan(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	scanID := chi.URLParam(r, "scanID")
	s, err := rt.Store.GetScan(r.Context(), scanID)
	if err != nil {
		resp.NotFound("scan not found")
		return
	}
	resp.Success(s)
}
