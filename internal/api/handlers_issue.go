// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cartographus/internal/models"
)

// handleListIssues lists every issue for a scan, or every pending issue
// across all scans when scan_id is omitted.
func (rt *Router) handleListIssues(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	scanID := r.URL.Query().Get("scan_id")
	issues, err := rt.Store.ListIssues(r.Context(), scanID)
	if err != nil {
		resp.DatabaseError(err)
		return
	}
	resp.Success(issues)
}

func (rt *Router) handleAcceptIssue(w http.ResponseWriter, r *http.Request) {
	rt.setIssueStatus(w, r, models.IssueStatusAccepted)
}

func (rt *Router) handleRejectIssue(w http.ResponseWriter, r *http.Request) {
	rt.setIssueStatus(w, r, models.IssueStatusRejected)
}

func (rt *Router) setIssueStatus(w http.ResponseWriter, r *http.Request, status models.IssueStatus) {
	resp := NewResponseWriter(w, r)
	issueID := chi.URLParam(r, "issueID")

	if _, err := rt.Store.GetIssue(r.Context(), issueID); err != nil {
		resp.NotFound("issue not found")
		return
	}
	if err := rt.Store.SetIssueStatus(r.Context(), issueID, status); err != nil {
		resp.DatabaseError(err)
		return
	}
	resp.Success(map[string]any{"issue_id": issueID, "status": status})
}

func (rt *Router) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	issueID := chi.URLParam(r, "issueID")
	suggestions, err := rt.Store.ListSuggestions(r.Context(), issueID)
	if err != nil {
		resp.DatabaseError(err)
		return
	}
	resp.Success(suggestions)
}

// handleSelectSuggestion marks one suggestion as the operator's chosen
// artwork for its issue; applying it to the media server still runs through
// the Auto-Apply Engine's next pass.
func (rt *Router) handleSelectSuggestion(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	suggestionID := chi.URLParam(r, "suggestionID")
	if err := rt.Store.SelectSuggestion(r.Context(), suggestionID); err != nil {
		resp.DatabaseError(err)
		return
	}
	resp.Success(map[string]any{"suggestion_id": suggestionID, "selected": true})
}

// handleRefreshSuggestions re-runs the provider aggregator for one issue
// and atomically replaces its suggestions.
//
// @Summary Refresh an issue's suggestions
// @Description Re-runs the provider aggregator for one issue and atomically replaces its suggestions.
// @Tags Issues
// @Produce json
// @Param issueID path string true "Issue ID"
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse "issue not found"
// @Router /issues/{issueID}/refresh [post]
func (rt *Router) handleRefreshSuggestions(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	issueID := chi.URLParam(r, "issueID")

	issue, err := rt.Store.GetIssue(r.Context(), issueID)
	if err != nil {
		resp.NotFound("issue not found")
		return
	}

	priority, err := rt.Configs.ProviderPriority(r.Context())
	if err != nil {
		resp.DatabaseError(err)
		return
	}
	if err := rt.Scans.RefreshSuggestions(r.Context(), issue, priority); err != nil {
		resp.InternalError(err)
		return
	}

	suggestions, err := rt.Store.ListSuggestions(r.Context(), issueID)
	if err != nil {
		resp.DatabaseError(err)
		return
	}
	resp.Success(suggestions)
}
