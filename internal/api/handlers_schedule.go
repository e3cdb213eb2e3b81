// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/scheduler"
	"github.com/tomtom215/cartographus/internal/validation"
)

func (rt *Router) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	schedules, err := rt.Store.ListSchedules(r.Context())
	if err != nil {
		resp.DatabaseError(err)
		return
	}
	resp.Success(schedules)
}

func (rt *Router) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	id := chi.URLParam(r, "scheduleID")
	sched, err := rt.Store.GetSchedule(r.Context(), id)
	if err != nil {
		resp.NotFound("schedule not found")
		return
	}
	resp.Success(sched)
}

// createScheduleRequest is the POST /schedules request body.
type createScheduleRequest struct {
	Name           string `json:"name" validate:"required"`
	Enabled        bool   `json:"enabled"`
	CronExpression string `json:"cron_expression" validate:"required"`
	ScanKind       string `json:"scan_kind" validate:"required,oneof=artwork edition both"`
	AutoCommit     bool   `json:"auto_commit"`
	SkipUnmatched  bool   `json:"skip_unmatched"`
	MinScore       int    `json:"min_score" validate:"min=0,max=100"`
}

func (rt *Router) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)

	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.BadRequest("malformed request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		resp.ValidationError(verr.ToAPIError().Details)
		return
	}
	if _, err := scheduler.ParseCron(req.CronExpression); err != nil {
		resp.BadRequest("invalid cron expression: " + err.Error())
		return
	}

	optsJSON, err := json.Marshal(models.AutoCommitOptions{SkipUnmatched: req.SkipUnmatched, MinScore: req.MinScore})
	if err != nil {
		resp.InternalError(err)
		return
	}
	optsStr := string(optsJSON)

	sched := models.Schedule{
		Name:              req.Name,
		Enabled:           req.Enabled,
		CronExpression:    req.CronExpression,
		ScanKind:          models.ScanKind(req.ScanKind),
		AutoCommit:        req.AutoCommit,
		AutoCommitOptions: &optsStr,
	}

	created, err := rt.Store.CreateSchedule(r.Context(), sched)
	if err != nil {
		resp.DatabaseError(err)
		return
	}
	if created.Enabled {
		rt.Scheduler.AddJob(created)
	}
	resp.Created(created)
}

// setScheduleEnabledRequest is the PATCH /schedules/{id}/enabled request body.
type setScheduleEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (rt *Router) handleSetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	id := chi.URLParam(r, "scheduleID")

	var req setScheduleEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.BadRequest("malformed request body")
		return
	}

	if err := rt.Store.SetScheduleEnabled(r.Context(), id, req.Enabled); err != nil {
		resp.DatabaseError(err)
		return
	}

	sched, err := rt.Store.GetSchedule(r.Context(), id)
	if err != nil {
		resp.NotFound("schedule not found")
		return
	}
	if req.Enabled {
		rt.Scheduler.AddJob(sched)
	} else {
		rt.Scheduler.RemoveJob(id)
	}
	resp.Success(sched)
}

func (rt *Router) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	id := chi.URLParam(r, "scheduleID")
	rt.Scheduler.RemoveJob(id)
	if err := rt.Store.DeleteSchedule(r.Context(), id); err != nil {
		resp.DatabaseError(err)
		return
	}
	resp.NoContent()
}

func (rt *Router) handleRunSchedule(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	id := chi.URLParam(r, "scheduleID")
	sched, err := rt.Store.GetSchedule(r.Context(), id)
	if err != nil {
		resp.NotFound("schedule not found")
		return
	}
	rt.Scheduler.RunNow(r.Context(), sched)
	resp.Success(map[string]any{"schedule_id": id, "triggered": true})
}
