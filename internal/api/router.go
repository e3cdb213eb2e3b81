// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tomtom215/cartographus/internal/autoapply"
	"github.com/tomtom215/cartographus/internal/config"
	apimiddleware "github.com/tomtom215/cartographus/internal/middleware"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/scan"
	"github.com/tomtom215/cartographus/internal/scheduler"
)

// Store is the persistence the control API reads directly: issues,
// suggestions, schedules, and single-scan lookups. Scan/auto-apply
// lifecycle mutation routes entirely through the engines, which hold
// their own Store (internal/database.DB satisfies both).
type Store interface {
	GetScan(ctx context.Context, scanID string) (models.Scan, error)
	ListIssues(ctx context.Context, scanID string) ([]models.Issue, error)
	GetIssue(ctx context.Context, issueID string) (models.Issue, error)
	SetIssueStatus(ctx context.Context, issueID string, status models.IssueStatus) error
	ListSuggestions(ctx context.Context, issueID string) ([]models.Suggestion, error)
	SelectSuggestion(ctx context.Context, suggestionID string) error

	ListSchedules(ctx context.Context) ([]models.Schedule, error)
	GetSchedule(ctx context.Context, id string) (models.Schedule, error)
	CreateSchedule(ctx context.Context, s models.Schedule) (models.Schedule, error)
	SetScheduleEnabled(ctx context.Context, id string, enabled bool) error
	DeleteSchedule(ctx context.Context, id string) error
}

// ProviderConfig is the slice of internal/configstore.Store the control API
// needs to default a scan's provider ranking when a request doesn't supply
// one explicitly.
type ProviderConfig interface {
	ProviderPriority(ctx context.Context) ([]string, error)
}

// Router wires the Scan Engine, Auto-Apply Engine, Scheduler, and
// persistence store into a chi.Mux implementing the control API.
type Router struct {
	Scans     *scan.Engine
	AutoApply *autoapply.Engine
	Scheduler *scheduler.Scheduler
	Store     Store
	Configs   ProviderConfig
	Security  config.SecurityConfig
}

// SetupChi builds the full route table with the standard middleware stack:
// request-ID + logging context, panic recovery, CORS, security headers, and
// per-group rate limiting.
func (rt *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	chiMW := NewChiMiddleware(&ChiMiddlewareConfig{CORSAllowedOrigins: rt.Security.CORSOrigins})

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMW.CORS())
	r.Use(APISecurityHeaders())
	r.Use(chiMiddleware(apimiddleware.PrometheusMetrics))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chiMW.RateLimitCustom(RateLimitHealth))
			r.Get("/health", rt.handleHealth)
		})

		r.Group(func(r chi.Router) {
			r.Use(chiMW.RateLimitCustom(RateLimitWrite))
			r.Use(chiMiddleware(apimiddleware.Compression))

			r.Route("/scans", func(r chi.Router) {
				r.Post("/", rt.handleStartScan)
				r.Get("/active", rt.handleActiveScan)
				r.Post("/active/pause", rt.handlePauseScan)
				r.Post("/active/resume", rt.handleResumeScan)
				r.Post("/active/cancel", rt.handleCancelScan)
				r.Get("/interrupted", rt.handleListInterrupted)
				r.Delete("/interrupted/{scanID}", rt.handleDiscardInterrupted)
				r.Get("/{scanID}", rt.handleGetScan)
			})

			r.Route("/issues", func(r chi.Router) {
				r.Get("/", rt.handleListIssues)
				r.Post("/{issueID}/accept", rt.handleAcceptIssue)
				r.Post("/{issueID}/reject", rt.handleRejectIssue)
				r.Get("/{issueID}/suggestions", rt.handleListSuggestions)
				r.Post("/{issueID}/refresh", rt.handleRefreshSuggestions)
			})
			r.Post("/suggestions/{suggestionID}/select", rt.handleSelectSuggestion)

			r.Route("/autoapply", func(r chi.Router) {
				r.Post("/", rt.handleStartAutoApply)
				r.Get("/active", rt.handleAutoApplyStatus)
				r.Post("/cancel", rt.handleCancelAutoApply)
			})

			r.Route("/schedules", func(r chi.Router) {
				r.Get("/", rt.handleListSchedules)
				r.Post("/", rt.handleCreateSchedule)
				r.Get("/{scheduleID}", rt.handleGetSchedule)
				r.Patch("/{scheduleID}/enabled", rt.handleSetScheduleEnabled)
				r.Delete("/{scheduleID}", rt.handleDeleteSchedule)
				r.Post("/{scheduleID}/run", rt.handleRunSchedule)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(chiMW.RateLimitCustom(RateLimitStream))
			r.Get("/events", rt.handleEvents)
			r.Get("/ws", rt.handleWebSocket)
		})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	return r
}

// chiMiddleware adapts a func(http.HandlerFunc) http.HandlerFunc middleware
// (the style internal/middleware is written in) to chi's
// func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(func(w http.ResponseWriter, r *http.Request) { next.ServeHTTP(w, r) })
	}
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := NewResponseWriter(w, r)
	resp.Success(map[string]any{"status": "ok", "time": time.Now().UTC()})
}
