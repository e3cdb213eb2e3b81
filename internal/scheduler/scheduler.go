// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/autoapply"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/models"
	"github.com/tomtom215/cartographus/internal/scan"
)

const monitorPollInterval = 5 * time.Second

// Store is the persistence the scheduler needs.
type Store interface {
	ListEnabledSchedules(ctx context.Context) ([]models.Schedule, error)
	UpdateScheduleLastRun(ctx context.Context, scheduleID string, lastRun time.Time) error
	GetScanStatus(ctx context.Context, scanID string) (models.ScanStatus, error)
}

// job is one registered schedule's live timer loop.
type job struct {
	cancel context.CancelFunc
}

// Scheduler wraps a cron-triggered job runner: one job per enabled
// Schedule, keyed by schedule id, triggering scans (and optionally
// auto-commit) at each computed fire time.
type Scheduler struct {
	store     Store
	scans     *scan.Engine
	autoApply *autoapply.Engine

	mu   sync.Mutex
	jobs map[string]*job
}

// New constructs a Scheduler. Call LoadEnabled at startup to register every
// enabled schedule's job.
func New(store Store, scans *scan.Engine, autoApply *autoapply.Engine) *Scheduler {
	return &Scheduler{store: store, scans: scans, autoApply: autoApply, jobs: make(map[string]*job)}
}

// LoadEnabled registers one job per currently enabled Schedule.
func (s *Scheduler) LoadEnabled(ctx context.Context) error {
	schedules, err := s.store.ListEnabledSchedules(ctx)
	if err != nil {
		return err
	}
	for _, sched := range schedules {
		s.AddJob(sched)
	}
	return nil
}

// AddJob registers sched's job, replacing any existing job for the same
// schedule id.
func (s *Scheduler) AddJob(sched models.Schedule) {
	s.RemoveJob(sched.ID)

	cronExpr, err := ParseCron(sched.CronExpression)
	if err != nil {
		logging.Error().Err(err).Str("schedule_id", sched.ID).Str("cron", sched.CronExpression).Msg("scheduler: invalid cron expression, job not registered")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.jobs[sched.ID] = &job{cancel: cancel}
	s.mu.Unlock()

	go s.runJob(ctx, sched, cronExpr)
}

// RemoveJob cancels and removes sched's job, if one is registered. Used
// when a schedule is disabled or deleted.
func (s *Scheduler) RemoveJob(scheduleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[scheduleID]; ok {
		j.cancel()
		delete(s.jobs, scheduleID)
	}
}

// runJob sleeps until each computed fire time and triggers the schedule,
// until ctx is cancelled (job removed/replaced).
func (s *Scheduler) runJob(ctx context.Context, sched models.Schedule, cronExpr *ScanCron) {
	for {
		next := cronExpr.NextRun(time.Now(), time.UTC)
		if next.IsZero() {
			logging.Error().Str("schedule_id", sched.ID).Msg("scheduler: could not compute next run time, job stopping")
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.trigger(context.Background(), sched)
		}
	}
}

// RunNow fires sched immediately, exactly as its cron job would at its next
// scheduled time. Used by the "run now" control-API endpoint.
func (s *Scheduler) RunNow(ctx context.Context, sched models.Schedule) {
	s.trigger(ctx, sched)
}

// trigger executes one schedule firing: update last_run_at, start a scan,
// and if auto_commit is set, spawn a monitor that invokes Auto-Apply once
// the scan reaches a terminal state.
func (s *Scheduler) trigger(ctx context.Context, sched models.Schedule) {
	now := time.Now()
	if err := s.store.UpdateScheduleLastRun(ctx, sched.ID, now); err != nil {
		logging.Warn().Err(err).Str("schedule_id", sched.ID).Msg("scheduler: update last_run_at failed")
	}

	cfg := scan.StartConfig{Kind: sched.ScanKind, TriggeredBy: "schedule:" + sched.ID}
	if sched.ConfigSnapshot != nil {
		if err := json.Unmarshal([]byte(*sched.ConfigSnapshot), &cfg); err != nil {
			logging.Warn().Err(err).Str("schedule_id", sched.ID).Msg("scheduler: decode config_snapshot failed, using defaults")
		}
		cfg.Kind, cfg.TriggeredBy = sched.ScanKind, "schedule:"+sched.ID
	}

	scanID, err := s.scans.Start(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Str("schedule_id", sched.ID).Msg("scheduler: triggered scan failed to start")
		return
	}
	logging.Info().Str("schedule_id", sched.ID).Str("scan_id", scanID).Msg("scheduler: triggered scan")

	if sched.AutoCommit {
		go s.monitorForAutoCommit(context.Background(), sched, scanID)
	}
}

func (s *Scheduler) monitorForAutoCommit(ctx context.Context, sched models.Schedule, scanID string) {
	ticker := time.NewTicker(monitorPollInterval)
	defer ticker.Stop()

	for {
		status, err := s.store.GetScanStatus(ctx, scanID)
		if err != nil {
			logging.Warn().Err(err).Str("scan_id", scanID).Msg("scheduler: poll scan status failed")
			return
		}
		if status.IsTerminal() {
			s.handleTerminalScan(ctx, sched, scanID, status)
			return
		}
		<-ticker.C
	}
}

func (s *Scheduler) handleTerminalScan(ctx context.Context, sched models.Schedule, scanID string, status models.ScanStatus) {
	if status == models.ScanStatusFailed || status == models.ScanStatusCancelled {
		logging.Info().Str("scan_id", scanID).Str("status", string(status)).Msg("scheduler: skipping auto-commit, scan did not complete")
		return
	}

	opts := autoapply.Options{ScanID: scanID}
	if sched.AutoCommitOptions != nil {
		var parsed models.AutoCommitOptions
		if err := json.Unmarshal([]byte(*sched.AutoCommitOptions), &parsed); err != nil {
			logging.Warn().Err(err).Str("schedule_id", sched.ID).Msg("scheduler: decode auto_commit_options failed, using defaults")
		} else {
			opts.SkipUnmatched, opts.MinScore = parsed.SkipUnmatched, parsed.MinScore
		}
	}
	if err := s.autoApply.Start(ctx, opts); err != nil {
		logging.Warn().Err(err).Str("scan_id", scanID).Msg("scheduler: auto-commit start failed")
	}
}
