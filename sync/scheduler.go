package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/robfig/cron/v3"
)

// backgroundSchedule is how often background jobs are enqueued for every
// connected, sync-enabled integration.
const backgroundSchedule = "*/15 * * * *"

// Scheduler periodically enqueues background sync jobs and runs a worker
// pass to drain them. Several processes may run a scheduler at once; the
// conditional claim keeps each job on exactly one worker.
type Scheduler struct {
	app    core.App
	schema Schema
	cfg    Config
	queue  JobQueue
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler over the given app and worker bounds.
func NewScheduler(app core.App, schema Schema, cfg Config) *Scheduler {
	return &Scheduler{
		app:    app,
		schema: schema,
		cfg:    cfg,
		queue:  NewRecordJobQueue(app, schema),
		cron:   cron.New(),
	}
}

// Start registers the background schedule and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := s.cron.AddFunc(backgroundSchedule, func() {
		slog.Info("Starting scheduled background sync pass")
		s.runBackgroundPass()
	}); err != nil {
		return fmt.Errorf("adding background schedule: %w", err)
	}

	s.cron.Start()
	s.running = true
	slog.Info("Sync scheduler started", "schedule", backgroundSchedule)
	return nil
}

// Stop stops the cron loop and waits for a pass in flight.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	slog.Info("Sync scheduler stopped")
}

func (s *Scheduler) runBackgroundPass() {
	enqueued, err := s.EnqueueBackgroundJobs()
	if err != nil {
		slog.Error("Failed to enqueue background jobs", "error", err)
		return
	}
	if enqueued == 0 {
		slog.Debug("No integrations eligible for background sync")
		return
	}

	worker := NewWorker(s.app, s.schema, s.cfg)
	if err := worker.Run(context.Background()); err != nil {
		slog.Error("Background worker pass failed", "error", err)
	}
}

// EnqueueBackgroundJobs inserts a background job for every connected,
// sync-enabled integration that has no job already queued or running.
// Permissions are not checked here; the worker re-checks them per job, so
// a user who disabled background sync gets a failed job with a reason
// rather than silent inaction.
func (s *Scheduler) EnqueueBackgroundJobs() (int, error) {
	integrations, err := s.app.FindRecordsByFilter(
		s.schema.Integrations,
		"connected = true && sync_enabled = true",
		"",
		0,
		0,
	)
	if err != nil {
		return 0, fmt.Errorf("listing integrations: %w", err)
	}

	enqueued := 0
	for _, record := range integrations {
		userID := record.GetString("user")
		provider := record.GetString("provider")

		open, err := s.app.FindRecordsByFilter(
			s.schema.SyncJobs,
			"user = {:user} && provider = {:provider} && (status = {:queued} || status = {:running})",
			"",
			1,
			0,
			dbx.Params{
				"user":     userID,
				"provider": provider,
				"queued":   JobStatusQueued,
				"running":  JobStatusRunning,
			},
		)
		if err != nil {
			slog.Warn("Failed to check open jobs", "user", userID, "provider", provider, "error", err)
			continue
		}
		if len(open) > 0 {
			continue
		}

		if _, err := s.queue.Enqueue(userID, provider, ReasonBackground); err != nil {
			slog.Error("Failed to enqueue background job", "user", userID, "provider", provider, "error", err)
			continue
		}
		enqueued++
	}

	slog.Info("Enqueued background sync jobs", "count", enqueued, "integrations", len(integrations))
	return enqueued, nil
}
