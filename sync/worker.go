package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pocketbase/pocketbase/core"

	"github.com/meridian/lifehub/pocketbase/ratelimit"
)

// UserDirectory checks that a job's user still exists.
type UserDirectory interface {
	Exists(userID string) (bool, error)
}

// RecordUserDirectory checks users against the auth collection.
type RecordUserDirectory struct {
	app    core.App
	schema Schema
}

// NewRecordUserDirectory creates a directory over the given app and schema.
func NewRecordUserDirectory(app core.App, schema Schema) *RecordUserDirectory {
	return &RecordUserDirectory{app: app, schema: schema}
}

// Exists reports whether the user record exists.
func (d *RecordUserDirectory) Exists(userID string) (bool, error) {
	if _, err := d.app.FindRecordById(d.schema.Users, userID); err != nil {
		return false, nil
	}
	return true, nil
}

// Worker claims queued sync jobs and drains their pending inbox items
// through the entity upserters. Multiple worker processes may poll the same
// queue; the conditional claim guarantees each job runs exactly once.
// Items within a claimed job are processed sequentially so per-item failure
// isolation holds and same-day wellness merges apply in arrival order.
type Worker struct {
	cfg          Config
	queue        JobQueue
	inbox        InboxStore
	users        UserDirectory
	perms        PermissionResolver
	integrations IntegrationStore
	audit        AuditLogger
	upserters    map[string]Upserter
	limiter      *ratelimit.Limiter
}

// NewWorker wires a worker over PocketBase-backed stores.
func NewWorker(app core.App, schema Schema, cfg Config) *Worker {
	mappings := NewRecordMappingStore(app, schema)
	return &Worker{
		cfg:          cfg,
		queue:        NewRecordJobQueue(app, schema),
		inbox:        NewRecordInboxStore(app, schema),
		users:        NewRecordUserDirectory(app, schema),
		perms:        NewRecordPermissionResolver(app, schema),
		integrations: NewRecordIntegrationStore(app, schema),
		audit:        NewRecordAuditLogger(app, schema),
		upserters:    NewUpserters(app, schema, mappings),
		limiter:      ratelimit.New(ratelimit.PollConfig()),
	}
}

// Run claims and processes jobs until MaxJobs jobs ran or the queue is
// empty. A nil claim means nothing to process right now, not an error.
func (w *Worker) Run(ctx context.Context) error {
	for i := 0; i < w.cfg.MaxJobs; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		job, err := w.queue.ClaimNext()
		if err != nil {
			return fmt.Errorf("claiming next job: %w", err)
		}
		if job == nil {
			slog.Debug("No queued jobs to claim")
			return nil
		}

		w.runJob(job)
	}
	return nil
}

// runJob executes one claimed job end to end. Job-level errors are caught
// here and always yield a terminal job status plus an integration state
// side effect.
func (w *Worker) runJob(job *Job) {
	slog.Info("Claimed sync job", "jobId", job.ID, "user", job.UserID,
		"provider", job.Provider, "reason", job.Reason)

	perms, err := w.perms.Resolve(job.UserID)
	if err != nil {
		w.failJob(job, fmt.Sprintf("resolving permissions: %v", err))
		return
	}

	if err := w.checkPreconditions(job, perms); err != nil {
		w.failJob(job, err.Error())
		return
	}

	if err := w.integrations.SetSyncing(job.UserID, job.Provider); err != nil {
		slog.Warn("Failed to mark integration syncing", "jobId", job.ID, "error", err)
	}

	stats := Stats{}
	remaining := w.cfg.MaxItemsPerJob
	for remaining > 0 {
		limit := w.cfg.InboxBatchSize
		if remaining < limit {
			limit = remaining
		}

		batch, err := w.inbox.FetchPending(job.UserID, job.Provider, limit)
		if err != nil {
			w.failJob(job, fmt.Sprintf("fetching inbox batch: %v", err))
			return
		}
		if len(batch) == 0 {
			break
		}

		for _, item := range batch {
			w.processItem(job, item, perms, &stats)
			remaining--
		}
	}

	if stats.Processed == 0 && stats.TotalFailed() == 0 {
		// Nothing was pending; the job still succeeds.
		stats.Skipped = 1
	}

	status := stats.JobStatus()
	summary := stats.Summary()
	errMsg := ""
	if stats.TotalFailed() > 0 {
		errMsg = fmt.Sprintf("%d item(s) failed", stats.TotalFailed())
	}

	if err := w.queue.Finalize(job.ID, status, summary, errMsg); err != nil {
		slog.Error("Failed to finalize job", "jobId", job.ID, "error", err)
	}

	if status == JobStatusFailed {
		if err := w.integrations.SetError(job.UserID, job.Provider, errMsg); err != nil {
			slog.Warn("Failed to update integration state", "jobId", job.ID, "error", err)
		}
	} else {
		if err := w.integrations.SetIdle(job.UserID, job.Provider); err != nil {
			slog.Warn("Failed to update integration state", "jobId", job.ID, "error", err)
		}
	}

	level := AuditInfo
	switch status {
	case JobStatusPartial:
		level = AuditWarning
	case JobStatusFailed:
		level = AuditError
	}
	_ = w.audit.Append(job.UserID, job.Provider, level,
		fmt.Sprintf("Sync %s: %s", status, summary),
		map[string]any{"jobId": job.ID, "stats": stats})

	slog.Info("Sync job finished", "jobId", job.ID, "status", status,
		"processed", stats.Processed, "created", stats.Created,
		"updated", stats.Updated, "failed", stats.Failed,
		"permissionDenied", stats.PermissionDenied)
}

// checkPreconditions validates the job-level gates in order: user exists,
// provider connected, background-sync preference, provider permission
// category. Any failure fails the whole job before touching the inbox.
func (w *Worker) checkPreconditions(job *Job, perms Permissions) error {
	exists, err := w.users.Exists(job.UserID)
	if err != nil {
		return fmt.Errorf("looking up user %s: %w", job.UserID, err)
	}
	if !exists {
		return fmt.Errorf("user %s not found", job.UserID)
	}

	state, found, err := w.integrations.Get(job.UserID, job.Provider)
	if err != nil {
		return err
	}
	if !found || !state.Connected {
		return fmt.Errorf("provider %s is not connected", job.Provider)
	}

	// Manual syncs always pass the background gate.
	if job.Reason != ReasonManual && !perms.BackgroundSync {
		return fmt.Errorf("background sync disabled by user preferences")
	}

	if !ProviderAllowed(job.Provider, perms) {
		return fmt.Errorf("permission disabled for provider %s", job.Provider)
	}
	return nil
}

// failJob finalizes a job as failed before any inbox row was touched and
// mirrors the failure onto the integration state.
func (w *Worker) failJob(job *Job, message string) {
	slog.Warn("Sync job failed preconditions", "jobId", job.ID, "error", message)

	if err := w.queue.Finalize(job.ID, JobStatusFailed, "", message); err != nil {
		slog.Error("Failed to finalize job", "jobId", job.ID, "error", err)
	}
	if err := w.integrations.SetError(job.UserID, job.Provider, message); err != nil {
		slog.Warn("Failed to update integration state", "jobId", job.ID, "error", err)
	}
	_ = w.audit.Append(job.UserID, job.Provider, AuditWarning,
		fmt.Sprintf("Sync failed: %s", message),
		map[string]any{"jobId": job.ID})
}

// processItem routes one inbox item through its entity gate and upserter.
// Every error is isolated here: the item is marked failed and the batch
// loop moves on.
func (w *Worker) processItem(job *Job, item *Item, perms Permissions, stats *Stats) {
	upserter, known := w.upserters[item.EntityType]
	if !known {
		w.itemFailed(job, item, stats, fmt.Sprintf("unsupported entity type %q", item.EntityType))
		return
	}

	if !EntityAllowed(item.EntityType, perms) {
		reason := fmt.Sprintf("permission disabled for %s data", item.EntityType)
		if err := w.inbox.MarkFailed(item.ID, reason); err != nil {
			slog.Error("Failed to mark inbox item", "itemId", item.ID, "error", err)
		}
		stats.PermissionDenied++
		_ = w.audit.Append(job.UserID, job.Provider, AuditWarning, reason,
			map[string]any{"jobId": job.ID, "itemId": item.ID, "entityType": item.EntityType})
		return
	}

	if err := w.inbox.MarkProcessing(item.ID, job.ID); err != nil {
		w.itemFailed(job, item, stats, fmt.Sprintf("marking item processing: %v", err))
		return
	}

	result, err := upserter.Upsert(item)
	if err != nil {
		w.itemFailed(job, item, stats, err.Error())
		return
	}

	if err := w.inbox.MarkProcessed(item.ID); err != nil {
		slog.Error("Failed to mark inbox item processed", "itemId", item.ID, "error", err)
	}

	stats.Processed++
	stats.Created += result.Created
	stats.Updated += result.Updated
	stats.CountEntity(item.EntityType)
}

// itemFailed marks a technical per-item failure and records it.
func (w *Worker) itemFailed(job *Job, item *Item, stats *Stats, message string) {
	slog.Error("Inbox item failed", "itemId", item.ID, "entityType", item.EntityType, "error", message)

	if err := w.inbox.MarkFailed(item.ID, message); err != nil {
		slog.Error("Failed to mark inbox item failed", "itemId", item.ID, "error", err)
	}
	stats.Failed++
	_ = w.audit.Append(job.UserID, job.Provider, AuditError,
		fmt.Sprintf("Import failed: %s", message),
		map[string]any{"jobId": job.ID, "itemId": item.ID, "entityType": item.EntityType})
}
