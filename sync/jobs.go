package sync

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// Job is a snapshot of a claimed sync job. Once claimed it is owned
// exclusively by the worker that claimed it.
type Job struct {
	ID       string
	UserID   string
	Provider string
	Reason   string
	Created  time.Time
}

// JobQueue is the FIFO-ish queue of sync jobs.
type JobQueue interface {
	// Enqueue inserts a queued job and returns its id.
	Enqueue(userID, provider, reason string) (string, error)
	// ClaimNext atomically claims the oldest queued job. It returns
	// (nil, nil) when the queue is empty or the claim raced with another
	// worker; callers treat nil as "nothing to claim right now".
	ClaimNext() (*Job, error)
	// Finalize writes the terminal status, summary and error text.
	Finalize(jobID, status, summary, errMsg string) error
}

// RecordJobQueue stores jobs in a PocketBase collection. Rows are never
// deleted; terminal jobs stay behind as the audit trail.
type RecordJobQueue struct {
	app    core.App
	schema Schema
}

// NewRecordJobQueue creates a queue over the given app and schema.
func NewRecordJobQueue(app core.App, schema Schema) *RecordJobQueue {
	return &RecordJobQueue{app: app, schema: schema}
}

// Enqueue inserts a new queued job.
func (q *RecordJobQueue) Enqueue(userID, provider, reason string) (string, error) {
	col, err := q.app.FindCollectionByNameOrId(q.schema.SyncJobs)
	if err != nil {
		return "", fmt.Errorf("finding collection %s: %w", q.schema.SyncJobs, err)
	}

	record := core.NewRecord(col)
	record.Set("user", userID)
	record.Set("provider", provider)
	record.Set("reason", reason)
	record.Set("status", JobStatusQueued)

	if err := q.app.Save(record); err != nil {
		return "", fmt.Errorf("enqueuing sync job: %w", err)
	}

	slog.Info("Enqueued sync job", "jobId", record.Id, "user", userID, "provider", provider, "reason", reason)
	return record.Id, nil
}

// ClaimNext selects the oldest queued job across all users and flips it to
// running with a single conditional UPDATE. The WHERE guard on status is the
// compare-and-swap: if another worker won the race, zero rows are affected
// and the claim yields nil.
func (q *RecordJobQueue) ClaimNext() (*Job, error) {
	records, err := q.app.FindRecordsByFilter(
		q.schema.SyncJobs,
		"status = {:status}",
		"created",
		1,
		0,
		dbx.Params{"status": JobStatusQueued},
	)
	if err != nil {
		return nil, fmt.Errorf("selecting queued job: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	candidate := records[0]
	now := types.NowDateTime()

	res, err := q.app.DB().NewQuery(fmt.Sprintf(
		"UPDATE {{%s}} SET status = {:running}, started_at = {:now}, updated = {:now} "+
			"WHERE id = {:id} AND status = {:queued}",
		q.schema.SyncJobs,
	)).Bind(dbx.Params{
		"running": JobStatusRunning,
		"queued":  JobStatusQueued,
		"now":     now.String(),
		"id":      candidate.Id,
	}).Execute()
	if err != nil {
		return nil, fmt.Errorf("claiming job %s: %w", candidate.Id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claiming job %s: %w", candidate.Id, err)
	}
	if affected == 0 {
		// Lost the race: another worker claimed it between select and update.
		slog.Debug("Job claim lost race", "jobId", candidate.Id)
		return nil, nil
	}

	return &Job{
		ID:       candidate.Id,
		UserID:   candidate.GetString("user"),
		Provider: candidate.GetString("provider"),
		Reason:   candidate.GetString("reason"),
		Created:  candidate.GetDateTime("created").Time(),
	}, nil
}

// Finalize writes the terminal fields. The orchestration loop calls it
// exactly once per claimed job.
func (q *RecordJobQueue) Finalize(jobID, status, summary, errMsg string) error {
	record, err := q.app.FindRecordById(q.schema.SyncJobs, jobID)
	if err != nil {
		return fmt.Errorf("finding job %s: %w", jobID, err)
	}

	record.Set("status", status)
	record.Set("summary", summary)
	record.Set("error", errMsg)
	record.Set("finished_at", types.NowDateTime())

	if err := q.app.Save(record); err != nil {
		return fmt.Errorf("finalizing job %s: %w", jobID, err)
	}
	return nil
}
