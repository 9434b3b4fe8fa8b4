package sync

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

// requireAuth wraps a handler function to require authentication
func requireAuth(handler func(*core.RequestEvent) error) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Auth == nil {
			return apis.NewUnauthorizedError("Authentication required", nil)
		}
		return handler(e)
	}
}

// InitializeSyncService sets up the sync API endpoints
func InitializeSyncService(app *pocketbase.PocketBase, e *core.ServeEvent) error {
	schema := DefaultSchema()

	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("loading sync config: %w", err)
	}

	// Manual sync trigger for the authenticated user
	e.Router.POST("/api/custom/sync/run", requireAuth(func(e *core.RequestEvent) error {
		return handleManualSync(e, app, schema, cfg)
	}))

	// Integration and job status for the authenticated user
	e.Router.GET("/api/custom/sync/status", requireAuth(func(e *core.RequestEvent) error {
		return handleSyncStatus(e, app, schema)
	}))

	return nil
}

// handleManualSync enqueues a manual job for the authenticated user and
// kicks an asynchronous worker pass to drain it. The response carries the
// job id; clients poll the status endpoint for the outcome.
func handleManualSync(e *core.RequestEvent, app *pocketbase.PocketBase, schema Schema, cfg Config) error {
	provider := e.Request.URL.Query().Get("provider")
	if provider == "" {
		var body struct {
			Provider string `json:"provider"`
		}
		if err := e.BindBody(&body); err == nil {
			provider = body.Provider
		}
	}
	if provider == "" {
		return apis.NewBadRequestError("Missing provider parameter", nil)
	}

	userID := e.Auth.Id

	integrations := NewRecordIntegrationStore(app, schema)
	state, found, err := integrations.Get(userID, provider)
	if err != nil {
		return apis.NewInternalServerError("Failed to check integration", err)
	}
	if !found || !state.Connected {
		return apis.NewBadRequestError(fmt.Sprintf("Provider %s is not connected", provider), nil)
	}

	queue := NewRecordJobQueue(app, schema)
	jobID, err := queue.Enqueue(userID, provider, ReasonManual)
	if err != nil {
		return apis.NewInternalServerError("Failed to enqueue sync job", err)
	}

	slog.Info("Manual sync requested", "user", userID, "provider", provider, "jobId", jobID)

	go func() {
		worker := NewWorker(app, schema, cfg)
		if err := worker.Run(context.Background()); err != nil {
			slog.Error("Manual sync worker pass failed", "jobId", jobID, "error", err)
		}
	}()

	return e.JSON(http.StatusAccepted, map[string]any{
		"jobId":    jobID,
		"provider": provider,
		"status":   JobStatusQueued,
	})
}

// handleSyncStatus reports the authenticated user's integrations and their
// most recent sync jobs.
func handleSyncStatus(e *core.RequestEvent, app *pocketbase.PocketBase, schema Schema) error {
	userID := e.Auth.Id

	integrations, err := app.FindRecordsByFilter(
		schema.Integrations,
		"user = {:user}",
		"provider",
		0,
		0,
		dbx.Params{"user": userID},
	)
	if err != nil {
		return apis.NewInternalServerError("Failed to list integrations", err)
	}

	states := make([]map[string]any, 0, len(integrations))
	for _, record := range integrations {
		states = append(states, map[string]any{
			"provider":    record.GetString("provider"),
			"connected":   record.GetBool("connected"),
			"syncEnabled": record.GetBool("sync_enabled"),
			"status":      record.GetString("status"),
			"lastSynced":  record.GetString("last_synced"),
			"lastError":   record.GetString("last_error"),
		})
	}

	jobs, err := app.FindRecordsByFilter(
		schema.SyncJobs,
		"user = {:user}",
		"-created",
		10,
		0,
		dbx.Params{"user": userID},
	)
	if err != nil {
		return apis.NewInternalServerError("Failed to list sync jobs", err)
	}

	recent := make([]map[string]any, 0, len(jobs))
	for _, record := range jobs {
		recent = append(recent, map[string]any{
			"id":       record.Id,
			"provider": record.GetString("provider"),
			"reason":   record.GetString("reason"),
			"status":   record.GetString("status"),
			"summary":  record.GetString("summary"),
			"error":    record.GetString("error"),
			"created":  record.GetString("created"),
		})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"integrations": states,
		"recentJobs":   recent,
	})
}
