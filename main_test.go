package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"

	"github.com/meridian/lifehub/pocketbase/sync"
)

func newStagingTestApp(t *testing.T) *tests.TestApp {
	t.Helper()

	app, err := tests.NewTestApp()
	if err != nil {
		t.Fatalf("Failed to create test app: %v", err)
	}
	t.Cleanup(app.Cleanup)

	schema := sync.DefaultSchema()
	createCollection(t, app, schema.Integrations,
		&core.TextField{Name: "user"},
		&core.TextField{Name: "provider"},
		&core.BoolField{Name: "connected"},
		&core.BoolField{Name: "sync_enabled"},
		&core.TextField{Name: "status"},
		&core.TextField{Name: "last_error"},
		&core.DateField{Name: "last_synced"},
	)
	createCollection(t, app, schema.Inbox,
		&core.TextField{Name: "user"},
		&core.TextField{Name: "provider"},
		&core.TextField{Name: "entity_type"},
		&core.TextField{Name: "external_id"},
		&core.TextField{Name: "checksum"},
		&core.JSONField{Name: "payload"},
		&core.TextField{Name: "status"},
		&core.TextField{Name: "error"},
		&core.TextField{Name: "sync_job"},
		&core.DateField{Name: "processed_at"},
	)
	createCollection(t, app, schema.SyncJobs,
		&core.TextField{Name: "user"},
		&core.TextField{Name: "provider"},
		&core.TextField{Name: "reason"},
		&core.TextField{Name: "status"},
		&core.TextField{Name: "summary"},
		&core.TextField{Name: "error"},
		&core.DateField{Name: "started_at"},
		&core.DateField{Name: "finished_at"},
	)
	return app
}

func createCollection(t *testing.T, app core.App, name string, fields ...core.Field) {
	t.Helper()

	// The app migrations blank-imported by main.go already ran against the
	// test app; drop their collection so the fixture schema below applies.
	if existing, err := app.FindCollectionByNameOrId(name); err == nil {
		if err := app.Delete(existing); err != nil {
			t.Fatalf("Failed to delete existing collection %s: %v", name, err)
		}
	}

	col := core.NewBaseCollection(name)
	col.Fields.Add(fields...)
	col.Fields.Add(
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	if err := app.Save(col); err != nil {
		t.Fatalf("Failed to create collection %s: %v", name, err)
	}
}

func saveIntegration(t *testing.T, app core.App, userID, provider string) {
	t.Helper()

	col, err := app.FindCollectionByNameOrId(sync.DefaultSchema().Integrations)
	if err != nil {
		t.Fatalf("Failed to find integrations collection: %v", err)
	}
	record := core.NewRecord(col)
	record.Set("user", userID)
	record.Set("provider", provider)
	record.Set("connected", true)
	record.Set("sync_enabled", true)
	record.Set("status", sync.IntegrationIdle)
	if err := app.Save(record); err != nil {
		t.Fatalf("Failed to save integration: %v", err)
	}
}

func TestRunStagingPass_BridgeStagesInboxAndEnqueuesJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"snapshots": []map[string]any{
				{
					"id":         "snap-1",
					"capturedAt": "2026-08-20T07:00:00Z",
					"data":       map[string]any{"sleep": map[string]any{"hours": 7.5}},
				},
			},
		})
	}))
	defer server.Close()

	t.Setenv("DEVICE_BRIDGE_URL", server.URL)
	t.Setenv("DEVICE_BRIDGE_API_KEY", "test-key")
	t.Setenv("GOOGLE_CALENDAR_ENABLED", "false")

	app := newStagingTestApp(t)
	saveIntegration(t, app, "user1", "devicebridge")

	staged, err := runStagingPass(context.Background(), app)
	if err != nil {
		t.Fatalf("runStagingPass() error = %v", err)
	}
	if staged != 1 {
		t.Errorf("runStagingPass() = %d staged, want 1", staged)
	}

	schema := sync.DefaultSchema()
	items, err := app.FindAllRecords(schema.Inbox)
	if err != nil {
		t.Fatalf("FindAllRecords(inbox) error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("inbox = %d items, want 1", len(items))
	}
	item := items[0]
	if got := item.GetString("provider"); got != "devicebridge" {
		t.Errorf("item provider = %q, want devicebridge", got)
	}
	if got := item.GetString("entity_type"); got != sync.EntityWellnessSnapshot {
		t.Errorf("item entity_type = %q, want %q", got, sync.EntityWellnessSnapshot)
	}
	if got := item.GetString("external_id"); got != "snap-1" {
		t.Errorf("item external_id = %q, want snap-1", got)
	}
	if got := item.GetString("status"); got != sync.ItemStatusPending {
		t.Errorf("item status = %q, want %q", got, sync.ItemStatusPending)
	}

	jobs, err := app.FindAllRecords(schema.SyncJobs)
	if err != nil {
		t.Fatalf("FindAllRecords(sync_jobs) error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("sync_jobs = %d jobs, want 1", len(jobs))
	}
	job := jobs[0]
	if got := job.GetString("provider"); got != "devicebridge" {
		t.Errorf("job provider = %q, want devicebridge", got)
	}
	if got := job.GetString("reason"); got != sync.ReasonBackground {
		t.Errorf("job reason = %q, want %q", got, sync.ReasonBackground)
	}
	if got := job.GetString("status"); got != sync.JobStatusQueued {
		t.Errorf("job status = %q, want %q", got, sync.JobStatusQueued)
	}
}

func TestRunStagingPass_SkipsDisconnectedIntegrations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("bridge fetched despite no connected integrations")
	}))
	defer server.Close()

	t.Setenv("DEVICE_BRIDGE_URL", server.URL)
	t.Setenv("DEVICE_BRIDGE_API_KEY", "test-key")
	t.Setenv("GOOGLE_CALENDAR_ENABLED", "false")

	app := newStagingTestApp(t)

	staged, err := runStagingPass(context.Background(), app)
	if err != nil {
		t.Fatalf("runStagingPass() error = %v", err)
	}
	if staged != 0 {
		t.Errorf("runStagingPass() = %d staged, want 0", staged)
	}
}

func TestRunStagingPass_NoConnectorsConfigured(t *testing.T) {
	t.Setenv("DEVICE_BRIDGE_URL", "")
	t.Setenv("DEVICE_BRIDGE_API_KEY", "")
	t.Setenv("GOOGLE_CALENDAR_ENABLED", "")

	app := newStagingTestApp(t)

	staged, err := runStagingPass(context.Background(), app)
	if err != nil {
		t.Fatalf("runStagingPass() error = %v", err)
	}
	if staged != 0 {
		t.Errorf("runStagingPass() = %d staged, want 0", staged)
	}
}
