// Package migrations defines the collections the sync pipeline reads and
// writes. Registered via the blank import in main.go and applied by the
// migrate command (automigrate keeps dev databases current).
package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		userRelation := func() *core.RelationField {
			return &core.RelationField{
				Name:          "user",
				CollectionId:  users.Id,
				Required:      true,
				MaxSelect:     1,
				CascadeDelete: false,
			}
		}
		timestamps := func(c *core.Collection) {
			c.Fields.Add(
				&core.AutodateField{Name: "created", OnCreate: true},
				&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
			)
		}

		// ------------------------------------------------------------
		// Queue, inbox, mappings
		// ------------------------------------------------------------

		jobs := core.NewBaseCollection("sync_jobs")
		jobs.Fields.Add(
			userRelation(),
			&core.TextField{Name: "provider", Required: true},
			&core.SelectField{Name: "reason", Required: true, MaxSelect: 1,
				Values: []string{"manual", "background"}},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1,
				Values: []string{"queued", "running", "succeeded", "partial", "failed"}},
			&core.TextField{Name: "summary"},
			&core.TextField{Name: "error"},
			&core.DateField{Name: "started_at"},
			&core.DateField{Name: "finished_at"},
		)
		timestamps(jobs)
		jobs.AddIndex("idx_sync_jobs_status_created", false, "status, created", "")
		jobs.AddIndex("idx_sync_jobs_user_provider", false, "user, provider", "")
		if err := app.Save(jobs); err != nil {
			return err
		}

		inbox := core.NewBaseCollection("sync_inbox")
		inbox.Fields.Add(
			userRelation(),
			&core.TextField{Name: "provider", Required: true},
			&core.SelectField{Name: "entity_type", Required: true, MaxSelect: 1,
				Values: []string{"transaction", "wellnessSnapshot", "calendarEvent", "task"}},
			&core.TextField{Name: "external_id"},
			&core.TextField{Name: "checksum"},
			&core.JSONField{Name: "payload"},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1,
				Values: []string{"pending", "processing", "processed", "failed"}},
			&core.TextField{Name: "error"},
			&core.RelationField{Name: "sync_job", CollectionId: jobs.Id, MaxSelect: 1},
			&core.DateField{Name: "processed_at"},
		)
		timestamps(inbox)
		inbox.AddIndex("idx_sync_inbox_pending", false, "user, provider, status, created", "")
		if err := app.Save(inbox); err != nil {
			return err
		}

		mappings := core.NewBaseCollection("integration_mappings")
		mappings.Fields.Add(
			userRelation(),
			&core.TextField{Name: "provider", Required: true},
			&core.TextField{Name: "entity_type", Required: true},
			&core.TextField{Name: "external_id", Required: true},
			&core.TextField{Name: "internal_id", Required: true},
			&core.TextField{Name: "checksum"},
		)
		timestamps(mappings)
		// The idempotency invariant: one internal record per external identity.
		mappings.AddIndex("idx_mappings_identity", true,
			"user, provider, entity_type, external_id", "")
		if err := app.Save(mappings); err != nil {
			return err
		}

		// ------------------------------------------------------------
		// Connection state, permissions, audit trail
		// ------------------------------------------------------------

		integrations := core.NewBaseCollection("integrations")
		integrations.Fields.Add(
			userRelation(),
			&core.TextField{Name: "provider", Required: true},
			&core.BoolField{Name: "connected"},
			&core.BoolField{Name: "sync_enabled"},
			&core.SelectField{Name: "status", MaxSelect: 1,
				Values: []string{"idle", "syncing", "error"}},
			&core.TextField{Name: "last_error"},
			&core.DateField{Name: "last_synced"},
			&core.JSONField{Name: "credentials"},
		)
		timestamps(integrations)
		integrations.AddIndex("idx_integrations_user_provider", true, "user, provider", "")
		if err := app.Save(integrations); err != nil {
			return err
		}

		permissions := core.NewBaseCollection("user_permissions")
		permissions.Fields.Add(
			userRelation(),
			&core.BoolField{Name: "allow_health_sync"},
			&core.BoolField{Name: "allow_finance_sync"},
			&core.BoolField{Name: "allow_calendar_sync"},
			&core.BoolField{Name: "allow_task_sync"},
			&core.BoolField{Name: "allow_background_sync"},
			&core.BoolField{Name: "allow_ai_access"},
			&core.BoolField{Name: "allow_location_access"},
		)
		timestamps(permissions)
		permissions.AddIndex("idx_user_permissions_user", true, "user", "")
		if err := app.Save(permissions); err != nil {
			return err
		}

		audit := core.NewBaseCollection("audit_logs")
		audit.Fields.Add(
			userRelation(),
			&core.TextField{Name: "provider"},
			&core.SelectField{Name: "level", Required: true, MaxSelect: 1,
				Values: []string{"info", "warning", "error"}},
			&core.TextField{Name: "message", Required: true},
			&core.JSONField{Name: "metadata"},
		)
		timestamps(audit)
		audit.AddIndex("idx_audit_logs_user_created", false, "user, created", "")
		if err := app.Save(audit); err != nil {
			return err
		}

		// ------------------------------------------------------------
		// Canonical entity collections
		// ------------------------------------------------------------

		transactions := core.NewBaseCollection("transactions")
		transactions.Fields.Add(
			userRelation(),
			&core.TextField{Name: "source"},
			&core.NumberField{Name: "amount"},
			&core.SelectField{Name: "type", Required: true, MaxSelect: 1,
				Values: []string{"income", "expense"}},
			&core.TextField{Name: "category"},
			&core.DateField{Name: "date"},
			&core.TextField{Name: "description"},
			&core.JSONField{Name: "tags"},
		)
		timestamps(transactions)
		transactions.AddIndex("idx_transactions_user_date", false, "user, date", "")
		if err := app.Save(transactions); err != nil {
			return err
		}

		wellness := core.NewBaseCollection("wellness_entries")
		wellness.Fields.Add(
			userRelation(),
			&core.TextField{Name: "day_key", Required: true},
			&core.DateField{Name: "date"},
			&core.JSONField{Name: "sleep"},
			&core.JSONField{Name: "activity"},
			&core.JSONField{Name: "nutrition"},
			&core.JSONField{Name: "stress"},
			&core.JSONField{Name: "period"},
			&core.JSONField{Name: "focus_sessions"},
		)
		timestamps(wellness)
		// One entry per user per day.
		wellness.AddIndex("idx_wellness_day_key", true, "day_key", "")
		if err := app.Save(wellness); err != nil {
			return err
		}

		events := core.NewBaseCollection("calendar_events")
		events.Fields.Add(
			userRelation(),
			&core.TextField{Name: "source"},
			&core.TextField{Name: "title", Required: true},
			&core.TextField{Name: "description"},
			&core.TextField{Name: "location"},
			&core.DateField{Name: "start_time"},
			&core.DateField{Name: "end_time"},
			&core.BoolField{Name: "all_day"},
			&core.BoolField{Name: "is_flexible"},
			&core.SelectField{Name: "category", MaxSelect: 1,
				Values: []string{"work", "personal", "family", "health", "social", "travel", "other"}},
			&core.SelectField{Name: "energy_required", MaxSelect: 1,
				Values: []string{"low", "medium", "high"}},
		)
		timestamps(events)
		events.AddIndex("idx_calendar_events_user_start", false, "user, start_time", "")
		if err := app.Save(events); err != nil {
			return err
		}

		tasks := core.NewBaseCollection("tasks")
		tasks.Fields.Add(
			userRelation(),
			&core.TextField{Name: "source"},
			&core.TextField{Name: "title", Required: true},
			&core.TextField{Name: "description"},
			&core.SelectField{Name: "status", MaxSelect: 1,
				Values: []string{"pending", "in_progress", "completed", "cancelled"}},
			&core.SelectField{Name: "priority", MaxSelect: 1,
				Values: []string{"low", "medium", "high", "urgent"}},
			&core.SelectField{Name: "energy_level", MaxSelect: 1,
				Values: []string{"low", "medium", "high"}},
			&core.DateField{Name: "due_date"},
			&core.JSONField{Name: "tags"},
			&core.JSONField{Name: "dependencies"},
			&core.JSONField{Name: "subtasks"},
			&core.JSONField{Name: "reminders"},
			&core.JSONField{Name: "context_triggers"},
			&core.JSONField{Name: "attachments"},
			&core.JSONField{Name: "ai_suggestions"},
		)
		timestamps(tasks)
		tasks.AddIndex("idx_tasks_user_status", false, "user, status", "")
		return app.Save(tasks)
	}, func(app core.App) error {
		names := []string{
			"tasks",
			"calendar_events",
			"wellness_entries",
			"transactions",
			"audit_logs",
			"user_permissions",
			"integrations",
			"integration_mappings",
			"sync_inbox",
			"sync_jobs",
		}
		for _, name := range names {
			col, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(col); err != nil {
				return err
			}
		}
		return nil
	})
}
