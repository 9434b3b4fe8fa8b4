package sync

import (
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
)

// newStoreTestApp spins up a throwaway PocketBase app for store-level tests.
// The bundled test data has no pipeline collections, so each test creates
// the ones it touches.
func newStoreTestApp(t *testing.T) *tests.TestApp {
	t.Helper()

	app, err := tests.NewTestApp()
	if err != nil {
		t.Fatalf("Failed to create test app: %v", err)
	}
	t.Cleanup(app.Cleanup)
	return app
}

func createTestCollection(t *testing.T, app core.App, name string, fields ...core.Field) {
	t.Helper()

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

func createMappingsCollection(t *testing.T, app core.App) {
	t.Helper()
	createTestCollection(t, app, DefaultSchema().Mappings,
		&core.TextField{Name: "user", Required: true},
		&core.TextField{Name: "provider", Required: true},
		&core.TextField{Name: "entity_type", Required: true},
		&core.TextField{Name: "external_id", Required: true},
		&core.TextField{Name: "internal_id", Required: true},
		&core.TextField{Name: "checksum"},
	)
}

func createJobsCollection(t *testing.T, app core.App) {
	t.Helper()
	createTestCollection(t, app, DefaultSchema().SyncJobs,
		&core.TextField{Name: "user", Required: true},
		&core.TextField{Name: "provider", Required: true},
		&core.TextField{Name: "reason"},
		&core.TextField{Name: "status"},
		&core.TextField{Name: "summary"},
		&core.TextField{Name: "error"},
		&core.DateField{Name: "started_at"},
		&core.DateField{Name: "finished_at"},
	)
}

func createTransactionsCollection(t *testing.T, app core.App) {
	t.Helper()
	createTestCollection(t, app, DefaultSchema().Transactions,
		&core.TextField{Name: "user"},
		&core.TextField{Name: "source"},
		&core.NumberField{Name: "amount"},
		&core.TextField{Name: "type"},
		&core.TextField{Name: "category"},
		&core.DateField{Name: "date"},
		&core.TextField{Name: "description"},
		&core.JSONField{Name: "tags"},
	)
}
