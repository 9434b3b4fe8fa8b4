package sync

import (
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// Permissions holds a user's per-category data-sharing flags. All default
// to true except location sharing.
type Permissions struct {
	Health         bool
	Finance        bool
	Calendar       bool
	Task           bool
	BackgroundSync bool
	AIAccess       bool
	Location       bool
}

// DefaultPermissions returns the defaults applied when a user has no
// stored preference record.
func DefaultPermissions() Permissions {
	return Permissions{
		Health:         true,
		Finance:        true,
		Calendar:       true,
		Task:           true,
		BackgroundSync: true,
		AIAccess:       true,
		Location:       false,
	}
}

// PermissionResolver reads a user's data-sharing preferences.
type PermissionResolver interface {
	Resolve(userID string) (Permissions, error)
}

// RecordPermissionResolver reads preferences from the user_permissions
// collection, falling back to defaults when no row exists.
type RecordPermissionResolver struct {
	app    core.App
	schema Schema
}

// NewRecordPermissionResolver creates a resolver over the given app and schema.
func NewRecordPermissionResolver(app core.App, schema Schema) *RecordPermissionResolver {
	return &RecordPermissionResolver{app: app, schema: schema}
}

// Resolve returns the stored permissions for the user, or the defaults when
// the user never touched their sharing settings.
func (r *RecordPermissionResolver) Resolve(userID string) (Permissions, error) {
	records, err := r.app.FindRecordsByFilter(
		r.schema.Permissions,
		"user = {:user}",
		"",
		1,
		0,
		dbx.Params{"user": userID},
	)
	if err != nil {
		return Permissions{}, fmt.Errorf("resolving permissions for %s: %w", userID, err)
	}
	if len(records) == 0 {
		return DefaultPermissions(), nil
	}

	record := records[0]
	return Permissions{
		Health:         record.GetBool("allow_health_sync"),
		Finance:        record.GetBool("allow_finance_sync"),
		Calendar:       record.GetBool("allow_calendar_sync"),
		Task:           record.GetBool("allow_task_sync"),
		BackgroundSync: record.GetBool("allow_background_sync"),
		AIAccess:       record.GetBool("allow_ai_access"),
		Location:       record.GetBool("allow_location_access"),
	}, nil
}

// providerCategories maps providers to the permission category required at
// the job level. Health providers require health sharing; the device bridge
// has no job-level requirement because every item is still entity-gated.
// Unknown providers likewise fall through to entity gating only.
var providerCategories = map[string]string{
	"fitbit":       "health",
	"oura":         "health",
	"devicebridge": "",
}

// ProviderAllowed reports whether the provider's job-level permission
// category, if any, is granted.
func ProviderAllowed(provider string, perms Permissions) bool {
	switch providerCategories[provider] {
	case "health":
		return perms.Health
	default:
		return true
	}
}

// EntityAllowed reports whether the user shares the data category an entity
// type belongs to. Unknown entity types are not allowed; the caller surfaces
// them as unsupported.
func EntityAllowed(entityType string, perms Permissions) bool {
	switch entityType {
	case EntityTransaction:
		return perms.Finance
	case EntityWellnessSnapshot:
		return perms.Health
	case EntityCalendarEvent:
		return perms.Calendar
	case EntityTask:
		return perms.Task
	default:
		return false
	}
}
