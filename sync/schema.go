// Package sync implements the integration sync pipeline: it drains staged
// provider payloads from the inbox into the canonical per-user collections,
// with idempotent external-id mapping and permission-gated processing.
package sync

// Schema carries the collection names the pipeline reads and writes.
// It is passed explicitly to every store so nothing in this package
// depends on ambient globals.
type Schema struct {
	Users           string
	SyncJobs        string
	Inbox           string
	Mappings        string
	Integrations    string
	Permissions     string
	AuditLogs       string
	Transactions    string
	WellnessEntries string
	CalendarEvents  string
	Tasks           string
}

// DefaultSchema returns the collection names created by the migrations.
func DefaultSchema() Schema {
	return Schema{
		Users:           "users",
		SyncJobs:        "sync_jobs",
		Inbox:           "sync_inbox",
		Mappings:        "integration_mappings",
		Integrations:    "integrations",
		Permissions:     "user_permissions",
		AuditLogs:       "audit_logs",
		Transactions:    "transactions",
		WellnessEntries: "wellness_entries",
		CalendarEvents:  "calendar_events",
		Tasks:           "tasks",
	}
}

// Entity type discriminators carried by inbox items and mappings.
const (
	EntityTransaction      = "transaction"
	EntityWellnessSnapshot = "wellnessSnapshot"
	EntityCalendarEvent    = "calendarEvent"
	EntityTask             = "task"
)

// Job lifecycle. Transitions are forward-only:
// queued -> running -> {succeeded, partial, failed}.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusPartial   = "partial"
	JobStatusFailed    = "failed"
)

// Job trigger reasons.
const (
	ReasonManual     = "manual"
	ReasonBackground = "background"
)

// Inbox item lifecycle: pending -> processing -> {processed, failed}.
// The pipeline never reverts an item to pending.
const (
	ItemStatusPending    = "pending"
	ItemStatusProcessing = "processing"
	ItemStatusProcessed  = "processed"
	ItemStatusFailed     = "failed"
)

// Integration connection status, the user-visible sync surface.
const (
	IntegrationIdle    = "idle"
	IntegrationSyncing = "syncing"
	IntegrationError   = "error"
)
