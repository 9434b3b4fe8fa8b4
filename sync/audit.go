package sync

import (
	"fmt"
	"log/slog"

	"github.com/pocketbase/pocketbase/core"
)

// Audit levels.
const (
	AuditInfo    = "info"
	AuditWarning = "warning"
	AuditError   = "error"
)

// AuditLogger appends entries to the append-only audit log.
type AuditLogger interface {
	Append(userID, provider, level, message string, metadata map[string]any) error
}

// RecordAuditLogger writes audit entries into a PocketBase collection.
// Entries are only ever appended, never updated or deleted.
type RecordAuditLogger struct {
	app    core.App
	schema Schema
}

// NewRecordAuditLogger creates an audit logger over the given app and schema.
func NewRecordAuditLogger(app core.App, schema Schema) *RecordAuditLogger {
	return &RecordAuditLogger{app: app, schema: schema}
}

// Append writes one audit entry. Audit failures are logged but never
// propagated: a broken audit trail must not fail the sync itself.
func (l *RecordAuditLogger) Append(userID, provider, level, message string, metadata map[string]any) error {
	col, err := l.app.FindCollectionByNameOrId(l.schema.AuditLogs)
	if err != nil {
		return fmt.Errorf("finding collection %s: %w", l.schema.AuditLogs, err)
	}

	record := core.NewRecord(col)
	record.Set("user", userID)
	record.Set("provider", provider)
	record.Set("level", level)
	record.Set("message", message)
	if metadata != nil {
		record.Set("metadata", metadata)
	}

	if err := l.app.Save(record); err != nil {
		slog.Error("Failed to append audit log entry", "user", userID, "provider", provider, "error", err)
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}
