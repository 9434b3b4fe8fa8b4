package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// PayloadChecksum returns a stable fingerprint for a staged payload, stored
// with the item and its mapping for change detection.
func PayloadChecksum(payload map[string]any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Item is one staged provider payload awaiting import.
type Item struct {
	ID         string
	UserID     string
	Provider   string
	EntityType string
	ExternalID string
	Checksum   string
	Payload    map[string]any
	Created    time.Time
}

// InboxStore is the staging area written by provider connectors and drained
// by the worker. Items are never deleted and never revert to pending.
type InboxStore interface {
	// Stage inserts a pending item. Used by the producer side.
	Stage(item *Item) (string, error)
	// FetchPending returns the oldest pending items for (user, provider),
	// up to limit.
	FetchPending(userID, provider string, limit int) ([]*Item, error)
	// MarkProcessing transitions an item to processing under the given job.
	MarkProcessing(itemID, jobID string) error
	// MarkProcessed transitions an item to its processed terminal state.
	MarkProcessed(itemID string) error
	// MarkFailed transitions an item to its failed terminal state with the
	// failure reason. Failed items are terminal; the pipeline never
	// requeues them.
	MarkFailed(itemID, reason string) error
}

// RecordInboxStore stores inbox items in a PocketBase collection.
type RecordInboxStore struct {
	app    core.App
	schema Schema
}

// NewRecordInboxStore creates an inbox store over the given app and schema.
func NewRecordInboxStore(app core.App, schema Schema) *RecordInboxStore {
	return &RecordInboxStore{app: app, schema: schema}
}

// Stage inserts a pending inbox item.
func (s *RecordInboxStore) Stage(item *Item) (string, error) {
	col, err := s.app.FindCollectionByNameOrId(s.schema.Inbox)
	if err != nil {
		return "", fmt.Errorf("finding collection %s: %w", s.schema.Inbox, err)
	}

	record := core.NewRecord(col)
	record.Set("user", item.UserID)
	record.Set("provider", item.Provider)
	record.Set("entity_type", item.EntityType)
	record.Set("external_id", item.ExternalID)
	record.Set("checksum", item.Checksum)
	record.Set("payload", item.Payload)
	record.Set("status", ItemStatusPending)

	if err := s.app.Save(record); err != nil {
		return "", fmt.Errorf("staging inbox item: %w", err)
	}
	return record.Id, nil
}

// FetchPending returns the oldest pending items for (user, provider).
func (s *RecordInboxStore) FetchPending(userID, provider string, limit int) ([]*Item, error) {
	records, err := s.app.FindRecordsByFilter(
		s.schema.Inbox,
		"user = {:user} && provider = {:provider} && status = {:status}",
		"created",
		limit,
		0,
		dbx.Params{"user": userID, "provider": provider, "status": ItemStatusPending},
	)
	if err != nil {
		return nil, fmt.Errorf("fetching pending inbox items: %w", err)
	}

	items := make([]*Item, 0, len(records))
	for _, record := range records {
		item := &Item{
			ID:         record.Id,
			UserID:     record.GetString("user"),
			Provider:   record.GetString("provider"),
			EntityType: record.GetString("entity_type"),
			ExternalID: record.GetString("external_id"),
			Checksum:   record.GetString("checksum"),
			Created:    record.GetDateTime("created").Time(),
		}

		payload := map[string]any{}
		if err := record.UnmarshalJSONField("payload", &payload); err != nil {
			// A corrupt payload is a per-item problem; surface it through
			// the normal transform path by leaving the payload empty.
			payload = map[string]any{}
		}
		item.Payload = payload

		items = append(items, item)
	}
	return items, nil
}

// MarkProcessing transitions the item to processing and records which job
// picked it up.
func (s *RecordInboxStore) MarkProcessing(itemID, jobID string) error {
	return s.setStatus(itemID, ItemStatusProcessing, "", jobID, false)
}

// MarkProcessed transitions the item to processed.
func (s *RecordInboxStore) MarkProcessed(itemID string) error {
	return s.setStatus(itemID, ItemStatusProcessed, "", "", true)
}

// MarkFailed transitions the item to failed with the given reason.
func (s *RecordInboxStore) MarkFailed(itemID, reason string) error {
	return s.setStatus(itemID, ItemStatusFailed, reason, "", true)
}

func (s *RecordInboxStore) setStatus(itemID, status, errMsg, jobID string, terminal bool) error {
	record, err := s.app.FindRecordById(s.schema.Inbox, itemID)
	if err != nil {
		return fmt.Errorf("finding inbox item %s: %w", itemID, err)
	}

	record.Set("status", status)
	if errMsg != "" {
		record.Set("error", errMsg)
	}
	if jobID != "" {
		record.Set("sync_job", jobID)
	}
	if terminal {
		record.Set("processed_at", types.NowDateTime())
	}

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("updating inbox item %s: %w", itemID, err)
	}
	return nil
}
