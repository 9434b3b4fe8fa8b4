package sync

import (
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

// IntegrationState is the per (user, provider) connection state, the
// user-visible surface of the pipeline.
type IntegrationState struct {
	UserID      string
	Provider    string
	Connected   bool
	SyncEnabled bool
	Status      string
	LastError   string
}

// IntegrationStore reads and updates integration connection state.
type IntegrationStore interface {
	// Get returns the state for (user, provider), or found=false when the
	// provider was never connected for that user.
	Get(userID, provider string) (IntegrationState, bool, error)
	// SetSyncing flips the integration into the syncing status.
	SetSyncing(userID, provider string) error
	// SetIdle marks a completed sync: status idle, lastError cleared,
	// lastSynced set to now.
	SetIdle(userID, provider string) error
	// SetError records a failed sync with its message.
	SetError(userID, provider, message string) error
}

// RecordIntegrationStore stores integration state in a PocketBase collection.
type RecordIntegrationStore struct {
	app    core.App
	schema Schema
}

// NewRecordIntegrationStore creates an integration store over the given app
// and schema.
func NewRecordIntegrationStore(app core.App, schema Schema) *RecordIntegrationStore {
	return &RecordIntegrationStore{app: app, schema: schema}
}

// Get returns the integration state for (user, provider).
func (s *RecordIntegrationStore) Get(userID, provider string) (IntegrationState, bool, error) {
	record, err := s.find(userID, provider)
	if err != nil {
		return IntegrationState{}, false, err
	}
	if record == nil {
		return IntegrationState{}, false, nil
	}
	return IntegrationState{
		UserID:      record.GetString("user"),
		Provider:    record.GetString("provider"),
		Connected:   record.GetBool("connected"),
		SyncEnabled: record.GetBool("sync_enabled"),
		Status:      record.GetString("status"),
		LastError:   record.GetString("last_error"),
	}, true, nil
}

// SetSyncing marks the integration as actively syncing.
func (s *RecordIntegrationStore) SetSyncing(userID, provider string) error {
	return s.update(userID, provider, func(record *core.Record) {
		record.Set("status", IntegrationSyncing)
	})
}

// SetIdle marks the integration idle after a completed sync.
func (s *RecordIntegrationStore) SetIdle(userID, provider string) error {
	return s.update(userID, provider, func(record *core.Record) {
		record.Set("status", IntegrationIdle)
		record.Set("last_error", "")
		record.Set("last_synced", types.NowDateTime())
	})
}

// SetError records a sync failure.
func (s *RecordIntegrationStore) SetError(userID, provider, message string) error {
	return s.update(userID, provider, func(record *core.Record) {
		record.Set("status", IntegrationError)
		record.Set("last_error", message)
	})
}

func (s *RecordIntegrationStore) update(userID, provider string, apply func(*core.Record)) error {
	record, err := s.find(userID, provider)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("integration %s/%s not found", userID, provider)
	}
	apply(record)
	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("updating integration %s/%s: %w", userID, provider, err)
	}
	return nil
}

func (s *RecordIntegrationStore) find(userID, provider string) (*core.Record, error) {
	records, err := s.app.FindRecordsByFilter(
		s.schema.Integrations,
		"user = {:user} && provider = {:provider}",
		"",
		1,
		0,
		dbx.Params{"user": userID, "provider": provider},
	)
	if err != nil {
		return nil, fmt.Errorf("finding integration %s/%s: %w", userID, provider, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}
