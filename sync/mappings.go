package sync

import (
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// MappingStore resolves a provider's external id to the internal canonical
// record id. The (user, provider, entityType, externalId) tuple is unique,
// so re-processing the same external id always lands on the same internal
// record. Mappings are never deleted.
type MappingStore interface {
	// Resolve returns the internal record id for the tuple, or found=false
	// when no mapping exists yet.
	Resolve(userID, provider, entityType, externalID string) (internalID string, found bool, err error)
	// Save upserts the mapping row for the tuple with the current internal
	// id and checksum.
	Save(userID, provider, entityType, externalID, internalID, checksum string) error
}

// RecordMappingStore stores mappings in a PocketBase collection with a
// unique index on the tuple.
type RecordMappingStore struct {
	app    core.App
	schema Schema
}

// NewRecordMappingStore creates a mapping store over the given app and schema.
func NewRecordMappingStore(app core.App, schema Schema) *RecordMappingStore {
	return &RecordMappingStore{app: app, schema: schema}
}

// Resolve looks up the mapping for the tuple.
func (s *RecordMappingStore) Resolve(userID, provider, entityType, externalID string) (string, bool, error) {
	record, err := s.find(userID, provider, entityType, externalID)
	if err != nil {
		return "", false, err
	}
	if record == nil {
		return "", false, nil
	}
	return record.GetString("internal_id"), true, nil
}

// Save upserts the mapping row for the tuple.
func (s *RecordMappingStore) Save(userID, provider, entityType, externalID, internalID, checksum string) error {
	record, err := s.find(userID, provider, entityType, externalID)
	if err != nil {
		return err
	}

	if record == nil {
		col, err := s.app.FindCollectionByNameOrId(s.schema.Mappings)
		if err != nil {
			return fmt.Errorf("finding collection %s: %w", s.schema.Mappings, err)
		}
		record = core.NewRecord(col)
		record.Set("user", userID)
		record.Set("provider", provider)
		record.Set("entity_type", entityType)
		record.Set("external_id", externalID)
	}

	record.Set("internal_id", internalID)
	record.Set("checksum", checksum)

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("saving mapping %s/%s/%s/%s: %w", userID, provider, entityType, externalID, err)
	}
	return nil
}

// find looks up the tuple's row. The external id comes from an opaque
// provider payload, so it is bound as a query parameter, never interpolated
// into the filter expression.
func (s *RecordMappingStore) find(userID, provider, entityType, externalID string) (*core.Record, error) {
	records, err := s.app.FindRecordsByFilter(
		s.schema.Mappings,
		"user = {:user} && provider = {:provider} && entity_type = {:entityType} && external_id = {:externalId}",
		"",
		1,
		0,
		dbx.Params{
			"user":       userID,
			"provider":   provider,
			"entityType": entityType,
			"externalId": externalID,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("resolving mapping %s/%s/%s/%s: %w", userID, provider, entityType, externalID, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}
