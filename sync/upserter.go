package sync

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketbase/pocketbase/core"
)

// Result reports whether an upsert created or updated a canonical record.
// Exactly one of the two is 1 for a successful upsert.
type Result struct {
	Created int
	Updated int
}

// Upserter transforms one staged payload into its canonical record,
// resolving and refreshing the external-id mapping along the way.
type Upserter interface {
	EntityType() string
	Upsert(item *Item) (Result, error)
}

// NewUpserters builds the registry of upserters keyed by entity type.
func NewUpserters(app core.App, schema Schema, mappings MappingStore) map[string]Upserter {
	base := baseUpserter{app: app, schema: schema, mappings: mappings, now: time.Now}
	registry := map[string]Upserter{}
	for _, u := range []Upserter{
		&TransactionUpserter{base},
		&WellnessUpserter{base},
		&CalendarEventUpserter{base},
		&TaskUpserter{base},
	} {
		registry[u.EntityType()] = u
	}
	return registry
}

// baseUpserter carries the shared dependencies of all four upserters.
type baseUpserter struct {
	app      core.App
	schema   Schema
	mappings MappingStore
	now      func() time.Time
}

// upsertMapped is the common contract: resolve the mapping, update the
// record it points at or create a new one, then refresh the mapping with
// the current internal id and checksum.
func (b *baseUpserter) upsertMapped(item *Item, collection, entityType string, data map[string]any) (Result, error) {
	externalID := resolveExternalID(item.Payload, item)

	internalID, found, err := b.mappings.Resolve(item.UserID, item.Provider, entityType, externalID)
	if err != nil {
		return Result{}, err
	}

	var record *core.Record
	if found {
		record, err = b.app.FindRecordById(collection, internalID)
		if err != nil {
			// The application at large removed the canonical record out from
			// under the mapping; recreating converges back to a valid state.
			slog.Warn("Mapping points at missing record, recreating",
				"collection", collection, "internalId", internalID, "externalId", externalID)
			record = nil
			found = false
		}
	}

	if record == nil {
		col, err := b.app.FindCollectionByNameOrId(collection)
		if err != nil {
			return Result{}, fmt.Errorf("finding collection %s: %w", collection, err)
		}
		record = core.NewRecord(col)
	}

	for field, value := range data {
		record.Set(field, value)
	}
	if err := b.app.Save(record); err != nil {
		return Result{}, fmt.Errorf("saving %s record: %w", collection, err)
	}

	if err := b.mappings.Save(item.UserID, item.Provider, entityType, externalID, record.Id, item.Checksum); err != nil {
		return Result{}, err
	}

	if found {
		return Result{Updated: 1}, nil
	}
	return Result{Created: 1}, nil
}
