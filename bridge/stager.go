package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"github.com/meridian/lifehub/pocketbase/sync"
)

// Provider is the provider key bridge snapshots are staged under.
const Provider = "devicebridge"

// SnapshotSource fetches snapshots for a user. Satisfied by *Client.
type SnapshotSource interface {
	FetchSnapshots(ctx context.Context, bridgeUserID string, since time.Time) ([]Snapshot, error)
}

// Stager pulls snapshots from the bridge, stages them as pending inbox
// items and enqueues a job so the worker imports them.
type Stager struct {
	source SnapshotSource
	inbox  sync.InboxStore
	queue  sync.JobQueue
}

// NewStager creates a stager over PocketBase-backed stores.
func NewStager(app core.App, schema sync.Schema, source SnapshotSource) *Stager {
	return &Stager{
		source: source,
		inbox:  sync.NewRecordInboxStore(app, schema),
		queue:  sync.NewRecordJobQueue(app, schema),
	}
}

// StageUser fetches the user's snapshots since the given time, stages each
// as a wellness inbox item and enqueues one background job for the batch.
// It returns the number of items staged.
func (s *Stager) StageUser(ctx context.Context, userID string, since time.Time) (int, error) {
	snapshots, err := s.source.FetchSnapshots(ctx, userID, since)
	if err != nil {
		return 0, fmt.Errorf("fetching bridge snapshots for %s: %w", userID, err)
	}
	if len(snapshots) == 0 {
		return 0, nil
	}

	staged := 0
	for _, snap := range snapshots {
		payload := snap.Data
		if payload == nil {
			payload = map[string]any{}
		}
		if _, ok := payload["date"]; !ok && !snap.CapturedAt.IsZero() {
			payload["date"] = snap.CapturedAt.UTC().Format("2006-01-02")
		}

		_, err := s.inbox.Stage(&sync.Item{
			UserID:     userID,
			Provider:   Provider,
			EntityType: sync.EntityWellnessSnapshot,
			ExternalID: snap.ID,
			Checksum:   sync.PayloadChecksum(payload),
			Payload:    payload,
		})
		if err != nil {
			slog.Error("Failed to stage bridge snapshot", "user", userID, "snapshotId", snap.ID, "error", err)
			continue
		}
		staged++
	}

	if staged > 0 {
		if _, err := s.queue.Enqueue(userID, Provider, sync.ReasonBackground); err != nil {
			return staged, fmt.Errorf("enqueuing bridge import job: %w", err)
		}
	}

	slog.Info("Staged bridge snapshots", "user", userID, "staged", staged, "fetched", len(snapshots))
	return staged, nil
}
