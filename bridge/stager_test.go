package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/meridian/lifehub/pocketbase/sync"
)

type fakeSource struct {
	snapshots []Snapshot
	err       error
}

func (s *fakeSource) FetchSnapshots(context.Context, string, time.Time) ([]Snapshot, error) {
	return s.snapshots, s.err
}

type fakeInbox struct{ staged []*sync.Item }

func (s *fakeInbox) Stage(item *sync.Item) (string, error) {
	id := fmt.Sprintf("itm%d", len(s.staged)+1)
	item.ID = id
	s.staged = append(s.staged, item)
	return id, nil
}

func (s *fakeInbox) FetchPending(string, string, int) ([]*sync.Item, error) { return nil, nil }
func (s *fakeInbox) MarkProcessing(string, string) error                    { return nil }
func (s *fakeInbox) MarkProcessed(string) error                             { return nil }
func (s *fakeInbox) MarkFailed(string, string) error                        { return nil }

type fakeQueue struct{ enqueued []string }

func (q *fakeQueue) Enqueue(userID, provider, reason string) (string, error) {
	q.enqueued = append(q.enqueued, provider+"/"+reason)
	return "job1", nil
}
func (q *fakeQueue) ClaimNext() (*sync.Job, error)               { return nil, nil }
func (q *fakeQueue) Finalize(string, string, string, string) error { return nil }

func TestStageUser(t *testing.T) {
	captured := time.Date(2026, 8, 20, 7, 0, 0, 0, time.UTC)
	source := &fakeSource{snapshots: []Snapshot{
		{ID: "snap1", CapturedAt: captured, Data: map[string]any{"sleep": map[string]any{"hours": 7.5}}},
		{ID: "snap2", CapturedAt: captured, Data: map[string]any{"date": "2026-08-19"}},
	}}
	inbox := &fakeInbox{}
	queue := &fakeQueue{}
	stager := &Stager{source: source, inbox: inbox, queue: queue}

	staged, err := stager.StageUser(context.Background(), "user1", time.Time{})
	if err != nil {
		t.Fatalf("StageUser returned error: %v", err)
	}
	if got, want := staged, 2; got != want {
		t.Fatalf("staged = %d, want %d", got, want)
	}

	first := inbox.staged[0]
	if got, want := first.Provider, Provider; got != want {
		t.Errorf("Provider = %q, want %q", got, want)
	}
	if got, want := first.EntityType, sync.EntityWellnessSnapshot; got != want {
		t.Errorf("EntityType = %q, want %q", got, want)
	}
	if got, want := first.ExternalID, "snap1"; got != want {
		t.Errorf("ExternalID = %q, want %q", got, want)
	}
	if first.Checksum == "" {
		t.Error("Checksum empty")
	}
	// Capture time backfills the day when the payload has none.
	if got, want := first.Payload["date"], "2026-08-20"; got != want {
		t.Errorf("payload date = %v, want %q", got, want)
	}
	// An explicit payload date wins.
	if got, want := inbox.staged[1].Payload["date"], "2026-08-19"; got != want {
		t.Errorf("payload date = %v, want %q", got, want)
	}

	if len(queue.enqueued) != 1 || queue.enqueued[0] != "devicebridge/background" {
		t.Errorf("enqueued = %v, want one background devicebridge job", queue.enqueued)
	}
}

func TestStageUser_NoSnapshots(t *testing.T) {
	inbox := &fakeInbox{}
	queue := &fakeQueue{}
	stager := &Stager{source: &fakeSource{}, inbox: inbox, queue: queue}

	staged, err := stager.StageUser(context.Background(), "user1", time.Time{})
	if err != nil {
		t.Fatalf("StageUser returned error: %v", err)
	}
	if staged != 0 {
		t.Errorf("staged = %d, want 0", staged)
	}
	if len(queue.enqueued) != 0 {
		t.Errorf("enqueued = %v, want no jobs for empty fetch", queue.enqueued)
	}
}

func TestStageUser_FetchError(t *testing.T) {
	stager := &Stager{
		source: &fakeSource{err: errors.New("bridge down")},
		inbox:  &fakeInbox{},
		queue:  &fakeQueue{},
	}

	if _, err := stager.StageUser(context.Background(), "user1", time.Time{}); err == nil {
		t.Error("StageUser swallowed fetch error")
	}
}
