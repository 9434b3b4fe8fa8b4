package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"google.golang.org/api/calendar/v3"

	"github.com/meridian/lifehub/pocketbase/sync"
)

// Provider is the provider key Google Calendar events are staged under.
const Provider = "google_calendar"

// CalendarStager pulls upcoming events from Google Calendar, stages them as
// pending inbox items and enqueues a job so the worker imports them.
type CalendarStager struct {
	service *calendar.Service
	inbox   sync.InboxStore
	queue   sync.JobQueue
}

// NewCalendarStager creates a stager over PocketBase-backed stores.
func NewCalendarStager(app core.App, schema sync.Schema, service *calendar.Service) *CalendarStager {
	return &CalendarStager{
		service: service,
		inbox:   sync.NewRecordInboxStore(app, schema),
		queue:   sync.NewRecordJobQueue(app, schema),
	}
}

// StageUser fetches the user's events in the given window from their primary
// calendar, stages each as a calendar event inbox item and enqueues one
// background job for the batch. It returns the number of items staged.
func (s *CalendarStager) StageUser(ctx context.Context, userID, calendarID string, from, to time.Time) (int, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	call := s.service.Events.List(calendarID).
		Context(ctx).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(from.UTC().Format(time.RFC3339)).
		TimeMax(to.UTC().Format(time.RFC3339))

	staged := 0
	fetched := 0
	pageToken := ""
	for {
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		events, err := call.Do()
		if err != nil {
			return staged, fmt.Errorf("listing calendar events for %s: %w", userID, err)
		}

		for _, event := range events.Items {
			fetched++
			payload := eventPayload(event)
			_, err := s.inbox.Stage(&sync.Item{
				UserID:     userID,
				Provider:   Provider,
				EntityType: sync.EntityCalendarEvent,
				ExternalID: event.Id,
				Checksum:   sync.PayloadChecksum(payload),
				Payload:    payload,
			})
			if err != nil {
				slog.Error("Failed to stage calendar event", "user", userID, "eventId", event.Id, "error", err)
				continue
			}
			staged++
		}

		pageToken = events.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if staged > 0 {
		if _, err := s.queue.Enqueue(userID, Provider, sync.ReasonBackground); err != nil {
			return staged, fmt.Errorf("enqueuing calendar import job: %w", err)
		}
	}

	slog.Info("Staged calendar events", "user", userID, "staged", staged, "fetched", fetched)
	return staged, nil
}

// eventPayload flattens a Google Calendar event into the payload shape the
// import transform expects. All-day events carry a bare date in Start.Date
// instead of a timestamp.
func eventPayload(event *calendar.Event) map[string]any {
	payload := map[string]any{
		"externalId":  event.Id,
		"title":       event.Summary,
		"description": event.Description,
		"location":    event.Location,
	}

	allDay := false
	if event.Start != nil {
		if event.Start.DateTime != "" {
			payload["startTime"] = event.Start.DateTime
		} else if event.Start.Date != "" {
			payload["startTime"] = event.Start.Date
			allDay = true
		}
	}
	if event.End != nil {
		if event.End.DateTime != "" {
			payload["endTime"] = event.End.DateTime
		} else if event.End.Date != "" {
			payload["endTime"] = event.End.Date
		}
	}
	payload["allDay"] = allDay

	if event.Transparency == "transparent" {
		payload["isFlexible"] = true
	}
	return payload
}
