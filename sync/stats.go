package sync

import (
	"fmt"
	"strings"
)

// Stats aggregates the outcome of one sync job run.
type Stats struct {
	Processed        int `json:"processed"`
	Created          int `json:"created"`
	Updated          int `json:"updated"`
	Failed           int `json:"failed"`
	PermissionDenied int `json:"permission_denied"`
	Skipped          int `json:"skipped"`

	// Per entity type counters for successfully processed items.
	Transactions   int `json:"transactions,omitempty"`
	Wellness       int `json:"wellness,omitempty"`
	CalendarEvents int `json:"calendar_events,omitempty"`
	Tasks          int `json:"tasks,omitempty"`
}

// CountEntity bumps the per-entity counter for a processed item.
func (s *Stats) CountEntity(entityType string) {
	switch entityType {
	case EntityTransaction:
		s.Transactions++
	case EntityWellnessSnapshot:
		s.Wellness++
	case EntityCalendarEvent:
		s.CalendarEvents++
	case EntityTask:
		s.Tasks++
	}
}

// TotalFailed returns technical failures plus permission denials. Both mark
// the item failed; the split exists so consumers can tell them apart.
func (s Stats) TotalFailed() int {
	return s.Failed + s.PermissionDenied
}

// JobStatus derives the terminal job status from the run outcome.
func (s Stats) JobStatus() string {
	switch {
	case s.TotalFailed() > 0 && s.Processed == 0:
		return JobStatusFailed
	case s.TotalFailed() > 0:
		return JobStatusPartial
	default:
		return JobStatusSucceeded
	}
}

// Summary renders the human-readable job summary line.
func (s Stats) Summary() string {
	if s.Processed == 0 && s.TotalFailed() == 0 {
		return "no pending payloads"
	}

	parts := []string{
		fmt.Sprintf("%d item(s) imported", s.Processed),
		fmt.Sprintf("%d created", s.Created),
		fmt.Sprintf("%d updated", s.Updated),
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.PermissionDenied > 0 {
		parts = append(parts, fmt.Sprintf("%d permission-denied", s.PermissionDenied))
	}
	return strings.Join(parts, ", ")
}
