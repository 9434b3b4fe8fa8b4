package sync

// CalendarEventUpserter writes canonical calendar events.
type CalendarEventUpserter struct {
	baseUpserter
}

// EntityType returns the entity discriminator this upserter handles.
func (u *CalendarEventUpserter) EntityType() string {
	return EntityCalendarEvent
}

// Upsert transforms a calendar event payload and writes it through the
// mapping.
func (u *CalendarEventUpserter) Upsert(item *Item) (Result, error) {
	patch := parseCalendarEventPatch(item.Payload, item, u.now())

	data := map[string]any{
		"user":            item.UserID,
		"source":          item.Provider,
		"title":           patch.Title,
		"description":     patch.Description,
		"location":        patch.Location,
		"start_time":      patch.StartTime,
		"end_time":        patch.EndTime,
		"all_day":         patch.AllDay,
		"is_flexible":     patch.IsFlexible,
		"category":        patch.Category,
		"energy_required": patch.EnergyRequired,
	}
	return u.upsertMapped(item, u.schema.CalendarEvents, EntityCalendarEvent, data)
}
