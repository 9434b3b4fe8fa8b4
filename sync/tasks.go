package sync

// TaskUpserter writes canonical tasks.
type TaskUpserter struct {
	baseUpserter
}

// EntityType returns the entity discriminator this upserter handles.
func (u *TaskUpserter) EntityType() string {
	return EntityTask
}

// Upsert transforms a task payload and writes it through the mapping.
func (u *TaskUpserter) Upsert(item *Item) (Result, error) {
	patch := parseTaskPatch(item.Payload)

	data := map[string]any{
		"user":             item.UserID,
		"source":           item.Provider,
		"title":            patch.Title,
		"description":      patch.Description,
		"status":           patch.Status,
		"priority":         patch.Priority,
		"energy_level":     patch.EnergyLevel,
		"tags":             emptyIfNil(patch.Tags),
		"dependencies":     emptyIfNil(patch.Dependencies),
		"subtasks":         patch.Subtasks,
		"reminders":        patch.Reminders,
		"context_triggers": patch.ContextTriggers,
		"attachments":      patch.Attachments,
		"ai_suggestions":   patch.AISuggestions,
	}
	if patch.DueDate != nil {
		data["due_date"] = *patch.DueDate
	} else {
		data["due_date"] = ""
	}
	return u.upsertMapped(item, u.schema.Tasks, EntityTask, data)
}

func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
