package sync

import (
	"strings"
	"time"
)

// Payload parsing for the four entity types. Inbox payloads arrive as
// opaque JSON objects; each entity type has a dedicated parser producing a
// typed patch. Pointer fields encode "this key was explicitly present in
// the payload", which is what drives the wellness deep partial merge.

// payloadTimeFormats are the timestamp layouts providers are known to send.
var payloadTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime parses a payload timestamp value. ok is false for missing,
// non-string or unparseable values.
func parseTime(value any) (time.Time, bool) {
	raw, isStr := value.(string)
	if !isStr || strings.TrimSpace(raw) == "" {
		return time.Time{}, false
	}
	for _, layout := range payloadTimeFormats {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// getString extracts a trimmed string, or "" when absent or not a string.
func getString(payload map[string]any, key string) string {
	if raw, ok := payload[key].(string); ok {
		return strings.TrimSpace(raw)
	}
	return ""
}

// getNumber extracts a numeric value. JSON numbers decode as float64, but
// values that round-tripped through Go land as ints too.
func getNumber(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// getBool coerces a payload value to boolean. Strings "true"/"1" and
// non-zero numbers count as true; anything else is false.
func getBool(payload map[string]any, key string) bool {
	switch v := payload[key].(type) {
	case bool:
		return v
	case string:
		lower := strings.ToLower(strings.TrimSpace(v))
		return lower == "true" || lower == "1"
	case float64:
		return v != 0
	}
	return false
}

// numberPtr returns a pointer only when the key is explicitly present and
// numeric.
func numberPtr(payload map[string]any, key string) *float64 {
	if v, ok := getNumber(payload, key); ok {
		return &v
	}
	return nil
}

// stringPtr returns a pointer only when the key is explicitly present and a
// string.
func stringPtr(payload map[string]any, key string) *string {
	if raw, ok := payload[key].(string); ok {
		trimmed := strings.TrimSpace(raw)
		return &trimmed
	}
	return nil
}

// boolPtr returns a pointer only when the key is explicitly present.
func boolPtr(payload map[string]any, key string) *bool {
	if _, present := payload[key]; !present {
		return nil
	}
	v := getBool(payload, key)
	return &v
}

// stringList extracts an array of trimmed, non-empty strings.
func stringList(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

// anyList extracts a raw array, defaulting to an empty array when the value
// is absent or not an array. Used for pass-through fields.
func anyList(payload map[string]any, key string) []any {
	if raw, ok := payload[key].([]any); ok {
		return raw
	}
	return []any{}
}

// subMap extracts a nested payload object, or nil when absent.
func subMap(payload map[string]any, key string) map[string]any {
	if raw, ok := payload[key].(map[string]any); ok {
		return raw
	}
	return nil
}

// pickEnum returns value when it belongs to the allowed set, otherwise the
// fallback. Enum validation is closed: anything unknown falls back.
func pickEnum(value string, allowed []string, fallback string) string {
	for _, candidate := range allowed {
		if value == candidate {
			return value
		}
	}
	return fallback
}

// fallbackString substitutes a fallback for an empty value.
func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// resolveExternalID resolves the external id for an inbox item:
// payload.externalId, then the staged item's external_id column, then the
// item's own id as a last resort.
func resolveExternalID(payload map[string]any, item *Item) string {
	if id := getString(payload, "externalId"); id != "" {
		return id
	}
	if item.ExternalID != "" {
		return item.ExternalID
	}
	return item.ID
}

// --- Transactions ---

var transactionTypes = []string{"income", "expense"}

// TransactionPatch is the parsed form of a transaction payload.
type TransactionPatch struct {
	Amount      float64
	Type        string
	Category    string
	Date        time.Time
	Description string
	Tags        []string
}

// parseTransactionPatch applies the transaction transform rules: amount
// falls back to 0, type to expense, category to "other"; the date resolves
// payload.date, then payload.postedAt, then the item's staging time, and
// finally now when nothing parses.
func parseTransactionPatch(payload map[string]any, item *Item, now time.Time) TransactionPatch {
	patch := TransactionPatch{
		Type:        pickEnum(getString(payload, "type"), transactionTypes, "expense"),
		Category:    getString(payload, "category"),
		Description: getString(payload, "description"),
		Tags:        stringList(payload, "tags"),
	}
	if patch.Category == "" {
		patch.Category = "other"
	}
	if amount, ok := getNumber(payload, "amount"); ok {
		patch.Amount = amount
	}

	switch {
	case timeSet(payload, "date", &patch.Date):
	case timeSet(payload, "postedAt", &patch.Date):
	case !item.Created.IsZero():
		patch.Date = item.Created.UTC()
	default:
		patch.Date = now.UTC()
	}
	return patch
}

// timeSet parses payload[key] into dst, reporting success.
func timeSet(payload map[string]any, key string, dst *time.Time) bool {
	if t, ok := parseTime(payload[key]); ok {
		*dst = t
		return true
	}
	return false
}

// --- Wellness ---

// WellnessPatch carries only the sub-sections and fields explicitly present
// in a wellness snapshot payload. Absent fields stay nil and preserve the
// stored values during merge.
type WellnessPatch struct {
	Date          time.Time
	Sleep         *SleepPatch
	Activity      *ActivityPatch
	Nutrition     *NutritionPatch
	Stress        *StressPatch
	Period        *PeriodPatch
	FocusSessions []any
	HasFocus      bool
}

// SleepPatch is a partial update to the sleep section.
type SleepPatch struct {
	Hours    *float64
	Quality  *float64
	Bedtime  *string
	WakeTime *string
}

// ActivityPatch is a partial update to the activity section.
type ActivityPatch struct {
	Steps          *float64
	ActiveMinutes  *float64
	CaloriesBurned *float64
	Workouts       []any
	HasWorkouts    bool
}

// NutritionPatch is a partial update to the nutrition section.
type NutritionPatch struct {
	WaterGlasses *float64
	Calories     *float64
	Meals        []any
	HasMeals     bool
}

// StressPatch is a partial update to the stress section.
type StressPatch struct {
	Level *float64
	Notes *string
}

// PeriodPatch is a partial update to the period section.
type PeriodPatch struct {
	Active      *bool
	Day         *float64
	CycleLength *float64
	Symptoms    []string
	HasSymptoms bool
}

// parseWellnessPatch parses a wellness snapshot payload. The entry day
// resolves payload.date, then the item's staging time, then now.
func parseWellnessPatch(payload map[string]any, item *Item, now time.Time) WellnessPatch {
	patch := WellnessPatch{}

	switch {
	case timeSet(payload, "date", &patch.Date):
	case !item.Created.IsZero():
		patch.Date = item.Created.UTC()
	default:
		patch.Date = now.UTC()
	}

	if section := subMap(payload, "sleep"); section != nil {
		patch.Sleep = &SleepPatch{
			Hours:    numberPtr(section, "hours"),
			Quality:  numberPtr(section, "quality"),
			Bedtime:  stringPtr(section, "bedtime"),
			WakeTime: stringPtr(section, "wakeTime"),
		}
	}
	if section := subMap(payload, "activity"); section != nil {
		activity := &ActivityPatch{
			Steps:          numberPtr(section, "steps"),
			ActiveMinutes:  numberPtr(section, "activeMinutes"),
			CaloriesBurned: numberPtr(section, "caloriesBurned"),
		}
		if raw, ok := section["workouts"].([]any); ok {
			activity.Workouts = raw
			activity.HasWorkouts = true
		}
		patch.Activity = activity
	}
	if section := subMap(payload, "nutrition"); section != nil {
		nutrition := &NutritionPatch{
			WaterGlasses: numberPtr(section, "waterGlasses"),
			Calories:     numberPtr(section, "calories"),
		}
		if raw, ok := section["meals"].([]any); ok {
			nutrition.Meals = raw
			nutrition.HasMeals = true
		}
		patch.Nutrition = nutrition
	}
	if section := subMap(payload, "stress"); section != nil {
		patch.Stress = &StressPatch{
			Level: numberPtr(section, "level"),
			Notes: stringPtr(section, "notes"),
		}
	}
	if section := subMap(payload, "period"); section != nil {
		period := &PeriodPatch{
			Active:      boolPtr(section, "active"),
			Day:         numberPtr(section, "day"),
			CycleLength: numberPtr(section, "cycleLength"),
		}
		if _, ok := section["symptoms"].([]any); ok {
			period.Symptoms = stringList(section, "symptoms")
			period.HasSymptoms = true
		}
		patch.Period = period
	}
	if raw, ok := payload["focusSessions"].([]any); ok {
		patch.FocusSessions = raw
		patch.HasFocus = true
	}

	return patch
}

// --- Calendar events ---

var (
	calendarCategories = []string{"work", "personal", "family", "health", "social", "travel", "other"}
	energyLevels       = []string{"low", "medium", "high"}
)

// CalendarEventPatch is the parsed form of a calendar event payload.
type CalendarEventPatch struct {
	Title          string
	Description    string
	Location       string
	StartTime      time.Time
	EndTime        time.Time
	AllDay         bool
	IsFlexible     bool
	Category       string
	EnergyRequired string
}

// parseCalendarEventPatch applies the calendar transform rules: title falls
// back to "Untitled event" because the collection requires one; endTime
// defaults to startTime + 1h when absent; category and energyRequired are
// validated against their closed enum sets.
func parseCalendarEventPatch(payload map[string]any, item *Item, now time.Time) CalendarEventPatch {
	patch := CalendarEventPatch{
		Title:          fallbackString(getString(payload, "title"), "Untitled event"),
		Description:    getString(payload, "description"),
		Location:       getString(payload, "location"),
		AllDay:         getBool(payload, "allDay"),
		IsFlexible:     getBool(payload, "isFlexible"),
		Category:       pickEnum(getString(payload, "category"), calendarCategories, "other"),
		EnergyRequired: pickEnum(getString(payload, "energyRequired"), energyLevels, "medium"),
	}

	switch {
	case timeSet(payload, "startTime", &patch.StartTime):
	case !item.Created.IsZero():
		patch.StartTime = item.Created.UTC()
	default:
		patch.StartTime = now.UTC()
	}

	if !timeSet(payload, "endTime", &patch.EndTime) {
		patch.EndTime = patch.StartTime.Add(time.Hour)
	}
	return patch
}

// --- Tasks ---

var (
	taskStatuses   = []string{"pending", "in_progress", "completed", "cancelled"}
	taskPriorities = []string{"low", "medium", "high", "urgent"}
)

// TaskPatch is the parsed form of a task payload. The trailing arrays are
// pass-through fields the pipeline stores verbatim.
type TaskPatch struct {
	Title           string
	Description     string
	Status          string
	Priority        string
	EnergyLevel     string
	DueDate         *time.Time
	Tags            []string
	Dependencies    []string
	Subtasks        []any
	Reminders       []any
	ContextTriggers []any
	Attachments     []any
	AISuggestions   []any
}

// parseTaskPatch applies the task transform rules: a required-field title
// fallback, closed enums with pending/medium/medium fallbacks, an optional
// nullable due date, and pass-through arrays defaulting to empty.
func parseTaskPatch(payload map[string]any) TaskPatch {
	patch := TaskPatch{
		Title:           fallbackString(getString(payload, "title"), "Untitled task"),
		Description:     getString(payload, "description"),
		Status:          pickEnum(getString(payload, "status"), taskStatuses, "pending"),
		Priority:        pickEnum(getString(payload, "priority"), taskPriorities, "medium"),
		EnergyLevel:     pickEnum(getString(payload, "energyLevel"), energyLevels, "medium"),
		Tags:            stringList(payload, "tags"),
		Dependencies:    stringList(payload, "dependencies"),
		Subtasks:        anyList(payload, "subtasks"),
		Reminders:       anyList(payload, "reminders"),
		ContextTriggers: anyList(payload, "contextTriggers"),
		Attachments:     anyList(payload, "attachments"),
		AISuggestions:   anyList(payload, "aiSuggestions"),
	}

	if due, ok := parseTime(payload["dueDate"]); ok {
		patch.DueDate = &due
	}
	return patch
}
