package sync

import (
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// WellnessUpserter writes day-bucketed wellness entries. One entry exists
// per user per day, keyed by day_key = "{userId}_{YYYY-MM-DD}", and payload
// sections are merged key-by-key: only keys explicitly present in the
// payload overwrite stored values. Two snapshots touching the same day
// apply in arrival order, which the worker guarantees by processing items
// sequentially.
type WellnessUpserter struct {
	baseUpserter
}

// EntityType returns the entity discriminator this upserter handles.
func (u *WellnessUpserter) EntityType() string {
	return EntityWellnessSnapshot
}

// wellnessSections are the merged JSON sections of a wellness entry.
var wellnessSections = []string{"sleep", "activity", "nutrition", "stress", "period"}

// defaultWellnessSections is the full skeleton a fresh day entry starts
// from. Numeric defaults apply only on creation; merges never reset them.
func defaultWellnessSections() map[string]map[string]any {
	return map[string]map[string]any{
		"sleep": {
			"hours":    0.0,
			"quality":  5.0,
			"bedtime":  "",
			"wakeTime": "",
		},
		"activity": {
			"steps":          0.0,
			"activeMinutes":  0.0,
			"caloriesBurned": 0.0,
			"workouts":       []any{},
		},
		"nutrition": {
			"meals":        []any{},
			"waterGlasses": 0.0,
			"calories":     0.0,
		},
		"stress": {
			"level": 0.0,
			"notes": "",
		},
		"period": {
			"active":      false,
			"day":         0.0,
			"cycleLength": 28.0,
			"symptoms":    []any{},
		},
	}
}

// Upsert merges a wellness snapshot into its user-day entry.
func (u *WellnessUpserter) Upsert(item *Item) (Result, error) {
	patch := parseWellnessPatch(item.Payload, item, u.now())
	dayKey := fmt.Sprintf("%s_%s", item.UserID, patch.Date.Format("2006-01-02"))

	record, created, err := u.findOrCreateDay(item.UserID, dayKey, patch)
	if err != nil {
		return Result{}, err
	}

	sections := map[string]map[string]any{}
	for _, name := range wellnessSections {
		section := map[string]any{}
		if err := record.UnmarshalJSONField(name, &section); err != nil || len(section) == 0 {
			section = defaultWellnessSections()[name]
		}
		sections[name] = section
	}
	focus := []any{}
	_ = record.UnmarshalJSONField("focus_sessions", &focus)

	sections, focus = mergeWellness(sections, focus, patch)

	for _, name := range wellnessSections {
		record.Set(name, sections[name])
	}
	record.Set("focus_sessions", focus)

	if err := u.app.Save(record); err != nil {
		return Result{}, fmt.Errorf("saving wellness entry %s: %w", dayKey, err)
	}

	externalID := resolveExternalID(item.Payload, item)
	if err := u.mappings.Save(item.UserID, item.Provider, EntityWellnessSnapshot,
		externalID, record.Id, item.Checksum); err != nil {
		return Result{}, err
	}

	if created {
		return Result{Created: 1}, nil
	}
	return Result{Updated: 1}, nil
}

// findOrCreateDay loads the user-day entry or creates it with the full
// default skeleton before any merging happens.
func (u *WellnessUpserter) findOrCreateDay(userID, dayKey string, patch WellnessPatch) (*core.Record, bool, error) {
	records, err := u.app.FindRecordsByFilter(
		u.schema.WellnessEntries,
		"day_key = {:dayKey}",
		"",
		1,
		0,
		dbx.Params{"dayKey": dayKey},
	)
	if err != nil {
		return nil, false, fmt.Errorf("finding wellness entry %s: %w", dayKey, err)
	}
	if len(records) > 0 {
		return records[0], false, nil
	}

	col, err := u.app.FindCollectionByNameOrId(u.schema.WellnessEntries)
	if err != nil {
		return nil, false, fmt.Errorf("finding collection %s: %w", u.schema.WellnessEntries, err)
	}

	record := core.NewRecord(col)
	record.Set("user", userID)
	record.Set("day_key", dayKey)
	record.Set("date", patch.Date)
	for name, section := range defaultWellnessSections() {
		record.Set(name, section)
	}
	record.Set("focus_sessions", []any{})
	return record, true, nil
}

// mergeWellness applies a patch onto the stored sections, touching only the
// keys the patch carries. It returns the merged sections and focus list.
func mergeWellness(sections map[string]map[string]any, focus []any, patch WellnessPatch) (map[string]map[string]any, []any) {
	if patch.Sleep != nil {
		applyNumber(sections["sleep"], "hours", patch.Sleep.Hours)
		applyNumber(sections["sleep"], "quality", patch.Sleep.Quality)
		applyString(sections["sleep"], "bedtime", patch.Sleep.Bedtime)
		applyString(sections["sleep"], "wakeTime", patch.Sleep.WakeTime)
	}
	if patch.Activity != nil {
		applyNumber(sections["activity"], "steps", patch.Activity.Steps)
		applyNumber(sections["activity"], "activeMinutes", patch.Activity.ActiveMinutes)
		applyNumber(sections["activity"], "caloriesBurned", patch.Activity.CaloriesBurned)
		if patch.Activity.HasWorkouts {
			sections["activity"]["workouts"] = patch.Activity.Workouts
		}
	}
	if patch.Nutrition != nil {
		applyNumber(sections["nutrition"], "waterGlasses", patch.Nutrition.WaterGlasses)
		applyNumber(sections["nutrition"], "calories", patch.Nutrition.Calories)
		if patch.Nutrition.HasMeals {
			sections["nutrition"]["meals"] = patch.Nutrition.Meals
		}
	}
	if patch.Stress != nil {
		applyNumber(sections["stress"], "level", patch.Stress.Level)
		applyString(sections["stress"], "notes", patch.Stress.Notes)
	}
	if patch.Period != nil {
		if patch.Period.Active != nil {
			sections["period"]["active"] = *patch.Period.Active
		}
		applyNumber(sections["period"], "day", patch.Period.Day)
		applyNumber(sections["period"], "cycleLength", patch.Period.CycleLength)
		if patch.Period.HasSymptoms {
			symptoms := make([]any, 0, len(patch.Period.Symptoms))
			for _, s := range patch.Period.Symptoms {
				symptoms = append(symptoms, s)
			}
			sections["period"]["symptoms"] = symptoms
		}
	}
	if patch.HasFocus {
		focus = patch.FocusSessions
	}
	return sections, focus
}

func applyNumber(section map[string]any, key string, value *float64) {
	if value != nil {
		section[key] = *value
	}
}

func applyString(section map[string]any, key string, value *string) {
	if value != nil {
		section[key] = *value
	}
}
