package domain

import (
	"strconv"
	"strings"
)

// WorkoutLog is the payload of one workout-history record.
type WorkoutLog struct {
	Date      string        `json:"date"`
	Name      string        `json:"name,omitempty"`
	Exercises []ExerciseLog `json:"exercises"`
}

// ExerciseLog is one exercise performed in a workout.
type ExerciseLog struct {
	Name string   `json:"name"`
	Sets []SetLog `json:"sets"`
}

// SetLog is one set. A nil Completed flag counts as completed.
type SetLog struct {
	Weight    float64 `json:"weight"`
	Reps      int     `json:"reps"`
	Completed *bool   `json:"completed,omitempty"`
}

// IsCompleted reports whether the set counts towards statistics.
func (s SetLog) IsCompleted() bool {
	return s.Completed == nil || *s.Completed
}

// Validate implements Payload.
func (w WorkoutLog) Validate() error {
	if err := validateDay(w.Date); err != nil {
		return err
	}
	for i, ex := range w.Exercises {
		if strings.TrimSpace(ex.Name) == "" {
			return invalid("exercise %d: name is required", i)
		}
		for j, set := range ex.Sets {
			if set.Weight < 0 || set.Reps < 0 {
				return invalid("exercise %q set %d: weight and reps must be >= 0", ex.Name, j)
			}
		}
	}
	return nil
}

// WorkoutHistoryEntry is the read-only view of a workout consumed by aggregation.
type WorkoutHistoryEntry struct {
	ID string
	// SortKey is a numeric chronological key. Empty falls back to ID.
	SortKey   string
	Date      string
	Exercises []ExerciseLog
}

// HistoryFromRecords flattens workout records into aggregation input.
func HistoryFromRecords(records []Record[WorkoutLog]) []WorkoutHistoryEntry {
	out := make([]WorkoutHistoryEntry, 0, len(records))
	for _, rec := range records {
		entry := WorkoutHistoryEntry{
			ID:        rec.ID,
			Date:      rec.Payload.Date,
			Exercises: rec.Payload.Exercises,
		}
		// Neither provisional nor confirmed ids are numeric; the device-side
		// creation time orders sessions the same way in both states.
		if !rec.CreatedAt.IsZero() {
			entry.SortKey = strconv.FormatInt(rec.CreatedAt.UnixMilli(), 10)
		}
		out = append(out, entry)
	}
	return out
}
