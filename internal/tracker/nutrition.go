package tracker

import (
	"slices"

	"example.com/fittracker/internal/domain"
)

// DayTotals sums the food log for one calendar day.
type DayTotals struct {
	Day      string  `json:"day"`
	Entries  int     `json:"entries"`
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"proteinG"`
	CarbsG   float64 `json:"carbsG"`
	FatG     float64 `json:"fatG"`
	// Remaining is DailyCalories minus Calories; zero when no goals are set.
	Remaining float64 `json:"remaining"`
}

// FoodsOn returns the food entries consumed on day in log order.
func (t *Tracker) FoodsOn(day string) []domain.Record[domain.FoodEntry] {
	records := t.Foods.List()
	return slices.DeleteFunc(records, func(r domain.Record[domain.FoodEntry]) bool {
		return r.Payload.ConsumedOn != day
	})
}

// Totals sums the food log for day against the current goals. Servings
// multiply an entry's values; zero servings counts as one.
func (t *Tracker) Totals(day string) DayTotals {
	out := DayTotals{Day: day}
	for _, rec := range t.FoodsOn(day) {
		f := rec.Payload
		n := f.Servings
		if n == 0 {
			n = 1
		}
		out.Entries++
		out.Calories += f.Calories * n
		out.ProteinG += f.ProteinG * n
		out.CarbsG += f.CarbsG * n
		out.FatG += f.FatG * n
	}
	if goals, ok := t.CurrentGoals(); ok {
		out.Remaining = goals.Payload.DailyCalories - out.Calories
	}
	return out
}

// LatestWeight returns the most recent measurement by day, ties going to the
// later log entry.
func (t *Tracker) LatestWeight() (domain.Record[domain.WeightEntry], bool) {
	var latest domain.Record[domain.WeightEntry]
	found := false
	for _, rec := range t.Progress.List() {
		if !found || rec.Payload.MeasuredOn >= latest.Payload.MeasuredOn {
			latest = rec
			found = true
		}
	}
	return latest, found
}
