package domain

// Goals is the user's current target set. The collection holds at most one
// record per logical goal set and is written through Engine.Save.
type Goals struct {
	DailyCalories  float64 `json:"dailyCalories"`
	ProteinG       float64 `json:"proteinG"`
	CarbsG         float64 `json:"carbsG"`
	FatG           float64 `json:"fatG"`
	TargetWeight   float64 `json:"targetWeight,omitempty"`
	WeightUnit     string  `json:"weightUnit,omitempty"`
	WeeklyWorkouts int     `json:"weeklyWorkouts,omitempty"`
}

// Validate implements Payload.
func (g Goals) Validate() error {
	if g.DailyCalories <= 0 {
		return invalid("dailyCalories must be > 0")
	}
	if g.ProteinG < 0 || g.CarbsG < 0 || g.FatG < 0 {
		return invalid("macro targets must be >= 0")
	}
	if g.TargetWeight < 0 {
		return invalid("targetWeight must be >= 0")
	}
	if g.TargetWeight > 0 && g.WeightUnit != UnitKilograms && g.WeightUnit != UnitPounds {
		return invalid("weightUnit must be %q or %q", UnitKilograms, UnitPounds)
	}
	if g.WeeklyWorkouts < 0 {
		return invalid("weeklyWorkouts must be >= 0")
	}
	return nil
}
