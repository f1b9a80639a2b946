package domain

import "time"

// Weight units accepted by WeightEntry.
const (
	UnitKilograms = "kg"
	UnitPounds    = "lb"
)

// WeightEntry is one body-weight measurement in the progress log.
type WeightEntry struct {
	Weight     float64 `json:"weight"`
	Unit       string  `json:"unit"`
	MeasuredOn string  `json:"measuredOn"`
	Note       string  `json:"note,omitempty"`
}

// Validate implements Payload.
func (w WeightEntry) Validate() error {
	if w.Weight <= 0 {
		return invalid("weight must be > 0")
	}
	if w.Unit != UnitKilograms && w.Unit != UnitPounds {
		return invalid("unit must be %q or %q", UnitKilograms, UnitPounds)
	}
	return validateDay(w.MeasuredOn)
}

// Kilograms returns the measurement normalised to kilograms.
func (w WeightEntry) Kilograms() float64 {
	if w.Unit == UnitPounds {
		return w.Weight * 0.45359237
	}
	return w.Weight
}

// DayLayout is the calendar-day format used by every payload date field.
const DayLayout = "2006-01-02"

func validateDay(day string) error {
	if day == "" {
		return invalid("date is required")
	}
	if _, err := time.Parse(DayLayout, day); err != nil {
		return invalid("date %q must be YYYY-MM-DD", day)
	}
	return nil
}
