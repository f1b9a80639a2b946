package domain

import "strings"

// FoodEntry is one logged food in the nutrition log.
type FoodEntry struct {
	Name       string  `json:"name"`
	Meal       string  `json:"meal,omitempty"`
	Calories   float64 `json:"calories"`
	ProteinG   float64 `json:"proteinG"`
	CarbsG     float64 `json:"carbsG"`
	FatG       float64 `json:"fatG"`
	Servings   float64 `json:"servings,omitempty"`
	ConsumedOn string  `json:"consumedOn"`
}

// Validate implements Payload.
func (f FoodEntry) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return invalid("name is required")
	}
	if f.Calories < 0 || f.ProteinG < 0 || f.CarbsG < 0 || f.FatG < 0 {
		return invalid("calories and macros must be >= 0")
	}
	if f.Servings < 0 {
		return invalid("servings must be >= 0")
	}
	if err := validateDay(f.ConsumedOn); err != nil {
		return err
	}
	return nil
}
