package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"example.com/fittracker/internal/domain"
)

// NewFoodsCommand creates the foods command group.
func NewFoodsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foods",
		Short: "Log food and read daily nutrition totals",
	}
	cmd.AddCommand(newFoodsListCommand(opts))
	cmd.AddCommand(newFoodsAddCommand(opts))
	cmd.AddCommand(newFoodsTotalsCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts, "food entry", func(ctx context.Context, s *session, id string) error {
		return deleteRecord(ctx, s.out, s.Foods, id)
	}))
	return cmd
}

func newFoodsListCommand(opts *RootOptions) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logged food",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(s *session) error {
				if day == "" {
					return listRecords(cmd.Context(), s.out, s.Foods, foodRow)
				}
				_, warn := fetchRecords(cmd.Context(), s.Foods)
				records := s.FoodsOn(day)
				return s.out.emit(records, warn, func(w io.Writer) {
					for _, rec := range records {
						foodRow(w, rec)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&day, "date", "", "only show entries for this day (YYYY-MM-DD)")
	return cmd
}

func foodRow(w io.Writer, rec domain.Record[domain.FoodEntry]) {
	f := rec.Payload
	fmt.Fprintf(w, "%s\t%s\t%s\t%s kcal\tP %s\tC %s\tF %s\n",
		rec.ID, f.ConsumedOn, f.Name, trimFloat(f.Calories), trimFloat(f.ProteinG), trimFloat(f.CarbsG), trimFloat(f.FatG))
}

func newFoodsAddCommand(opts *RootOptions) *cobra.Command {
	var entry domain.FoodEntry
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log a food",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if entry.ConsumedOn == "" {
				entry.ConsumedOn = opts.today()
			}
			return withSession(opts, cmd, func(s *session) error {
				return addRecord(cmd.Context(), s.out, s.Foods, entry)
			})
		},
	}
	cmd.Flags().StringVar(&entry.Name, "name", "", "food name")
	cmd.Flags().StringVar(&entry.Meal, "meal", "", "meal (breakfast, lunch, ...)")
	cmd.Flags().Float64Var(&entry.Calories, "calories", 0, "calories per serving")
	cmd.Flags().Float64Var(&entry.ProteinG, "protein", 0, "protein grams per serving")
	cmd.Flags().Float64Var(&entry.CarbsG, "carbs", 0, "carbohydrate grams per serving")
	cmd.Flags().Float64Var(&entry.FatG, "fat", 0, "fat grams per serving")
	cmd.Flags().Float64Var(&entry.Servings, "servings", 0, "number of servings (default 1)")
	cmd.Flags().StringVar(&entry.ConsumedOn, "date", "", "day eaten (YYYY-MM-DD, default today)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newFoodsTotalsCommand(opts *RootOptions) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Show calorie and macro totals for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			if day == "" {
				day = opts.today()
			}
			return withSession(opts, cmd, func(s *session) error {
				_, warn := fetchRecords(cmd.Context(), s.Foods)
				if _, goalsWarn := fetchRecords(cmd.Context(), s.Goals); warn == nil {
					warn = goalsWarn
				}
				totals := s.Totals(day)
				return s.out.emit(totals, warn, func(w io.Writer) {
					fmt.Fprintf(w, "day\t%s\n", totals.Day)
					fmt.Fprintf(w, "entries\t%d\n", totals.Entries)
					fmt.Fprintf(w, "calories\t%s\n", trimFloat(totals.Calories))
					fmt.Fprintf(w, "protein\t%s g\n", trimFloat(totals.ProteinG))
					fmt.Fprintf(w, "carbs\t%s g\n", trimFloat(totals.CarbsG))
					fmt.Fprintf(w, "fat\t%s g\n", trimFloat(totals.FatG))
					if _, ok := s.CurrentGoals(); ok {
						fmt.Fprintf(w, "remaining\t%s kcal\n", trimFloat(totals.Remaining))
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&day, "date", "", "day to total (YYYY-MM-DD, default today)")
	return cmd
}
