package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"example.com/fittracker/internal/domain"
)

// NewGoalsCommand creates the goals command group.
func NewGoalsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "Show or replace nutrition and training goals",
	}
	cmd.AddCommand(newGoalsShowCommand(opts))
	cmd.AddCommand(newGoalsSaveCommand(opts))
	return cmd
}

func newGoalsShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(s *session) error {
				_, warn := fetchRecords(cmd.Context(), s.Goals)
				current, ok := s.CurrentGoals()
				var data any
				if ok {
					data = current
				}
				return s.out.emit(data, warn, func(w io.Writer) {
					if !ok {
						fmt.Fprintln(w, "no goals set")
						return
					}
					g := current.Payload
					fmt.Fprintf(w, "calories\t%s\n", trimFloat(g.DailyCalories))
					fmt.Fprintf(w, "protein\t%s g\n", trimFloat(g.ProteinG))
					fmt.Fprintf(w, "carbs\t%s g\n", trimFloat(g.CarbsG))
					fmt.Fprintf(w, "fat\t%s g\n", trimFloat(g.FatG))
					if g.TargetWeight > 0 {
						fmt.Fprintf(w, "target weight\t%s %s\n", trimFloat(g.TargetWeight), g.WeightUnit)
					}
					if g.WeeklyWorkouts > 0 {
						fmt.Fprintf(w, "workouts per week\t%d\n", g.WeeklyWorkouts)
					}
				})
			})
		},
	}
}

func newGoalsSaveCommand(opts *RootOptions) *cobra.Command {
	var goals domain.Goals
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Replace the current goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(s *session) error {
				_, task, err := s.SaveGoals(cmd.Context(), goals)
				if err != nil {
					return err
				}
				return printMutation(s.out, task.Wait())
			})
		},
	}
	cmd.Flags().Float64Var(&goals.DailyCalories, "calories", 0, "daily calorie target")
	cmd.Flags().Float64Var(&goals.ProteinG, "protein", 0, "daily protein grams")
	cmd.Flags().Float64Var(&goals.CarbsG, "carbs", 0, "daily carbohydrate grams")
	cmd.Flags().Float64Var(&goals.FatG, "fat", 0, "daily fat grams")
	cmd.Flags().Float64Var(&goals.TargetWeight, "target-weight", 0, "target body weight")
	cmd.Flags().StringVar(&goals.WeightUnit, "unit", domain.UnitKilograms, "target weight unit (kg|lb)")
	cmd.Flags().IntVar(&goals.WeeklyWorkouts, "weekly-workouts", 0, "workouts per week")
	return cmd
}
