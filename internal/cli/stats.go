package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"example.com/fittracker/internal/aggregation"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	var metricName string
	cmd := &cobra.Command{
		Use:   "stats [exercise]",
		Short: "Show progress for an exercise",
		Long: `Show one exercise's progress across the workout history.

Without an exercise, lists the exercises that appear in the history.
Metrics: weight (heaviest set), volume (sum of weight x reps), reps (most
reps in a set) and estimated-max (best one-rep-max estimate).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			metric, err := aggregation.ParseMetric(metricName)
			if err != nil {
				return err
			}
			return withSession(opts, cmd, func(s *session) error {
				_, warn := fetchRecords(cmd.Context(), s.Workouts)
				if len(args) == 0 {
					names := aggregation.Exercises(s.History())
					return s.out.emit(names, warn, func(w io.Writer) {
						for _, name := range names {
							fmt.Fprintln(w, name)
						}
					})
				}

				summary := s.ExerciseStats(args[0], metric)
				return s.out.emit(summary, warn, func(w io.Writer) {
					if len(summary.Points) == 0 {
						fmt.Fprintf(w, "no completed sets for %s\n", summary.Exercise)
						return
					}
					for _, p := range summary.Points {
						fmt.Fprintf(w, "%s\t%s\t%s\n", p.Date, p.WorkoutID, trimFloat(p.Value))
					}
					fmt.Fprintf(w, "best\t%s\n", trimFloat(summary.PersonalBest))
					fmt.Fprintf(w, "current\t%s\n", trimFloat(summary.Current))
					fmt.Fprintf(w, "sets\t%d\n", summary.TotalSets)
					fmt.Fprintf(w, "reps\t%d\n", summary.TotalReps)
					fmt.Fprintf(w, "volume\t%s\n", trimFloat(summary.TotalVolume))
				})
			})
		},
	}
	cmd.Flags().StringVarP(&metricName, "metric", "m", string(aggregation.MetricWeight), "weight|volume|reps|estimated-max")
	return cmd
}
