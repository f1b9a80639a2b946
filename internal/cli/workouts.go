package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"example.com/fittracker/internal/domain"
)

// NewWorkoutsCommand creates the workouts command group.
func NewWorkoutsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workouts",
		Short: "Log workouts and browse history",
	}
	cmd.AddCommand(newWorkoutsListCommand(opts))
	cmd.AddCommand(newWorkoutsAddCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts, "workout", func(ctx context.Context, s *session, id string) error {
		return deleteRecord(ctx, s.out, s.Workouts, id)
	}))
	return cmd
}

func newWorkoutsListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List logged workouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(s *session) error {
				return listRecords(cmd.Context(), s.out, s.Workouts, func(w io.Writer, rec domain.Record[domain.WorkoutLog]) {
					names := make([]string, 0, len(rec.Payload.Exercises))
					for _, ex := range rec.Payload.Exercises {
						names = append(names, fmt.Sprintf("%s x%d", ex.Name, len(ex.Sets)))
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ID, rec.Payload.Date, rec.Payload.Name, strings.Join(names, ", "))
				})
			})
		},
	}
}

func newWorkoutsAddCommand(opts *RootOptions) *cobra.Command {
	var (
		workout domain.WorkoutLog
		sets    []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log a workout",
		Long: `Log a workout. Each --set is EXERCISE=WEIGHTxREPS, for example
--set "Bench Press=100x5". Append ":skip" to record a set that was not
completed; skipped sets are kept but do not count towards statistics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exercises, err := ParseSets(sets)
			if err != nil {
				return err
			}
			workout.Exercises = exercises
			if workout.Date == "" {
				workout.Date = opts.today()
			}
			return withSession(opts, cmd, func(s *session) error {
				return addRecord(cmd.Context(), s.out, s.Workouts, workout)
			})
		},
	}
	cmd.Flags().StringVar(&workout.Date, "date", "", "workout day (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&workout.Name, "name", "", "workout name")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "set as EXERCISE=WEIGHTxREPS[:skip] (repeatable)")
	return cmd
}

// ParseSets groups EXERCISE=WEIGHTxREPS[:skip] flags into exercises, keeping
// the order in which each exercise first appears.
func ParseSets(values []string) ([]domain.ExerciseLog, error) {
	var out []domain.ExerciseLog
	index := map[string]int{}
	for _, value := range values {
		name, set, err := parseSet(value)
		if err != nil {
			return nil, err
		}
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, domain.ExerciseLog{Name: name})
		}
		out[i].Sets = append(out[i].Sets, set)
	}
	return out, nil
}

func parseSet(value string) (string, domain.SetLog, error) {
	bad := func() (string, domain.SetLog, error) {
		return "", domain.SetLog{}, fmt.Errorf("%w: set %q must look like Bench=100x5", domain.ErrInvalidInput, value)
	}

	name, spec, ok := strings.Cut(value, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return bad()
	}
	spec, flag, _ := strings.Cut(strings.TrimSpace(spec), ":")
	weightText, repsText, ok := strings.Cut(strings.ToLower(spec), "x")
	if !ok {
		return bad()
	}
	weight, err := strconv.ParseFloat(strings.TrimSpace(weightText), 64)
	if err != nil {
		return bad()
	}
	reps, err := strconv.Atoi(strings.TrimSpace(repsText))
	if err != nil {
		return bad()
	}

	set := domain.SetLog{Weight: weight, Reps: reps}
	switch strings.TrimSpace(flag) {
	case "":
	case "skip":
		completed := false
		set.Completed = &completed
	default:
		return bad()
	}
	return name, set, nil
}
