package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"example.com/fittracker/internal/domain"
)

// NewWeightCommand creates the weight command group.
func NewWeightCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weight",
		Short: "Log body weight and read progress",
	}
	cmd.AddCommand(newWeightListCommand(opts))
	cmd.AddCommand(newWeightAddCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts, "weight entry", func(ctx context.Context, s *session, id string) error {
		return deleteRecord(ctx, s.out, s.Progress, id)
	}))
	return cmd
}

func newWeightListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List weight measurements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(s *session) error {
				return listRecords(cmd.Context(), s.out, s.Progress, func(w io.Writer, rec domain.Record[domain.WeightEntry]) {
					e := rec.Payload
					fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\n", rec.ID, e.MeasuredOn, trimFloat(e.Weight), e.Unit, e.Note)
				})
			})
		},
	}
}

func newWeightAddCommand(opts *RootOptions) *cobra.Command {
	var entry domain.WeightEntry
	cmd := &cobra.Command{
		Use:   "add <weight>",
		Short: "Log a body-weight measurement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("%w: weight %q is not a number", domain.ErrInvalidInput, args[0])
			}
			entry.Weight = value
			if entry.MeasuredOn == "" {
				entry.MeasuredOn = opts.today()
			}
			return withSession(opts, cmd, func(s *session) error {
				return addRecord(cmd.Context(), s.out, s.Progress, entry)
			})
		},
	}
	cmd.Flags().StringVar(&entry.Unit, "unit", domain.UnitKilograms, "unit (kg|lb)")
	cmd.Flags().StringVar(&entry.MeasuredOn, "date", "", "day measured (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&entry.Note, "note", "", "free-form note")
	return cmd
}
