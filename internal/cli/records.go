package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/syncengine"
)

// fetchRecords refreshes one collection and waits for the refresh to settle.
// A failed refresh returns the cached collection with the remote error.
func fetchRecords[P domain.Payload](ctx context.Context, engine *syncengine.Engine[P]) ([]domain.Record[P], error) {
	_, task := engine.Fetch(ctx)
	outcome := task.Wait()
	return outcome.Records, outcome.Err
}

func listRecords[P domain.Payload](ctx context.Context, p *printer, engine *syncengine.Engine[P], row func(io.Writer, domain.Record[P])) error {
	records, warn := fetchRecords(ctx, engine)
	return p.emit(records, warn, func(w io.Writer) {
		if len(records) == 0 {
			fmt.Fprintln(w, "no records")
			return
		}
		for _, rec := range records {
			row(w, rec)
		}
	})
}

func addRecord[P domain.Payload](ctx context.Context, p *printer, engine *syncengine.Engine[P], payload P) error {
	_, task, err := engine.Add(ctx, payload)
	if err != nil {
		return err
	}
	return printMutation(p, task.Wait())
}

func deleteRecord[P domain.Payload](ctx context.Context, p *printer, engine *syncengine.Engine[P], id string) error {
	task, err := engine.Delete(ctx, id)
	if err != nil {
		return err
	}
	return printMutation(p, task.Wait())
}

// newDeleteCommand builds the "<collection> delete <id>" subcommand.
func newDeleteCommand(opts *RootOptions, noun string, run func(context.Context, *session, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(s *session) error {
				return run(cmd.Context(), s, args[0])
			})
		},
	}
}
