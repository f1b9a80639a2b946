package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"example.com/fittracker/internal/tracker"
)

// CollectionStatus is one collection's state after a sync.
type CollectionStatus struct {
	Collection     string `json:"collection"`
	Records        int    `json:"records"`
	Provisional    int    `json:"provisional"`
	PendingDeletes int    `json:"pendingDeletes"`
	Error          string `json:"error,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Refresh every collection from the records API",
		Long: `Refresh every collection from the records API and retry deletes that
could not reach it earlier. Records created while offline stay on this
device under their local id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, cmd, func(s *session) error {
				ctx := cmd.Context()
				_, foods := s.Foods.Fetch(ctx)
				_, progress := s.Progress.Fetch(ctx)
				_, goals := s.Goals.Fetch(ctx)
				_, workouts := s.Workouts.Fetch(ctx)
				// Pending deletes are retried inside the fetch, so read them after Wait.
				f, pr, g, wo := foods.Wait(), progress.Wait(), goals.Wait(), workouts.Wait()

				statuses := []CollectionStatus{
					status(tracker.CollectionFoods, f.Records, f.Err, s.Foods.PendingDeletes()),
					status(tracker.CollectionProgress, pr.Records, pr.Err, s.Progress.PendingDeletes()),
					status(tracker.CollectionGoals, g.Records, g.Err, s.Goals.PendingDeletes()),
					status(tracker.CollectionWorkouts, wo.Records, wo.Err, s.Workouts.PendingDeletes()),
				}
				return s.out.emit(statuses, nil, func(w io.Writer) {
					for _, st := range statuses {
						state := "ok"
						if st.Error != "" {
							state = "offline: " + st.Error
						}
						fmt.Fprintf(w, "%s\t%d records\t%d local\t%d pending deletes\t%s\n",
							st.Collection, st.Records, st.Provisional, st.PendingDeletes, state)
					}
				})
			})
		},
	}
}

func status[R interface{ Provisional() bool }](collection string, records []R, err error, pending []string) CollectionStatus {
	st := CollectionStatus{Collection: collection, Records: len(records), PendingDeletes: len(pending)}
	for _, rec := range records {
		if rec.Provisional() {
			st.Provisional++
		}
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}
