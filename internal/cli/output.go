package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"example.com/fittracker/internal/domain"
)

// Response is the JSON envelope every command writes with --format json.
type Response struct {
	Status string `json:"status"` // "ok" | "local_only"
	Data   any    `json:"data,omitempty"`
	// Warning carries the remote failure when the change was kept local only.
	Warning string `json:"warning,omitempty"`
}

type printer struct {
	format string
	w      io.Writer
}

// emit writes data in the configured format; text is called for text output.
func (p *printer) emit(data any, warn error, text func(w io.Writer)) error {
	if p.format == "json" {
		resp := Response{Status: "ok", Data: data}
		if warn != nil {
			resp.Status = "local_only"
			resp.Warning = warn.Error()
		}
		return json.NewEncoder(p.w).Encode(resp)
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	text(tw)
	if err := tw.Flush(); err != nil {
		return err
	}
	if warn != nil {
		fmt.Fprintf(p.w, "offline: %v\n", warn)
	}
	return nil
}

// syncNote describes where a reconciled change ended up.
func syncNote[P any](outcome domain.Outcome[P]) string {
	if outcome.Result == domain.AppliedLocalOnly {
		return "saved locally, will sync later"
	}
	if outcome.Op == domain.OperationDelete {
		return "deleted"
	}
	return "synced as " + outcome.Record.ID
}

// mutation is what add, save and delete commands print.
type mutation[P any] struct {
	Op      domain.Operation `json:"op"`
	LocalID string           `json:"localId"`
	Record  domain.Record[P] `json:"record"`
	Result  string           `json:"result"`
}

func printMutation[P any](p *printer, outcome domain.Outcome[P]) error {
	data := mutation[P]{Op: outcome.Op, LocalID: outcome.LocalID, Record: outcome.Record, Result: outcome.Result.String()}
	return p.emit(data, outcome.Err, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s: %s\n", outcome.Op, outcome.LocalID, syncNote(outcome))
	})
}

func trimFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
