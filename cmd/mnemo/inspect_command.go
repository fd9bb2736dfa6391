package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mnemo/internal/inspector"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Report the state of the last extraction run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, ctx, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the report as JSON")
	return cmd
}

// inspectView is the stable JSON shape of an inspection report.
type inspectView struct {
	Situation   string     `json:"situation"`
	OwnerPID    int        `json:"owner_pid,omitempty"`
	OwnerAlive  bool       `json:"owner_alive,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	LastUpdate  *time.Time `json:"last_update,omitempty"`
	Total       int        `json:"total,omitempty"`
	Completed   int        `json:"completed,omitempty"`
	Failed      int        `json:"failed,omitempty"`
	Remaining   int        `json:"remaining,omitempty"`
	Memories    int        `json:"memories,omitempty"`
	Resumable   bool       `json:"resumable"`
	Clearable   bool       `json:"clearable"`
	Suggestions []string   `json:"suggestions,omitempty"`
}

func runInspect(cmd *cobra.Command, ctx *commandContext, asJSON bool) error {
	states, err := ctx.stateStore()
	if err != nil {
		return err
	}

	report, err := inspector.New(states).Inspect()
	if err != nil {
		return err
	}

	view := buildInspectView(report)
	out := cmd.OutOrStdout()
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(view)
	}

	fmt.Fprintf(out, "Situation:  %s\n", view.Situation)
	if report.State != nil {
		fmt.Fprintf(out, "Started:    %s\n", report.State.StartedAt.Local().Format(time.RFC1123))
		fmt.Fprintf(out, "Updated:    %s\n", report.State.LastUpdate.Local().Format(time.RFC1123))
		fmt.Fprintf(out, "Owner pid:  %d (alive: %s)\n", report.State.OwnerPID, yesNo(report.OwnerAlive))
		fmt.Fprintln(out)
		fmt.Fprintln(out, renderTable(
			[]string{"Total", "Completed", "Failed", "Remaining", "Memories"},
			[][]string{{
				fmt.Sprint(view.Total),
				fmt.Sprint(view.Completed),
				fmt.Sprint(view.Failed),
				fmt.Sprint(view.Remaining),
				fmt.Sprint(view.Memories),
			}},
			0, 1, 2, 3, 4,
		))
	}
	for _, suggestion := range view.Suggestions {
		fmt.Fprintf(out, "hint: %s\n", suggestion)
	}
	return nil
}

func buildInspectView(report inspector.Report) inspectView {
	view := inspectView{
		Situation: string(report.Situation),
		Resumable: report.Resumable,
		Clearable: report.Clearable,
	}
	if report.State != nil {
		counts := report.State.Count()
		startedAt := report.State.StartedAt
		lastUpdate := report.State.LastUpdate
		view.OwnerPID = report.State.OwnerPID
		view.OwnerAlive = report.OwnerAlive
		view.StartedAt = &startedAt
		view.LastUpdate = &lastUpdate
		view.Total = counts.Total
		view.Completed = counts.Completed
		view.Failed = counts.Failed
		view.Remaining = counts.Remaining
		view.Memories = counts.Memories
	}

	switch report.Situation {
	case inspector.SituationNoState:
		view.Suggestions = append(view.Suggestions, "no extraction has run; use `mnemo extract`")
	case inspector.SituationCrashed:
		view.Suggestions = append(view.Suggestions,
			"the last run died without finishing; `mnemo resume` continues it, `mnemo clear` discards it")
	case inspector.SituationFailed:
		view.Suggestions = append(view.Suggestions, "some transcripts failed; `mnemo resume` retries them")
	case inspector.SituationCorrupt:
		view.Suggestions = append(view.Suggestions, "state file unreadable; `mnemo clear --force` removes it")
	case inspector.SituationCancelled:
		if view.Remaining > 0 {
			view.Suggestions = append(view.Suggestions, "`mnemo resume` continues where the run stopped")
		}
	}
	return view
}
