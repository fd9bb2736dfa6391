package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mnemo/internal/inspector"
)

func newClearCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "clear-state",
		Aliases: []string{"clear"},
		Short:   "Remove the recorded extraction state",
		Long: "Remove the extraction state file so the next run starts fresh.\n" +
			"The transcript registry and stored memories are never touched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(cmd, ctx, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Remove the state even for an active run or an unreadable file")
	return cmd
}

func runClear(cmd *cobra.Command, ctx *commandContext, force bool) error {
	states, err := ctx.stateStore()
	if err != nil {
		return err
	}

	report, err := inspector.New(states).Inspect()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch report.Situation {
	case inspector.SituationNoState:
		fmt.Fprintln(out, "No extraction state recorded; nothing to clear.")
		return nil
	case inspector.SituationRunning:
		if !force {
			return fmt.Errorf("an extraction run is active (pid %d); pass --force to clear it anyway", report.State.OwnerPID)
		}
	case inspector.SituationCorrupt:
		if !force {
			return fmt.Errorf("state file is unreadable; pass --force to remove it")
		}
	}

	if err := states.Clear(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Cleared extraction state (%s).\n", report.Situation)
	return nil
}
