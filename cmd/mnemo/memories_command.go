package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mnemo/internal/memstore"
)

func newMemoriesCommand(ctx *commandContext) *cobra.Command {
	memoriesCmd := &cobra.Command{
		Use:   "memories",
		Short: "Browse extracted memories",
	}
	memoriesCmd.AddCommand(newMemoriesListCommand(ctx))
	return memoriesCmd
}

func newMemoriesListCommand(ctx *commandContext) *cobra.Command {
	var transcriptID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List extracted memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := memstore.Open(cfg.MemoriesDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			memories, err := store.List(cmd.Context(), transcriptID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(memories) == 0 {
				fmt.Fprintln(out, "No memories stored.")
				return nil
			}

			rows := make([][]string, 0, len(memories))
			for _, memory := range memories {
				rows = append(rows, []string{
					shortID(memory.ID),
					memory.TranscriptID,
					memory.Type,
					fmt.Sprintf("%.2f", memory.Importance),
					strings.Join(memory.Tags, ","),
					truncate(memory.Content, 72),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Transcript", "Type", "Importance", "Tags", "Content"},
				rows,
				3,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&transcriptID, "transcript", "", "Only memories from this transcript")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
