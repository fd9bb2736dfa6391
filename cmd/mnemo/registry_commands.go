package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mnemo/internal/transcript"
)

func newRegistryCommand(ctx *commandContext) *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the transcript registry",
	}
	registryCmd.AddCommand(newRegistryAddCommand(ctx))
	registryCmd.AddCommand(newRegistryListCommand(ctx))
	registryCmd.AddCommand(newRegistryScanCommand(ctx))
	return registryCmd
}

func newRegistryAddCommand(ctx *commandContext) *cobra.Command {
	var idFlag string

	cmd := &cobra.Command{
		Use:   "add <transcript.jsonl>",
		Short: "Register a transcript file for extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registryStore()
			if err != nil {
				return err
			}
			path := args[0]
			id := idFlag
			if id == "" {
				id = transcript.IDFromPath(path)
			}
			added, err := reg.Register(id, path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !added {
				fmt.Fprintf(out, "Transcript %s already registered.\n", id)
				return nil
			}
			fmt.Fprintf(out, "Registered %s (%s).\n", id, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&idFlag, "id", "", "Transcript id (defaults to the file name without extension)")
	return cmd
}

func newRegistryListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.registryStore()
			if err != nil {
				return err
			}
			records, err := reg.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No transcripts registered.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				processedAt := ""
				if record.ProcessedAt != nil {
					processedAt = record.ProcessedAt.Local().Format(time.RFC1123)
				}
				rows = append(rows, []string{
					record.ID,
					yesNo(record.Processed),
					fmt.Sprint(record.MemoriesExtracted),
					processedAt,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Processed", "Memories", "Processed At"},
				rows,
				2,
			))
			return nil
		},
	}
}

func newRegistryScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Register every transcript found in the transcripts directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg, err := ctx.registryStore()
			if err != nil {
				return err
			}
			added, err := reg.Scan(cfg.Paths.TranscriptsDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %d new transcript(s) from %s.\n", added, cfg.Paths.TranscriptsDir)
			return nil
		},
	}
}
