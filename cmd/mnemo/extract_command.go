package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"mnemo/internal/logging"
	"mnemo/internal/preflight"
	"mnemo/internal/watchdog"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run memory extraction over pending transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, ctx, resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "Skip transcripts already completed in a previous run")
	return cmd
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted extraction run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, ctx, true)
		},
	}
}

func runExtract(cmd *cobra.Command, ctx *commandContext, resume bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	results := preflight.RunAll(cmd.Context(), cfg)
	if failures := preflight.Failures(results); len(failures) != 0 {
		for _, failure := range failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "preflight: %s: %s\n", failure.Name, failure.Detail)
		}
		return fmt.Errorf("preflight failed (%d check(s))", len(failures))
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	reg, err := ctx.registryStore()
	if err != nil {
		return err
	}
	states, err := ctx.stateStore()
	if err != nil {
		return err
	}

	workerArgs := []string{"worker"}
	if ctx.configFlag != nil && *ctx.configFlag != "" {
		workerArgs = append(workerArgs, "--config", *ctx.configFlag)
	}

	sup := watchdog.New(watchdog.Options{
		Registry:    reg,
		States:      states,
		WorkerArgs:  workerArgs,
		GracePeriod: time.Duration(cfg.GracePeriod()) * time.Second,
		Progress:    newProgressRenderer(os.Stderr),
		Logger:      logger,
	})

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := sup.Run(runCtx, resume)
	if err != nil {
		return err
	}

	printer := message.NewPrinter(language.English)
	if runCtx.Err() != nil {
		printer.Fprintf(out, "Cancelled after %d transcript(s); run `mnemo resume` to continue.\n", result.Transcripts)
		return nil
	}

	printer.Fprintf(out, "Extracted %d memories from %d transcript(s) in %s.\n",
		result.Memories, result.Transcripts, result.Elapsed.Round(time.Second))
	for _, errText := range result.Errors {
		fmt.Fprintf(out, "  warning: %s\n", errText)
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d transcript(s) failed; they remain pending for the next run", result.Failed)
	}
	return nil
}
