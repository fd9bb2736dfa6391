package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mnemo/internal/logging"
	"mnemo/internal/memstore"
	"mnemo/internal/services/llm"
	"mnemo/internal/summarize"
	"mnemo/internal/worker"
)

// newWorkerCommand is the hidden entry point the supervisor spawns. It runs
// the extraction loop in this process, emitting protocol events on stdout
// and logging to the worker log file so stdout stays protocol-only.
func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:    "worker",
		Hidden: true,
		Short:  "Run the extraction worker loop (spawned by extract)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd, ctx, resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "Skip transcripts already completed in the recorded state")
	return cmd
}

func runWorker(cmd *cobra.Command, ctx *commandContext, resume bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	logger, closer, err := logging.NewFileLogger(cfg.WorkerLogPath(), cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("open worker log: %w", err)
	}
	defer closer.Close()

	reg, err := ctx.registryStore()
	if err != nil {
		return err
	}
	states, err := ctx.stateStore()
	if err != nil {
		return err
	}

	memories, err := memstore.Open(cfg.MemoriesDBPath())
	if err != nil {
		if errors.Is(err, memstore.ErrLocked) {
			return fmt.Errorf("memory store in use by another process: %w", err)
		}
		return fmt.Errorf("open memory store: %w", err)
	}
	defer memories.Close()

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		RetryAttempts:  cfg.Extraction.RetryAttempts,
	})

	w := worker.New(worker.Options{
		Registry:       reg,
		States:         states,
		Engine:         summarize.NewEngine(client),
		Memories:       memories,
		Output:         cmd.OutOrStdout(),
		Logger:         logger,
		FallbackWindow: cfg.Extraction.FallbackWindow,
	})

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return w.Run(runCtx, resume)
}
