package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"mnemo/internal/logging"
	"mnemo/internal/protocol"
	"mnemo/internal/registry"
	"mnemo/internal/runstate"
	"mnemo/internal/summarize"
	"mnemo/internal/transcript"
)

// Engine produces triage ranges and extracted memories for one transcript.
// Satisfied by summarize.Engine.
type Engine interface {
	Triage(ctx context.Context, tr *transcript.Transcript) (*summarize.TriageResult, error)
	Extract(ctx context.Context, tr *transcript.Transcript, ranges []summarize.Range) ([]summarize.Memory, error)
}

// MemorySink persists extracted memories. Satisfied by memstore.Store.
type MemorySink interface {
	Save(ctx context.Context, memories []summarize.Memory) (int, error)
}

// Options carries the collaborators for one worker run.
type Options struct {
	Registry *registry.Store
	States   *runstate.Store
	Engine   Engine
	Memories MemorySink
	// Output receives the progress protocol stream; normally os.Stdout.
	Output io.Writer
	Logger *slog.Logger
	// FallbackWindow is the message window used when triage fails.
	FallbackWindow int
}

// Worker drains the pending transcript set one transcript at a time.
type Worker struct {
	registry *registry.Store
	states   *runstate.Store
	engine   Engine
	memories MemorySink
	enc      *protocol.Encoder
	logger   *slog.Logger
	window   int

	loadTranscript func(id, path string) (*transcript.Transcript, error)
	pid            func() int
	now            func() time.Time
}

func New(opts Options) *Worker {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	window := opts.FallbackWindow
	if window <= 0 {
		window = 50
	}
	return &Worker{
		registry:       opts.Registry,
		states:         opts.States,
		engine:         opts.Engine,
		memories:       opts.Memories,
		enc:            protocol.NewEncoder(out),
		logger:         logging.NewComponentLogger(logger, "worker"),
		window:         window,
		loadTranscript: transcript.Load,
		pid:            os.Getpid,
		now:            time.Now,
	}
}

// Run processes every pending transcript and returns once the set is
// exhausted or ctx is cancelled. A transcript that fails is recorded as
// failed and the run moves on; Run itself only errors when the registry or
// state store is unusable. Cancellation is not an error: the in-flight
// transcript is put back to pending and the run stops with the state still
// marked running, for the supervisor to finalize.
func (w *Worker) Run(ctx context.Context, resume bool) error {
	pending, err := w.registry.ListPending()
	if err != nil {
		return fmt.Errorf("list pending transcripts: %w", err)
	}

	completed := map[string]struct{}{}
	var prior *runstate.ExtractionState
	if resume {
		prior, err = w.states.Load()
		if err != nil {
			return fmt.Errorf("load extraction state: %w", err)
		}
		if prior != nil {
			completed = prior.CompletedIDs()
		}
	}

	jobs := pending[:0:0]
	for _, record := range pending {
		if _, done := completed[record.ID]; done {
			// Completed in the recorded state but never flushed to the
			// registry: the previous run died in that window. Repair the
			// registry instead of redoing the transcript.
			if err := w.registry.MarkProcessed(record.ID, completedMemories(prior, record.ID)); err != nil {
				return fmt.Errorf("mark transcript processed: %w", err)
			}
			continue
		}
		jobs = append(jobs, record)
	}

	started := w.now()
	state := w.buildState(prior, jobs, started)
	if err := w.states.Save(state); err != nil {
		return fmt.Errorf("save extraction state: %w", err)
	}

	w.emit(protocol.Event{Type: protocol.TypeStart, Total: len(jobs)})
	w.logger.Info("run started", logging.Int("pending", len(jobs)), logging.Bool("resume", resume))

	totalMemories := 0
	processed := 0
	failed := 0
	for i, job := range jobs {
		if ctx.Err() != nil {
			state.SetTranscript(job.ID, runstate.TranscriptPending, 0, w.now())
			_ = w.states.Save(state)
			w.logger.Info("run interrupted", logging.Int("remaining", len(jobs)-i))
			return nil
		}

		state.SetTranscript(job.ID, runstate.TranscriptInProgress, 0, w.now())
		if err := w.states.Save(state); err != nil {
			return fmt.Errorf("save extraction state: %w", err)
		}
		w.emit(protocol.Event{
			Type:         protocol.TypeProgress,
			Current:      i + 1,
			Total:        len(jobs),
			TranscriptID: job.ID,
			Stage:        protocol.StageTriage,
		})

		count, err := w.processOne(ctx, job.ID, job.Path)
		if err != nil {
			if ctx.Err() != nil {
				state.SetTranscript(job.ID, runstate.TranscriptPending, 0, w.now())
				_ = w.states.Save(state)
				w.logger.Info("run interrupted", logging.Int("remaining", len(jobs)-i))
				return nil
			}
			failed++
			state.SetTranscript(job.ID, runstate.TranscriptFailed, 0, w.now())
			if saveErr := w.states.Save(state); saveErr != nil {
				return fmt.Errorf("save extraction state: %w", saveErr)
			}
			w.emit(protocol.Event{Type: protocol.TypeError, TranscriptID: job.ID, Message: err.Error()})
			w.logger.Error("transcript failed", logging.String(logging.FieldTranscriptID, job.ID), logging.Error(err))
			continue
		}

		state.SetTranscript(job.ID, runstate.TranscriptCompleted, count, w.now())
		if err := w.states.Save(state); err != nil {
			return fmt.Errorf("save extraction state: %w", err)
		}
		if err := w.registry.MarkProcessed(job.ID, count); err != nil {
			return fmt.Errorf("mark transcript processed: %w", err)
		}
		processed++
		totalMemories += count
	}

	state.Status = runstate.StatusCompleted
	if failed > 0 {
		state.Status = runstate.StatusFailed
	}
	state.Touch(w.now())
	if err := w.states.Save(state); err != nil {
		return fmt.Errorf("save extraction state: %w", err)
	}

	elapsed := w.now().Sub(started)
	w.emit(protocol.Event{
		Type:           protocol.TypeSummary,
		Transcripts:    processed,
		TotalMemories:  totalMemories,
		ElapsedSeconds: elapsed.Seconds(),
	})
	w.logger.Info("run finished",
		logging.Int("processed", processed),
		logging.Int("failed", failed),
		logging.Int("memories", totalMemories),
		logging.Duration("elapsed", elapsed))
	return nil
}

// processOne runs triage then extraction for a single transcript and returns
// the number of memories extracted. Triage failure degrades to the fallback
// window rather than failing the transcript.
func (w *Worker) processOne(ctx context.Context, id, path string) (int, error) {
	tr, err := w.loadTranscript(id, path)
	if err != nil {
		return 0, fmt.Errorf("load transcript: %w", err)
	}

	ranges, coverage, err := w.triage(ctx, tr)
	if err != nil {
		return 0, err
	}
	w.emit(protocol.Event{
		Type:         protocol.TypeTriageComplete,
		TranscriptID: id,
		Ranges:       len(ranges),
		Coverage:     coverage,
	})

	w.emit(protocol.Event{
		Type:         protocol.TypeProgress,
		TranscriptID: id,
		Stage:        protocol.StageExtraction,
	})
	memories, err := w.engine.Extract(ctx, tr, ranges)
	if err != nil {
		return 0, fmt.Errorf("extract memories: %w", err)
	}
	saved, err := w.memories.Save(ctx, memories)
	if err != nil {
		return 0, fmt.Errorf("save memories: %w", err)
	}
	if saved < len(memories) {
		w.logger.Info("duplicate memories skipped",
			logging.String(logging.FieldTranscriptID, id),
			logging.Int("skipped", len(memories)-saved))
	}

	w.emit(protocol.Event{
		Type:         protocol.TypeExtractionComplete,
		TranscriptID: id,
		Memories:     len(memories),
	})
	return len(memories), nil
}

// triage asks the engine for high-signal ranges, degrading to the trailing
// message window when the call fails. The degradation is surfaced on the
// protocol stream but does not fail the transcript.
func (w *Worker) triage(ctx context.Context, tr *transcript.Transcript) ([]summarize.Range, float64, error) {
	result, err := w.engine.Triage(ctx, tr)
	if err == nil {
		return result.Ranges, result.Coverage, nil
	}
	if ctx.Err() != nil {
		return nil, 0, err
	}

	w.emit(protocol.Event{
		Type:         protocol.TypeError,
		TranscriptID: tr.ID,
		Stage:        protocol.StageTriage,
		Message:      fmt.Sprintf("triage failed, using last %d messages: %v", w.window, err),
	})
	w.logger.Warn("triage degraded to fallback window",
		logging.String(logging.FieldTranscriptID, tr.ID),
		logging.Int("window", w.window),
		logging.Error(err))

	ranges := summarize.FallbackRange(tr, w.window)
	coverage := 0.0
	if len(tr.Messages) > 0 && len(ranges) > 0 {
		coverage = float64(ranges[0].End-ranges[0].Start) / float64(len(tr.Messages))
	}
	return ranges, coverage, nil
}

// buildState produces the snapshot for this run. On resume the prior
// snapshot's completed entries are preserved so counts survive the restart;
// everything else is reset to pending under this process's ownership.
func (w *Worker) buildState(prior *runstate.ExtractionState, jobs []registry.TranscriptRecord, now time.Time) *runstate.ExtractionState {
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}
	state := runstate.New(w.pid(), ids, now)
	if prior == nil {
		return state
	}
	done := make([]runstate.TranscriptState, 0, len(prior.Transcripts))
	for _, entry := range prior.Transcripts {
		if entry.Status == runstate.TranscriptCompleted {
			done = append(done, entry)
		}
	}
	state.Transcripts = append(done, state.Transcripts...)
	return state
}

func completedMemories(state *runstate.ExtractionState, id string) int {
	if state == nil {
		return 0
	}
	for _, entry := range state.Transcripts {
		if entry.ID == id {
			return entry.Memories
		}
	}
	return 0
}

func (w *Worker) emit(event protocol.Event) {
	if err := w.enc.Emit(event); err != nil {
		w.logger.Error("emit progress event", logging.Error(err))
	}
}
