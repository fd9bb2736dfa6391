// Package watchdog supervises extraction runs. The supervisor never performs
// extraction itself: it spawns the worker as a separate OS process, consumes
// the progress protocol from the worker's stdout, and owns cancellation and
// final status accounting. A worker fault therefore cannot corrupt the
// supervisor, and a supervisor crash leaves a state file the inspector can
// classify.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"mnemo/internal/inspector"
	"mnemo/internal/logging"
	"mnemo/internal/protocol"
	"mnemo/internal/registry"
	"mnemo/internal/runstate"
)

var commandContext = exec.CommandContext

var executable = os.Executable

// ErrRunActive is returned when another extraction run owns the state file.
var ErrRunActive = errors.New("an extraction run is already active")

// ErrNotResumable is returned when resume is requested but the recorded
// state offers nothing to resume.
var ErrNotResumable = errors.New("no resumable extraction state")

// ProgressSink receives every event read from the worker, in order. The CLI
// plugs a terminal renderer in here; tests plug a recorder.
type ProgressSink interface {
	Event(event protocol.Event)
}

// Result summarizes one supervised run.
type Result struct {
	Transcripts int
	Memories    int
	Failed      int
	Elapsed     time.Duration
	// Errors holds worker-reported per-transcript errors and degradations.
	Errors []string
	// MalformedLines counts protocol lines that could not be decoded.
	MalformedLines int
}

// Options carries the collaborators for a supervisor.
type Options struct {
	Registry *registry.Store
	States   *runstate.Store
	// WorkerArgs are passed to the spawned process after the program path;
	// the resume flag is appended when resuming.
	WorkerArgs []string
	// GracePeriod is how long a signalled worker gets to exit before it is
	// killed outright.
	GracePeriod time.Duration
	Progress    ProgressSink
	Logger      *slog.Logger
}

// Supervisor runs and watches one worker process at a time.
type Supervisor struct {
	registry *registry.Store
	states   *runstate.Store
	insp     *inspector.Inspector
	args     []string
	grace    time.Duration
	progress ProgressSink
	logger   *slog.Logger

	now func() time.Time
}

func New(opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	args := opts.WorkerArgs
	if len(args) == 0 {
		args = []string{"worker"}
	}
	grace := opts.GracePeriod
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return &Supervisor{
		registry: opts.Registry,
		states:   opts.States,
		insp:     inspector.New(opts.States),
		args:     args,
		grace:    grace,
		progress: opts.Progress,
		logger:   logging.NewComponentLogger(logger, "watchdog"),
		now:      time.Now,
	}
}

// Run executes one extraction run to completion or cancellation. With resume
// set, transcripts already completed in the recorded state are skipped;
// otherwise a fresh run covers everything still pending in the registry.
//
// Run refuses to start while another run's owner process is alive, and it
// never returns with the state file still claiming running.
func (s *Supervisor) Run(ctx context.Context, resume bool) (Result, error) {
	remaining, err := s.gate(resume)
	if err != nil {
		return Result{}, err
	}
	if remaining == 0 {
		s.logger.Info("nothing to extract")
		return Result{}, nil
	}

	program, err := executable()
	if err != nil {
		return Result{}, fmt.Errorf("locate worker program: %w", err)
	}
	args := s.args
	if resume {
		args = append(append([]string{}, args...), "--resume")
	}

	started := s.now()
	if err := s.prepareState(resume, started); err != nil {
		return Result{}, err
	}

	cmd := commandContext(ctx, program, args...)
	cmd.Cancel = func() error {
		s.logger.Info("stopping worker", logging.Int("pid", cmd.Process.Pid), logging.Duration("grace", s.grace))
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = s.grace
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start worker: %w", err)
	}
	s.logger.Info("worker started", logging.Int("pid", cmd.Process.Pid), logging.Int("pending", remaining))
	s.recordOwner(cmd.Process.Pid)

	result := s.consume(stdout)
	waitErr := cmd.Wait()

	result.Elapsed = s.now().Sub(started)
	cancelled := ctx.Err() != nil
	if err := s.finalize(cancelled); err != nil {
		return result, err
	}
	s.tally(&result)
	if cancelled {
		s.logger.Info("run cancelled", logging.Int("transcripts", result.Transcripts))
		return result, nil
	}
	if waitErr != nil {
		return result, fmt.Errorf("worker exited abnormally: %w", waitErr)
	}
	return result, nil
}

// gate enforces the single-run rule and computes the remaining transcript
// count; zero remaining means the caller can skip spawning entirely.
func (s *Supervisor) gate(resume bool) (int, error) {
	report, err := s.insp.Inspect()
	if err != nil {
		return 0, err
	}
	switch report.Situation {
	case inspector.SituationRunning:
		return 0, fmt.Errorf("%w (pid %d)", ErrRunActive, report.State.OwnerPID)
	case inspector.SituationCorrupt:
		return 0, fmt.Errorf("state file is corrupt; run clear --force before extracting")
	}
	if resume && !report.Resumable && report.Situation != inspector.SituationNoState {
		return 0, ErrNotResumable
	}

	pending, err := s.registry.ListPending()
	if err != nil {
		return 0, fmt.Errorf("list pending transcripts: %w", err)
	}
	if !resume || report.State == nil {
		return len(pending), nil
	}
	completed := report.State.CompletedIDs()
	remaining := 0
	for _, record := range pending {
		if _, done := completed[record.ID]; !done {
			remaining++
		}
	}
	return remaining, nil
}

// prepareState marks the state file running before the worker is spawned, so
// a supervisor crash between spawn and the worker's first save is still
// classifiable. On resume the prior run's per-transcript entries are kept
// intact: the worker loads them to skip completed transcripts, so they must
// survive this write.
func (s *Supervisor) prepareState(resume bool, started time.Time) error {
	var state *runstate.ExtractionState
	if resume {
		prior, err := s.states.Load()
		if err != nil {
			return fmt.Errorf("load prior state: %w", err)
		}
		state = prior
	}
	if state == nil {
		state = runstate.New(0, nil, started)
	} else {
		state.Status = runstate.StatusRunning
		state.OwnerPID = 0
		state.StartedAt = started.UTC()
		state.Touch(started)
	}
	if err := s.states.Save(state); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// recordOwner stamps the child pid onto whatever state is on disk, touching
// only the owner and heartbeat fields. A fast worker may already have written
// its own snapshot by now; its transcript entries and status are preserved.
func (s *Supervisor) recordOwner(pid int) {
	state, err := s.states.Load()
	if err != nil {
		s.logger.Error("record worker pid", logging.Error(err))
		return
	}
	if state == nil {
		return
	}
	state.OwnerPID = pid
	state.Touch(s.now())
	if err := s.states.Save(state); err != nil {
		s.logger.Error("record worker pid", logging.Error(err))
	}
}

// tally replaces the stream-derived counters with totals from the recorded
// state, so a resumed run reports transcripts completed across all of its
// attempts rather than just this one. The stream totals stand when the state
// file is unreadable.
func (s *Supervisor) tally(result *Result) {
	state, err := s.states.Load()
	if err != nil || state == nil {
		return
	}
	counts := state.Count()
	result.Transcripts = counts.Completed
	result.Memories = counts.Memories
	result.Failed = counts.Failed
}

// consume drains the worker's progress stream, forwarding every event to the
// sink and folding completions and errors into the result.
func (s *Supervisor) consume(stdout io.Reader) Result {
	var result Result
	scanner := protocol.NewScanner(stdout)
	for scanner.Scan() {
		event := scanner.Event()
		if s.progress != nil {
			s.progress.Event(event)
		}
		switch event.Type {
		case protocol.TypeExtractionComplete:
			result.Transcripts++
			result.Memories += event.Memories
		case protocol.TypeError:
			result.Errors = append(result.Errors, workerErrorString(event))
			if event.Stage == "" {
				result.Failed++
			}
		case protocol.TypeSummary:
			result.Transcripts = event.Transcripts
			result.Memories = event.TotalMemories
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Error("read worker output", logging.Error(err))
	}
	result.MalformedLines = scanner.Malformed()
	if result.MalformedLines > 0 {
		s.logger.Warn("malformed progress lines skipped", logging.Int("lines", result.MalformedLines))
	}
	return result
}

// finalize guarantees the state file does not stay running once the worker
// is gone. A normally exiting worker writes its own terminal status; this
// only repairs the cancelled and died-mid-run cases.
func (s *Supervisor) finalize(cancelled bool) error {
	state, err := s.states.Load()
	if err != nil || state == nil {
		return err
	}
	if state.Status != runstate.StatusRunning {
		return nil
	}
	if cancelled {
		state.Status = runstate.StatusCancelled
	} else {
		state.Status = runstate.StatusFailed
	}
	state.Touch(s.now())
	if err := s.states.Save(state); err != nil {
		return fmt.Errorf("finalize extraction state: %w", err)
	}
	return nil
}

func workerErrorString(event protocol.Event) string {
	if event.TranscriptID == "" {
		return event.Message
	}
	return event.TranscriptID + ": " + event.Message
}
