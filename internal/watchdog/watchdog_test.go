package watchdog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"mnemo/internal/protocol"
	"mnemo/internal/registry"
	"mnemo/internal/runstate"
)

type recordingSink struct {
	events []protocol.Event
	// onEvent, when set, runs for every event; used to trigger cancellation
	// mid-stream.
	onEvent func(protocol.Event)
}

func (r *recordingSink) Event(event protocol.Event) {
	r.events = append(r.events, event)
	if r.onEvent != nil {
		r.onEvent(event)
	}
}

// stubWorker replaces the spawned process with /bin/sh running script. The
// script sees the state file path in $STATE_PATH.
func stubWorker(t *testing.T, statePath, script string) {
	t.Helper()
	orig := commandContext
	commandContext = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", script)
		cmd.Env = append(os.Environ(), "STATE_PATH="+statePath)
		return cmd
	}
	t.Cleanup(func() { commandContext = orig })
}

func newSupervisor(t *testing.T, sink ProgressSink) (*Supervisor, *registry.Store, *runstate.Store) {
	t.Helper()
	dir := t.TempDir()
	reg := registry.NewStore(filepath.Join(dir, "registry.json"))
	states := runstate.NewStore(filepath.Join(dir, "extraction_state.json"))
	sup := New(Options{
		Registry:    reg,
		States:      states,
		GracePeriod: 2 * time.Second,
		Progress:    sink,
	})
	return sup, reg, states
}

func registerPending(t *testing.T, reg *registry.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := reg.Register(id, "/transcripts/"+id+".jsonl"); err != nil {
			t.Fatal(err)
		}
	}
}

// completedStateJSON is what a worker leaves behind after a clean run.
const completedStateJSON = `{"status":"completed","started_at":"2026-01-01T00:00:00Z","owner_pid":1,` +
	`"last_update":"2026-01-01T00:00:01Z","transcripts":[{"id":"a","status":"completed","memories":3}]}`

func TestRunConsumesWorkerStream(t *testing.T) {
	sink := &recordingSink{}
	sup, reg, states := newSupervisor(t, sink)
	registerPending(t, reg, "a")

	stubWorker(t, states.Path(), `
echo '{"type":"start","total":1}'
echo '{"type":"progress","current":1,"total":1,"transcript_id":"a","stage":"triage"}'
echo '{"type":"triage_complete","transcript_id":"a","ranges":2,"coverage":0.4}'
echo '{"type":"extraction_complete","transcript_id":"a","memories":3}'
echo '{"type":"summary","transcripts":1,"total_memories":3,"elapsed_seconds":0.2}'
cat > "$STATE_PATH" <<'EOF'
`+completedStateJSON+`
EOF
exit 0`)

	result, err := sup.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Transcripts != 1 || result.Memories != 3 {
		t.Fatalf("result = %+v", result)
	}
	if len(sink.events) != 5 {
		t.Fatalf("forwarded %d events, want 5", len(sink.events))
	}
	if sink.events[0].Type != protocol.TypeStart {
		t.Fatalf("first forwarded event = %+v", sink.events[0])
	}

	state, err := states.Load()
	if err != nil {
		t.Fatal(err)
	}
	if state.Status != runstate.StatusCompleted {
		t.Fatalf("final status = %q, want completed", state.Status)
	}
}

func TestRunRefusesWhileOwnerAlive(t *testing.T) {
	sup, reg, states := newSupervisor(t, nil)
	registerPending(t, reg, "a")
	// This test process is the live owner.
	if err := states.Save(runstate.New(os.Getpid(), []string{"a"}, time.Now())); err != nil {
		t.Fatal(err)
	}

	_, err := sup.Run(context.Background(), false)
	if !errors.Is(err, ErrRunActive) {
		t.Fatalf("err = %v, want ErrRunActive", err)
	}
}

func TestRunZeroPendingSkipsSpawn(t *testing.T) {
	sup, _, _ := newSupervisor(t, nil)
	spawned := false
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		spawned = true
		return exec.CommandContext(ctx, "/bin/true")
	}
	t.Cleanup(func() { commandContext = orig })

	result, err := sup.Run(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if spawned {
		t.Fatal("spawned a worker with nothing pending")
	}
	if result.Transcripts != 0 || result.Memories != 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunWorkerDeathMarksFailed(t *testing.T) {
	sup, reg, states := newSupervisor(t, nil)
	registerPending(t, reg, "a")
	stubWorker(t, states.Path(), `
echo '{"type":"start","total":1}'
exit 1`)

	_, err := sup.Run(context.Background(), false)
	if err == nil {
		t.Fatal("expected an error for an abnormally exiting worker")
	}

	state, loadErr := states.Load()
	if loadErr != nil {
		t.Fatal(loadErr)
	}
	if state.Status != runstate.StatusFailed {
		t.Fatalf("status = %q, want failed", state.Status)
	}
	if state.OwnerPID <= 0 {
		t.Fatal("worker pid was never recorded")
	}
}

func TestRunCancellationMarksCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &recordingSink{}
	sink.onEvent = func(protocol.Event) { cancel() }
	sup, reg, states := newSupervisor(t, sink)
	registerPending(t, reg, "a")
	stubWorker(t, states.Path(), `
echo '{"type":"start","total":1}'
sleep 30`)

	result, err := sup.Run(ctx, false)
	if err != nil {
		t.Fatalf("cancellation must not surface as an error: %v", err)
	}
	if result.Elapsed >= 30*time.Second {
		t.Fatal("worker was not terminated")
	}

	state, loadErr := states.Load()
	if loadErr != nil {
		t.Fatal(loadErr)
	}
	if state.Status != runstate.StatusCancelled {
		t.Fatalf("status = %q, want cancelled", state.Status)
	}
}

func TestRunToleratesMalformedLines(t *testing.T) {
	sink := &recordingSink{}
	sup, reg, states := newSupervisor(t, sink)
	registerPending(t, reg, "a")
	stubWorker(t, states.Path(), `
echo 'panic: something terrible'
echo '{"type":"extraction_complete","transcript_id":"a","memories":2}'
echo 'not json either'
cat > "$STATE_PATH" <<'EOF'
`+completedStateJSON+`
EOF
exit 0`)

	result, err := sup.Run(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if result.MalformedLines != 2 {
		t.Fatalf("malformed = %d, want 2", result.MalformedLines)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
}

func TestRunCollectsWorkerErrors(t *testing.T) {
	sup, reg, states := newSupervisor(t, nil)
	registerPending(t, reg, "a", "b")
	stubWorker(t, states.Path(), `
echo '{"type":"error","transcript_id":"a","message":"extract memories: api unreachable"}'
echo '{"type":"error","transcript_id":"b","stage":"triage","message":"triage failed, using last 50 messages"}'
echo '{"type":"summary","transcripts":1,"total_memories":0,"elapsed_seconds":0.1}'
cat > "$STATE_PATH" <<'EOF'
{"status":"failed","started_at":"2026-01-01T00:00:00Z","owner_pid":1,"last_update":"2026-01-01T00:00:01Z","transcripts":[{"id":"a","status":"failed","memories":0},{"id":"b","status":"completed","memories":0}]}
EOF
exit 0`)

	result, err := sup.Run(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %v", result.Errors)
	}
	// Only the stage-less error is a transcript failure; the triage entry is
	// a degradation.
	if result.Failed != 1 {
		t.Fatalf("failed = %d, want 1", result.Failed)
	}
}

func TestRunResumePreservesPriorCompletedState(t *testing.T) {
	sup, reg, states := newSupervisor(t, nil)
	registerPending(t, reg, "a", "b")

	// A crashed run completed "a" (7 memories) but died before flushing the
	// registry mark. The dead owner pid makes the state resumable.
	prior := runstate.New(99999999, []string{"a", "b"}, time.Now().Add(-time.Minute))
	prior.SetTranscript("a", runstate.TranscriptCompleted, 7, time.Now().Add(-30*time.Second))
	if err := states.Save(prior); err != nil {
		t.Fatal(err)
	}

	// The stub snapshots the state file the moment it starts: the completed
	// entry from the prior run must still be there for the worker to load.
	stubWorker(t, states.Path(), `
cp "$STATE_PATH" "$STATE_PATH.seen"
echo '{"type":"start","total":1}'
echo '{"type":"extraction_complete","transcript_id":"b","memories":3}'
echo '{"type":"summary","transcripts":1,"total_memories":3,"elapsed_seconds":0.1}'
cat > "$STATE_PATH" <<'EOF'
{"status":"completed","started_at":"2026-01-01T00:00:00Z","owner_pid":1,"last_update":"2026-01-01T00:00:01Z","transcripts":[{"id":"a","status":"completed","memories":7},{"id":"b","status":"completed","memories":3}]}
EOF
exit 0`)

	result, err := sup.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	raw, err := os.ReadFile(states.Path() + ".seen")
	if err != nil {
		t.Fatal(err)
	}
	var seen runstate.ExtractionState
	if err := json.Unmarshal(raw, &seen); err != nil {
		t.Fatalf("state seen by worker: %v", err)
	}
	if _, ok := seen.CompletedIDs()["a"]; !ok {
		t.Fatalf("worker saw state without prior completion: %+v", seen.Transcripts)
	}
	for _, tr := range seen.Transcripts {
		if tr.ID == "a" && tr.Memories != 7 {
			t.Fatalf("prior memory count lost: %+v", tr)
		}
	}

	// Totals cover both attempts, not just the resumed one.
	if result.Transcripts != 2 || result.Memories != 10 {
		t.Fatalf("result = %+v, want 2 transcripts and 10 memories", result)
	}

	state, err := states.Load()
	if err != nil {
		t.Fatal(err)
	}
	if state.Status != runstate.StatusCompleted {
		t.Fatalf("final status = %q, want completed", state.Status)
	}
}

func TestRunRefusesCorruptState(t *testing.T) {
	sup, reg, states := newSupervisor(t, nil)
	registerPending(t, reg, "a")
	if err := os.WriteFile(states.Path(), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := sup.Run(context.Background(), false)
	if err == nil {
		t.Fatal("expected corrupt state to block the run")
	}
}
