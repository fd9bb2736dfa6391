// Package inspector classifies the persisted extraction state into a
// human-actionable situation. Classification is read-only and derived on
// every call; in particular a crash is never written to disk, it is inferred
// from a running state whose owner is gone or silent.
package inspector

import (
	"errors"
	"time"

	"mnemo/internal/runstate"
)

// StaleAfter is how long a running state may go without a heartbeat before
// the owner is presumed hung even when its pid is still alive.
const StaleAfter = 10 * time.Minute

// Situation is the derived condition of the extraction subsystem.
type Situation string

const (
	SituationNoState   Situation = "no_state"
	SituationRunning   Situation = "running"
	SituationCompleted Situation = "completed"
	SituationCancelled Situation = "cancelled"
	SituationFailed    Situation = "failed"
	SituationCrashed   Situation = "crashed"
	SituationCorrupt   Situation = "corrupt"
)

// Report is the result of one inspection.
type Report struct {
	Situation Situation
	// State is nil for no_state and corrupt.
	State *runstate.ExtractionState
	// OwnerAlive and SinceUpdate are meaningful for running and crashed.
	OwnerAlive  bool
	SinceUpdate time.Duration
	// Resumable reports whether starting a resume run makes sense.
	Resumable bool
	// Clearable reports whether clear may remove the state file.
	Clearable bool
}

// Inspector derives situations from the state store.
type Inspector struct {
	states *runstate.Store

	alive func(pid int) bool
	now   func() time.Time
}

func New(states *runstate.Store) *Inspector {
	return &Inspector{
		states: states,
		alive:  runstate.ProcessAlive,
		now:    time.Now,
	}
}

// Inspect loads the state file and classifies it. A corrupt file is a
// reportable situation, not an error; only I/O failures surface as errors.
func (i *Inspector) Inspect() (Report, error) {
	state, err := i.states.Load()
	if err != nil {
		if errors.Is(err, runstate.ErrCorrupt) {
			return Report{Situation: SituationCorrupt, Clearable: true}, nil
		}
		return Report{}, err
	}
	return i.Classify(state), nil
}

// Classify maps a loaded state (nil means absent) to a situation.
func (i *Inspector) Classify(state *runstate.ExtractionState) Report {
	if state == nil {
		return Report{Situation: SituationNoState}
	}

	report := Report{State: state}
	switch state.Status {
	case runstate.StatusCompleted:
		report.Situation = SituationCompleted
	case runstate.StatusCancelled:
		report.Situation = SituationCancelled
	case runstate.StatusFailed:
		report.Situation = SituationFailed
	case runstate.StatusRunning:
		report.OwnerAlive = i.alive(state.OwnerPID)
		report.SinceUpdate = i.now().Sub(state.LastUpdate)
		if !report.OwnerAlive || report.SinceUpdate > StaleAfter {
			report.Situation = SituationCrashed
		} else {
			report.Situation = SituationRunning
		}
	default:
		// Unknown status values come from a newer or damaged file; treat
		// them like corruption so clear is the only way forward.
		report.Situation = SituationCorrupt
		report.State = nil
	}

	switch report.Situation {
	case SituationCompleted, SituationCancelled, SituationFailed, SituationCrashed:
		report.Resumable = true
		report.Clearable = true
	case SituationCorrupt:
		report.Clearable = true
	}
	return report
}
