package runstate

import "time"

// Status represents the lifecycle of an extraction run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the run status can no longer change.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// TranscriptStatus represents per-transcript progress within a run.
type TranscriptStatus string

const (
	TranscriptPending    TranscriptStatus = "pending"
	TranscriptInProgress TranscriptStatus = "in_progress"
	TranscriptCompleted  TranscriptStatus = "completed"
	TranscriptFailed     TranscriptStatus = "failed"
)

// TranscriptState tracks one transcript inside an extraction run.
type TranscriptState struct {
	ID       string           `json:"id"`
	Status   TranscriptStatus `json:"status"`
	Memories int              `json:"memories"`
}

// ExtractionState is the durable snapshot of an in-flight or finished run.
type ExtractionState struct {
	Status      Status            `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	OwnerPID    int               `json:"owner_pid"`
	LastUpdate  time.Time         `json:"last_update"`
	Transcripts []TranscriptState `json:"transcripts"`
}

// New creates a running state covering the given transcript ids.
func New(ownerPID int, ids []string, now time.Time) *ExtractionState {
	transcripts := make([]TranscriptState, 0, len(ids))
	for _, id := range ids {
		transcripts = append(transcripts, TranscriptState{ID: id, Status: TranscriptPending})
	}
	return &ExtractionState{
		Status:      StatusRunning,
		StartedAt:   now.UTC(),
		OwnerPID:    ownerPID,
		LastUpdate:  now.UTC(),
		Transcripts: transcripts,
	}
}

// CompletedIDs returns the set of transcript ids already completed.
func (s *ExtractionState) CompletedIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, tr := range s.Transcripts {
		if tr.Status == TranscriptCompleted {
			ids[tr.ID] = struct{}{}
		}
	}
	return ids
}

// Counts summarizes per-transcript statuses.
type Counts struct {
	Total     int
	Completed int
	Failed    int
	Remaining int
	Memories  int
}

// Count tallies the per-transcript statuses of the run.
func (s *ExtractionState) Count() Counts {
	counts := Counts{Total: len(s.Transcripts)}
	for _, tr := range s.Transcripts {
		switch tr.Status {
		case TranscriptCompleted:
			counts.Completed++
			counts.Memories += tr.Memories
		case TranscriptFailed:
			counts.Failed++
			counts.Remaining++
		default:
			counts.Remaining++
		}
	}
	return counts
}

// SetTranscript updates the status (and memory count) for one transcript and
// refreshes the last-update timestamp.
func (s *ExtractionState) SetTranscript(id string, status TranscriptStatus, memories int, now time.Time) {
	for i := range s.Transcripts {
		if s.Transcripts[i].ID != id {
			continue
		}
		s.Transcripts[i].Status = status
		if status == TranscriptCompleted {
			s.Transcripts[i].Memories = memories
		}
		break
	}
	s.LastUpdate = now.UTC()
}

// Touch refreshes the last-update timestamp.
func (s *ExtractionState) Touch(now time.Time) {
	s.LastUpdate = now.UTC()
}
