// Package protocol defines the line-oriented progress stream the extraction
// worker writes to stdout and the watchdog supervisor consumes.
//
// Each event is one JSON object per line, newline-terminated, with a "type"
// discriminator. Consumers tolerate unknown event types and unknown fields
// so a newer worker can run under an older supervisor. A malformed line is a
// non-fatal parse error, never a reason to stop reading.
package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Event types.
const (
	TypeStart              = "start"
	TypeProgress           = "progress"
	TypeTriageComplete     = "triage_complete"
	TypeExtractionComplete = "extraction_complete"
	TypeError              = "error"
	TypeSummary            = "summary"
)

// Stage names carried by progress events.
const (
	StageTriage     = "triage"
	StageExtraction = "extraction"
)

// Event is the tagged union carried on the progress stream. Which fields are
// meaningful depends on Type; everything optional is omitempty so each line
// stays compact.
type Event struct {
	Type string `json:"type"`

	// start, progress
	Total   int `json:"total,omitempty"`
	Current int `json:"current,omitempty"`

	// progress, triage_complete, extraction_complete, error
	TranscriptID string `json:"transcript_id,omitempty"`
	Stage        string `json:"stage,omitempty"`

	// triage_complete
	Ranges   int     `json:"ranges,omitempty"`
	Coverage float64 `json:"coverage,omitempty"`

	// extraction_complete
	Memories int `json:"memories,omitempty"`

	// error
	Message string `json:"message,omitempty"`

	// summary
	Transcripts    int     `json:"transcripts,omitempty"`
	TotalMemories  int     `json:"total_memories,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds,omitempty"`
}

// Encoder writes events as JSON lines.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps a writer, typically the worker's stdout.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Emit writes one event followed by a newline. JSON encoding never embeds
// raw newlines, so each event occupies exactly one line.
func (e *Encoder) Emit(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode progress event: %w", err)
	}
	data = append(data, '\n')
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("write progress event: %w", err)
	}
	return nil
}

// Scanner reads events from a line stream, skipping malformed lines.
type Scanner struct {
	scanner   *bufio.Scanner
	event     Event
	malformed int
}

// NewScanner wraps a reader, typically the worker's stdout pipe.
func NewScanner(r io.Reader) *Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Scanner{scanner: scanner}
}

// Scan advances to the next well-formed event. It returns false when the
// stream ends; malformed lines are counted and skipped.
func (s *Scanner) Scan() bool {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil || event.Type == "" {
			s.malformed++
			continue
		}
		s.event = event
		return true
	}
	return false
}

// Event returns the event found by the last successful Scan.
func (s *Scanner) Event() Event { return s.event }

// Malformed returns how many lines were skipped as unparseable.
func (s *Scanner) Malformed() int { return s.malformed }

// Err returns any underlying read error after Scan returns false.
func (s *Scanner) Err() error { return s.scanner.Err() }
