// Package transcript loads recorded conversation sessions from disk.
//
// A transcript is a JSONL file with one message object per line. Lines that
// fail to parse are skipped rather than failing the whole transcript, since
// recorders occasionally truncate the final line mid-write.
package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Message is a single conversation turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Transcript is a fully loaded conversation session.
type Transcript struct {
	ID       string
	Path     string
	Messages []Message
}

// Scanner buffer cap; individual messages can carry large pasted content.
const maxLineBytes = 4 * 1024 * 1024

// Load reads the transcript at path. The transcript id is derived from the
// file name when id is empty.
func Load(id, path string) (*Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()

	if id == "" {
		id = IDFromPath(path)
	}

	tr := &Transcript{ID: id, Path: path}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		if msg.Content == "" && msg.Role == "" {
			continue
		}
		tr.Messages = append(tr.Messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript %s: %w", filepath.Base(path), err)
	}
	return tr, nil
}

// IDFromPath derives a transcript id from a file path.
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Window returns the last n messages, or all messages when fewer exist.
func (t *Transcript) Window(n int) []Message {
	if n <= 0 || n >= len(t.Messages) {
		return t.Messages
	}
	return t.Messages[len(t.Messages)-n:]
}

// Slice returns messages in the half-open index range [start, end), clamped
// to the transcript bounds.
func (t *Transcript) Slice(start, end int) []Message {
	if start < 0 {
		start = 0
	}
	if end > len(t.Messages) {
		end = len(t.Messages)
	}
	if start >= end {
		return nil
	}
	return t.Messages[start:end]
}
