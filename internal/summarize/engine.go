package summarize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mnemo/internal/services/llm"
	"mnemo/internal/transcript"
)

// Range is a half-open [Start, End) span of message indices.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// TriageResult captures the outcome of the triage pass.
type TriageResult struct {
	Ranges []Range
	// Coverage is messages-in-ranges / total-messages.
	Coverage float64
}

// Memory is one structured record extracted from a transcript.
type Memory struct {
	ID           string    `json:"id"`
	TranscriptID string    `json:"transcript_id"`
	Type         string    `json:"type"`
	Content      string    `json:"content"`
	Tags         []string  `json:"tags"`
	Importance   float64   `json:"importance"`
	CreatedAt    time.Time `json:"created_at"`
}

var validMemoryTypes = map[string]struct{}{
	"decision":   {},
	"preference": {},
	"fact":       {},
	"lesson":     {},
	"commitment": {},
}

// Completer is the summarization capability the engine depends on.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Engine runs the triage and extraction passes.
type Engine struct {
	client Completer
	now    func() time.Time
}

// NewEngine constructs an engine on top of a completion client.
func NewEngine(client Completer) *Engine {
	return &Engine{client: client, now: time.Now}
}

// Triage scans the whole transcript and returns the important ranges plus
// the coverage ratio.
func (e *Engine) Triage(ctx context.Context, tr *transcript.Transcript) (*TriageResult, error) {
	if len(tr.Messages) == 0 {
		return &TriageResult{}, nil
	}

	content, err := e.client.CompleteJSON(ctx, TriagePrompt, renderIndexed(tr.Messages))
	if err != nil {
		return nil, fmt.Errorf("triage %s: %w", tr.ID, err)
	}

	var parsed struct {
		Ranges []Range `json:"ranges"`
	}
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("triage %s: parse payload: %w", tr.ID, err)
	}

	ranges := normalizeRanges(parsed.Ranges, len(tr.Messages))
	covered := 0
	for _, r := range ranges {
		covered += r.End - r.Start
	}
	return &TriageResult{
		Ranges:   ranges,
		Coverage: float64(covered) / float64(len(tr.Messages)),
	}, nil
}

// Extract mines the given ranges for memory records. An empty range list
// yields no records without calling the engine.
func (e *Engine) Extract(ctx context.Context, tr *transcript.Transcript, ranges []Range) ([]Memory, error) {
	var sections []string
	for _, r := range ranges {
		if msgs := tr.Slice(r.Start, r.End); len(msgs) > 0 {
			sections = append(sections, renderIndexed(msgs))
		}
	}
	if len(sections) == 0 {
		return nil, nil
	}

	user := strings.Join(sections, "\n---\n")
	content, err := e.client.CompleteJSON(ctx, ExtractionPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", tr.ID, err)
	}

	var parsed struct {
		Memories []struct {
			Type       string   `json:"type"`
			Content    string   `json:"content"`
			Tags       []string `json:"tags"`
			Importance float64  `json:"importance"`
		} `json:"memories"`
	}
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("extract %s: parse payload: %w", tr.ID, err)
	}

	memories := make([]Memory, 0, len(parsed.Memories))
	for _, m := range parsed.Memories {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		memType := strings.ToLower(strings.TrimSpace(m.Type))
		if _, ok := validMemoryTypes[memType]; !ok {
			memType = "fact"
		}
		importance := m.Importance
		if importance < 0 {
			importance = 0
		}
		if importance > 1 {
			importance = 1
		}
		memories = append(memories, Memory{
			ID:           uuid.NewString(),
			TranscriptID: tr.ID,
			Type:         memType,
			Content:      content,
			Tags:         normalizeTags(m.Tags),
			Importance:   importance,
			CreatedAt:    e.now().UTC(),
		})
	}
	return memories, nil
}

// FallbackRange returns a single range covering the most recent window
// messages, used when triage fails for a transcript.
func FallbackRange(tr *transcript.Transcript, window int) []Range {
	total := len(tr.Messages)
	if total == 0 {
		return nil
	}
	start := total - window
	if window <= 0 || start < 0 {
		start = 0
	}
	return []Range{{Start: start, End: total}}
}

// renderIndexed formats messages with their indices for the prompts.
func renderIndexed(msgs []transcript.Message) string {
	var b strings.Builder
	for i, msg := range msgs {
		fmt.Fprintf(&b, "[%d] %s: %s\n", i, msg.Role, msg.Content)
	}
	return b.String()
}

// normalizeRanges clamps ranges to [0, total), drops empty ones, sorts, and
// merges overlaps so coverage arithmetic stays honest.
func normalizeRanges(ranges []Range, total int) []Range {
	cleaned := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Start < 0 {
			r.Start = 0
		}
		if r.End > total {
			r.End = total
		}
		if r.Start >= r.End {
			continue
		}
		cleaned = append(cleaned, r)
	}
	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i].Start < cleaned[j].Start })

	merged := cleaned[:0]
	for _, r := range cleaned {
		if n := len(merged); n > 0 && r.Start <= merged[n-1].End {
			if r.End > merged[n-1].End {
				merged[n-1].End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
