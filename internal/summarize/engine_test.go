package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mnemo/internal/transcript"
)

type stubCompleter struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (s *stubCompleter) CompleteJSON(_ context.Context, _, userPrompt string) (string, error) {
	idx := s.calls
	s.calls++
	s.prompts = append(s.prompts, userPrompt)
	if idx < len(s.errs) && s.errs[idx] != nil {
		return "", s.errs[idx]
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	return "", errors.New("unexpected call")
}

func testTranscript(n int) *transcript.Transcript {
	tr := &transcript.Transcript{ID: "t-1"}
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		tr.Messages = append(tr.Messages, transcript.Message{Role: role, Content: "message body"})
	}
	return tr
}

func TestTriageComputesCoverage(t *testing.T) {
	stub := &stubCompleter{responses: []string{`{"ranges":[{"start":0,"end":3},{"start":6,"end":8}]}`}}
	engine := NewEngine(stub)

	result, err := engine.Triage(context.Background(), testTranscript(10))
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if len(result.Ranges) != 2 {
		t.Fatalf("ranges = %+v", result.Ranges)
	}
	if result.Coverage != 0.5 {
		t.Fatalf("coverage = %v, want 0.5", result.Coverage)
	}
	// The prompt must include the whole transcript, not a suffix window.
	if !strings.Contains(stub.prompts[0], "[0]") || !strings.Contains(stub.prompts[0], "[9]") {
		t.Fatal("triage prompt did not cover the full transcript")
	}
}

func TestTriageNormalizesRanges(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		`{"ranges":[{"start":5,"end":3},{"start":-2,"end":2},{"start":1,"end":4},{"start":8,"end":99}]}`,
	}}
	engine := NewEngine(stub)

	result, err := engine.Triage(context.Background(), testTranscript(10))
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	want := []Range{{Start: 0, End: 4}, {Start: 8, End: 10}}
	if len(result.Ranges) != len(want) {
		t.Fatalf("ranges = %+v, want %+v", result.Ranges, want)
	}
	for i := range want {
		if result.Ranges[i] != want[i] {
			t.Fatalf("ranges = %+v, want %+v", result.Ranges, want)
		}
	}
}

func TestTriageEmptyTranscript(t *testing.T) {
	stub := &stubCompleter{}
	engine := NewEngine(stub)
	result, err := engine.Triage(context.Background(), testTranscript(0))
	if err != nil {
		t.Fatalf("Triage: %v", err)
	}
	if len(result.Ranges) != 0 || stub.calls != 0 {
		t.Fatalf("empty transcript should skip the engine: %+v calls=%d", result, stub.calls)
	}
}

func TestTriagePropagatesEngineError(t *testing.T) {
	stub := &stubCompleter{errs: []error{errors.New("upstream timeout")}}
	engine := NewEngine(stub)
	if _, err := engine.Triage(context.Background(), testTranscript(3)); err == nil {
		t.Fatal("expected triage error")
	}
}

func TestExtractBuildsMemories(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		`{"memories":[
			{"type":"decision","content":"Use sqlite for persistence","tags":["Storage","storage"],"importance":0.9},
			{"type":"bogus","content":"Fallback typed record","tags":[],"importance":1.7},
			{"type":"fact","content":"   ","tags":[],"importance":0.2}
		]}`,
	}}
	engine := NewEngine(stub)
	tr := testTranscript(6)

	memories, err := engine.Extract(context.Background(), tr, []Range{{Start: 0, End: 4}})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(memories) != 2 {
		t.Fatalf("memories = %d, want 2 (blank content dropped)", len(memories))
	}
	first := memories[0]
	if first.TranscriptID != "t-1" || first.Type != "decision" || first.ID == "" {
		t.Fatalf("memory = %+v", first)
	}
	if len(first.Tags) != 1 || first.Tags[0] != "storage" {
		t.Fatalf("tags = %v, want deduplicated lowercase", first.Tags)
	}
	if memories[1].Type != "fact" {
		t.Fatalf("unknown type should fall back to fact, got %q", memories[1].Type)
	}
	if memories[1].Importance != 1 {
		t.Fatalf("importance should clamp to 1, got %v", memories[1].Importance)
	}
}

func TestExtractEmptyRangesSkipsEngine(t *testing.T) {
	stub := &stubCompleter{}
	engine := NewEngine(stub)
	memories, err := engine.Extract(context.Background(), testTranscript(5), nil)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if memories != nil || stub.calls != 0 {
		t.Fatalf("expected no engine call, got %d calls", stub.calls)
	}
}

func TestFallbackRange(t *testing.T) {
	tr := testTranscript(100)
	ranges := FallbackRange(tr, 30)
	if len(ranges) != 1 || ranges[0].Start != 70 || ranges[0].End != 100 {
		t.Fatalf("ranges = %+v", ranges)
	}

	small := testTranscript(10)
	ranges = FallbackRange(small, 30)
	if len(ranges) != 1 || ranges[0].Start != 0 || ranges[0].End != 10 {
		t.Fatalf("small transcript ranges = %+v", ranges)
	}

	if FallbackRange(testTranscript(0), 30) != nil {
		t.Fatal("empty transcript should produce no fallback range")
	}
}
