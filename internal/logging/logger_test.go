package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestConsoleHandlerRendersComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger = NewComponentLogger(logger, "watchdog")
	logger.Info("worker spawned", Args(Int("pid", 4242), String("mode", "fresh"))...)

	line := buf.String()
	if !strings.Contains(line, "INFO watchdog: worker spawned") {
		t.Fatalf("unexpected console line: %q", line)
	}
	if !strings.Contains(line, "pid=4242") || !strings.Contains(line, "mode=fresh") {
		t.Fatalf("missing attrs in console line: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Warn("triage degraded", Args(Error(errors.New("upstream timed out")))...)

	if !strings.Contains(buf.String(), `error="upstream timed out"`) {
		t.Fatalf("expected quoted error value, got %q", buf.String())
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("state saved", Args(String(FieldTranscriptID, "t-1"))...)

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg", FieldTranscriptID} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing %q in json log line: %v", key, payload)
		}
	}
	if payload["level"] != "debug" {
		t.Fatalf("level = %v, want debug", payload["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info line should be suppressed at warn level: %q", buf.String())
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("warn line should be emitted")
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
