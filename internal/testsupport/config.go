// Package testsupport provides shared helpers for package tests: temp-dir
// backed configs and transcript fixtures.
package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mnemo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.LLM.APIKey = "test"
	cfgVal.Paths.TranscriptsDir = filepath.Join(base, "transcripts")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	// The transcripts dir is an input, not a managed path, so
	// EnsureDirectories leaves it alone; tests still need it to exist.
	if err := os.MkdirAll(builder.cfg.Paths.TranscriptsDir, 0o755); err != nil {
		t.Fatalf("create transcripts dir: %v", err)
	}
	return builder.cfg
}

// WithAPIKey sets the summarization API key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = key
	}
}

// WithFallbackWindow overrides the triage fallback window.
func WithFallbackWindow(window int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Extraction.FallbackWindow = window
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WriteTranscript writes a JSONL transcript with the given number of
// alternating user/assistant messages into the config's transcripts
// directory and returns its path.
func WriteTranscript(t testing.TB, cfg *config.Config, id string, messages int) string {
	t.Helper()

	var sb strings.Builder
	for i := 0; i < messages; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		sb.WriteString(`{"role":"` + role + `","content":"message body"}` + "\n")
	}
	path := filepath.Join(cfg.Paths.TranscriptsDir, id+".jsonl")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write transcript %s: %v", id, err)
	}
	return path
}
