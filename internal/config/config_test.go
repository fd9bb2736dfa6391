package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("exists = true for missing file %s", path)
	}
	if cfg.Extraction.FallbackWindow != defaultFallbackWindow {
		t.Fatalf("fallback window = %d, want default %d", cfg.Extraction.FallbackWindow, defaultFallbackWindow)
	}
	if cfg.Watchdog.GracePeriodSeconds != defaultGracePeriodSeconds {
		t.Fatalf("grace period = %d, want default %d", cfg.Watchdog.GracePeriodSeconds, defaultGracePeriodSeconds)
	}
}

func TestLoadParsesAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "mnemo.toml")
	content := `
[paths]
transcripts_dir = "` + filepath.Join(dir, "transcripts") + `"
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[extraction]
fallback_window = 25
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("exists = false for present file")
	}
	if cfg.Extraction.FallbackWindow != 25 {
		t.Fatalf("fallback window = %d, want 25", cfg.Extraction.FallbackWindow)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("data dir not absolute: %s", cfg.Paths.DataDir)
	}
	if got, want := cfg.StatePath(), filepath.Join(dir, "data", "extraction_state.json"); got != want {
		t.Fatalf("StatePath = %s, want %s", got, want)
	}
	if got, want := cfg.RegistryPath(), filepath.Join(dir, "data", "registry.json"); got != want {
		t.Fatalf("RegistryPath = %s, want %s", got, want)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "zero fallback window",
			content: "[extraction]\nfallback_window = 0\n",
			want:    "fallback_window",
		},
		{
			name:    "bad log format",
			content: "[logging]\nformat = \"xml\"\n",
			want:    "logging.format",
		},
		{
			name:    "zero grace period",
			content: "[watchdog]\ngrace_period_seconds = 0\n",
			want:    "grace_period_seconds",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "mnemo.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestAPIKeyEnvFallback(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("api key = %q, want env fallback", cfg.LLM.APIKey)
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := ExpandPath("~/x")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != filepath.Join(home, "x") {
		t.Fatalf("ExpandPath = %s", got)
	}
}
