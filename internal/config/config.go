package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	TranscriptsDir string `toml:"transcripts_dir"`
	DataDir        string `toml:"data_dir"`
	LogDir         string `toml:"log_dir"`
}

// LLM contains connection settings for the summarization engine.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Extraction contains tuning for the two-pass extraction worker.
type Extraction struct {
	// FallbackWindow is the number of most-recent messages processed when
	// the triage pass fails for a transcript.
	FallbackWindow int `toml:"fallback_window"`
	// RetryAttempts bounds per-request retries against the summarization API.
	RetryAttempts int `toml:"retry_attempts"`
}

// Watchdog contains supervisor timing configuration.
type Watchdog struct {
	// GracePeriodSeconds is how long the supervisor waits for the worker to
	// exit after a termination request before force-killing it.
	GracePeriodSeconds int `toml:"grace_period_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mnemo.
type Config struct {
	Paths      Paths      `toml:"paths"`
	LLM        LLM        `toml:"llm"`
	Extraction Extraction `toml:"extraction"`
	Watchdog   Watchdog   `toml:"watchdog"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/mnemo/config.toml")
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return is
// the resolved config path and the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("mnemo.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the configured data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure directory %s: %w", dir, err)
		}
	}
	return nil
}

// StatePath returns the extraction state file location.
func (c *Config) StatePath() string {
	return filepath.Join(c.Paths.DataDir, "extraction_state.json")
}

// RegistryPath returns the transcript registry file location.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Paths.DataDir, "registry.json")
}

// MemoriesDBPath returns the extracted-memory database location.
func (c *Config) MemoriesDBPath() string {
	return filepath.Join(c.Paths.DataDir, "memories.db")
}

// WorkerLogPath returns the worker process log file location.
func (c *Config) WorkerLogPath() string {
	return filepath.Join(c.Paths.LogDir, "worker.log")
}

// GracePeriod returns the watchdog termination grace period as a duration.
func (c *Config) GracePeriod() int {
	return c.Watchdog.GracePeriodSeconds
}
