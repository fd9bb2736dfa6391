package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Credential presence is
// deliberately not checked here: inspect and clear-state must work without a
// key, so the watchdog performs that check in preflight before spawning a
// worker.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateExtraction(); err != nil {
		return err
	}
	if err := c.validateWatchdog(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.TranscriptsDir == "" {
		return errors.New("paths.transcripts_dir must be set")
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateExtraction() error {
	if c.Extraction.FallbackWindow <= 0 {
		return errors.New("extraction.fallback_window must be positive")
	}
	if c.Extraction.RetryAttempts < 1 {
		return errors.New("extraction.retry_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateWatchdog() error {
	if c.Watchdog.GracePeriodSeconds < 1 {
		return errors.New("watchdog.grace_period_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
