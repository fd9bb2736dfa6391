package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"mnemo/internal/config"
	"mnemo/internal/services/llm"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks required before an extraction run. The online
// API check runs only when the cheap local checks pass, so a missing key is
// reported as exactly that rather than as an authentication failure.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckCredential(cfg),
		CheckDirectoryAccess("Transcripts directory", cfg.Paths.TranscriptsDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}
	if AllPassed(results) {
		results = append(results, CheckAPI(ctx, cfg))
	}
	return results
}

// CheckCredential verifies the summarization API key is configured. Only
// presence is checked here; validity is the online check's job.
func CheckCredential(cfg *config.Config) Result {
	const name = "API credential"
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return Result{Name: name, Detail: "api key missing; set llm.api_key or OPENROUTER_API_KEY"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckDirectoryAccess verifies the directory exists and is listable.
func CheckDirectoryAccess(name, dir string) Result {
	if strings.TrimSpace(dir) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s does not exist", dir)}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s is not a directory", dir)}
	}
	if _, err := os.ReadDir(dir); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s is not readable", dir)}
	}
	return Result{Name: name, Passed: true, Detail: dir}
}

// CheckAPI verifies the summarization API is reachable and the key is
// accepted, with a short timeout and no retries.
func CheckAPI(ctx context.Context, cfg *config.Config) Result {
	const name = "Summarization API"

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:        cfg.LLM.APIKey,
		BaseURL:       cfg.LLM.BaseURL,
		Model:         cfg.LLM.Model,
		Referer:       cfg.LLM.Referer,
		Title:         cfg.LLM.Title,
		RetryAttempts: 1,
	})
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// AllPassed reports whether every check succeeded.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failed checks, for compact error reporting.
func Failures(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

func summarizeAPIError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401"):
		return "api key rejected"
	case strings.Contains(msg, "connection refused"):
		return "connection refused"
	default:
		return msg
	}
}
