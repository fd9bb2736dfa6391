package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mnemo/internal/config"
	"mnemo/internal/testsupport"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return testsupport.NewConfig(t, testsupport.WithAPIKey("test-key"))
}

func TestCheckCredentialMissing(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = "  "
	result := CheckCredential(cfg)
	if result.Passed {
		t.Fatal("blank key passed")
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if result := CheckDirectoryAccess("dir", dir); !result.Passed {
		t.Fatalf("existing dir failed: %s", result.Detail)
	}
	if result := CheckDirectoryAccess("dir", filepath.Join(dir, "missing")); result.Passed {
		t.Fatal("missing dir passed")
	}
	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("dir", file); result.Passed {
		t.Fatal("regular file passed as directory")
	}
}

func TestRunAllSkipsOnlineCheckWhenLocalFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""
	results := RunAll(context.Background(), cfg)
	for _, result := range results {
		if result.Name == "Summarization API" {
			t.Fatal("online check ran despite failed local checks")
		}
	}
	if AllPassed(results) {
		t.Fatal("missing credential should fail preflight")
	}
}

func TestRunAllWithReachableAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.LLM.BaseURL = server.URL

	results := RunAll(context.Background(), cfg)
	if !AllPassed(results) {
		t.Fatalf("preflight failed: %+v", Failures(results))
	}
	last := results[len(results)-1]
	if last.Name != "Summarization API" || !last.Passed {
		t.Fatalf("api check = %+v", last)
	}
}

func TestRunAllWithRejectedKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.LLM.BaseURL = server.URL

	results := RunAll(context.Background(), cfg)
	failures := Failures(results)
	if len(failures) != 1 {
		t.Fatalf("failures = %+v", failures)
	}
	if failures[0].Detail != "api key rejected" {
		t.Fatalf("detail = %q", failures[0].Detail)
	}
}
