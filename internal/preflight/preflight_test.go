package preflight_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"revoice/internal/config"
	"revoice/internal/preflight"
	"revoice/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("Staging directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass for writable dir, got %+v", result)
	}

	result = preflight.CheckDirectoryAccess("Staging directory", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	result = preflight.CheckDirectoryAccess("Staging directory", file)
	if result.Passed {
		t.Fatal("expected failure for non-directory")
	}
}

func TestCheckSpeechCredentials(t *testing.T) {
	result := preflight.CheckSpeechCredentials(config.Speech{})
	if result.Passed {
		t.Fatal("expected failure without api key")
	}

	result = preflight.CheckSpeechCredentials(config.Speech{APIKey: "key"})
	if !result.Passed {
		t.Fatalf("expected pass with key, got %+v", result)
	}

	result = preflight.CheckSpeechCredentials(config.Speech{APIKey: "key", Endpoint: "://bad"})
	if result.Passed {
		t.Fatal("expected failure for malformed endpoint")
	}
}

func TestCheckTTSCredentials(t *testing.T) {
	result := preflight.CheckTTSCredentials(config.TTS{})
	if result.Passed {
		t.Fatal("expected failure without api key")
	}
	result = preflight.CheckTTSCredentials(config.TTS{APIKey: "key"})
	if !result.Passed {
		t.Fatalf("expected pass with key, got %+v", result)
	}
}

func TestCheckLLM(t *testing.T) {
	result := preflight.CheckLLM(context.Background(), config.LLM{})
	if result.Passed {
		t.Fatal("expected failure without api key")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"OK"}}]}`))
	}))
	defer server.Close()

	result = preflight.CheckLLM(context.Background(), config.LLM{
		APIKey:  "key",
		BaseURL: server.URL,
		Model:   "test-model",
	})
	if !result.Passed {
		t.Fatalf("expected pass against stub server, got %+v", result)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer failing.Close()

	result = preflight.CheckLLM(context.Background(), config.LLM{
		APIKey:  "key",
		BaseURL: failing.URL,
		Model:   "test-model",
	})
	if result.Passed {
		t.Fatal("expected failure against 401 server")
	}
	if result.Detail == "" {
		t.Fatal("expected failure detail")
	}
}

func TestRunAllCoversCoreChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := preflight.RunAll(context.Background(), cfg)
	names := make(map[string]bool, len(results))
	for _, result := range results {
		names[result.Name] = true
	}
	for _, want := range []string{"Staging directory", "Output directory", "Speech recognition", "Speech synthesis", "Correction LLM"} {
		if !names[want] {
			t.Fatalf("expected check %q in results", want)
		}
	}
}
