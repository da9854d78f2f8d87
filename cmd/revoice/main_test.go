package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revoice/internal/config"
	"revoice/internal/queue"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "revoice.toml")
	writeTestConfig(t, configPath, base)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path, base string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
staging_dir = %q
output_dir = %q
log_dir = %q

[speech]
api_key = "speech-test-key"

[llm]
api_key = "llm-test-key"

[tts]
api_key = "tts-test-key"
`,
		filepath.Join(base, "staging"),
		filepath.Join(base, "output"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writeVideoFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not a real video"), 0o644); err != nil {
		t.Fatalf("write video file: %v", err)
	}
	return path
}

func TestAddCommandQueuesFile(t *testing.T) {
	env := setupCLITestEnv(t)
	video := writeVideoFile(t, env.baseDir, "Family.Dinner.mp4")

	out, _, err := runCLI(t, []string{"add", video}, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	requireContains(t, out, "Queued Family.Dinner.mp4 as item #")

	item, err := env.store.FindBySourcePath(context.Background(), video)
	if err != nil {
		t.Fatalf("find item: %v", err)
	}
	if item == nil {
		t.Fatal("expected item to be queued")
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}
	if item.Title != "Family Dinner" {
		t.Fatalf("expected inferred title, got %q", item.Title)
	}
}

func TestAddCommandRejectsUnsupportedExtension(t *testing.T) {
	env := setupCLITestEnv(t)
	notes := writeVideoFile(t, env.baseDir, "notes.txt")

	_, _, err := runCLI(t, []string{"add", notes}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unsupported file extension") {
		t.Fatalf("expected extension error, got %v", err)
	}
}

func TestAddCommandRejectsDuplicate(t *testing.T) {
	env := setupCLITestEnv(t)
	video := writeVideoFile(t, env.baseDir, "clip.mp4")

	if _, _, err := runCLI(t, []string{"add", video}, env.configPath); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, _, err := runCLI(t, []string{"add", video}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "already queued") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}
