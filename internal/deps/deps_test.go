package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"revoice/internal/deps"
)

func TestCheckBinariesReportsMissing(t *testing.T) {
	results := deps.CheckBinaries([]deps.Requirement{
		{Name: "Nope", Command: "definitely-not-a-real-binary-name"},
	})
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Available {
		t.Fatal("expected binary to be unavailable")
	}
	if results[0].Detail == "" {
		t.Fatal("expected detail for missing binary")
	}
}

func TestCheckBinariesResolvesFromPath(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "fake-tool")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("PATH", dir)

	results := deps.CheckBinaries([]deps.Requirement{
		{Name: "Fake", Command: "fake-tool", Description: "testing"},
	})
	if !results[0].Available {
		t.Fatalf("expected fake-tool to resolve, got %+v", results[0])
	}
	if results[0].Command != bin {
		t.Fatalf("expected resolved path %s, got %s", bin, results[0].Command)
	}
}

func TestCheckBinariesEmptyCommand(t *testing.T) {
	results := deps.CheckBinaries([]deps.Requirement{{Name: "Unset"}})
	if results[0].Available {
		t.Fatal("expected unavailable for empty command")
	}
	if results[0].Detail != "command not configured" {
		t.Fatalf("unexpected detail %q", results[0].Detail)
	}
}
