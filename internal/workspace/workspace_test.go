package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"revoice/internal/logging"
	"revoice/internal/queue"
	"revoice/internal/workspace"
)

func TestEnsureCreatesAndRecordsWorkspace(t *testing.T) {
	staging := t.TempDir()
	item := &queue.Item{ID: 7, Title: "Big Buck Bunny"}

	dir, err := workspace.Ensure(item, staging)
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if item.WorkspaceDir != dir {
		t.Fatalf("workspace dir not recorded on item: %q vs %q", item.WorkspaceDir, dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("workspace directory missing: %v", err)
	}

	// Second call reuses the same directory.
	again, err := workspace.Ensure(item, staging)
	if err != nil {
		t.Fatalf("Ensure second call returned error: %v", err)
	}
	if again != dir {
		t.Fatalf("expected workspace reuse, got %q then %q", dir, again)
	}
}

func TestEnsureRequiresStagingDir(t *testing.T) {
	item := &queue.Item{ID: 1, Title: "x"}
	if _, err := workspace.Ensure(item, "  "); err == nil {
		t.Fatal("expected error for empty staging dir")
	}
}

func TestRemoveDeletesWorkspace(t *testing.T) {
	staging := t.TempDir()
	item := &queue.Item{ID: 3, Title: "clip"}
	dir, err := workspace.Ensure(item, staging)
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "audio.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	if err := workspace.Remove(item, logging.NewNop()); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected workspace removed, stat err %v", err)
	}
	if item.WorkspaceDir != "" {
		t.Fatalf("expected workspace reference cleared, got %q", item.WorkspaceDir)
	}

	// Removing again is a no-op.
	if err := workspace.Remove(item, nil); err != nil {
		t.Fatalf("second Remove returned error: %v", err)
	}
}

func TestCleanStaleRemovesOnlyOldDirectories(t *testing.T) {
	staging := t.TempDir()
	oldDir := filepath.Join(staging, "old-item-1")
	freshDir := filepath.Join(staging, "fresh-item-2")
	for _, dir := range []string{oldDir, freshDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldDir, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := workspace.CleanStale(context.Background(), staging, 24*time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected cleanup errors: %v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != oldDir {
		t.Fatalf("unexpected removed set: %v", result.Removed)
	}
	if _, err := os.Stat(freshDir); err != nil {
		t.Fatalf("fresh workspace should survive: %v", err)
	}
}

func TestCleanStaleZeroAgeIsNoop(t *testing.T) {
	staging := t.TempDir()
	dir := filepath.Join(staging, "item")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	result := workspace.CleanStale(context.Background(), staging, 0, nil)
	if len(result.Removed) != 0 {
		t.Fatalf("expected no removals, got %v", result.Removed)
	}
}

func TestListDirectoriesReportsSizes(t *testing.T) {
	staging := t.TempDir()
	dir := filepath.Join(staging, "item-1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "audio.wav"), make([]byte, 128), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirs, err := workspace.ListDirectories(staging)
	if err != nil {
		t.Fatalf("ListDirectories returned error: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected one directory, got %d", len(dirs))
	}
	if dirs[0].Name != "item-1" || dirs[0].Size != 128 {
		t.Fatalf("unexpected dir info: %+v", dirs[0])
	}
}
