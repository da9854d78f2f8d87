// Package workspace owns the per-item scratch directories under the staging
// root. Every intermediate artifact lives inside an item's workspace so that
// terminal cleanup is a single directory removal.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"revoice/internal/logging"
	"revoice/internal/queue"
	"revoice/internal/services"
)

// Ensure creates the workspace directory for item under stagingDir and records
// it on the item. Re-entrant: an existing workspace is reused.
func Ensure(item *queue.Item, stagingDir string) (string, error) {
	if item == nil {
		return "", services.Wrap(services.ErrValidation, "workspace", "ensure", "queue item unavailable", nil)
	}
	dir := strings.TrimSpace(item.WorkspaceDir)
	if dir == "" {
		dir = item.WorkspaceRoot(stagingDir)
	}
	if dir == "" {
		return "", services.Wrap(
			services.ErrConfiguration,
			"workspace",
			"ensure",
			"staging directory is not configured",
			nil,
		)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(
			services.ErrConfiguration,
			"workspace",
			"ensure",
			fmt.Sprintf("failed to create workspace %q; set staging_dir to a writable path", dir),
			err,
		)
	}
	item.WorkspaceDir = dir
	return dir, nil
}

// Remove deletes the item's workspace directory and clears the reference.
// Missing directories are not an error.
func Remove(item *queue.Item, logger *slog.Logger) error {
	if item == nil {
		return nil
	}
	dir := strings.TrimSpace(item.WorkspaceDir)
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		if logger != nil {
			logger.Warn("failed to remove workspace",
				logging.String("path", dir),
				logging.Error(err),
				logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
			)
		}
		return err
	}
	if logger != nil {
		logger.Debug("removed workspace", logging.String("path", dir))
	}
	item.WorkspaceDir = ""
	return nil
}

// CleanStaleResult contains the outcome of a stale workspace sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes workspace directories older than maxAge. Workspaces for
// items still in flight are kept alive by the heartbeat touch in the workflow
// manager, so age alone is a safe criterion.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" || maxAge <= 0 {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx != nil && ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale workspace",
					logging.String("path", dirPath),
					logging.Error(err),
					logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				)
			}
		} else {
			result.Removed = append(result.Removed, dirPath)
			if logger != nil {
				logger.Info("removed stale workspace",
					logging.String("path", dirPath),
					logging.Duration("age", time.Since(info.ModTime())),
					logging.String(logging.FieldEventType, "workspace_cleanup"),
				)
			}
		}
	}

	return result
}

// DirInfo contains metadata about a workspace directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListDirectories returns all workspace directories under stagingDir with
// their metadata. Used by status reporting.
func ListDirectories(stagingDir string) ([]DirInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(stagingDir, entry.Name())
		size, _ := dirSize(dirPath)
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}

	return dirs, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
