package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"revoice/internal/config"
	"revoice/internal/queue"
)

var addFileExtensions = map[string]struct{}{
	".mp4": {},
	".mov": {},
	".avi": {},
	".mkv": {},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>",
		Short: "Add a video file to the processing queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			info, err := os.Stat(absPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("file does not exist: %s", absPath)
				}
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", absPath)
			}

			ext := strings.ToLower(filepath.Ext(info.Name()))
			if _, ok := addFileExtensions[ext]; !ok {
				return fmt.Errorf("unsupported file extension %q", ext)
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				existing, err := store.FindBySourcePath(cmd.Context(), absPath)
				if err != nil {
					return err
				}
				if existing != nil && existing.IsInWorkflow() {
					return fmt.Errorf("%s is already queued as item #%d", filepath.Base(absPath), existing.ID)
				}
				item, err := store.NewFile(cmd.Context(), absPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as item #%d\n", filepath.Base(absPath), item.ID)
				return nil
			})
		},
	}
}
