package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"revoice/internal/config"
	"revoice/internal/deps"
	"revoice/internal/preflight"
	"revoice/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("System Status", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, result := range preflight.RunAll(cmd.Context(), cfg) {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					fmt.Fprintln(stdout, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range dependencyLines(preflight.CheckSystemDeps(cfg), colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Queue Status", colorize) {
					fmt.Fprintln(stdout, line)
				}
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("queue stats: %w", err)
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "Queue is empty")
					return nil
				}
				fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}
