package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"revoice/internal/queue"
)

func buildQueueStatusRows(stats map[queue.Status]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, string(key))
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), fmt.Sprintf("%d", stats[queue.Status(key)])})
	}
	return rows
}

func buildQueueListRows(items []*queue.Item) [][]string {
	if len(items) == 0 {
		return nil
	}
	sorted := make([]*queue.Item, len(items))
	copy(sorted, items)

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			source := strings.TrimSpace(item.SourcePath)
			if source != "" {
				title = filepath.Base(source)
			} else {
				title = "Unknown"
			}
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.ID),
			title,
			formatStatusLabel(string(item.Status)),
			formatProgress(item),
			formatDisplayTime(item.CreatedAt),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatProgress(item *queue.Item) string {
	if item == nil {
		return ""
	}
	stage := strings.TrimSpace(item.ProgressStage)
	if stage == "" {
		return "-"
	}
	if item.ProgressPercent > 0 {
		return fmt.Sprintf("%s (%.0f%%)", stage, item.ProgressPercent)
	}
	return stage
}

func formatDisplayTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format("2006-01-02 15:04")
}
