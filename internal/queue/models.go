package queue

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"revoice/internal/textutil"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending      Status = "pending"
	StatusExtracting   Status = "extracting"
	StatusExtracted    Status = "extracted"
	StatusNormalizing  Status = "normalizing"
	StatusNormalized   Status = "normalized"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusCorrecting   Status = "correcting"
	StatusCorrected    Status = "corrected"
	StatusSynthesizing Status = "synthesizing"
	StatusSynthesized  Status = "synthesized"
	StatusMuxing       Status = "muxing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusReview       Status = "review"
)

// UserStopReason is the review reason set when a user explicitly stops an item.
const UserStopReason = "Stop requested by user"

// DaemonStopReason is the error message set when items are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusExtracting,
	StatusExtracted,
	StatusNormalizing,
	StatusNormalized,
	StatusTranscribing,
	StatusTranscribed,
	StatusCorrecting,
	StatusCorrected,
	StatusSynthesizing,
	StatusSynthesized,
	StatusMuxing,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusExtracting:   {},
	StatusNormalizing:  {},
	StatusTranscribing: {},
	StatusCorrecting:   {},
	StatusSynthesizing: {},
	StatusMuxing:       {},
}

type statusTransition struct {
	from Status
	to   Status
}

var stageRollbackTransitions = []statusTransition{
	{from: StatusExtracting, to: StatusPending},
	{from: StatusNormalizing, to: StatusExtracted},
	{from: StatusTranscribing, to: StatusNormalized},
	{from: StatusCorrecting, to: StatusTranscribed},
	{from: StatusSynthesizing, to: StatusCorrected},
	{from: StatusMuxing, to: StatusSynthesized},
}

func processingRollbackTransitions() []statusTransition {
	return stageRollbackTransitions
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Item represents a queue item persisted in SQLite.
type Item struct {
	ID              int64
	SourcePath      string
	Title           string
	Status          Status
	ProbeJSON       string
	AudioFile       string
	NormalizedFile  string
	TranscriptText  string
	CorrectedText   string
	SynthesizedFile string
	FinalFile       string
	WorkspaceDir    string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
	NeedsReview     bool
	ReviewReason    string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (i Item) IsProcessing() bool {
	_, ok := processingStatuses[i.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the workflow for an item.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// IsUserStopReason reports whether a review reason represents a user-initiated stop.
func IsUserStopReason(reason string) bool {
	return strings.EqualFold(strings.TrimSpace(reason), UserStopReason)
}

// InitProgress resets progress fields for a new stage.
// If ProgressStage is currently empty, it is set to the provided stage value;
// otherwise the existing stage is preserved (to support resume scenarios).
// ProgressMessage is set to message, ProgressPercent is reset to 0, and
// ErrorMessage is cleared.
func (i *Item) InitProgress(stage, message string) {
	if i.ProgressStage == "" {
		i.ProgressStage = stage
	}
	i.ProgressMessage = message
	i.ProgressPercent = 0
	i.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
// Use this instead of setting ProgressStage, ProgressPercent, and ProgressMessage individually.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
// Convenience method for stage completion.
func (i *Item) SetProgressComplete(stage, message string) {
	i.SetProgress(stage, message, 100)
}

// SetFailed marks the item as failed with the given error message.
// Clears heartbeat and sets progress fields appropriately.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressPercent = 0
	i.ProgressMessage = message
	i.LastHeartbeat = nil
	i.ProgressStage = "Failed"
}

// SetReview routes the item to manual review with the given reason.
func (i *Item) SetReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
	i.ProgressPercent = 0
	i.ProgressMessage = reason
	i.LastHeartbeat = nil
	i.ProgressStage = "Review"
}

// IsInWorkflow returns true when an item is actively progressing (or queued to
// progress) through stages.
func (i Item) IsInWorkflow() bool {
	if i.IsProcessing() {
		return true
	}
	switch i.Status {
	case StatusPending,
		StatusExtracted,
		StatusNormalized,
		StatusTranscribed,
		StatusCorrected,
		StatusSynthesized:
		return true
	default:
		return false
	}
}

// WorkspaceRoot returns the per-item workspace directory rooted at base.
// The directory name combines the sanitized title with the queue ID to stay
// unique and human-readable.
func (i Item) WorkspaceRoot(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	segment := sanitizeSegment(i.Title)
	if segment == "" {
		segment = "item"
	}
	return filepath.Join(base, fmt.Sprintf("%s-%d", segment, i.ID))
}

func sanitizeSegment(value string) string {
	value = textutil.SanitizeFileName(value)
	if value == "" {
		return ""
	}
	value = strings.ReplaceAll(value, " ", "-")
	value = strings.Trim(value, "-_")
	return value
}
