package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func rollbackCaseSQL(transitions []statusTransition) (string, []any, string, []any) {
	var caseBuilder strings.Builder
	caseArgs := make([]any, 0, len(transitions)*2)
	inArgs := make([]any, 0, len(transitions))
	for _, transition := range transitions {
		caseBuilder.WriteString(" WHEN ? THEN ?")
		caseArgs = append(caseArgs, transition.from, transition.to)
		inArgs = append(inArgs, transition.from)
	}
	return caseBuilder.String(), caseArgs, makePlaceholders(len(transitions)), inArgs
}

// ResetStuckProcessing resets items in processing states back to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseSQL, caseArgs, placeholders, inArgs := rollbackCaseSQL(processingRollbackTransitions())
	args := make([]any, 0, len(caseArgs)+1+len(inArgs))
	args = append(args, caseArgs...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, inArgs...)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = CASE status`+caseSQL+` ELSE status END,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns items stuck in processing back to the start of
// their current stage when heartbeats expire. When statuses are provided only
// those processing states are reclaimed; otherwise all of them are.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, statuses ...Status) (int64, error) {
	transitions := processingRollbackTransitions()
	if len(statuses) > 0 {
		wanted := make(map[Status]struct{}, len(statuses))
		for _, status := range statuses {
			wanted[status] = struct{}{}
		}
		filtered := transitions[:0:0]
		for _, transition := range transitions {
			if _, ok := wanted[transition.from]; ok {
				filtered = append(filtered, transition)
			}
		}
		transitions = filtered
	}
	if len(transitions) == 0 {
		return 0, nil
	}

	caseSQL, caseArgs, placeholders, inArgs := rollbackCaseSQL(transitions)
	args := make([]any, 0, len(caseArgs)+1+len(inArgs)+1)
	args = append(args, caseArgs...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, inArgs...)
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET status = CASE status`+caseSQL+` ELSE status END,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`+placeholders+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateProgress persists only the progress fields for an item, leaving the
// heartbeat untouched.
func (s *Store) UpdateProgress(ctx context.Context, item *Item) error {
	if item == nil {
		return fmt.Errorf("item is nil")
	}
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items
         SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		now.Format(time.RFC3339Nano),
		item.ID,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	item.UpdatedAt = now
	return nil
}

// RetryFailed moves failed items back to pending for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items
            SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, needs_review = 0,
                review_reason = NULL, updated_at = ?
            WHERE status IN (?, ?)`,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
			StatusReview,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+4)
	args = append(args, StatusPending, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed, StatusReview)
	query := `UPDATE queue_items
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, needs_review = 0,
            review_reason = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status IN (?, ?)`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}
