package workflow

import (
	"context"
	"errors"
	"time"

	"revoice/internal/logging"
	"revoice/internal/queue"
)

func (m *Manager) notifyItemCompleted(ctx context.Context, item *queue.Item) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyItemCompleted(ctx, item.Title, item.FinalFile); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send completion notification")
		} else {
			m.logger.Debug("completion notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) notifyItemFailure(ctx context.Context, item *queue.Item, resolved queue.Status, stageErr error, message string) {
	if m.notifier == nil {
		return
	}
	var err error
	if resolved == queue.StatusReview {
		err = m.notifier.NotifyItemReview(ctx, item.Title, message)
	} else {
		err = m.notifier.NotifyItemFailed(ctx, item.Title, stageErr)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send failure notification")
		} else {
			m.logger.Debug("failure notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) onItemStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not get queue stats for start notification")
		} else {
			m.logger.Warn("queue stats unavailable for start notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	m.mu.Lock()
	if m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = true
	m.queueStart = time.Now()
	m.mu.Unlock()

	count := countActiveItems(stats)
	if err := m.notifier.NotifyQueueStarted(ctx, count); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send queue start notification")
		} else {
			m.logger.Debug("queue start notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) checkQueueCompletion(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	stats, err := m.store.Stats(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not check queue completion")
		} else {
			m.logger.Warn("queue stats unavailable for completion notification; notification skipped",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_stats_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	if active := countActiveItems(stats); active > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	start := m.queueStart
	m.queueActive = false
	m.queueStart = time.Time{}
	m.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	processed := stats[queue.StatusCompleted]
	failed := stats[queue.StatusFailed] + stats[queue.StatusReview]
	if err := m.notifier.NotifyQueueCompleted(ctx, processed, failed, duration); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send queue completion notification")
		} else {
			m.logger.Debug("queue completion notification failed", logging.Error(err))
		}
	}
}

// countActiveItems tallies queued and in-flight items, excluding terminal states.
func countActiveItems(stats map[queue.Status]int) int {
	total := 0
	for status, count := range stats {
		if status.IsTerminal() {
			continue
		}
		total += count
	}
	return total
}
