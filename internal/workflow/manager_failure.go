package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"revoice/internal/logging"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/workspace"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, item *queue.Item, stageErr error) {
	logger := m.stageLogger(ctx)

	message := classifyStageFailure(stageName, stageErr)
	resolved := services.FailureStatus(stageErr)
	if resolved == queue.StatusReview {
		item.SetReview(message)
	} else {
		item.SetFailed(message)
	}

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldStage, stageName),
		logging.String("resolved_status", string(resolved)),
		logging.String("error_message", strings.TrimSpace(message)),
	)

	if err := workspace.Remove(item, logger); err != nil {
		logger.Warn("workspace cleanup failed", logging.Error(err))
	}
	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure",
				logging.Error(err),
				logging.String(logging.FieldEventType, "stage_failure_persist_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	m.setLastItem(item)

	m.notifyItemFailure(ctx, item, resolved, stageErr, message)
	m.checkQueueCompletion(ctx)
}

func classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s failed", stageName)
	}
	msg := strings.TrimSpace(stageErr.Error())
	if msg == "" {
		return fmt.Sprintf("%s failed", stageName)
	}
	return msg
}
