package workflow

import (
	"revoice/internal/queue"
	"revoice/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Extractor   stage.Handler
	Normalizer  stage.Handler
	Transcriber stage.Handler
	Corrector   stage.Handler
	Synthesizer stage.Handler
	Muxer       stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	stages := make([]pipelineStage, 0, 6)
	if set.Extractor != nil {
		stages = append(stages, pipelineStage{
			name:             "extractor",
			handler:          set.Extractor,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusExtracting,
			doneStatus:       queue.StatusExtracted,
		})
	}
	if set.Normalizer != nil {
		stages = append(stages, pipelineStage{
			name:             "normalizer",
			handler:          set.Normalizer,
			startStatus:      queue.StatusExtracted,
			processingStatus: queue.StatusNormalizing,
			doneStatus:       queue.StatusNormalized,
		})
	}
	if set.Transcriber != nil {
		stages = append(stages, pipelineStage{
			name:             "transcriber",
			handler:          set.Transcriber,
			startStatus:      queue.StatusNormalized,
			processingStatus: queue.StatusTranscribing,
			doneStatus:       queue.StatusTranscribed,
		})
	}
	if set.Corrector != nil {
		stages = append(stages, pipelineStage{
			name:             "corrector",
			handler:          set.Corrector,
			startStatus:      queue.StatusTranscribed,
			processingStatus: queue.StatusCorrecting,
			doneStatus:       queue.StatusCorrected,
		})
	}
	if set.Synthesizer != nil {
		stages = append(stages, pipelineStage{
			name:             "synthesizer",
			handler:          set.Synthesizer,
			startStatus:      queue.StatusCorrected,
			processingStatus: queue.StatusSynthesizing,
			doneStatus:       queue.StatusSynthesized,
		})
	}
	if set.Muxer != nil {
		stages = append(stages, pipelineStage{
			name:             "muxer",
			handler:          set.Muxer,
			startStatus:      queue.StatusSynthesized,
			processingStatus: queue.StatusMuxing,
			doneStatus:       queue.StatusCompleted,
		})
	}

	stageByStart := make(map[queue.Status]pipelineStage, len(stages))
	statusOrder := make([]queue.Status, 0, len(stages))
	processing := make([]queue.Status, 0, len(stages))
	seenProcessing := make(map[queue.Status]struct{}, len(stages))
	for _, stg := range stages {
		stageByStart[stg.startStatus] = stg
		statusOrder = append(statusOrder, stg.startStatus)
		if stg.processingStatus != "" {
			if _, ok := seenProcessing[stg.processingStatus]; !ok {
				processing = append(processing, stg.processingStatus)
				seenProcessing[stg.processingStatus] = struct{}{}
			}
		}
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = stageByStart
	m.statusOrder = statusOrder
	m.processingStatuses = processing
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}
