// Package correct implements the transcript-correction stage: a single LLM
// request that copy-edits the raw transcript, guarded by a similarity gate so
// a runaway completion never silently replaces the narration.
package correct

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/services/llm"
	"revoice/internal/stage"
	"revoice/internal/textutil"
)

// Correcter is the slice of the llm client the stage needs.
type Correcter interface {
	CorrectTranscript(ctx context.Context, transcript string) (string, error)
}

// Corrector runs the LLM copy-edit pass over raw transcripts.
type Corrector struct {
	cfg    *config.Config
	logger *slog.Logger
	client Correcter
}

// NewCorrector constructs the correction handler with a real LLM client.
func NewCorrector(cfg *config.Config, logger *slog.Logger) *Corrector {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		MaxTokens:      cfg.LLM.MaxTokens,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return NewCorrectorWithDependencies(cfg, logger, client)
}

// NewCorrectorWithDependencies allows injecting a custom client (used for tests).
func NewCorrectorWithDependencies(cfg *config.Config, logger *slog.Logger, client Correcter) *Corrector {
	c := &Corrector{cfg: cfg, client: client}
	c.SetLogger(logger)
	return c
}

// SetLogger updates the corrector's logging destination while preserving component labeling.
func (c *Corrector) SetLogger(logger *slog.Logger) {
	c.logger = logging.NewComponentLogger(logger, "corrector")
}

func (c *Corrector) Prepare(ctx context.Context, item *queue.Item) error {
	item.InitProgress("Correcting", "Submitting transcript for correction")
	return nil
}

func (c *Corrector) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, c.logger)
	stageStart := time.Now()

	transcript := strings.TrimSpace(item.TranscriptText)
	if transcript == "" {
		return services.Wrap(
			services.ErrValidation,
			"correction",
			"validate input",
			"No transcript available; ensure the transcription stage completed successfully",
			nil,
		)
	}
	if c.client == nil {
		return services.Wrap(services.ErrConfiguration, "correction", "validate client", "llm client unavailable", nil)
	}

	corrected, err := c.client.CorrectTranscript(ctx, transcript)
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool,
			"correction",
			"llm request",
			"Transcript correction failed",
			err,
		)
	}
	corrected = strings.TrimSpace(corrected)
	if corrected == "" {
		return services.Wrap(
			services.ErrValidation,
			"correction",
			"validate completion",
			"Correction backend returned an empty transcript",
			nil,
		)
	}

	similarity := textutil.CosineSimilarity(
		textutil.NewFingerprint(transcript),
		textutil.NewFingerprint(corrected),
	)
	threshold := c.similarityThreshold()
	if threshold > 0 && similarity < threshold {
		return services.Wrap(
			services.ErrValidation,
			"correction",
			"fidelity gate",
			fmt.Sprintf("Corrected transcript diverges from the recognized speech (similarity %.2f, threshold %.2f)", similarity, threshold),
			nil,
		)
	}

	item.CorrectedText = corrected
	item.SetProgressComplete("Corrected", "Transcript corrected")

	logger.Info("correction stage summary",
		logging.Duration("stage_duration", time.Since(stageStart)),
		logging.Int("input_chars", len(transcript)),
		logging.Int("output_chars", len(corrected)),
		logging.Float64("similarity", similarity),
		logging.String("fidelity_gate", textutil.Ternary(threshold > 0, "enforced", "disabled")),
	)
	return nil
}

func (c *Corrector) similarityThreshold() float64 {
	if c.cfg == nil {
		return 0
	}
	return c.cfg.LLM.SimilarityThreshold
}

// HealthCheck verifies the correction backend is configured.
func (c *Corrector) HealthCheck(ctx context.Context) stage.Health {
	const name = "corrector"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(c.cfg.LLM.APIKey) == "" {
		return stage.Unhealthy(name, "llm api key not configured")
	}
	if c.client == nil {
		return stage.Unhealthy(name, "llm client unavailable")
	}
	return stage.Healthy(name)
}
