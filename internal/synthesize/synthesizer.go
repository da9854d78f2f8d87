// Package synthesize implements the text-to-speech stage: the corrected
// transcript is rendered as LINEAR16 audio and written to the workspace for
// muxing.
package synthesize

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media/wav"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/services/tts"
	"revoice/internal/stage"
	"revoice/internal/workspace"
)

const synthesizedFileName = "synthesized.wav"

// TextToSpeech is the slice of the tts client the stage needs.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Synthesizer renders corrected transcripts as replacement narration.
type Synthesizer struct {
	cfg    *config.Config
	logger *slog.Logger
	client TextToSpeech
}

// NewSynthesizer constructs the synthesis handler with a real TTS client.
func NewSynthesizer(cfg *config.Config, logger *slog.Logger) *Synthesizer {
	client := tts.NewClient(tts.Config{
		APIKey:         cfg.TTS.APIKey,
		Endpoint:       cfg.TTS.Endpoint,
		Language:       cfg.TTS.Language,
		Voice:          cfg.TTS.Voice,
		SampleRate:     cfg.Audio.SampleRate,
		TimeoutSeconds: cfg.TTS.TimeoutSeconds,
	})
	return NewSynthesizerWithDependencies(cfg, logger, client)
}

// NewSynthesizerWithDependencies allows injecting a custom client (used for tests).
func NewSynthesizerWithDependencies(cfg *config.Config, logger *slog.Logger, client TextToSpeech) *Synthesizer {
	s := &Synthesizer{cfg: cfg, client: client}
	s.SetLogger(logger)
	return s
}

// SetLogger updates the synthesizer's logging destination while preserving component labeling.
func (s *Synthesizer) SetLogger(logger *slog.Logger) {
	s.logger = logging.NewComponentLogger(logger, "synthesizer")
}

func (s *Synthesizer) Prepare(ctx context.Context, item *queue.Item) error {
	item.InitProgress("Synthesizing", "Requesting speech synthesis")
	return nil
}

func (s *Synthesizer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, s.logger)
	stageStart := time.Now()

	text := strings.TrimSpace(item.CorrectedText)
	if text == "" {
		return services.Wrap(
			services.ErrValidation,
			"synthesis",
			"validate input",
			"No corrected transcript available; ensure the correction stage completed successfully",
			nil,
		)
	}
	if s.client == nil {
		return services.Wrap(services.ErrConfiguration, "synthesis", "validate client", "tts client unavailable", nil)
	}
	dir, err := workspace.Ensure(item, s.cfg.Paths.StagingDir)
	if err != nil {
		return err
	}

	audio, err := s.client.Synthesize(ctx, text)
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool,
			"synthesis",
			"tts request",
			"Speech synthesis failed",
			err,
		)
	}
	if len(audio) == 0 {
		return services.Wrap(
			services.ErrValidation,
			"synthesis",
			"validate audio",
			"Synthesis backend returned an empty audio buffer",
			nil,
		)
	}

	info, _, err := wav.Decode(bytes.NewReader(audio))
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"synthesis",
			"validate audio",
			"Synthesized audio is not a decodable PCM WAV",
			err,
		)
	}

	dest := filepath.Join(dir, synthesizedFileName)
	if err := os.WriteFile(dest, audio, 0o644); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"synthesis",
			"write output",
			"Failed to write synthesized audio; check staging_dir space and permissions",
			err,
		)
	}

	item.SynthesizedFile = dest
	item.SetProgressComplete("Synthesized", "Replacement narration synthesized")

	logger.Info("synthesis stage summary",
		logging.String("synthesized_file", dest),
		logging.Duration("stage_duration", time.Since(stageStart)),
		logging.Int("audio_bytes", len(audio)),
		logging.Duration("audio_duration", info.Duration()),
		logging.Int("transcript_chars", len(text)),
	)
	return nil
}

// HealthCheck verifies the synthesis backend is configured.
func (s *Synthesizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "synthesizer"
	if s.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(s.cfg.TTS.APIKey) == "" {
		return stage.Unhealthy(name, "tts api key not configured")
	}
	if s.client == nil {
		return stage.Unhealthy(name, "tts client unavailable")
	}
	return stage.Healthy(name)
}
