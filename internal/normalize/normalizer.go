// Package normalize implements the loudness normalization stage: measure the
// extracted audio's RMS level and apply uniform gain toward the configured
// target before recognition.
package normalize

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media/loudness"
	"revoice/internal/media/wav"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/stage"
	"revoice/internal/workspace"
)

const normalizedFileName = "normalized.wav"

// Normalizer adjusts extracted audio to the configured loudness target.
type Normalizer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewNormalizer constructs the normalization handler.
func NewNormalizer(cfg *config.Config, logger *slog.Logger) *Normalizer {
	n := &Normalizer{cfg: cfg}
	n.SetLogger(logger)
	return n
}

// SetLogger updates the normalizer's logging destination while preserving component labeling.
func (n *Normalizer) SetLogger(logger *slog.Logger) {
	n.logger = logging.NewComponentLogger(logger, "normalizer")
}

func (n *Normalizer) Prepare(ctx context.Context, item *queue.Item) error {
	item.InitProgress("Normalizing", "Measuring loudness")
	return nil
}

func (n *Normalizer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, n.logger)
	stageStart := time.Now()

	if err := stage.RequireFile("normalization", "validate input", item.AudioFile); err != nil {
		return err
	}
	dir, err := workspace.Ensure(item, n.cfg.Paths.StagingDir)
	if err != nil {
		return err
	}

	info, pcm, err := wav.ReadFile(item.AudioFile)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, wav.ErrFormat) {
			marker = services.ErrValidation
		}
		return services.Wrap(marker, "normalization", "decode audio", "Extracted audio could not be decoded", err)
	}

	target := n.cfg.Audio.TargetDBFS
	level, err := loudness.Measure(pcm, info)
	if err != nil {
		return services.Wrap(services.ErrValidation, "normalization", "measure loudness", "Loudness measurement failed", err)
	}

	adjusted, err := loudness.Normalize(pcm, info, target)
	if err != nil {
		return services.Wrap(services.ErrValidation, "normalization", "apply gain", "Gain application failed", err)
	}

	dest := filepath.Join(dir, normalizedFileName)
	if err := wav.WriteFile(dest, info.SampleRate, info.Channels, info.BitsPerSample, adjusted); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"normalization",
			"write output",
			"Failed to write normalized audio; check staging_dir space and permissions",
			err,
		)
	}

	item.NormalizedFile = dest
	item.SetProgressComplete("Normalized", "Loudness normalized")

	attrs := []logging.Attr{
		logging.String("normalized_file", dest),
		logging.Duration("stage_duration", time.Since(stageStart)),
		logging.Float64("target_dbfs", target),
	}
	if level == loudness.SilenceFloor {
		attrs = append(attrs, logging.String("measured_dbfs", "silence"))
	} else {
		attrs = append(attrs, logging.Float64("measured_dbfs", level))
	}
	logger.Info("normalization stage summary", logging.Args(attrs...)...)
	return nil
}

// HealthCheck verifies the normalization stage configuration.
func (n *Normalizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "normalizer"
	if n.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(n.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if n.cfg.Audio.TargetDBFS > 0 {
		return stage.Unhealthy(name, "target loudness must be at or below 0 dBFS")
	}
	return stage.Healthy(name)
}
