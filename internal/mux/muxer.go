// Package mux implements the final pipeline stage: the synthesized narration
// replaces the source audio track and the finished container lands in the
// output directory.
package mux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media/ffmpeg"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/stage"
	"revoice/internal/textutil"
)

// Muxer writes the final video with the replacement audio track.
type Muxer struct {
	cfg    *config.Config
	logger *slog.Logger
	media  *ffmpeg.Client
}

// NewMuxer constructs the muxing handler with a real ffmpeg client.
func NewMuxer(cfg *config.Config, logger *slog.Logger) *Muxer {
	return NewMuxerWithDependencies(cfg, logger, ffmpeg.New("", ""))
}

// NewMuxerWithDependencies allows injecting a custom ffmpeg client (used for tests).
func NewMuxerWithDependencies(cfg *config.Config, logger *slog.Logger, media *ffmpeg.Client) *Muxer {
	m := &Muxer{cfg: cfg, media: media}
	m.SetLogger(logger)
	return m
}

// SetLogger updates the muxer's logging destination while preserving component labeling.
func (m *Muxer) SetLogger(logger *slog.Logger) {
	m.logger = logging.NewComponentLogger(logger, "muxer")
}

func (m *Muxer) Prepare(ctx context.Context, item *queue.Item) error {
	item.InitProgress("Muxing", "Replacing audio track")
	return nil
}

func (m *Muxer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, m.logger)
	stageStart := time.Now()

	if err := stage.RequireFile("mux", "validate source", item.SourcePath); err != nil {
		return err
	}
	if err := stage.RequireFile("mux", "validate audio", item.SynthesizedFile); err != nil {
		return err
	}

	outputDir := strings.TrimSpace(m.cfg.Paths.OutputDir)
	if outputDir == "" {
		return services.Wrap(
			services.ErrConfiguration,
			"mux",
			"validate output dir",
			"output_dir is not configured",
			nil,
		)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"mux",
			"ensure output dir",
			"Failed to create output directory; set output_dir to a writable path",
			err,
		)
	}

	dest := filepath.Join(outputDir, finalFileName(item))
	if err := m.media.ReplaceAudio(ctx, item.SourcePath, item.SynthesizedFile, dest); err != nil {
		return services.Wrap(
			services.ErrExternalTool,
			"mux",
			"ffmpeg mux",
			"Audio replacement failed; inspect the ffmpeg output",
			err,
		)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"mux",
			"validate output",
			"Muxed file missing after ffmpeg reported success",
			err,
		)
	}
	if info.Size() == 0 {
		return services.Wrap(
			services.ErrValidation,
			"mux",
			"validate output",
			fmt.Sprintf("Muxed file %q is empty", dest),
			nil,
		)
	}

	item.FinalFile = dest
	item.SetProgressComplete("Completed", "Voiceover replaced")

	logger.Info("mux stage summary",
		logging.String("final_file", dest),
		logging.Duration("stage_duration", time.Since(stageStart)),
		logging.Int64("output_bytes", info.Size()),
	)
	return nil
}

// finalFileName derives the output name from the item title and keeps the
// source container extension.
func finalFileName(item *queue.Item) string {
	ext := filepath.Ext(item.SourcePath)
	if ext == "" {
		ext = ".mp4"
	}
	base := textutil.SanitizeFileName(item.Title)
	base = strings.Trim(strings.ReplaceAll(base, " ", "-"), "-_")
	if base == "" {
		base = fmt.Sprintf("revoiced-%d", item.ID)
	}
	return base + ext
}

// HealthCheck verifies ffmpeg and the output directory are usable.
func (m *Muxer) HealthCheck(ctx context.Context) stage.Health {
	const name = "muxer"
	if m.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(m.cfg.Paths.OutputDir) == "" {
		return stage.Unhealthy(name, "output directory not configured")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return stage.Unhealthy(name, "ffmpeg not found on PATH")
	}
	return stage.Healthy(name)
}
