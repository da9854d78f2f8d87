// Package extract implements the first pipeline stage: probing the uploaded
// container and demuxing its audio track to a mono PCM WAV in the item
// workspace.
package extract

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media/ffmpeg"
	"revoice/internal/media/wav"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/stage"
	"revoice/internal/workspace"
)

const audioFileName = "audio.wav"

// Extractor demuxes the source audio track for downstream stages.
type Extractor struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	media  *ffmpeg.Client
}

// NewExtractor constructs the extraction handler with a real ffmpeg client.
func NewExtractor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Extractor {
	return NewExtractorWithDependencies(cfg, store, logger, ffmpeg.New("", ""))
}

// NewExtractorWithDependencies allows injecting a custom ffmpeg client (used for tests).
func NewExtractorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, media *ffmpeg.Client) *Extractor {
	ex := &Extractor{store: store, cfg: cfg, media: media}
	ex.SetLogger(logger)
	return ex
}

// SetLogger updates the extractor's logging destination while preserving component labeling.
func (e *Extractor) SetLogger(logger *slog.Logger) {
	e.logger = logging.NewComponentLogger(logger, "extractor")
}

func (e *Extractor) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	item.InitProgress("Extracting", "Probing source container")
	logger.Debug("starting extraction preparation")
	return nil
}

func (e *Extractor) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	stageStart := time.Now()

	if err := stage.RequireFile("extraction", "validate source", item.SourcePath); err != nil {
		return err
	}

	probe, err := e.media.Probe(ctx, item.SourcePath)
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool,
			"extraction",
			"ffprobe",
			"Failed to inspect source container; confirm ffprobe is installed and the upload is a valid video",
			err,
		)
	}
	if probe.VideoStreamCount() == 0 {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"validate streams",
			"Source contains no video stream",
			nil,
		)
	}
	if probe.AudioStreamCount() == 0 {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"validate streams",
			"Source contains no audio track to replace",
			nil,
		)
	}
	item.ProbeJSON = string(probe.RawJSON())

	dir, err := workspace.Ensure(item, e.cfg.Paths.StagingDir)
	if err != nil {
		return err
	}

	item.SetProgress("Extracting", "Demuxing audio track", 40)
	if e.store != nil {
		if err := e.store.UpdateProgress(ctx, item); err != nil {
			logger.Warn("failed to persist extraction progress", logging.Error(err))
		}
	}

	dest := filepath.Join(dir, audioFileName)
	sampleRate := e.cfg.Audio.SampleRate
	if err := e.media.ExtractAudio(ctx, item.SourcePath, dest, sampleRate); err != nil {
		return services.Wrap(
			services.ErrExternalTool,
			"extraction",
			"ffmpeg demux",
			"Audio extraction failed; inspect the ffmpeg output",
			err,
		)
	}

	info, err := wav.ReadInfo(dest)
	if err != nil {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"validate output",
			"Extracted audio is not a readable PCM WAV",
			err,
		)
	}
	if info.Channels != 1 || info.BitsPerSample != 16 {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"validate output",
			fmt.Sprintf("Extracted audio has unexpected layout (%d channels, %d bits)", info.Channels, info.BitsPerSample),
			nil,
		)
	}
	if info.DataBytes == 0 {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"validate output",
			"Extracted audio track is empty",
			nil,
		)
	}

	item.AudioFile = dest
	item.SetProgressComplete("Extracted", "Audio track extracted")

	logger.Info("extraction stage summary",
		logging.String("audio_file", dest),
		logging.Duration("stage_duration", time.Since(stageStart)),
		logging.Int("sample_rate", info.SampleRate),
		logging.Duration("audio_duration", info.Duration()),
		logging.Float64("source_duration_seconds", probe.DurationSeconds()),
	)
	return nil
}

// HealthCheck verifies the ffmpeg toolchain and staging directory are usable.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	const name = "extractor"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(e.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	for _, binary := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy(name, fmt.Sprintf("%s not found on PATH", binary))
		}
	}
	return stage.Healthy(name)
}
