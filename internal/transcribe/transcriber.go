// Package transcribe implements the speech-recognition stage. Oversized
// payloads are split into fixed-duration chunks that are submitted
// concurrently and reassembled strictly in chunk order.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"revoice/internal/config"
	"revoice/internal/logging"
	"revoice/internal/media/chunk"
	"revoice/internal/media/wav"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/services/speech"
	"revoice/internal/stage"
)

// maxConcurrentChunks bounds in-flight recognition requests for one item.
const maxConcurrentChunks = 4

// Recognizer is the slice of the speech client the stage needs.
type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

// ChunkError reports the first chunk whose recognition failed.
type ChunkError struct {
	Index int
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Transcriber converts normalized audio into a raw transcript.
type Transcriber struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
	client Recognizer
}

// NewTranscriber constructs the transcription handler with a real speech client.
func NewTranscriber(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Transcriber {
	client := speech.NewClient(speech.Config{
		APIKey:         cfg.Speech.APIKey,
		Endpoint:       cfg.Speech.Endpoint,
		Language:       cfg.Speech.Language,
		TimeoutSeconds: cfg.Speech.TimeoutSeconds,
	})
	return NewTranscriberWithDependencies(cfg, store, logger, client)
}

// NewTranscriberWithDependencies allows injecting a custom recognizer (used for tests).
func NewTranscriberWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Recognizer) *Transcriber {
	tr := &Transcriber{store: store, cfg: cfg, client: client}
	tr.SetLogger(logger)
	return tr
}

// SetLogger updates the transcriber's logging destination while preserving component labeling.
func (t *Transcriber) SetLogger(logger *slog.Logger) {
	t.logger = logging.NewComponentLogger(logger, "transcriber")
}

func (t *Transcriber) Prepare(ctx context.Context, item *queue.Item) error {
	item.InitProgress("Transcribing", "Submitting audio for recognition")
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, t.logger)
	stageStart := time.Now()

	if err := stage.RequireFile("transcription", "validate input", item.NormalizedFile); err != nil {
		return err
	}
	if t.client == nil {
		return services.Wrap(services.ErrConfiguration, "transcription", "validate client", "speech client unavailable", nil)
	}

	info, pcm, err := wav.ReadFile(item.NormalizedFile)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, wav.ErrFormat) {
			marker = services.ErrValidation
		}
		return services.Wrap(marker, "transcription", "decode audio", "Normalized audio could not be decoded", err)
	}

	var (
		transcript string
		chunkCount int
	)
	if int64(len(pcm)) <= t.maxRequestBytes() {
		chunkCount = 1
		text, err := t.client.Recognize(ctx, pcm, info.SampleRate)
		if err != nil {
			return services.Wrap(
				services.ErrExternalTool,
				"transcription",
				"recognize",
				"Speech recognition failed",
				err,
			)
		}
		transcript = strings.TrimSpace(text)
	} else {
		logger.Info("audio exceeds request ceiling; transcribing in chunks",
			logging.Int("estimated_chunks", chunk.Count(info, t.chunkSeconds())),
			logging.Int("chunk_seconds", t.chunkSeconds()),
			logging.Int("payload_bytes", len(pcm)),
		)
		segments, err := chunk.Split(pcm, info, t.chunkSeconds())
		if err != nil {
			return services.Wrap(services.ErrValidation, "transcription", "chunk audio", "Audio payload could not be chunked", err)
		}
		chunkCount = len(segments)
		texts, err := t.recognizeChunks(ctx, item, segments, info.SampleRate)
		if err != nil {
			return services.Wrap(
				services.ErrExternalTool,
				"transcription",
				"recognize chunks",
				"Speech recognition failed",
				err,
			)
		}
		transcript = joinTranscripts(texts)
	}

	if transcript == "" {
		return services.Wrap(
			services.ErrValidation,
			"transcription",
			"validate transcript",
			"Recognition returned no speech; verify the source actually contains narration",
			nil,
		)
	}

	item.TranscriptText = transcript
	item.SetProgressComplete("Transcribed", "Transcript received")

	logger.Info("transcription stage summary",
		logging.Duration("stage_duration", time.Since(stageStart)),
		logging.Int("chunks", chunkCount),
		logging.Int("transcript_chars", len(transcript)),
		logging.Duration("audio_duration", info.Duration()),
	)
	return nil
}

// recognizeChunks submits segments through a bounded worker pool. Results are
// placed by segment index so assembly order never depends on completion order.
// The first failure cancels outstanding work and is returned as a ChunkError.
func (t *Transcriber) recognizeChunks(ctx context.Context, item *queue.Item, segments []chunk.Segment, sampleRate int) ([]string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]string, len(segments))
	sem := make(chan struct{}, maxConcurrentChunks)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr *ChunkError
		done     int
	)

	for _, segment := range segments {
		wg.Add(1)
		go func(segment chunk.Segment) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			text, err := t.client.Recognize(ctx, segment.PCM, sampleRate)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// In-flight chunks aborted by cancellation are casualties of
				// the failure that triggered it, not causes; they must never
				// displace the genuine error.
				if isCancellation(err) && (firstErr != nil || ctx.Err() != nil) {
					return
				}
				if firstErr == nil || segment.Index < firstErr.Index {
					firstErr = &ChunkError{Index: segment.Index, Err: err}
				}
				cancel()
				return
			}
			results[segment.Index] = strings.TrimSpace(text)
			done++
			t.reportChunkProgress(ctx, item, done, len(segments))
		}(segment)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (t *Transcriber) reportChunkProgress(ctx context.Context, item *queue.Item, done, total int) {
	if t.store == nil || item == nil || total == 0 {
		return
	}
	copy := *item
	copy.SetProgress("Transcribing", fmt.Sprintf("Transcribed chunk %d/%d", done, total), float64(done)/float64(total)*100)
	if err := t.store.UpdateProgress(ctx, &copy); err == nil {
		*item = copy
	}
}

func joinTranscripts(texts []string) string {
	parts := make([]string, 0, len(texts))
	for _, text := range texts {
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func (t *Transcriber) maxRequestBytes() int64 {
	if t.cfg == nil || t.cfg.Speech.MaxRequestBytes <= 0 {
		return 10 * 1024 * 1024
	}
	return t.cfg.Speech.MaxRequestBytes
}

func (t *Transcriber) chunkSeconds() int {
	if t.cfg == nil || t.cfg.Speech.ChunkSeconds <= 0 {
		return 60
	}
	return t.cfg.Speech.ChunkSeconds
}

// HealthCheck verifies the recognition backend is configured.
func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcriber"
	if t.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(t.cfg.Speech.APIKey) == "" {
		return stage.Unhealthy(name, "speech api key not configured")
	}
	if t.client == nil {
		return stage.Unhealthy(name, "speech client unavailable")
	}
	return stage.Healthy(name)
}
