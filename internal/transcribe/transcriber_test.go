package transcribe_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"revoice/internal/logging"
	"revoice/internal/media/wav"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/testsupport"
	"revoice/internal/transcribe"
)

type stubRecognizer struct {
	mu      sync.Mutex
	calls   int
	results map[int]string
	failAt  int
	delays  map[int]time.Duration
	single  string
	err     error
}

// Recognize derives the chunk index from the first PCM byte; the test fixture
// stamps each one-second block with its ordinal so ordering is observable.
func (s *stubRecognizer) Recognize(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	index := 0
	if len(pcm) > 0 {
		index = int(pcm[0])
	}
	if s.err != nil {
		return "", s.err
	}
	if s.delays != nil {
		if delay, ok := s.delays[index]; ok {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	if s.failAt > 0 && index == s.failAt {
		return "", fmt.Errorf("backend unavailable")
	}
	if s.results != nil {
		return s.results[index], nil
	}
	return s.single, nil
}

func writeNormalizedItem(t *testing.T, seconds int) *queue.Item {
	t.Helper()
	// 16 kHz mono 16-bit: 32000 bytes per second. Each second block is stamped
	// with its ordinal so the stub recognizer can tell chunks apart.
	pcm := make([]byte, seconds*32000)
	for sec := 0; sec < seconds; sec++ {
		for i := sec * 32000; i < (sec+1)*32000; i++ {
			pcm[i] = byte(sec)
		}
	}
	path := filepath.Join(t.TempDir(), "normalized.wav")
	if err := wav.WriteFile(path, 16000, 1, 16, pcm); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return &queue.Item{ID: 1, Title: "clip", NormalizedFile: path}
}

func TestExecuteSingleRequestUnderCeiling(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	recognizer := &stubRecognizer{single: "  hello world  "}
	tr := transcribe.NewTranscriberWithDependencies(cfg, nil, logging.NewNop(), recognizer)

	item := writeNormalizedItem(t, 2)
	if err := tr.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if item.TranscriptText != "hello world" {
		t.Fatalf("unexpected transcript %q", item.TranscriptText)
	}
	if recognizer.calls != 1 {
		t.Fatalf("expected a single recognition call, got %d", recognizer.calls)
	}
}

func TestExecuteChunksOversizedPayloadInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// Force chunking: 5s of audio at 32000 B/s against a 64000-byte ceiling
	// with 1-second chunks.
	cfg.Speech.MaxRequestBytes = 64000
	cfg.Speech.ChunkSeconds = 1

	// Chunks complete out of submission order; assembly must still be by index.
	recognizer := &stubRecognizer{
		results: map[int]string{0: "one", 1: "two", 2: "three", 3: "four", 4: "five"},
		delays: map[int]time.Duration{
			0: 40 * time.Millisecond,
			1: 5 * time.Millisecond,
			2: 25 * time.Millisecond,
		},
	}
	tr := transcribe.NewTranscriberWithDependencies(cfg, nil, logging.NewNop(), recognizer)

	item := writeNormalizedItem(t, 5)
	if err := tr.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if item.TranscriptText != "one two three four five" {
		t.Fatalf("unexpected transcript order: %q", item.TranscriptText)
	}
	if recognizer.calls != 5 {
		t.Fatalf("expected 5 chunk calls, got %d", recognizer.calls)
	}
}

func TestExecuteChunkFailureCarriesIndex(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Speech.MaxRequestBytes = 64000
	cfg.Speech.ChunkSeconds = 1

	recognizer := &stubRecognizer{
		results: map[int]string{0: "one", 1: "two", 2: "three", 3: "four", 4: "five"},
		failAt:  2,
	}
	tr := transcribe.NewTranscriberWithDependencies(cfg, nil, logging.NewNop(), recognizer)

	item := writeNormalizedItem(t, 5)
	err := tr.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error from failing chunk")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	var chunkErr *transcribe.ChunkError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("expected ChunkError, got %v", err)
	}
	if chunkErr.Index != 2 {
		t.Fatalf("expected failing chunk index 2, got %d", chunkErr.Index)
	}
	if item.TranscriptText != "" {
		t.Fatalf("transcript should not be set on failure, got %q", item.TranscriptText)
	}
}

func TestExecuteChunkFailureKeepsIndexUnderCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Speech.MaxRequestBytes = 64000
	cfg.Speech.ChunkSeconds = 1

	// Chunks 0 and 1 are still in flight when chunk 2 fails; the cancellation
	// makes them return early with context.Canceled, which must not displace
	// the genuine failure or its cause.
	recognizer := &stubRecognizer{
		results: map[int]string{0: "one", 1: "two", 3: "four", 4: "five"},
		failAt:  2,
		delays: map[int]time.Duration{
			0: 500 * time.Millisecond,
			1: 500 * time.Millisecond,
		},
	}
	tr := transcribe.NewTranscriberWithDependencies(cfg, nil, logging.NewNop(), recognizer)

	item := writeNormalizedItem(t, 5)
	err := tr.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error from failing chunk")
	}
	var chunkErr *transcribe.ChunkError
	if !errors.As(err, &chunkErr) {
		t.Fatalf("expected ChunkError, got %v", err)
	}
	if chunkErr.Index != 2 {
		t.Fatalf("expected failing chunk index 2, got %d", chunkErr.Index)
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("cause degraded to cancellation: %v", err)
	}
	if !strings.Contains(chunkErr.Err.Error(), "backend unavailable") {
		t.Fatalf("expected backend error as cause, got %v", chunkErr.Err)
	}
}

func TestExecuteEmptyTranscriptRoutesToValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	recognizer := &stubRecognizer{single: "   "}
	tr := transcribe.NewTranscriberWithDependencies(cfg, nil, logging.NewNop(), recognizer)

	item := writeNormalizedItem(t, 1)
	err := tr.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty transcript, got %v", err)
	}
}

func TestExecuteSkipsSilentChunksWhenJoining(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Speech.MaxRequestBytes = 64000
	cfg.Speech.ChunkSeconds = 1

	recognizer := &stubRecognizer{
		results: map[int]string{0: "start", 1: "", 2: "end"},
	}
	tr := transcribe.NewTranscriberWithDependencies(cfg, nil, logging.NewNop(), recognizer)

	item := writeNormalizedItem(t, 3)
	if err := tr.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if item.TranscriptText != "start end" {
		t.Fatalf("unexpected transcript %q", item.TranscriptText)
	}
}

func TestExecuteRequiresNormalizedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	tr := transcribe.NewTranscriberWithDependencies(cfg, nil, logging.NewNop(), &stubRecognizer{})

	item := &queue.Item{ID: 3, Title: "empty"}
	err := tr.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthCheckRequiresAPIKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Speech.APIKey = ""
	tr := transcribe.NewTranscriberWithDependencies(cfg, nil, logging.NewNop(), &stubRecognizer{})
	if health := tr.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy transcriber without api key")
	}
}
