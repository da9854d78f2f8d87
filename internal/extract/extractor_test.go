package extract_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revoice/internal/extract"
	"revoice/internal/logging"
	"revoice/internal/media/ffmpeg"
	"revoice/internal/media/wav"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/testsupport"
)

const probeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac"}
  ],
  "format": {"duration": "30.5", "size": "1048576"}
}`

const videoOnlyProbeJSON = `{
  "streams": [{"index": 0, "codec_type": "video", "codec_name": "h264"}],
  "format": {"duration": "30.5"}
}`

type fakeRunner struct {
	probeOutput string
	probeErr    error
	extractErr  error
	extractPCM  []byte
	calls       []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name)
	if name == "ffprobe" {
		if f.probeErr != nil {
			return nil, f.probeErr
		}
		return []byte(f.probeOutput), nil
	}
	if f.extractErr != nil {
		return []byte("ffmpeg exploded"), f.extractErr
	}
	dest := args[len(args)-1]
	pcm := f.extractPCM
	if pcm == nil {
		pcm = make([]byte, 3200)
	}
	if err := wav.WriteFile(dest, 16000, 1, 16, pcm); err != nil {
		return nil, err
	}
	return nil, nil
}

func newItem(t *testing.T, dir string) *queue.Item {
	t.Helper()
	source := filepath.Join(dir, "input.mp4")
	testsupport.WriteFile(t, source, 2048)
	return &queue.Item{ID: 1, SourcePath: source, Title: "input"}
}

func TestExecuteExtractsAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := &fakeRunner{probeOutput: probeJSON}
	media := ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.WithRunner(runner))
	extractor := extract.NewExtractorWithDependencies(cfg, store, logging.NewNop(), media)

	item := newItem(t, t.TempDir())
	if err := extractor.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if err := extractor.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if item.AudioFile == "" {
		t.Fatal("expected audio file to be recorded")
	}
	if _, err := os.Stat(item.AudioFile); err != nil {
		t.Fatalf("audio file missing: %v", err)
	}
	if !strings.HasPrefix(item.AudioFile, item.WorkspaceDir) {
		t.Fatalf("audio file %q escaped workspace %q", item.AudioFile, item.WorkspaceDir)
	}
	if !strings.Contains(item.ProbeJSON, "h264") {
		t.Fatalf("expected probe json captured, got %q", item.ProbeJSON)
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("expected completed progress, got %f", item.ProgressPercent)
	}
}

func TestExecuteRejectsMissingAudioStream(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &fakeRunner{probeOutput: videoOnlyProbeJSON}
	media := ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.WithRunner(runner))
	extractor := extract.NewExtractorWithDependencies(cfg, nil, logging.NewNop(), media)

	item := newItem(t, t.TempDir())
	err := extractor.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for source without audio")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExecuteRejectsMissingSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	media := ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.WithRunner(&fakeRunner{probeOutput: probeJSON}))
	extractor := extract.NewExtractorWithDependencies(cfg, nil, logging.NewNop(), media)

	item := &queue.Item{ID: 2, SourcePath: filepath.Join(t.TempDir(), "missing.mp4"), Title: "missing"}
	err := extractor.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing source, got %v", err)
	}
}

func TestExecuteSurfacesFfmpegFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &fakeRunner{probeOutput: probeJSON, extractErr: fmt.Errorf("exit status 1")}
	media := ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.WithRunner(runner))
	extractor := extract.NewExtractorWithDependencies(cfg, nil, logging.NewNop(), media)

	item := newItem(t, t.TempDir())
	err := extractor.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestExecuteRejectsEmptyExtractedAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &fakeRunner{probeOutput: probeJSON, extractPCM: []byte{}}
	media := ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.WithRunner(runner))
	extractor := extract.NewExtractorWithDependencies(cfg, nil, logging.NewNop(), media)

	item := newItem(t, t.TempDir())
	err := extractor.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty audio, got %v", err)
	}
}

func TestHealthCheckReportsStubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	extractor := extract.NewExtractorWithDependencies(cfg, nil, logging.NewNop(), ffmpeg.New("", ""))
	health := extractor.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected healthy extractor, got %q", health.Detail)
	}
}
