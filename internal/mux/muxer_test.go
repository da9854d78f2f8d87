package mux_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revoice/internal/logging"
	"revoice/internal/media/ffmpeg"
	"revoice/internal/mux"
	"revoice/internal/queue"
	"revoice/internal/services"
	"revoice/internal/testsupport"
)

type fakeRunner struct {
	err       error
	output    []byte
	writeSize int64
	args      []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.args = args
	if f.err != nil {
		return f.output, f.err
	}
	dest := args[len(args)-1]
	return nil, os.WriteFile(dest, make([]byte, f.writeSize), 0o644)
}

func newMuxItem(t *testing.T) *queue.Item {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "input.mp4")
	audio := filepath.Join(dir, "synthesized.wav")
	testsupport.WriteFile(t, source, 4096)
	testsupport.WriteFile(t, audio, 1024)
	return &queue.Item{ID: 1, Title: "My Video", SourcePath: source, SynthesizedFile: audio}
}

func TestExecuteWritesFinalFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &fakeRunner{writeSize: 2048}
	muxer := mux.NewMuxerWithDependencies(cfg, logging.NewNop(), ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.WithRunner(runner)))

	item := newMuxItem(t)
	if err := muxer.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if err := muxer.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if item.FinalFile == "" {
		t.Fatal("expected final file recorded")
	}
	if filepath.Dir(item.FinalFile) != cfg.Paths.OutputDir {
		t.Fatalf("final file %q not in output dir %q", item.FinalFile, cfg.Paths.OutputDir)
	}
	if filepath.Base(item.FinalFile) != "My-Video.mp4" {
		t.Fatalf("unexpected final file name %q", filepath.Base(item.FinalFile))
	}

	joined := strings.Join(runner.args, " ")
	for _, fragment := range []string{"-map 0:v", "-map 1:a", "-c:v copy", "-c:a aac"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in ffmpeg args, got %q", fragment, joined)
		}
	}
}

func TestExecuteSurfacesFfmpegFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &fakeRunner{err: errors.New("exit status 1"), output: []byte("unsupported codec")}
	muxer := mux.NewMuxerWithDependencies(cfg, logging.NewNop(), ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.WithRunner(runner)))

	item := newMuxItem(t)
	err := muxer.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unsupported codec") {
		t.Fatalf("expected ffmpeg output in error, got %v", err)
	}
}

func TestExecuteRejectsEmptyOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &fakeRunner{writeSize: 0}
	muxer := mux.NewMuxerWithDependencies(cfg, logging.NewNop(), ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.WithRunner(runner)))

	item := newMuxItem(t)
	err := muxer.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty output, got %v", err)
	}
}

func TestExecuteRequiresSynthesizedAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	muxer := mux.NewMuxerWithDependencies(cfg, logging.NewNop(), ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.WithRunner(&fakeRunner{})))

	item := newMuxItem(t)
	item.SynthesizedFile = filepath.Join(t.TempDir(), "missing.wav")
	err := muxer.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHealthCheckRequiresOutputDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.OutputDir = ""
	muxer := mux.NewMuxerWithDependencies(cfg, logging.NewNop(), ffmpeg.New("", ""))
	if health := muxer.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy muxer without output dir")
	}
}
