package ffmpeg_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"revoice/internal/media/ffmpeg"
)

type fakeRunner struct {
	lastName string
	lastArgs []string
	output   []byte
	err      error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.lastName = name
	f.lastArgs = args
	return f.output, f.err
}

func TestExtractAudioBuildsExpectedCommand(t *testing.T) {
	runner := &fakeRunner{}
	client := ffmpeg.New("ffmpeg", "ffprobe", ffmpeg.WithRunner(runner))

	if err := client.ExtractAudio(context.Background(), "/in/video.mp4", "/out/audio.wav", 16000); err != nil {
		t.Fatalf("ExtractAudio: %v", err)
	}
	if runner.lastName != "ffmpeg" {
		t.Fatalf("expected ffmpeg binary, got %s", runner.lastName)
	}
	joined := strings.Join(runner.lastArgs, " ")
	for _, want := range []string{"-i /in/video.mp4", "-ac 1", "-ar 16000", "-c:a pcm_s16le", "/out/audio.wav"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %q", want, joined)
		}
	}
}

func TestExtractAudioRejectsBadSampleRate(t *testing.T) {
	client := ffmpeg.New("", "", ffmpeg.WithRunner(&fakeRunner{}))
	if err := client.ExtractAudio(context.Background(), "/in/video.mp4", "/out/audio.wav", 0); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestReplaceAudioBuildsExpectedCommand(t *testing.T) {
	runner := &fakeRunner{}
	client := ffmpeg.New("", "", ffmpeg.WithRunner(runner))

	if err := client.ReplaceAudio(context.Background(), "/in/video.mp4", "/work/speech.wav", "/out/final.mp4"); err != nil {
		t.Fatalf("ReplaceAudio: %v", err)
	}
	joined := strings.Join(runner.lastArgs, " ")
	for _, want := range []string{"-map 0:v", "-map 1:a", "-c:v copy", "-c:a aac", "/out/final.mp4"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args %q", want, joined)
		}
	}
}

func TestReplaceAudioSurfacesCommandFailure(t *testing.T) {
	runner := &fakeRunner{output: []byte("mux error detail"), err: errors.New("exit status 1")}
	client := ffmpeg.New("", "", ffmpeg.WithRunner(runner))

	err := client.ReplaceAudio(context.Background(), "/in/video.mp4", "/work/speech.wav", "/out/final.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "mux error detail") {
		t.Fatalf("expected command output in error, got %v", err)
	}
}

func TestProbeParsesJSON(t *testing.T) {
	payload := `{
        "streams": [
            {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080},
            {"index": 1, "codec_type": "audio", "codec_name": "aac", "channels": 2, "sample_rate": "48000"}
        ],
        "format": {"filename": "video.mp4", "nb_streams": 2, "duration": "12.500", "size": "1048576", "format_name": "mov,mp4"}
    }`
	runner := &fakeRunner{output: []byte(payload)}
	client := ffmpeg.New("", "", ffmpeg.WithRunner(runner))

	result, err := client.Probe(context.Background(), "/in/video.mp4")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 1 {
		t.Fatalf("unexpected stream counts: video=%d audio=%d", result.VideoStreamCount(), result.AudioStreamCount())
	}
	if result.DurationSeconds() != 12.5 {
		t.Fatalf("unexpected duration %.3f", result.DurationSeconds())
	}
	if result.SizeBytes() != 1048576 {
		t.Fatalf("unexpected size %d", result.SizeBytes())
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw JSON preserved")
	}
}

func TestProbeRejectsMalformedJSON(t *testing.T) {
	runner := &fakeRunner{output: []byte("not json")}
	client := ffmpeg.New("", "", ffmpeg.WithRunner(runner))

	if _, err := client.Probe(context.Background(), "/in/video.mp4"); err == nil {
		t.Fatal("expected parse error")
	}
}
