// Package ffmpeg wraps the ffmpeg and ffprobe binaries for container
// inspection, audio extraction, and audio replacement.
//
// Commands run through an injectable Runner so stage tests can substitute
// canned output without the binaries installed.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Client invokes ffmpeg and ffprobe.
type Client struct {
	ffmpegBin  string
	ffprobeBin string
	runner     Runner
}

// Option customizes a Client.
type Option func(*Client)

// WithRunner substitutes the command runner, typically for tests.
func WithRunner(runner Runner) Option {
	return func(c *Client) {
		if runner != nil {
			c.runner = runner
		}
	}
}

// New builds a Client. Empty binary names fall back to the commands on PATH.
func New(ffmpegBin, ffprobeBin string, opts ...Option) *Client {
	client := &Client{
		ffmpegBin:  strings.TrimSpace(ffmpegBin),
		ffprobeBin: strings.TrimSpace(ffprobeBin),
		runner:     execRunner{},
	}
	if client.ffmpegBin == "" {
		client.ffmpegBin = "ffmpeg"
	}
	if client.ffprobeBin == "" {
		client.ffprobeBin = "ffprobe"
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// ExtractAudio pulls the first audio stream out of a video container as a
// mono 16-bit PCM WAV file at the requested sample rate.
func (c *Client) ExtractAudio(ctx context.Context, source, dest string, sampleRate int) error {
	if strings.TrimSpace(source) == "" {
		return errors.New("extract audio: empty source path")
	}
	if sampleRate <= 0 {
		return fmt.Errorf("extract audio: invalid sample rate %d", sampleRate)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		dest,
	}
	if output, err := c.runner.Run(ctx, c.ffmpegBin, args...); err != nil {
		return fmt.Errorf("ffmpeg extract: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// ReplaceAudio muxes a new audio track into the video container, copying the
// video stream untouched and dropping the original audio. The synthesized
// track is transcoded to AAC so common players accept the result.
func (c *Client) ReplaceAudio(ctx context.Context, video, audio, dest string) error {
	if strings.TrimSpace(video) == "" || strings.TrimSpace(audio) == "" {
		return errors.New("replace audio: empty input path")
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-i", audio,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		dest,
	}
	if output, err := c.runner.Run(ctx, c.ffmpegBin, args...); err != nil {
		return fmt.Errorf("ffmpeg mux: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
