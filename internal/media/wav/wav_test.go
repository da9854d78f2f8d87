package wav_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"revoice/internal/media/wav"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pcm := make([]byte, 32000) // one second of mono 16-bit at 16 kHz
	for i := range pcm {
		pcm[i] = byte(i % 251)
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := wav.WriteFile(path, 16000, 1, 16, pcm); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, data, err := wav.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !bytes.Equal(data, pcm) {
		t.Fatal("PCM payload corrupted by round trip")
	}
	if info.Duration() != time.Second {
		t.Fatalf("expected 1s duration, got %v", info.Duration())
	}
	if info.SampleCount() != 16000 {
		t.Fatalf("expected 16000 samples, got %d", info.SampleCount())
	}
}

func TestDecodeSkipsMetadataChunks(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	var buf bytes.Buffer
	if err := wav.Encode(&buf, 8000, 1, 16, pcm); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw := buf.Bytes()

	// Splice a LIST chunk between the fmt and data chunks.
	list := append([]byte("LIST"), 4, 0, 0, 0, 'I', 'N', 'F', 'O')
	spliced := make([]byte, 0, len(raw)+len(list))
	spliced = append(spliced, raw[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, raw[36:]...)
	// Patch the RIFF chunk size to cover the insertion.
	spliced[4] = byte(len(spliced) - 8)

	info, data, err := wav.Decode(bytes.NewReader(spliced))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if info.SampleRate != 8000 {
		t.Fatalf("unexpected sample rate %d", info.SampleRate)
	}
	if !bytes.Equal(data, pcm) {
		t.Fatal("unexpected PCM payload")
	}
}

func TestDecodeRejectsNonWAV(t *testing.T) {
	_, _, err := wav.Decode(bytes.NewReader([]byte("definitely not audio data")))
	if !errors.Is(err, wav.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestDecodeRejectsCompressedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := wav.Encode(&buf, 8000, 1, 16, []byte{0, 0}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	raw := buf.Bytes()
	raw[20] = 7 // mu-law format tag

	_, _, err := wav.Decode(bytes.NewReader(raw))
	if !errors.Is(err, wav.ErrFormat) {
		t.Fatalf("expected ErrFormat for non-PCM, got %v", err)
	}
}

func TestWriteFileRejectsBadFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := wav.WriteFile(path, 16000, 1, 12, nil); !errors.Is(err, wav.ErrFormat) {
		t.Fatalf("expected ErrFormat for odd bit depth, got %v", err)
	}
}
