package chunk_test

import (
	"bytes"
	"testing"

	"revoice/internal/media/chunk"
	"revoice/internal/media/wav"
)

func s16Mono(dataBytes int) wav.Info {
	return wav.Info{SampleRate: 16000, Channels: 1, BitsPerSample: 16, DataBytes: dataBytes}
}

func patternPCM(n int) []byte {
	pcm := make([]byte, n)
	for i := range pcm {
		pcm[i] = byte(i % 253)
	}
	return pcm
}

func TestSplitRoundsUpCount(t *testing.T) {
	// 2.5 seconds of mono 16-bit at 16 kHz.
	pcm := patternPCM(16000 * 2 * 5 / 2)
	info := s16Mono(len(pcm))

	segments, err := chunk.Split(pcm, info, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}
	if got := chunk.Count(info, 1); got != 3 {
		t.Fatalf("Count = %d, want 3", got)
	}
	if len(segments[0].PCM) != 32000 || len(segments[1].PCM) != 32000 {
		t.Fatalf("unexpected full segment sizes: %d, %d", len(segments[0].PCM), len(segments[1].PCM))
	}
	if len(segments[2].PCM) != 16000 {
		t.Fatalf("expected 0.5s remainder, got %d bytes", len(segments[2].PCM))
	}
}

func TestSplitJoinIsLossless(t *testing.T) {
	pcm := patternPCM(16000*2*7 + 1234*2)
	info := s16Mono(len(pcm))

	segments, err := chunk.Split(pcm, info, 2)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !bytes.Equal(chunk.Join(segments), pcm) {
		t.Fatal("joined segments differ from source")
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	pcm := patternPCM(16000 * 2 * 3)
	info := s16Mono(len(pcm))

	first, err := chunk.Split(pcm, info, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	second, err := chunk.Split(pcm, info, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("segment counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Index != second[i].Index || !bytes.Equal(first[i].PCM, second[i].PCM) {
			t.Fatalf("segment %d differs between runs", i)
		}
	}
}

func TestSplitPreservesFrameAlignment(t *testing.T) {
	// Stereo 16-bit: 4-byte frames.
	info := wav.Info{SampleRate: 8000, Channels: 2, BitsPerSample: 16}
	pcm := patternPCM(8000 * 4 * 3)
	info.DataBytes = len(pcm)

	segments, err := chunk.Split(pcm, info, 1)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for _, segment := range segments {
		if len(segment.PCM)%4 != 0 {
			t.Fatalf("segment %d not frame aligned: %d bytes", segment.Index, len(segment.PCM))
		}
	}
}

func TestSplitRejectsMisalignedInput(t *testing.T) {
	info := s16Mono(3)
	if _, err := chunk.Split([]byte{1, 2, 3}, info, 1); err == nil {
		t.Fatal("expected error for misaligned PCM")
	}
}

func TestSplitRejectsZeroSegmentLength(t *testing.T) {
	info := s16Mono(4)
	if _, err := chunk.Split([]byte{1, 2, 3, 4}, info, 0); err == nil {
		t.Fatal("expected error for zero segment length")
	}
}
