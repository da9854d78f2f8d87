// Package chunk splits PCM audio into fixed-duration segments for
// size-limited recognition requests.
//
// Splits always land on sample-frame boundaries so each segment is a valid
// PCM stream, and concatenating the segments reproduces the input exactly.
package chunk

import (
	"fmt"

	"revoice/internal/media/wav"
)

// Segment is one contiguous slice of a PCM stream.
type Segment struct {
	Index int
	PCM   []byte
}

// Count returns the number of segments produced for audio of the given
// format at the given segment length, rounding up.
func Count(info wav.Info, seconds int) int {
	if seconds <= 0 {
		return 0
	}
	frames := info.SampleCount()
	if frames == 0 {
		return 0
	}
	framesPerSegment := info.SampleRate * seconds
	if framesPerSegment <= 0 {
		return 0
	}
	return (frames + framesPerSegment - 1) / framesPerSegment
}

// Split divides the PCM payload into segments of the requested duration.
// The final segment holds the remainder and may be shorter. Each segment
// references a copy so callers can release the source buffer.
func Split(pcm []byte, info wav.Info, seconds int) ([]Segment, error) {
	if seconds <= 0 {
		return nil, fmt.Errorf("segment length must be positive, got %d", seconds)
	}
	align := info.BlockAlign()
	if align <= 0 {
		return nil, fmt.Errorf("%w: block align %d", wav.ErrFormat, align)
	}
	if len(pcm)%align != 0 {
		return nil, fmt.Errorf("%w: PCM length %d not frame aligned", wav.ErrFormat, len(pcm))
	}

	segmentBytes := info.SampleRate * seconds * align
	if segmentBytes <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", wav.ErrFormat, info.SampleRate)
	}

	var segments []Segment
	for offset := 0; offset < len(pcm); offset += segmentBytes {
		end := offset + segmentBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		part := make([]byte, end-offset)
		copy(part, pcm[offset:end])
		segments = append(segments, Segment{Index: len(segments), PCM: part})
	}
	return segments, nil
}

// Join concatenates segments back into a single PCM stream in index order.
// Segments must already be sorted by Index.
func Join(segments []Segment) []byte {
	var total int
	for _, segment := range segments {
		total += len(segment.PCM)
	}
	out := make([]byte, 0, total)
	for _, segment := range segments {
		out = append(out, segment.PCM...)
	}
	return out
}
