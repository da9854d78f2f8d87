// Package loudness measures and adjusts the level of 16-bit PCM audio.
//
// Levels are expressed in dBFS relative to full scale, computed from the RMS
// of the sample stream. Normalization applies a uniform gain to hit a target
// level, clamping samples that would overflow.
package loudness

import (
	"encoding/binary"
	"fmt"
	"math"

	"revoice/internal/media/wav"
)

// SilenceFloor is returned by Measure for streams with no signal.
var SilenceFloor = math.Inf(-1)

const fullScale = 32768.0

// Measure returns the RMS level of a 16-bit PCM stream in dBFS.
// Pure silence yields SilenceFloor.
func Measure(pcm []byte, info wav.Info) (float64, error) {
	if err := requireS16(info); err != nil {
		return 0, err
	}
	if len(pcm)%2 != 0 {
		return 0, fmt.Errorf("%w: odd PCM byte count %d", wav.ErrFormat, len(pcm))
	}
	sampleCount := len(pcm) / 2
	if sampleCount == 0 {
		return SilenceFloor, nil
	}

	var sumSquares float64
	for i := 0; i < len(pcm); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i : i+2])))
		sumSquares += sample * sample
	}
	rms := math.Sqrt(sumSquares / float64(sampleCount))
	if rms == 0 {
		return SilenceFloor, nil
	}
	return 20 * math.Log10(rms/fullScale), nil
}

// Normalize returns a copy of the PCM stream adjusted to the target dBFS
// level. Samples that would exceed full scale are clamped. Silent input is
// returned unchanged since there is no signal to scale.
func Normalize(pcm []byte, info wav.Info, targetDBFS float64) ([]byte, error) {
	current, err := Measure(pcm, info)
	if err != nil {
		return nil, err
	}
	if math.IsInf(current, -1) {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out, nil
	}

	gain := math.Pow(10, (targetDBFS-current)/20)
	out := make([]byte, len(pcm))
	for i := 0; i < len(pcm); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[i : i+2])))
		scaled := sample * gain
		if scaled > math.MaxInt16 {
			scaled = math.MaxInt16
		} else if scaled < math.MinInt16 {
			scaled = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i:i+2], uint16(int16(math.Round(scaled))))
	}
	return out, nil
}

func requireS16(info wav.Info) error {
	if info.BitsPerSample != 16 {
		return fmt.Errorf("%w: loudness requires 16-bit PCM, got %d-bit", wav.ErrFormat, info.BitsPerSample)
	}
	return nil
}
