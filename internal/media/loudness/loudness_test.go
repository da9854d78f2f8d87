package loudness_test

import (
	"encoding/binary"
	"math"
	"testing"

	"revoice/internal/media/loudness"
	"revoice/internal/media/wav"
)

func sineWave(amplitude float64, samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	return pcm
}

func s16Info(dataBytes int) wav.Info {
	return wav.Info{SampleRate: 16000, Channels: 1, BitsPerSample: 16, DataBytes: dataBytes}
}

func TestMeasureFullScaleSine(t *testing.T) {
	pcm := sineWave(1.0, 16000)
	level, err := loudness.Measure(pcm, s16Info(len(pcm)))
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	// A full-scale sine has an RMS 3.01 dB below peak.
	if math.Abs(level-(-3.01)) > 0.1 {
		t.Fatalf("expected about -3.01 dBFS, got %.2f", level)
	}
}

func TestMeasureSilence(t *testing.T) {
	pcm := make([]byte, 3200)
	level, err := loudness.Measure(pcm, s16Info(len(pcm)))
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if !math.IsInf(level, -1) {
		t.Fatalf("expected silence floor, got %.2f", level)
	}
}

func TestNormalizeHitsTarget(t *testing.T) {
	pcm := sineWave(0.1, 16000)
	info := s16Info(len(pcm))

	adjusted, err := loudness.Normalize(pcm, info, -20)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	level, err := loudness.Measure(adjusted, info)
	if err != nil {
		t.Fatalf("Measure adjusted: %v", err)
	}
	if math.Abs(level-(-20)) > 0.1 {
		t.Fatalf("expected about -20 dBFS, got %.2f", level)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	pcm := sineWave(0.25, 16000)
	info := s16Info(len(pcm))

	once, err := loudness.Normalize(pcm, info, -20)
	if err != nil {
		t.Fatalf("first Normalize: %v", err)
	}
	twice, err := loudness.Normalize(once, info, -20)
	if err != nil {
		t.Fatalf("second Normalize: %v", err)
	}

	first, err := loudness.Measure(once, info)
	if err != nil {
		t.Fatalf("Measure once: %v", err)
	}
	second, err := loudness.Measure(twice, info)
	if err != nil {
		t.Fatalf("Measure twice: %v", err)
	}
	if math.Abs(first-second) > 0.1 {
		t.Fatalf("normalization drifted: %.2f then %.2f", first, second)
	}
}

func TestNormalizeLeavesSilenceAlone(t *testing.T) {
	pcm := make([]byte, 3200)
	info := s16Info(len(pcm))

	adjusted, err := loudness.Normalize(pcm, info, -20)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for i, b := range adjusted {
		if b != 0 {
			t.Fatalf("expected silence preserved, byte %d is %d", i, b)
		}
	}
}

func TestNormalizeClampsOverflow(t *testing.T) {
	pcm := sineWave(0.9, 16000)
	info := s16Info(len(pcm))

	// Boosting a -3 dBFS signal to 0 dBFS forces peak clamping.
	adjusted, err := loudness.Normalize(pcm, info, 0)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	var peak int16
	for i := 0; i < len(adjusted); i += 2 {
		v := int16(binary.LittleEndian.Uint16(adjusted[i : i+2]))
		if v > peak {
			peak = v
		}
	}
	if peak != math.MaxInt16 {
		t.Fatalf("expected clamped peak at full scale, got %d", peak)
	}
}

func TestMeasureRejectsWrongBitDepth(t *testing.T) {
	info := wav.Info{SampleRate: 16000, Channels: 1, BitsPerSample: 8, DataBytes: 4}
	if _, err := loudness.Measure([]byte{1, 2, 3, 4}, info); err == nil {
		t.Fatal("expected error for 8-bit input")
	}
}
