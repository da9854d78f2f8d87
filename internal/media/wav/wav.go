// Package wav reads and writes PCM WAV files.
//
// Only uncompressed little-endian PCM is supported, which is what the
// pipeline's extraction step produces. The decoder walks RIFF chunks so
// files with extra metadata chunks (LIST, fact) still parse.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ErrFormat reports data that is not a PCM WAV stream.
var ErrFormat = errors.New("invalid wav data")

const headerSize = 44

// Info describes the PCM format of a WAV stream.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataBytes     int
}

// BlockAlign returns the byte size of one sample frame across all channels.
func (i Info) BlockAlign() int {
	return i.Channels * i.BitsPerSample / 8
}

// ByteRate returns the number of PCM bytes per second.
func (i Info) ByteRate() int {
	return i.SampleRate * i.BlockAlign()
}

// SampleCount returns the number of sample frames in the data chunk.
func (i Info) SampleCount() int {
	align := i.BlockAlign()
	if align == 0 {
		return 0
	}
	return i.DataBytes / align
}

// Duration returns the playback duration of the data chunk.
func (i Info) Duration() time.Duration {
	if i.SampleRate == 0 {
		return 0
	}
	samples := i.SampleCount()
	return time.Duration(float64(samples) / float64(i.SampleRate) * float64(time.Second))
}

func (i Info) validate() error {
	if i.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrFormat, i.SampleRate)
	}
	if i.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d", ErrFormat, i.Channels)
	}
	switch i.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("%w: bits per sample %d", ErrFormat, i.BitsPerSample)
	}
	return nil
}

// Decode reads a complete WAV stream, returning its format and raw PCM data.
func Decode(r io.Reader) (Info, []byte, error) {
	var magic [12]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return Info{}, nil, fmt.Errorf("%w: short header", ErrFormat)
	}
	if !bytes.Equal(magic[0:4], []byte("RIFF")) || !bytes.Equal(magic[8:12], []byte("WAVE")) {
		return Info{}, nil, fmt.Errorf("%w: missing RIFF/WAVE marker", ErrFormat)
	}

	var (
		info    Info
		sawFmt  bool
		sawData bool
		pcm     []byte
	)
	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return Info{}, nil, fmt.Errorf("read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkLen := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return Info{}, nil, fmt.Errorf("%w: fmt chunk too small", ErrFormat)
			}
			body := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, body); err != nil {
				return Info{}, nil, fmt.Errorf("%w: truncated fmt chunk", ErrFormat)
			}
			if format := binary.LittleEndian.Uint16(body[0:2]); format != 1 {
				return Info{}, nil, fmt.Errorf("%w: audio format %d is not PCM", ErrFormat, format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			sawFmt = true
		case "data":
			pcm = make([]byte, chunkLen)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return Info{}, nil, fmt.Errorf("%w: truncated data chunk", ErrFormat)
			}
			info.DataBytes = len(pcm)
			sawData = true
		default:
			// Skip metadata chunks. Chunk bodies are word aligned.
			skip := int64(chunkLen)
			if skip%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return Info{}, nil, fmt.Errorf("skip %s chunk: %w", chunkID, err)
			}
		}
		if sawFmt && sawData {
			break
		}
	}

	if !sawFmt {
		return Info{}, nil, fmt.Errorf("%w: missing fmt chunk", ErrFormat)
	}
	if !sawData {
		return Info{}, nil, fmt.Errorf("%w: missing data chunk", ErrFormat)
	}
	if err := info.validate(); err != nil {
		return Info{}, nil, err
	}
	return info, pcm, nil
}

// ReadFile loads a WAV file from disk.
func ReadFile(path string) (Info, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// ReadInfo parses only the format information from a WAV file.
func ReadInfo(path string) (Info, error) {
	info, _, err := ReadFile(path)
	return info, err
}

// Encode writes a complete WAV stream with the given format and PCM payload.
func Encode(w io.Writer, sampleRate, channels, bitsPerSample int, pcm []byte) error {
	info := Info{
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bitsPerSample,
		DataBytes:     len(pcm),
	}
	if err := info.validate(); err != nil {
		return err
	}

	byteRate := info.ByteRate()
	blockAlign := info.BlockAlign()
	chunkSize := 36 + len(pcm)

	var header bytes.Buffer
	header.Grow(headerSize)
	header.WriteString("RIFF")
	binary.Write(&header, binary.LittleEndian, uint32(chunkSize))
	header.WriteString("WAVE")
	header.WriteString("fmt ")
	binary.Write(&header, binary.LittleEndian, uint32(16))
	binary.Write(&header, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&header, binary.LittleEndian, uint16(channels))
	binary.Write(&header, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&header, binary.LittleEndian, uint32(byteRate))
	binary.Write(&header, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&header, binary.LittleEndian, uint16(bitsPerSample))
	header.WriteString("data")
	binary.Write(&header, binary.LittleEndian, uint32(len(pcm)))

	if _, err := w.Write(header.Bytes()); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// WriteFile writes a WAV file to disk.
func WriteFile(path string, sampleRate, channels, bitsPerSample int, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := Encode(f, sampleRate, channels, bitsPerSample, pcm); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
