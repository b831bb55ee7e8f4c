package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
)

const streamChunk = 512

// ReadStreamer drains a beep streamer into memory. Mono formats keep only the left
// channel; everything else is stored as stereo frames.
func ReadStreamer(s beep.Streamer, format beep.Format) (*BufferSource, error) {
	channels := format.NumChannels
	if channels != 1 {
		channels = 2
	}

	var samples []float32
	chunk := make([][2]float64, streamChunk)
	for {
		n, ok := s.Stream(chunk)
		for _, frame := range chunk[:n] {
			samples = append(samples, float32(frame[0]))
			if channels == 2 {
				samples = append(samples, float32(frame[1]))
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("decoding stream: %w", err)
	}

	return NewBufferSource(samples, channels, int(format.SampleRate))
}

// ReadMp3File decodes an MP3 file into memory.
func ReadMp3File(path string) (*BufferSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer streamer.Close()

	return ReadStreamer(streamer, format)
}

// ReadFile picks a decoder by file extension.
func ReadFile(path string) (*BufferSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return ReadWavFile(path)
	case ".mp3":
		return ReadMp3File(path)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidFormat, filepath.Ext(path))
	}
}
