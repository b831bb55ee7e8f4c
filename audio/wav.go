package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWav is returned when a file does not carry a RIFF/WAVE header.
var ErrNotWav = errors.New("not a valid WAV file")

// DecodeWav reads a whole PCM WAV stream into an interleaved float32 source
// normalized to [-1, 1].
func DecodeWav(r io.ReadSeeker) (*BufferSource, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrNotWav
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	bitDepth := int(decoder.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrInvalidFormat, bitDepth)
	}

	scale := 1.0 / float64(int64(1)<<(uint(bitDepth)-1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(float64(v) * scale)
	}

	return NewBufferSource(samples, int(decoder.NumChans), int(decoder.SampleRate))
}

// ReadWavFile opens and decodes a WAV file.
func ReadWavFile(path string) (*BufferSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := DecodeWav(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// WriteWav encodes mono float PCM as 16-bit WAV. Samples are clipped to [-1, 1].
func WriteWav(w io.WriteSeeker, pcm []float64, sampleRate int) error {
	const bitDepth = 16
	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, 1)

	data := make([]int, len(pcm))
	for i, v := range pcm {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(v * 32767)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding wav: %w", err)
	}
	return enc.Close()
}
