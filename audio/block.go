// Package audio holds the sample-buffer type the pitch core consumes and the
// sources that produce it: in-memory buffers, WAV/MP3 files and live capture.
package audio

import (
	"errors"
	"fmt"
)

// MinSampleRate is the lowest sample rate the pitch core accepts.
const MinSampleRate = 8000

var (
	// ErrInvalidFormat is returned for channel counts or sample rates the core cannot use
	ErrInvalidFormat = errors.New("invalid audio format")
	// ErrClosed is returned by sources read after Close
	ErrClosed = errors.New("audio source closed")
)

// Block is a window of interleaved samples. Frames are Channels samples wide.
type Block struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames returns the number of complete frames in the block.
func (b Block) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Validate reports whether the block can be processed.
func (b Block) Validate() error {
	return ValidateFormat(b.Channels, b.SampleRate)
}

// ValidateFormat checks a channel count and sample rate pair.
func ValidateFormat(channels, sampleRate int) error {
	if channels < 1 {
		return fmt.Errorf("%w: %d channels", ErrInvalidFormat, channels)
	}
	if sampleRate < MinSampleRate {
		return fmt.Errorf("%w: sample rate %d below %d", ErrInvalidFormat, sampleRate, MinSampleRate)
	}
	return nil
}

// MonoMix averages the channels of frame i.
func (b Block) MonoMix(frame int) float64 {
	base := frame * b.Channels
	if b.Channels == 1 {
		return float64(b.Samples[base])
	}
	sum := 0.0
	for c := 0; c < b.Channels; c++ {
		sum += float64(b.Samples[base+c])
	}
	return sum / float64(b.Channels)
}

// MixToMono writes the per-frame channel average into dst and returns the number of
// frames written (at most len(dst)).
func MixToMono(b Block, dst []float64) int {
	n := b.Frames()
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = b.MonoMix(i)
	}
	return n
}

// Source is polled once per tick for whatever audio has arrived since the last poll.
// The core never starts capture itself; it only drains what is offered.
type Source interface {
	// FramesAvailable reports how many frames can be read without blocking.
	FramesAvailable() int
	// Read fills dst with up to len(dst)/Channels() frames of interleaved samples and
	// returns the number of frames read. io.EOF signals an exhausted finite source.
	Read(dst []float32) (frames int, err error)
	Channels() int
	SampleRate() int
}
