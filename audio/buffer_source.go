package audio

import (
	"io"
	"time"
)

// BufferSource serves a fixed sample slice. With a pacing clock it releases frames
// as playback time advances, which is how offline scoring replays a recording at
// tick granularity; without one everything is available immediately.
type BufferSource struct {
	samples    []float32
	channels   int
	sampleRate int
	pos        int // in frames

	released int // frames released so far when paced
	paced    bool
}

// NewBufferSource wraps interleaved samples. It does not copy them.
func NewBufferSource(samples []float32, channels, sampleRate int) (*BufferSource, error) {
	if err := ValidateFormat(channels, sampleRate); err != nil {
		return nil, err
	}
	return &BufferSource{samples: samples, channels: channels, sampleRate: sampleRate}, nil
}

// NewMonoBufferSource converts float64 mono PCM into a source.
func NewMonoBufferSource(pcm []float64, sampleRate int) (*BufferSource, error) {
	samples := make([]float32, len(pcm))
	for i, v := range pcm {
		samples[i] = float32(v)
	}
	return NewBufferSource(samples, 1, sampleRate)
}

// Pace switches the source to paced mode: frames become available only as Advance
// is called.
func (s *BufferSource) Pace() {
	s.paced = true
}

// Advance releases d worth of frames in paced mode.
func (s *BufferSource) Advance(d time.Duration) {
	s.released += int(d.Seconds()*float64(s.sampleRate) + 0.5)
	if total := s.TotalFrames(); s.released > total {
		s.released = total
	}
}

// TotalFrames returns the length of the underlying audio in frames.
func (s *BufferSource) TotalFrames() int {
	return len(s.samples) / s.channels
}

// Duration returns the length of the underlying audio.
func (s *BufferSource) Duration() time.Duration {
	return time.Duration(float64(s.TotalFrames()) / float64(s.sampleRate) * float64(time.Second))
}

func (s *BufferSource) limit() int {
	if s.paced {
		return s.released
	}
	return s.TotalFrames()
}

func (s *BufferSource) FramesAvailable() int {
	return s.limit() - s.pos
}

func (s *BufferSource) Read(dst []float32) (int, error) {
	if s.pos >= s.TotalFrames() {
		return 0, io.EOF
	}
	n := len(dst) / s.channels
	if avail := s.FramesAvailable(); n > avail {
		n = avail
	}
	copy(dst, s.samples[s.pos*s.channels:(s.pos+n)*s.channels])
	s.pos += n
	return n, nil
}

func (s *BufferSource) Channels() int   { return s.channels }
func (s *BufferSource) SampleRate() int { return s.sampleRate }
