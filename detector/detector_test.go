package detector

import (
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/August13742/Homebrew-Karaoke/algorithms/tonal"
	"github.com/August13742/Homebrew-Karaoke/audio"
)

const sampleRate = 44100

// toneGen produces phase-continuous mono blocks.
type toneGen struct {
	freq  float64
	amp   float64
	phase float64
}

func (g *toneGen) block(frames int) audio.Block {
	samples := make([]float32, frames)
	step := 2 * math.Pi * g.freq / sampleRate
	for i := range samples {
		samples[i] = float32(g.amp * math.Sin(g.phase))
		g.phase += step
	}
	return audio.Block{Samples: samples, Channels: 1, SampleRate: sampleRate}
}

func silentBlock(frames int) audio.Block {
	return audio.Block{Samples: make([]float32, frames), Channels: 1, SampleRate: sampleRate}
}

func blockDt(frames int) float64 {
	return float64(frames) / sampleRate
}

func blockDuration(frames int) time.Duration {
	return time.Duration(blockDt(frames) * float64(time.Second))
}

func TestSineIsDetectedAccurately(t *testing.T) {
	cfg := DefaultConfig()
	st := NewState(cfg)
	gen := &toneGen{freq: 220, amp: 0.5}

	var det Detection
	for i := 0; i < 12; i++ {
		det = Step(st, cfg, gen.block(1024), blockDt(1024))
	}

	require.True(t, det.IsDetected)
	assert.True(t, det.IsVoiced)
	assert.InEpsilon(t, 220.0, det.FrequencyHz, 0.01)
	assert.Equal(t, 57, det.MidiNote)
	assert.Equal(t, "A3", det.NoteName)
	assert.Less(t, math.Abs(det.CentDeviation), 10.0)
	assert.Greater(t, det.Confidence, 0.85)
	assert.InDelta(t, 0.5, det.Amplitude, 0.01)
	assert.InDelta(t, -6.02, det.AmplitudeDb, 0.1)
}

func TestSilenceIsNeverDetected(t *testing.T) {
	cfg := DefaultConfig()
	st := NewState(cfg)

	for i := 0; i < 8; i++ {
		det := Step(st, cfg, silentBlock(1024), blockDt(1024))
		assert.False(t, det.IsDetected)
		assert.False(t, det.IsVoiced)
		assert.Zero(t, det.Confidence)
		assert.Zero(t, det.FrequencyHz)
		assert.Zero(t, det.RawFrequencyHz)
	}
}

func TestBelowGateIsSilence(t *testing.T) {
	cfg := DefaultConfig()
	st := NewState(cfg)
	gen := &toneGen{freq: 220, amp: 0.01}

	for i := 0; i < 6; i++ {
		det := Step(st, cfg, gen.block(1024), blockDt(1024))
		assert.False(t, det.IsDetected)
		assert.Zero(t, det.Confidence)
	}
}

func TestAntiPhaseStereoCancels(t *testing.T) {
	cfg := DefaultConfig()
	st := NewState(cfg)
	gen := &toneGen{freq: 220, amp: 0.5}

	for i := 0; i < 4; i++ {
		mono := gen.block(1024)
		stereo := make([]float32, 2*len(mono.Samples))
		for j, v := range mono.Samples {
			stereo[2*j] = v
			stereo[2*j+1] = -v
		}
		det := Step(st, cfg, audio.Block{Samples: stereo, Channels: 2, SampleRate: sampleRate}, blockDt(1024))
		assert.False(t, det.IsDetected)
	}
}

func TestStabilizerRejectsOctaveGlitch(t *testing.T) {
	s := NewStabilizer(DefaultConfig())
	for _, hz := range []float64{220, 220, 220, 880, 220} {
		s.Accept(hz, 1.0/60)
		assert.Less(t, s.Smoothed(), 230.0, "after %v Hz", hz)
	}
	assert.Equal(t, 220.0, s.Median())
}

func TestStabilizerSeedsOnOnset(t *testing.T) {
	s := NewStabilizer(DefaultConfig())
	assert.True(t, s.Accept(330, 1.0/60))
	assert.Equal(t, 330.0, s.Smoothed())
	assert.False(t, s.Accept(330, 1.0/60))
}

func TestStabilizerSmoothingMovesTowardMedian(t *testing.T) {
	s := NewStabilizer(DefaultConfig().Apply(WithHistorySize(1), WithSmoothingSpeed(15)))
	s.Accept(200, 0.01)
	s.Accept(300, 0.01)
	// factor 0.15
	assert.InDelta(t, 215.0, s.Smoothed(), 1e-9)

	s.Accept(300, 1)
	assert.InDelta(t, 300.0, s.Smoothed(), 1e-9, "factor clamps at 1")
}

func TestOffsetHoldDebounces(t *testing.T) {
	cfg := DefaultConfig()
	st := NewState(cfg)
	gen := &toneGen{freq: 196, amp: 0.4}
	dt := blockDt(1024)

	var onsets, offsets int
	run := func(blocks int, voiced bool) {
		for i := 0; i < blocks; i++ {
			b := silentBlock(1024)
			if voiced {
				b = gen.block(1024)
			}
			det := Step(st, cfg, b, dt)
			if det.IsOnset {
				onsets++
			}
			if det.IsOffset {
				offsets++
			}
		}
	}

	run(20, true)
	run(3, false) // ~70 ms, shorter than the hold
	run(20, true)
	assert.Equal(t, 1, onsets)
	assert.Zero(t, offsets)
	assert.True(t, st.Last().IsDetected)

	run(30, false)
	assert.Equal(t, 1, offsets)
	assert.False(t, st.Last().IsDetected)
	assert.Zero(t, st.Last().FrequencyHz)
}

func TestVoicedDropsBeforeDetected(t *testing.T) {
	cfg := DefaultConfig()
	st := NewState(cfg)
	gen := &toneGen{freq: 262, amp: 0.4}
	for i := 0; i < 10; i++ {
		Step(st, cfg, gen.block(1024), blockDt(1024))
	}

	det := Step(st, cfg, silentBlock(1024), blockDt(1024))
	assert.True(t, det.IsDetected, "held")
	assert.False(t, det.IsVoiced)
}

func TestShortBlocksAreDeferred(t *testing.T) {
	cfg := DefaultConfig()
	st := NewState(cfg)
	gen := &toneGen{freq: 220, amp: 0.5}

	det := Step(st, cfg, gen.block(512), blockDt(512))
	assert.False(t, det.IsDetected)
	assert.Zero(t, det.RawFrequencyHz)

	det = Step(st, cfg, gen.block(512), blockDt(512))
	assert.True(t, det.IsDetected)
	assert.True(t, det.IsOnset)

	det = Step(st, cfg, gen.block(512), blockDt(512))
	assert.True(t, det.IsDetected, "deferred tick keeps the last reading")
	assert.False(t, det.IsOnset, "transitions last a single tick")

	det = Step(st, cfg, audio.Block{Channels: 1, SampleRate: sampleRate}, blockDt(512))
	assert.False(t, det.IsOnset)
	assert.InEpsilon(t, 220.0, det.FrequencyHz, 0.02)
}

func TestStepDoesNotAllocate(t *testing.T) {
	cfg := DefaultConfig()
	st := NewState(cfg)
	gen := &toneGen{freq: 220, amp: 0.5}
	block := gen.block(1024)
	for i := 0; i < 3; i++ {
		Step(st, cfg, block, blockDt(1024))
	}

	allocs := testing.AllocsPerRun(20, func() {
		Step(st, cfg, block, blockDt(1024))
	})
	assert.Zero(t, allocs)
}

func TestAutocorrelationMethodDetects(t *testing.T) {
	cfg := DefaultConfig().Apply(WithMethod(tonal.MethodAutocorrelation))
	require.NoError(t, cfg.Validate())
	st := NewState(cfg)
	gen := &toneGen{freq: 330, amp: 0.5}

	var det Detection
	for i := 0; i < 8; i++ {
		det = Step(st, cfg, gen.block(1024), blockDt(1024))
	}
	require.True(t, det.IsDetected)
	assert.Equal(t, 64, det.MidiNote)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig().Apply(
		WithFrequencyRange(800, 400),
		WithHistorySize(4),
		WithBlockSizes(1024, 512),
	)
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min frequency")
	assert.Contains(t, err.Error(), "history size 4")
	assert.Contains(t, err.Error(), "analysis size 512")

	assert.Error(t, DefaultConfig().Apply(WithHistorySize(0)).Validate())
	assert.Error(t, DefaultConfig().Apply(WithConfidenceThreshold(1.5)).Validate())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	src, err := audio.NewMonoBufferSource(make([]float64, 4096), sampleRate)
	require.NoError(t, err)

	_, err = New(src, DefaultConfig(), WithHistorySize(2))
	assert.Error(t, err)

	_, err = New(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestDetectorDrainsSource(t *testing.T) {
	pcm := make([]float64, sampleRate/2)
	for i := range pcm {
		pcm[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/sampleRate)
	}
	src, err := audio.NewMonoBufferSource(pcm, sampleRate)
	require.NoError(t, err)
	src.Pace()

	d, err := New(src, DefaultConfig())
	require.NoError(t, err)

	var det Detection
	for i := 0; i < 20; i++ {
		src.Advance(blockDuration(1024))
		det, err = d.Process(blockDt(1024))
		require.NoError(t, err)
	}
	assert.Equal(t, 69, det.MidiNote)
	assert.Equal(t, det, d.Last())

	src.Advance(blockDuration(sampleRate))
	for !errors.Is(err, io.EOF) {
		_, err = d.Process(blockDt(1024))
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
		}
	}

	d.Reset()
	assert.Equal(t, Detection{}, d.Last())
}
