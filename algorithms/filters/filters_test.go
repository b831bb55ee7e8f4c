package filters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestLowPassAlpha(t *testing.T) {
	rc := 1.0 / (2 * math.Pi * 1000)
	dt := 1.0 / 44100
	assert.InDelta(t, dt/(rc+dt), LowPassAlpha(44100, 1000), 1e-15)
	assert.Equal(t, 1.0, LowPassAlpha(44100, 0))
}

func TestLowPassPassesLowAndCutsHigh(t *testing.T) {
	const sr = 44100
	lp := NewOnePoleLowPass(sr, 1000)

	low := sine(220, sr, 4096)
	lp.ProcessInPlace(low)
	lp.Reset()
	high := sine(10000, sr, 4096)
	lp.ProcessInPlace(high)

	// steady-state halves only
	peak := func(x []float64) float64 {
		p := 0.0
		for _, v := range x[len(x)/2:] {
			p = math.Max(p, math.Abs(v))
		}
		return p
	}
	assert.Greater(t, peak(low), 0.9)
	assert.Less(t, peak(high), 0.2)

	assert.InDelta(t, 1/math.Sqrt2, lp.GetFrequencyResponse(1000), 0.05)
}

func TestLowPassStatePersistsAcrossBlocks(t *testing.T) {
	const sr = 44100
	signal := sine(300, sr, 2048)

	whole := NewOnePoleLowPass(sr, 800)
	a := append([]float64(nil), signal...)
	whole.ProcessInPlace(a)

	split := NewOnePoleLowPass(sr, 800)
	b := append([]float64(nil), signal...)
	split.ProcessInPlace(b[:700])
	split.ProcessInPlace(b[700:])

	assert.InDeltaSlice(t, a, b, 1e-12)
}

func TestDCRemovalRemovesOffset(t *testing.T) {
	dc := NewDCRemovalWithCutoff(44100, 10)
	buf := make([]float64, 44100)
	for i := range buf {
		buf[i] = 0.3 + 0.1*math.Sin(2*math.Pi*440*float64(i)/44100)
	}
	dc.ProcessInPlace(buf)

	mean := 0.0
	for _, v := range buf[len(buf)/2:] {
		mean += v
	}
	mean /= float64(len(buf) / 2)
	assert.InDelta(t, 0.0, mean, 0.01)
	assert.Less(t, dc.GetPoleLocation(), 1.0)
}
