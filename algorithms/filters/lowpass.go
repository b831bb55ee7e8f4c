package filters

import (
	"math"
)

// OnePoleLowPass is a first-order IIR low-pass (an RC filter in discrete time):
//
//	y[n] = y[n-1] + α·(x[n] - y[n-1]),  α = dt / (rc + dt)
//
// with rc = 1/(2π·fc) and dt = 1/fs. The output state carries over between
// calls, so consecutive blocks of one stream are filtered seamlessly.
type OnePoleLowPass struct {
	cutoffFreq float64
	sampleRate int
	alpha      float64

	y1 float64 // previous output y[n-1]
}

// NewOnePoleLowPass creates a low-pass with corner frequency cutoffFreq at sampleRate.
// A non-positive cutoff yields a pass-through filter.
func NewOnePoleLowPass(sampleRate int, cutoffFreq float64) *OnePoleLowPass {
	lp := &OnePoleLowPass{}
	lp.SetCutoffFrequency(sampleRate, cutoffFreq)
	return lp
}

// LowPassAlpha returns the smoothing coefficient for the given corner frequency.
func LowPassAlpha(sampleRate int, cutoffFreq float64) float64 {
	if sampleRate <= 0 || cutoffFreq <= 0 {
		return 1
	}
	rc := 1.0 / (2.0 * math.Pi * cutoffFreq)
	dt := 1.0 / float64(sampleRate)
	return dt / (rc + dt)
}

// SetCutoffFrequency updates the coefficient without touching the filter state.
func (lp *OnePoleLowPass) SetCutoffFrequency(sampleRate int, cutoffFreq float64) {
	lp.sampleRate = sampleRate
	lp.cutoffFreq = cutoffFreq
	lp.alpha = LowPassAlpha(sampleRate, cutoffFreq)
}

// Process filters one sample.
func (lp *OnePoleLowPass) Process(input float64) float64 {
	lp.y1 += lp.alpha * (input - lp.y1)
	return lp.y1
}

// ProcessInPlace filters buf, overwriting it with the output.
func (lp *OnePoleLowPass) ProcessInPlace(buf []float64) {
	for i, x := range buf {
		buf[i] = lp.Process(x)
	}
}

// Alpha returns the current coefficient.
func (lp *OnePoleLowPass) Alpha() float64 {
	return lp.alpha
}

// Reset clears the filter's internal state.
func (lp *OnePoleLowPass) Reset() {
	lp.y1 = 0
}

// GetFrequencyResponse returns the magnitude (linear) at frequency.
//
//	H(e^jw) = α / (1 - (1-α)·e^-jw)
func (lp *OnePoleLowPass) GetFrequencyResponse(frequency float64) float64 {
	if lp.sampleRate <= 0 {
		return 1
	}
	w := 2.0 * math.Pi * frequency / float64(lp.sampleRate)
	b := 1 - lp.alpha
	re := 1 - b*math.Cos(w)
	im := b * math.Sin(w)
	return lp.alpha / math.Sqrt(re*re+im*im)
}
