package filters

import (
	"math"
)

// DCRemoval implements a DC blocking filter (high-pass filter) to remove
// the DC component (0 Hz) from microphone input. Cheap USB microphones often
// carry an offset that would otherwise bias the peak gate.
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCRemoval struct {
	poleLocation float64 // R parameter (0 < R < 1)
	cutoffFreq   float64 // -3dB cutoff frequency in Hz
	sampleRate   int     // Sample rate in Hz

	// State variables
	x1 float64 // Previous input sample x[n-1]
	y1 float64 // Previous output sample y[n-1]
}

// NewDCRemovalWithCutoff creates a DC removal filter with specified cutoff frequency.
//
// The pole location R is calculated as:
// R = 1 - 2*pi*fc/fs
// Where fc is the cutoff frequency and fs is the sample rate.
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	dc := &DCRemoval{
		sampleRate:   sampleRate,
		cutoffFreq:   cutoffFreq,
		poleLocation: 0.995,
	}
	dc.computePoleLocation()
	return dc
}

// computePoleLocation calculates the pole location from the desired cutoff frequency.
// Valid for small cutoff frequencies (fc << fs/2).
func (dc *DCRemoval) computePoleLocation() {
	if dc.sampleRate <= 0 || dc.cutoffFreq <= 0 {
		return
	}
	dc.poleLocation = 1.0 - (2.0 * math.Pi * dc.cutoffFreq / float64(dc.sampleRate))

	if dc.poleLocation >= 1.0 {
		dc.poleLocation = 0.999
	} else if dc.poleLocation <= 0.0 {
		dc.poleLocation = 0.001
	}
}

// Process applies DC removal to a single sample.
// y[n] = x[n] - x[n-1] + R * y[n-1]
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.poleLocation*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessInPlace applies DC removal to buf.
func (dc *DCRemoval) ProcessInPlace(buf []float64) {
	for i, sample := range buf {
		buf[i] = dc.Process(sample)
	}
}

// Reset clears the filter's internal state.
// Call this when processing discontinuous audio segments.
func (dc *DCRemoval) Reset() {
	dc.x1 = 0.0
	dc.y1 = 0.0
}

// GetPoleLocation returns the current pole location parameter.
func (dc *DCRemoval) GetPoleLocation() float64 {
	return dc.poleLocation
}
