package tonal

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/August13742/Homebrew-Karaoke/algorithms/common"
)

// PitchDetectionMethod represents the period estimator in use
type PitchDetectionMethod int

const (
	// MethodYIN is the cumulative-mean-normalized difference estimator
	MethodYIN PitchDetectionMethod = iota
	// MethodAutocorrelation picks the first strong normalized autocorrelation peak
	MethodAutocorrelation
)

func (m PitchDetectionMethod) String() string {
	switch m {
	case MethodYIN:
		return "yin"
	case MethodAutocorrelation:
		return "autocorrelation"
	default:
		return "unknown"
	}
}

// ParsePitchDetectionMethod maps "yin" / "autocorrelation" to a method.
func ParsePitchDetectionMethod(name string) (PitchDetectionMethod, error) {
	switch name {
	case "yin", "":
		return MethodYIN, nil
	case "autocorrelation", "acf":
		return MethodAutocorrelation, nil
	}
	return MethodYIN, fmt.Errorf("unsupported pitch detection method %q", name)
}

func (m PitchDetectionMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PitchDetectionMethod) UnmarshalText(text []byte) error {
	parsed, err := ParsePitchDetectionMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DifferenceStrategy selects how the YIN difference function is computed
type DifferenceStrategy int

const (
	// DifferenceDirect computes d(τ) term by term, O(maxPeriod·W), allocation free
	DifferenceDirect DifferenceStrategy = iota
	// DifferenceFFT derives d(τ) from an FFT cross-correlation; faster for long windows
	DifferenceFFT
)

const (
	// minSignalEnergy is the window energy below which no estimate is attempted
	minSignalEnergy = 1e-8

	// acfPeakRatio is the fraction of the global autocorrelation maximum that the
	// first accepted peak must reach
	acfPeakRatio = 0.85
)

// EstimatorParams configures a PitchEstimator
type EstimatorParams struct {
	Method     PitchDetectionMethod `json:"method"`
	Difference DifferenceStrategy   `json:"difference"`
	SampleRate int                  `json:"sample_rate"`

	// Frequency range constraints
	MinFreq float64 `json:"min_freq"` // Minimum frequency (Hz)
	MaxFreq float64 `json:"max_freq"` // Maximum frequency (Hz)

	// Threshold is the YIN absolute threshold on the normalized difference (0.1-0.2 typical)
	Threshold float64 `json:"threshold"`

	// MaxWindow is the longest buffer Estimate will see; workspaces are sized for it
	MaxWindow int `json:"max_window"`
}

// DefaultEstimatorParams returns the vocal-range defaults
func DefaultEstimatorParams(sampleRate int) EstimatorParams {
	return EstimatorParams{
		Method:     MethodYIN,
		Difference: DifferenceDirect,
		SampleRate: sampleRate,
		MinFreq:    65.0,   // C2, low male voice
		MaxFreq:    1000.0, // B5, high female voice
		Threshold:  0.15,
		MaxWindow:  2048,
	}
}

// Estimate is one raw pitch reading
type Estimate struct {
	Frequency  float64 // Hz, 0 when no pitch was found
	Confidence float64 // 0-1
	Period     float64 // refined period in samples
}

// PitchEstimator estimates the fundamental frequency of a mono buffer.
//
// References:
// - de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental frequency estimator for speech and music"
// - Rabiner, L.R. (1977). "On the use of autocorrelation analysis for pitch detection"
//
// The cumulative mean normalization together with the first-dip-below-threshold
// rule prefers the shortest acceptable period, which keeps the estimator from
// locking onto octave subharmonics the way plain autocorrelation peak picking does.
type PitchEstimator struct {
	params EstimatorParams

	// Internal buffers, reused every call
	diff []float64
	cmnd []float64
}

// NewPitchEstimator creates an estimator with workspaces sized for params.MaxWindow
func NewPitchEstimator(params EstimatorParams) *PitchEstimator {
	pe := &PitchEstimator{params: params}
	pe.ensureWorkspace(params.MaxWindow / 2)
	return pe
}

func (pe *PitchEstimator) ensureWorkspace(n int) {
	if n < 1 {
		n = 1
	}
	if cap(pe.diff) < n {
		pe.diff = make([]float64, n)
		pe.cmnd = make([]float64, n)
	}
}

// Params returns the estimator parameters
func (pe *PitchEstimator) Params() EstimatorParams {
	return pe.params
}

// SetSampleRate changes the sample rate used to convert periods to Hz
func (pe *PitchEstimator) SetSampleRate(sampleRate int) {
	pe.params.SampleRate = sampleRate
}

// periodRange returns the searched lag range [minPeriod, maxPeriod) for a buffer of
// length n, or ok=false if the buffer cannot hold a full period of MinFreq.
func (pe *PitchEstimator) periodRange(n int) (minPeriod, maxPeriod int, ok bool) {
	if pe.params.SampleRate <= 0 || pe.params.MinFreq <= 0 || pe.params.MaxFreq <= 0 {
		return 0, 0, false
	}
	sr := float64(pe.params.SampleRate)
	window := n / 2

	minPeriod = int(sr / pe.params.MaxFreq)
	if minPeriod < 1 {
		minPeriod = 1
	}
	maxPeriod = int(sr / pe.params.MinFreq)
	if maxPeriod > window-1 {
		maxPeriod = window - 1
	}
	if maxPeriod <= minPeriod || window < maxPeriod {
		return 0, 0, false
	}
	return minPeriod, maxPeriod, true
}

// Estimate returns the fundamental frequency and confidence of buf. Degenerate
// input (too short, silent, impossible range) yields a zero Estimate.
func (pe *PitchEstimator) Estimate(buf []float64) Estimate {
	minPeriod, maxPeriod, ok := pe.periodRange(len(buf))
	if !ok {
		return Estimate{}
	}
	window := len(buf) / 2
	if common.Energy(buf[:window+maxPeriod]) < minSignalEnergy {
		return Estimate{}
	}

	pe.ensureWorkspace(maxPeriod + 1)

	switch pe.params.Method {
	case MethodAutocorrelation:
		return pe.estimateAutocorrelation(buf, window, minPeriod, maxPeriod)
	default:
		return pe.estimateYin(buf, window, minPeriod, maxPeriod)
	}
}

// estimateYin implements the YIN pitch detection algorithm
func (pe *PitchEstimator) estimateYin(buf []float64, window, minPeriod, maxPeriod int) Estimate {
	diff := pe.diff[:maxPeriod]
	cmnd := pe.cmnd[:maxPeriod]

	if pe.params.Difference == DifferenceFFT {
		differenceFFT(buf, window, diff)
	} else {
		differenceDirect(buf, window, diff)
	}
	cumulativeMeanNormalize(diff, cmnd)

	// Absolute threshold: first dip below threshold, then slide to its local minimum
	tau := -1
	for t := minPeriod; t < maxPeriod; t++ {
		if cmnd[t] < pe.params.Threshold {
			for t+1 < maxPeriod && cmnd[t+1] < cmnd[t] {
				t++
			}
			tau = t
			break
		}
	}

	// Nothing under the threshold: fall back to the best score in range
	if tau < 0 {
		tau = minPeriod
		for t := minPeriod + 1; t < maxPeriod; t++ {
			if cmnd[t] < cmnd[tau] {
				tau = t
			}
		}
	}

	period := float64(tau)
	if tau >= 1 && tau+1 < maxPeriod {
		if offset, ok := common.ParabolicOffset(cmnd[tau-1], cmnd[tau], cmnd[tau+1]); ok {
			period += offset
		}
	}

	return Estimate{
		Frequency:  float64(pe.params.SampleRate) / period,
		Confidence: common.Clamp(1.0-cmnd[tau], 0, 1),
		Period:     period,
	}
}

// differenceDirect computes d(τ) = Σ_{j<W} (x[j] - x[j+τ])² for τ < len(diff)
func differenceDirect(x []float64, window int, diff []float64) {
	for tau := range diff {
		sum := 0.0
		shifted := x[tau : tau+window]
		for j, v := range x[:window] {
			delta := v - shifted[j]
			sum += delta * delta
		}
		diff[tau] = sum
	}
}

// differenceFFT computes the same d(τ) through the identity
// d(τ) = e(0) + e(τ) - 2·r(τ), with r the cross-correlation of x[:W] against
// x[:W+maxPeriod] evaluated by FFT and e(τ) the energy of x[τ:τ+W].
func differenceFFT(x []float64, window int, diff []float64) {
	maxPeriod := len(diff)
	span := window + maxPeriod
	n := common.NextPowerOfTwo(span + window)

	a := make([]float64, n)
	copy(a, x[:window])
	b := make([]float64, n)
	copy(b, x[:span])

	fa := fft.FFTReal(a)
	fb := fft.FFTReal(b)
	for i := range fa {
		fa[i] = cmplx.Conj(fa[i]) * fb[i]
	}
	r := fft.IFFT(fa)

	prefix := make([]float64, span+1)
	for i := 0; i < span; i++ {
		prefix[i+1] = prefix[i] + x[i]*x[i]
	}

	e0 := prefix[window]
	for tau := range diff {
		et := prefix[tau+window] - prefix[tau]
		d := e0 + et - 2*real(r[tau])
		if d < 0 {
			d = 0
		}
		diff[tau] = d
	}
}

// cumulativeMeanNormalize fills cmnd with d'(0)=1, d'(τ)=d(τ)·τ/Σ_{k=1..τ} d(k)
func cumulativeMeanNormalize(diff, cmnd []float64) {
	cmnd[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau < len(diff); tau++ {
		runningSum += diff[tau]
		if runningSum <= 0 {
			cmnd[tau] = 1.0
			continue
		}
		cmnd[tau] = diff[tau] * float64(tau) / runningSum
	}
}

// estimateAutocorrelation finds the first lag whose normalized autocorrelation
// reaches acfPeakRatio of the global maximum and climbs to that peak.
func (pe *PitchEstimator) estimateAutocorrelation(buf []float64, window, minPeriod, maxPeriod int) Estimate {
	energy := common.Energy(buf[:window])
	if energy < minSignalEnergy {
		return Estimate{}
	}

	// corr[lag] for lag in [minPeriod-1, maxPeriod]; lag+window never exceeds len(buf)
	corr := pe.diff[:maxPeriod+1]
	for lag := minPeriod - 1; lag <= maxPeriod; lag++ {
		dot := 0.0
		shifted := buf[lag : lag+window]
		for i, v := range buf[:window] {
			dot += v * shifted[i]
		}
		corr[lag] = dot / energy
	}

	best := -1
	bestCorr := 0.0
	for lag := minPeriod; lag < maxPeriod; lag++ {
		if corr[lag] > bestCorr {
			bestCorr = corr[lag]
			best = lag
		}
	}
	if best < 0 {
		return Estimate{}
	}

	lag := best
	strength := bestCorr * acfPeakRatio
	for l := minPeriod; l < best; l++ {
		if corr[l] > strength {
			lag = l
			for lag+1 < maxPeriod && corr[lag+1] > corr[lag] {
				lag++
			}
			break
		}
	}

	period := float64(lag)
	if offset, ok := common.ParabolicOffset(corr[lag-1], corr[lag], corr[lag+1]); ok {
		period += offset
	}

	return Estimate{
		Frequency:  float64(pe.params.SampleRate) / period,
		Confidence: common.Clamp(corr[lag], 0, 1),
		Period:     period,
	}
}
