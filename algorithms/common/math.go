package common

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MinDb is the floor reported for silent (zero-amplitude) signals.
const MinDb = -100.0

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.StdDev(data, nil)
}

// Median returns the median of data using scratch as sort space. scratch must have
// capacity >= len(data); data is left untouched. For even lengths the lower middle
// element is returned, so the result is always one of the inputs.
func Median(data, scratch []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	sorted := scratch[:len(data)]
	copy(sorted, data)
	slices.Sort(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// Energy returns the sum of squares of data.
func Energy(data []float64) float64 {
	return floats.Dot(data, data)
}

// PeakAbs returns the largest absolute sample value.
func PeakAbs(data []float64) float64 {
	peak := 0.0
	for _, v := range data {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// AmplitudeToDb converts a linear amplitude to dBFS, floored at MinDb.
func AmplitudeToDb(amplitude float64) float64 {
	if amplitude <= 0 {
		return MinDb
	}
	db := 20 * math.Log10(amplitude)
	if db < MinDb {
		return MinDb
	}
	return db
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Lerp performs linear interpolation between two values
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// ParabolicOffset returns the vertex offset in (-1, 1) of the parabola through
// (-1, s0), (0, s1), (1, s2). ok is false when the points are (nearly) collinear.
func ParabolicOffset(s0, s1, s2 float64) (offset float64, ok bool) {
	denom := s0 - 2*s1 + s2
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	offset = 0.5 * (s0 - s2) / denom
	if math.IsNaN(offset) || math.Abs(offset) >= 1 {
		return 0, false
	}
	return offset, true
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
