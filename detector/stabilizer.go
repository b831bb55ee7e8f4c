package detector

import (
	"github.com/August13742/Homebrew-Karaoke/algorithms/common"
)

// Stabilizer turns accepted raw estimates into a steady frequency: a median over
// the last HistorySize estimates, exponential smoothing toward it, and an offset
// hold that bridges short gaps between syllables.
type Stabilizer struct {
	history  *common.CircularBuffer
	window   []float64
	scratch  []float64
	smoothed float64
	hold     float64
	detected bool

	speed    float64
	holdTime float64
}

// NewStabilizer sizes the history for cfg.HistorySize.
func NewStabilizer(cfg Config) *Stabilizer {
	return &Stabilizer{
		history:  common.NewCircularBuffer(cfg.HistorySize),
		window:   make([]float64, cfg.HistorySize),
		scratch:  make([]float64, cfg.HistorySize),
		speed:    cfg.SmoothingSpeed,
		holdTime: cfg.OffsetHoldTime,
	}
}

// Accept records an accepted estimate and reports whether it starts a new note.
func (s *Stabilizer) Accept(rawHz, dt float64) (onset bool) {
	s.history.Push(rawHz)
	median := s.Median()

	if !s.detected {
		// seed instead of gliding up from zero
		s.smoothed = median
		s.detected = true
		onset = true
	} else {
		s.smoothed = common.Lerp(s.smoothed, median, common.Clamp(s.speed*dt, 0, 1))
	}
	s.hold = s.holdTime
	return onset
}

// Miss counts down the hold after a tick without an accepted estimate and
// reports whether the note ended on this tick.
func (s *Stabilizer) Miss(dt float64) (offset bool) {
	if !s.detected {
		return false
	}
	s.hold -= dt
	if s.hold > 0 {
		return false
	}
	s.detected = false
	s.smoothed = 0
	s.history.Clear()
	return true
}

// Median returns the median of the current history.
func (s *Stabilizer) Median() float64 {
	n := s.history.Latest(s.window)
	return common.Median(s.window[:n], s.scratch)
}

// Smoothed returns the smoothed frequency, 0 when no note is held.
func (s *Stabilizer) Smoothed() float64 {
	return s.smoothed
}

// Detected reports whether a note is currently held.
func (s *Stabilizer) Detected() bool {
	return s.detected
}

// Reset forgets history and any held note.
func (s *Stabilizer) Reset() {
	s.history.Clear()
	s.smoothed = 0
	s.hold = 0
	s.detected = false
}
