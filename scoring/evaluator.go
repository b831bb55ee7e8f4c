package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/August13742/Homebrew-Karaoke/algorithms/tonal"
)

// Config holds the grading windows and the score scale.
type Config struct {
	PerfectCentWindow float64 `json:"perfect_cent_window"`
	GoodCentWindow    float64 `json:"good_cent_window"`
	OkCentWindow      float64 `json:"ok_cent_window"`
	ScoreMultiplier   float64 `json:"score_multiplier"`
	// KeyShift transposes every target note by this many semitones
	KeyShift int `json:"key_shift"`
}

// DefaultConfig returns 25/50/100 cent windows and a x10 multiplier.
func DefaultConfig() Config {
	return Config{
		PerfectCentWindow: 25,
		GoodCentWindow:    50,
		OkCentWindow:      100,
		ScoreMultiplier:   10,
	}
}

// Validate checks that the windows are positive and nested.
func (c Config) Validate() error {
	var errs []error
	if c.PerfectCentWindow <= 0 {
		errs = append(errs, fmt.Errorf("perfect window %.1f must be positive", c.PerfectCentWindow))
	}
	if c.GoodCentWindow < c.PerfectCentWindow {
		errs = append(errs, fmt.Errorf("good window %.1f narrower than perfect window %.1f", c.GoodCentWindow, c.PerfectCentWindow))
	}
	if c.OkCentWindow < c.GoodCentWindow {
		errs = append(errs, fmt.Errorf("ok window %.1f narrower than good window %.1f", c.OkCentWindow, c.GoodCentWindow))
	}
	if c.ScoreMultiplier < 0 {
		errs = append(errs, fmt.Errorf("score multiplier %.2f must not be negative", c.ScoreMultiplier))
	}
	return errors.Join(errs...)
}

// Evaluator grades a detected pitch against a target note. Pitches an exact
// number of octaves apart grade the same, so singers can pick a comfortable octave.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an evaluator for cfg.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// Evaluate returns the tier for a continuous MIDI pitch against targetMidi.
func (e *Evaluator) Evaluate(detected bool, midiFloat float64, targetMidi int) Tier {
	if !detected {
		return Silent
	}
	cents := e.Cents(midiFloat, targetMidi)
	switch {
	case cents <= e.cfg.PerfectCentWindow:
		return Perfect
	case cents <= e.cfg.GoodCentWindow:
		return Good
	case cents <= e.cfg.OkCentWindow:
		return Ok
	default:
		return Miss
	}
}

// Cents returns the octave-folded absolute distance in cents, at most 600.
func (e *Evaluator) Cents(midiFloat float64, targetMidi int) float64 {
	diff := midiFloat - float64(targetMidi+e.cfg.KeyShift)
	return math.Abs(tonal.FoldSemitones(diff)) * 100
}
