package scoring

import (
	"fmt"

	"github.com/August13742/Homebrew-Karaoke/detector"
	"github.com/August13742/Homebrew-Karaoke/timeline"
)

// Result is the outcome of one scoring tick.
type Result struct {
	Time      float64             `json:"time"`
	Target    timeline.TargetNote `json:"target"`
	HasTarget bool                `json:"has_target"`
	Tier      Tier                `json:"tier"`
	Cents     float64             `json:"cents"` // folded distance to the target, 0 without one
	Score     ScoreState          `json:"score"`
}

// Scorer ties the timeline scanner, the evaluator and the accumulator together.
type Scorer struct {
	cfg       Config
	scanner   *timeline.Scanner
	evaluator *Evaluator
	acc       *Accumulator
}

// NewScorer validates cfg and builds a scorer for tl.
func NewScorer(tl *timeline.Timeline, cfg Config, scan timeline.ScannerConfig) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}
	return &Scorer{
		cfg:       cfg,
		scanner:   timeline.NewScanner(tl, scan),
		evaluator: NewEvaluator(cfg),
		acc:       NewAccumulator(cfg.ScoreMultiplier),
	}, nil
}

// Update grades det at song time t, crediting dt seconds.
func (s *Scorer) Update(t, dt float64, det detector.Detection) Result {
	res := Result{Time: t}

	note, ok := s.scanner.Active(t)
	if !ok {
		s.acc.Idle()
		res.Score = s.acc.State()
		return res
	}

	voiced := det.IsDetected && det.IsVoiced
	res.Target = note
	res.HasTarget = true
	res.Tier = s.evaluator.Evaluate(voiced, det.MidiFloat, note.Midi)
	if voiced {
		res.Cents = s.evaluator.Cents(det.MidiFloat, note.Midi)
	}
	s.acc.Add(res.Tier, dt)
	res.Score = s.acc.State()
	return res
}

// State returns the running score.
func (s *Scorer) State() ScoreState {
	return s.acc.State()
}

// Config returns the scoring configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Reset clears the score and rewinds the scanner.
func (s *Scorer) Reset() {
	s.acc.Reset()
	s.scanner.Reset()
}
