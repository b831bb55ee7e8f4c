package scoring

// ScoreState is the running result of a song.
type ScoreState struct {
	Cumulative    float64            `json:"cumulative"`
	Label         string             `json:"label"`
	Tier          Tier               `json:"tier"`
	Counts        [tierCount]int     `json:"counts"`         // ticks graded per tier
	Seconds       [tierCount]float64 `json:"seconds"`        // time graded per tier
	ScoredSeconds float64            `json:"scored_seconds"` // time with an active target
}

// Count returns the number of ticks graded t.
func (s ScoreState) Count(t Tier) int {
	return s.Counts[t]
}

// Accuracy returns the share of target time sung at Ok or better.
func (s ScoreState) Accuracy() float64 {
	if s.ScoredSeconds <= 0 {
		return 0
	}
	return (s.Seconds[Ok] + s.Seconds[Good] + s.Seconds[Perfect]) / s.ScoredSeconds
}

// Accumulator integrates tier points over time. The score never decreases.
type Accumulator struct {
	multiplier float64
	state      ScoreState
}

// NewAccumulator creates an accumulator with the given multiplier.
func NewAccumulator(multiplier float64) *Accumulator {
	if multiplier < 0 {
		multiplier = 0
	}
	return &Accumulator{multiplier: multiplier}
}

// Add grades one tick of dt seconds at tier. Non-positive dt only updates the label.
func (a *Accumulator) Add(tier Tier, dt float64) {
	a.state.Tier = tier
	a.state.Label = tier.Label()
	if dt <= 0 {
		return
	}
	a.state.Counts[tier]++
	a.state.Seconds[tier] += dt
	a.state.ScoredSeconds += dt
	a.state.Cumulative += tier.Points() * dt * a.multiplier
}

// Idle records a tick without an active target.
func (a *Accumulator) Idle() {
	a.state.Tier = Silent
	a.state.Label = ""
}

// State returns a copy of the running result.
func (a *Accumulator) State() ScoreState {
	return a.state
}

// Reset starts a new song.
func (a *Accumulator) Reset() {
	a.state = ScoreState{}
}
