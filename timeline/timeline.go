// Package timeline holds the target melody of a song and finds the note that
// should be sung at a given playback time.
package timeline

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnsorted is returned when note start times decrease
	ErrUnsorted = errors.New("target notes are not sorted by start time")
	// ErrMalformed is returned for notes with non-finite times or End before Start
	ErrMalformed = errors.New("malformed target note")
)

// TargetNote is one note of the melody. Midi <= 0 marks a span with no target pitch.
type TargetNote struct {
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
	Midi  int     `json:"midi"`
}

// Pitched reports whether the note carries a target pitch.
func (n TargetNote) Pitched() bool {
	return n.Midi > 0
}

// Duration returns End - Start.
func (n TargetNote) Duration() float64 {
	return n.End - n.Start
}

// Timeline is a validated, start-ordered list of target notes.
type Timeline struct {
	notes []TargetNote
}

// New validates notes and wraps them. The slice is copied.
func New(notes []TargetNote) (*Timeline, error) {
	if err := Validate(notes); err != nil {
		return nil, err
	}
	return &Timeline{notes: append([]TargetNote(nil), notes...)}, nil
}

// Validate checks ordering and per-note consistency.
func Validate(notes []TargetNote) error {
	for i, n := range notes {
		if !finite(n.Start) || !finite(n.End) {
			return fmt.Errorf("note %d: %w: non-finite time", i, ErrMalformed)
		}
		if n.End < n.Start {
			return fmt.Errorf("note %d: %w: ends at %.3fs before it starts at %.3fs", i, ErrMalformed, n.End, n.Start)
		}
		if i > 0 && n.Start < notes[i-1].Start {
			return fmt.Errorf("note %d: %w: starts at %.3fs after %.3fs", i, ErrUnsorted, n.Start, notes[i-1].Start)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Len returns the number of notes.
func (tl *Timeline) Len() int {
	return len(tl.notes)
}

// Note returns the i-th note.
func (tl *Timeline) Note(i int) TargetNote {
	return tl.notes[i]
}

// Notes returns a copy of all notes.
func (tl *Timeline) Notes() []TargetNote {
	return append([]TargetNote(nil), tl.notes...)
}

// Duration returns the latest end time.
func (tl *Timeline) Duration() float64 {
	end := 0.0
	for _, n := range tl.notes {
		end = math.Max(end, n.End)
	}
	return end
}

// PitchedDuration returns the total length of notes with a target pitch.
func (tl *Timeline) PitchedDuration() float64 {
	total := 0.0
	for _, n := range tl.notes {
		if n.Pitched() {
			total += n.Duration()
		}
	}
	return total
}
