package tonal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrequencyToMidi(t *testing.T) {
	assert.InDelta(t, 69.0, FrequencyToMidi(440), 1e-9)
	assert.InDelta(t, 57.0, FrequencyToMidi(220), 1e-9)
	assert.InDelta(t, 60.0, FrequencyToMidi(261.6256), 1e-4)
	assert.Equal(t, 0.0, FrequencyToMidi(0))
	assert.InDelta(t, 261.6256, MidiToFrequency(60), 1e-3)
}

func TestSplitMidi(t *testing.T) {
	note, cents := SplitMidi(57.2)
	assert.Equal(t, 57, note)
	assert.InDelta(t, 20.0, cents, 1e-9)

	note, cents = SplitMidi(59.7)
	assert.Equal(t, 60, note)
	assert.InDelta(t, -30.0, cents, 1e-9)
}

func TestNoteName(t *testing.T) {
	cases := map[int]string{60: "C4", 57: "A3", 69: "A4", 61: "C#4", 0: "C-1", 127: "G9"}
	for midi, want := range cases {
		assert.Equal(t, want, NoteName(midi))
	}
}

func TestFoldSemitones(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{12, 0},
		{-12, 0},
		{24.25, 0.25},
		{7, -5},
		{-7, 5},
		{6, 6},
		{-6, -6},
		{-11.5, 0.5},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, FoldSemitones(c.in), 1e-9, "fold(%v)", c.in)
	}
}
