package tonal

import (
	"fmt"
	"math"
)

const (
	// ReferenceMidi is A4
	ReferenceMidi = 69
	// ReferenceFrequency is the A4 tuning reference in Hz
	ReferenceFrequency = 440.0
)

var pitchClassNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// noteNames caches the MIDI range so naming a note on the hot path does not allocate.
var noteNames = func() [128]string {
	var names [128]string
	for i := range names {
		names[i] = formatNoteName(i)
	}
	return names
}()

// FrequencyToMidi converts Hz to a continuous MIDI note number. Non-positive
// frequencies map to 0.
func FrequencyToMidi(hz float64) float64 {
	if hz <= 0 {
		return 0
	}
	return ReferenceMidi + 12.0*math.Log2(hz/ReferenceFrequency)
}

// MidiToFrequency converts a (possibly fractional) MIDI note number to Hz.
func MidiToFrequency(midi float64) float64 {
	return ReferenceFrequency * math.Pow(2, (midi-ReferenceMidi)/12.0)
}

// SplitMidi rounds a continuous MIDI value to the nearest note and returns the
// signed deviation from it in cents (about -50..+50).
func SplitMidi(midiFloat float64) (note int, cents float64) {
	rounded := math.Round(midiFloat)
	return int(rounded), (midiFloat - rounded) * 100.0
}

// NoteName formats a MIDI note as scientific pitch notation, e.g. 60 -> "C4".
func NoteName(midi int) string {
	if midi >= 0 && midi < len(noteNames) {
		return noteNames[midi]
	}
	return formatNoteName(midi)
}

func formatNoteName(midi int) string {
	pc := ((midi % 12) + 12) % 12
	octave := int(math.Floor(float64(midi)/12.0)) - 1
	return fmt.Sprintf("%s%d", pitchClassNames[pc], octave)
}

// FoldSemitones wraps a semitone difference into [-6, +6] so that pitches an
// integer number of octaves apart compare as equal.
func FoldSemitones(diff float64) float64 {
	if math.IsNaN(diff) || math.IsInf(diff, 0) {
		return diff
	}
	folded := math.Mod(diff, 12)
	if folded > 6 {
		folded -= 12
	} else if folded < -6 {
		folded += 12
	}
	return folded
}
