package timeline

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"
)

// DefaultEventDuration is how long a bare pitch event lasts when converted to a note.
const DefaultEventDuration = 0.1

// PitchEvent is a point-in-time target pitch, the compact chart format.
type PitchEvent struct {
	Time float64 `json:"time"`
	Midi int     `json:"midi"`
}

// chartFile is the on-disk JSON layout; either list may be omitted.
type chartFile struct {
	Pitch []PitchEvent `json:"pitch"`
	Notes []TargetNote `json:"notes"`
}

// FromPitchEvents converts point events into notes lasting eventDuration seconds,
// cut short where the next event begins.
func FromPitchEvents(events []PitchEvent, eventDuration float64) ([]TargetNote, error) {
	if eventDuration <= 0 {
		eventDuration = DefaultEventDuration
	}
	notes := make([]TargetNote, len(events))
	for i, ev := range events {
		end := ev.Time + eventDuration
		if i+1 < len(events) && events[i+1].Time > ev.Time && events[i+1].Time < end {
			end = events[i+1].Time
		}
		notes[i] = TargetNote{Start: ev.Time, End: end, Midi: ev.Midi}
	}
	if err := Validate(notes); err != nil {
		return nil, fmt.Errorf("pitch events: %w", err)
	}
	return notes, nil
}

// DecodeJSON reads a chart with "pitch" events and/or explicit "notes".
func DecodeJSON(r io.Reader, eventDuration float64) (*Timeline, error) {
	var chart chartFile
	if err := json.NewDecoder(r).Decode(&chart); err != nil {
		return nil, fmt.Errorf("decoding chart: %w", err)
	}

	notes, err := FromPitchEvents(chart.Pitch, eventDuration)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return New(chart.Notes)
	}
	if err := Validate(chart.Notes); err != nil {
		return nil, fmt.Errorf("notes: %w", err)
	}
	notes = append(notes, chart.Notes...)
	slices.SortStableFunc(notes, byStart)
	return New(notes)
}

// SMFOptions selects which part of a MIDI file becomes the melody.
type SMFOptions struct {
	Track   int // -1 for all tracks
	Channel int // -1 for all channels
}

// AllParts reads every track and channel.
var AllParts = SMFOptions{Track: -1, Channel: -1}

// DecodeSMF builds a timeline from the note-on/note-off pairs of a Standard MIDI File.
func DecodeSMF(r io.Reader, opts SMFOptions) (tl *Timeline, err error) {
	// the smf reader panics on some malformed files
	defer func() {
		if rec := recover(); rec != nil {
			tl, err = nil, fmt.Errorf("parsing midi file: %v", rec)
		}
	}()

	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("parsing midi file: %w", err)
	}
	if opts.Track >= len(s.Tracks) {
		return nil, fmt.Errorf("midi file has %d tracks, track %d requested", len(s.Tracks), opts.Track)
	}

	type held struct{ channel, key uint8 }
	var notes []TargetNote
	for ti, track := range s.Tracks {
		if opts.Track >= 0 && ti != opts.Track {
			continue
		}
		open := make(map[held]float64)
		var absTicks int64
		for _, event := range track {
			absTicks += int64(event.Delta)
			var channel, key, velocity uint8
			var start, end bool
			switch {
			case event.Message.GetNoteOn(&channel, &key, &velocity):
				// running-status files end notes with a zero-velocity note on
				start, end = velocity > 0, velocity == 0
			case event.Message.GetNoteOff(&channel, &key, &velocity):
				end = true
			}
			if (!start && !end) || (opts.Channel >= 0 && int(channel) != opts.Channel) {
				continue
			}

			id := held{channel, key}
			at := microsToSeconds(s.TimeAt(absTicks))
			if start {
				open[id] = at
				continue
			}
			if begin, ok := open[id]; ok {
				delete(open, id)
				notes = append(notes, TargetNote{Start: begin, End: at, Midi: int(key)})
			}
		}
	}

	slices.SortStableFunc(notes, byStart)
	return New(notes)
}

func byStart(a, b TargetNote) int {
	return cmp.Compare(a.Start, b.Start)
}

func microsToSeconds(us int64) float64 {
	return float64(us) / 1e6
}

// LoadFile picks a decoder by extension: .json charts or .mid/.midi files.
func LoadFile(path string, eventDuration float64, opts SMFOptions) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading chart: %w", err)
	}

	var tl *Timeline
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		tl, err = DecodeJSON(bytes.NewReader(data), eventDuration)
	case ".mid", ".midi", ".smf":
		tl, err = DecodeSMF(bytes.NewReader(data), opts)
	default:
		err = errors.New("unsupported chart format")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tl, nil
}
