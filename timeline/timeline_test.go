package timeline

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func song(t *testing.T) *Timeline {
	t.Helper()
	tl, err := New([]TargetNote{
		{Start: 0, End: 1, Midi: 60},
		{Start: 1, End: 2, Midi: 64},
		{Start: 2.5, End: 3, Midi: 0}, // rest
		{Start: 3, End: 4, Midi: 67},
	})
	require.NoError(t, err)
	return tl
}

func TestNewValidates(t *testing.T) {
	_, err := New([]TargetNote{{Start: 1, End: 2, Midi: 60}, {Start: 0.5, End: 3, Midi: 62}})
	assert.ErrorIs(t, err, ErrUnsorted)

	_, err = New([]TargetNote{{Start: 1, End: 0.5, Midi: 60}})
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = New([]TargetNote{{Start: math.NaN(), End: 1, Midi: 60}})
	assert.ErrorIs(t, err, ErrMalformed)

	tl, err := New(nil)
	require.NoError(t, err)
	assert.Zero(t, tl.Len())
}

func TestTimelineDurations(t *testing.T) {
	tl := song(t)
	assert.Equal(t, 4.0, tl.Duration())
	assert.Equal(t, 3.0, tl.PitchedDuration())
	assert.Len(t, tl.Notes(), 4)
}

func TestScannerWithinBounds(t *testing.T) {
	s := NewScanner(song(t), DefaultScannerConfig())

	cases := []struct {
		at   float64
		midi int
		ok   bool
	}{
		{-0.5, 0, false},
		{0.5, 60, true},
		{1.0, 64, true}, // boundary: later start wins
		{1.9, 64, true},
		{2.2, 0, false},
		{2.7, 0, false}, // rest is skipped
		{3.5, 67, true},
		{4.5, 0, false},
	}
	for _, c := range cases {
		note, ok := s.Active(c.at)
		assert.Equal(t, c.ok, ok, "t=%v", c.at)
		assert.Equal(t, c.midi, note.Midi, "t=%v", c.at)
	}
}

func TestScannerOverlapKeepsLongNote(t *testing.T) {
	tl, err := New([]TargetNote{{Start: 0, End: 2, Midi: 60}, {Start: 0.5, End: 1, Midi: 62}})
	require.NoError(t, err)
	s := NewScanner(tl, DefaultScannerConfig())

	note, ok := s.Active(0.7)
	require.True(t, ok)
	assert.Equal(t, 62, note.Midi)

	note, ok = s.Active(1.5)
	require.True(t, ok)
	assert.Equal(t, 60, note.Midi)
}

func TestScannerSeekBackward(t *testing.T) {
	s := NewScanner(song(t), DefaultScannerConfig())
	for at := 0.0; at < 3.6; at += 0.1 {
		s.Active(at)
	}

	note, ok := s.Active(0.5)
	require.True(t, ok)
	assert.Equal(t, 60, note.Midi)
	assert.Equal(t, 1, s.Seeks())
}

func TestScannerSeekForward(t *testing.T) {
	s := NewScanner(song(t), DefaultScannerConfig())
	s.Active(0.1)

	note, ok := s.Active(3.5)
	require.True(t, ok)
	assert.Equal(t, 67, note.Midi)
	assert.Equal(t, 1, s.Seeks())

	s.Reset()
	note, ok = s.Active(1.5)
	require.True(t, ok)
	assert.Equal(t, 64, note.Midi)
	assert.Equal(t, 1, s.Seeks(), "reset is not a seek")
}

func TestScannerLookbehind(t *testing.T) {
	cfg := DefaultScannerConfig()
	cfg.Lookbehind = 0.3
	s := NewScanner(song(t), cfg)

	note, ok := s.Active(2.2)
	require.True(t, ok)
	assert.Equal(t, 64, note.Midi)

	_, ok = s.Active(2.4)
	assert.False(t, ok)
}

func TestScannerLatestStarted(t *testing.T) {
	tl, err := New([]TargetNote{
		{Start: 0, End: 0.1, Midi: 60},
		{Start: 1, End: 1.1, Midi: 0},
		{Start: 1.05, End: 1.15, Midi: 62},
	})
	require.NoError(t, err)

	cfg := DefaultScannerConfig()
	cfg.Selection = SelectLatestStarted
	s := NewScanner(tl, cfg)

	note, ok := s.Active(0.15)
	require.True(t, ok, "held past its end while fresh")
	assert.Equal(t, 60, note.Midi)

	_, ok = s.Active(0.25)
	assert.False(t, ok, "stale")

	_, ok = s.Active(1.02)
	assert.False(t, ok, "only a rest has started recently")

	note, ok = s.Active(1.1)
	require.True(t, ok)
	assert.Equal(t, 62, note.Midi)

	cfg.StaleAfter = 0
	s = NewScanner(tl, cfg)
	note, ok = s.Active(1.5)
	require.True(t, ok)
	assert.Equal(t, 62, note.Midi)
}

func TestScannerLatestStartedRestSilencesTarget(t *testing.T) {
	tl, err := New([]TargetNote{
		{Start: 0, End: 0.5, Midi: 60},
		{Start: 1, End: 1.5, Midi: -1},
		{Start: 2, End: 2.5, Midi: 64},
	})
	require.NoError(t, err)

	cfg := DefaultScannerConfig()
	cfg.Selection = SelectLatestStarted
	cfg.StaleAfter = 0
	s := NewScanner(tl, cfg)

	note, ok := s.Active(0.8)
	require.True(t, ok)
	assert.Equal(t, 60, note.Midi)

	_, ok = s.Active(1.2)
	assert.False(t, ok, "the rest is the latest started note")

	note, ok = s.Active(2.2)
	require.True(t, ok)
	assert.Equal(t, 64, note.Midi)
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection("latest")
	require.NoError(t, err)
	assert.Equal(t, SelectLatestStarted, sel)
	assert.Equal(t, "within", SelectWithinBounds.String())

	_, err = ParseSelection("nearest")
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	chart := `{
		"pitch": [{"time": 0, "midi": 60}, {"time": 0.05, "midi": 62}, {"time": 0.5, "midi": 64}],
		"notes": [{"start": 0.2, "end": 0.4, "midi": 65}]
	}`
	tl, err := DecodeJSON(strings.NewReader(chart), 0)
	require.NoError(t, err)

	want := []TargetNote{
		{Start: 0, End: 0.05, Midi: 60},
		{Start: 0.05, End: 0.15, Midi: 62},
		{Start: 0.2, End: 0.4, Midi: 65},
		{Start: 0.5, End: 0.6, Midi: 64},
	}
	got := tl.Notes()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Midi, got[i].Midi)
		assert.InDelta(t, want[i].Start, got[i].Start, 1e-9)
		assert.InDelta(t, want[i].End, got[i].End, 1e-9)
	}

	_, err = DecodeJSON(strings.NewReader(`{"notes": [{"start": 2, "end": 3, "midi": 60}, {"start": 1, "end": 2, "midi": 60}]}`), 0)
	assert.ErrorIs(t, err, ErrUnsorted)

	_, err = DecodeJSON(strings.NewReader(`{"notes": `), 0)
	assert.Error(t, err)
}

func writeMelody(t *testing.T) []byte {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(960)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(960, midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOn(0, 64, 100))
	tr.Add(960, midi.NoteOn(0, 64, 0))
	tr.Add(0, midi.NoteOn(1, 40, 90))
	tr.Add(480, midi.NoteOff(1, 40))
	tr.Close(0)
	require.NoError(t, s.Add(tr))

	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDecodeSMF(t *testing.T) {
	data := writeMelody(t)

	tl, err := DecodeSMF(bytes.NewReader(data), AllParts)
	require.NoError(t, err)
	notes := tl.Notes()
	require.Len(t, notes, 3)
	assert.Equal(t, 60, notes[0].Midi)
	assert.InDelta(t, 0.0, notes[0].Start, 1e-6)
	assert.InDelta(t, 0.5, notes[0].End, 1e-6)
	assert.Equal(t, 64, notes[1].Midi)
	assert.InDelta(t, 1.0, notes[1].End, 1e-6)
	assert.Equal(t, 40, notes[2].Midi)
	assert.InDelta(t, 1.25, notes[2].End, 1e-6)

	tl, err = DecodeSMF(bytes.NewReader(data), SMFOptions{Track: -1, Channel: 0})
	require.NoError(t, err)
	assert.Equal(t, 2, tl.Len())

	_, err = DecodeSMF(bytes.NewReader(data), SMFOptions{Track: 3, Channel: -1})
	assert.Error(t, err)

	_, err = DecodeSMF(bytes.NewReader([]byte("MThd garbage")), AllParts)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	midPath := filepath.Join(dir, "melody.mid")
	require.NoError(t, os.WriteFile(midPath, writeMelody(t), 0o644))

	tl, err := LoadFile(midPath, 0, SMFOptions{Track: 0, Channel: -1})
	require.NoError(t, err)
	assert.Equal(t, 3, tl.Len())

	jsonPath := filepath.Join(dir, "chart.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"notes":[{"start":0,"end":1,"midi":60}]}`), 0o644))
	tl, err = LoadFile(jsonPath, 0, AllParts)
	require.NoError(t, err)
	assert.Equal(t, 1, tl.Len())

	_, err = LoadFile(filepath.Join(dir, "chart.txt"), 0, AllParts)
	assert.Error(t, err)
}
