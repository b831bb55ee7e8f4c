package timeline

import (
	"fmt"
)

// Selection decides which note is active at a time.
type Selection int

const (
	// SelectWithinBounds picks the note whose [Start, End] span contains t; on
	// overlap the later start wins
	SelectWithinBounds Selection = iota
	// SelectLatestStarted picks the most recently started pitched note, dropping
	// it once it is older than StaleAfter
	SelectLatestStarted
)

func (s Selection) String() string {
	switch s {
	case SelectWithinBounds:
		return "within"
	case SelectLatestStarted:
		return "latest"
	default:
		return "unknown"
	}
}

// ParseSelection maps "within" / "latest" to a Selection.
func ParseSelection(name string) (Selection, error) {
	switch name {
	case "within", "":
		return SelectWithinBounds, nil
	case "latest":
		return SelectLatestStarted, nil
	}
	return SelectWithinBounds, fmt.Errorf("unknown note selection %q", name)
}

func (s Selection) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Selection) UnmarshalText(text []byte) error {
	parsed, err := ParseSelection(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ScannerConfig tunes note lookup.
type ScannerConfig struct {
	Selection Selection `json:"selection"`
	// SeekThreshold is the forward jump in seconds treated as a seek
	SeekThreshold float64 `json:"seek_threshold"`
	// Lookbehind keeps a note active this many seconds past its end (within-bounds only)
	Lookbehind float64 `json:"lookbehind"`
	// StaleAfter drops a latest-started note this many seconds after its start; <= 0 never drops
	StaleAfter float64 `json:"stale_after"`
}

// DefaultScannerConfig returns within-bounds selection with a 2 s seek threshold.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		Selection:     SelectWithinBounds,
		SeekThreshold: 2.0,
		Lookbehind:    0,
		StaleAfter:    0.2,
	}
}

// Scanner finds the active note for monotonically advancing playback time in
// amortized constant time. Jumping backwards, or forwards by more than
// SeekThreshold, restarts the scan from the first note.
type Scanner struct {
	tl     *Timeline
	cfg    ScannerConfig
	cursor int
	last   float64
	seeded bool
	seeks  int
}

// NewScanner creates a scanner over tl.
func NewScanner(tl *Timeline, cfg ScannerConfig) *Scanner {
	return &Scanner{tl: tl, cfg: cfg}
}

// Reset rewinds the cursor to the first note.
func (s *Scanner) Reset() {
	s.cursor = 0
	s.last = 0
	s.seeded = false
}

// Seeks returns how many times the cursor has been rewound by a seek.
func (s *Scanner) Seeks() int {
	return s.seeks
}

// Active returns the note to be sung at time t, if any.
func (s *Scanner) Active(t float64) (TargetNote, bool) {
	if s.tl == nil || s.tl.Len() == 0 {
		return TargetNote{}, false
	}
	if s.seeded && (t < s.last || t-s.last > s.cfg.SeekThreshold) {
		s.cursor = 0
		s.seeks++
	}
	s.last = t
	s.seeded = true

	if s.cfg.Selection == SelectLatestStarted {
		return s.latestStarted(t)
	}
	return s.withinBounds(t)
}

func (s *Scanner) withinBounds(t float64) (TargetNote, bool) {
	notes := s.tl.notes
	horizon := t - s.cfg.Lookbehind
	for s.cursor < len(notes) && notes[s.cursor].End < horizon {
		s.cursor++
	}

	var found TargetNote
	ok := false
	for i := s.cursor; i < len(notes) && notes[i].Start <= t; i++ {
		n := notes[i]
		if !n.Pitched() || n.End < horizon {
			continue
		}
		found, ok = n, true
	}
	return found, ok
}

func (s *Scanner) latestStarted(t float64) (TargetNote, bool) {
	notes := s.tl.notes
	for s.cursor+1 < len(notes) && notes[s.cursor+1].Start <= t {
		s.cursor++
	}
	if notes[s.cursor].Start > t {
		return TargetNote{}, false
	}

	// a rest that started last silences the target until the next note
	n := notes[s.cursor]
	if !n.Pitched() || (s.cfg.StaleAfter > 0 && t-n.Start > s.cfg.StaleAfter) {
		return TargetNote{}, false
	}
	return n, true
}
