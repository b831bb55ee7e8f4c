// Package detector turns blocks of microphone audio into a stable, note-mapped
// pitch reading once per tick.
package detector

import (
	"errors"
	"fmt"
	"io"

	"github.com/August13742/Homebrew-Karaoke/algorithms/common"
	"github.com/August13742/Homebrew-Karaoke/algorithms/tonal"
	"github.com/August13742/Homebrew-Karaoke/audio"
	"github.com/August13742/Homebrew-Karaoke/logging"
)

// Detection is the public reading, refreshed once per tick. The zero value means
// nothing detected.
type Detection struct {
	FrequencyHz    float64 `json:"frequency_hz"`     // smoothed
	RawFrequencyHz float64 `json:"raw_frequency_hz"` // latest estimator output
	MidiNote       int     `json:"midi_note"`
	MidiFloat      float64 `json:"midi_float"`
	CentDeviation  float64 `json:"cent_deviation"` // -50..+50 from MidiNote
	NoteName       string  `json:"note_name"`
	Amplitude      float64 `json:"amplitude"` // raw peak of the analysed samples
	AmplitudeDb    float64 `json:"amplitude_db"`
	Confidence     float64 `json:"confidence"`

	IsDetected bool `json:"is_detected"` // a note is held, including the offset hold
	IsVoiced   bool `json:"is_voiced"`   // the latest analysis produced an accepted estimate
	IsOnset    bool `json:"is_onset"`
	IsOffset   bool `json:"is_offset"`
}

// State is everything Step carries between ticks. Build it with NewState; the
// zero value is not usable.
type State struct {
	cfg        Config
	sampleRate int

	conditioner *Conditioner
	stabilizer  *Stabilizer
	estimator   *tonal.PitchEstimator
	analysis    []float64

	pendingDt float64
	last      Detection
}

// NewState prepares detector state for cfg. Buffers are sized on the first block,
// once the sample rate is known.
func NewState(cfg Config) *State {
	return &State{cfg: cfg}
}

// Last returns the most recent detection.
func (st *State) Last() Detection {
	return st.last
}

// Reset drops all history, filter memory and any held note.
func (st *State) Reset() {
	if st.conditioner != nil {
		st.conditioner.Reset()
		st.stabilizer.Reset()
	}
	st.pendingDt = 0
	st.last = Detection{}
}

func (st *State) configure(cfg Config, sampleRate int) {
	st.cfg = cfg
	st.sampleRate = sampleRate
	st.conditioner = NewConditioner(cfg, sampleRate)
	st.stabilizer = NewStabilizer(cfg)
	st.estimator = tonal.NewPitchEstimator(cfg.EstimatorParams(sampleRate))
	st.analysis = make([]float64, cfg.AnalysisSize)
	st.pendingDt = 0
	st.last = Detection{}
}

// Step advances the detector by one tick of dt seconds with whatever audio arrived
// in block. An empty or short block defers analysis; the elapsed time is carried
// into the next analysed tick. After warm-up Step does not allocate.
func Step(st *State, cfg Config, block audio.Block, dt float64) Detection {
	if dt < 0 {
		dt = 0
	}
	if block.Frames() > 0 && block.Validate() == nil {
		if st.conditioner == nil || block.SampleRate != st.sampleRate || cfg != st.cfg {
			st.configure(cfg, block.SampleRate)
		}
		st.conditioner.Feed(block)
	}

	st.pendingDt += dt
	if st.conditioner == nil || !st.conditioner.Ready() {
		st.last.IsOnset = false
		st.last.IsOffset = false
		return st.last
	}

	elapsed := st.pendingDt
	st.pendingDt = 0
	n, peak := st.conditioner.Take(st.analysis)

	det := Detection{
		Amplitude:   peak,
		AmplitudeDb: common.AmplitudeToDb(peak),
	}

	accepted := false
	if peak >= cfg.AmplitudeThreshold {
		est := st.estimator.Estimate(st.analysis[:n])
		det.RawFrequencyHz = est.Frequency
		det.Confidence = est.Confidence
		accepted = est.Frequency > 0 && est.Confidence > 1-cfg.ConfidenceThreshold
	}

	if accepted {
		det.IsOnset = st.stabilizer.Accept(det.RawFrequencyHz, elapsed)
	} else {
		det.IsOffset = st.stabilizer.Miss(elapsed)
	}
	det.IsVoiced = accepted
	det.IsDetected = st.stabilizer.Detected()

	if det.IsDetected {
		det.FrequencyHz = st.stabilizer.Smoothed()
		det.MidiFloat = tonal.FrequencyToMidi(det.FrequencyHz)
		det.MidiNote, det.CentDeviation = tonal.SplitMidi(det.MidiFloat)
		det.NoteName = tonal.NoteName(det.MidiNote)
	}

	st.last = det
	return det
}

// Detector drives Step from an audio source.
type Detector struct {
	cfg    Config
	state  *State
	source audio.Source
	buf    []float32
	logger logging.Logger
}

// New validates the configuration and binds a detector to source.
func New(source audio.Source, cfg Config, opts ...Option) (*Detector, error) {
	cfg = cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	if source == nil {
		return nil, errors.New("detector needs an audio source")
	}
	if err := audio.ValidateFormat(source.Channels(), source.SampleRate()); err != nil {
		return nil, err
	}
	return &Detector{
		cfg:    cfg,
		state:  NewState(cfg),
		source: source,
		logger: logging.WithFields(logging.Fields{"component": "detector"}),
	}, nil
}

// SetLogger replaces the detector's logger.
func (d *Detector) SetLogger(logger logging.Logger) {
	d.logger = logger
}

// Config returns the validated configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Process drains the source and steps the detector by dt. io.EOF is returned once
// a finite source is exhausted; the detection is still valid.
func (d *Detector) Process(dt float64) (Detection, error) {
	block, err := d.drain()
	det := Step(d.state, d.cfg, block, dt)

	switch {
	case det.IsOnset:
		d.logger.Debug("onset", logging.Fields{"note": det.NoteName, "hz": det.FrequencyHz})
	case det.IsOffset:
		d.logger.Debug("offset")
	}
	return det, err
}

func (d *Detector) drain() (audio.Block, error) {
	channels := d.source.Channels()
	block := audio.Block{Channels: channels, SampleRate: d.source.SampleRate()}

	avail := d.source.FramesAvailable()
	if avail <= 0 {
		if _, err := d.source.Read(d.buf[:0]); err != nil {
			return block, err
		}
		return block, nil
	}
	if need := avail * channels; cap(d.buf) < need {
		d.buf = make([]float32, need)
	}
	frames, err := d.source.Read(d.buf[:avail*channels])
	block.Samples = d.buf[:frames*channels]
	if err != nil && !errors.Is(err, io.EOF) {
		return block, fmt.Errorf("reading audio: %w", err)
	}
	return block, err
}

// Last returns the most recent detection without advancing.
func (d *Detector) Last() Detection {
	return d.state.Last()
}

// Reset clears all detector state.
func (d *Detector) Reset() {
	d.state.Reset()
}
