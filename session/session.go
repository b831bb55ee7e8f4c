// Package session runs the per-tick loop: drain audio, detect pitch, grade it
// against the melody and publish the result for readers on other goroutines.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/August13742/Homebrew-Karaoke/audio"
	"github.com/August13742/Homebrew-Karaoke/detector"
	"github.com/August13742/Homebrew-Karaoke/logging"
	"github.com/August13742/Homebrew-Karaoke/scoring"
	"github.com/August13742/Homebrew-Karaoke/timeline"
)

// Snapshot is an immutable view of the latest tick.
type Snapshot struct {
	SessionID string             `json:"session_id"`
	Tick      int                `json:"tick"`
	Time      float64            `json:"time"`
	Detection detector.Detection `json:"detection"`
	Result    scoring.Result     `json:"result"`
	Finished  bool               `json:"finished"`
}

// Config bundles everything a session needs besides its inputs.
type Config struct {
	Detector detector.Config        `json:"detector"`
	Scoring  scoring.Config         `json:"scoring"`
	Scanner  timeline.ScannerConfig `json:"scanner"`
	// TickRate is the number of ticks per second in Run and Replay
	TickRate float64 `json:"tick_rate"`
}

// DefaultConfig returns the default pipeline at 60 ticks per second.
func DefaultConfig() Config {
	return Config{
		Detector: detector.DefaultConfig(),
		Scoring:  scoring.DefaultConfig(),
		Scanner:  timeline.DefaultScannerConfig(),
		TickRate: 60,
	}
}

// Validate checks every nested config.
func (c Config) Validate() error {
	var errs []error
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick rate %.1f must be positive", c.TickRate))
	}
	errs = append(errs, c.Detector.Validate(), c.Scoring.Validate())
	return errors.Join(errs...)
}

// LoadConfig reads a JSON file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading session config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing session config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Session owns one detector and one scorer. Tick must be called from a single
// goroutine; Snapshot may be called from any.
type Session struct {
	id       uuid.UUID
	cfg      Config
	timeline *timeline.Timeline
	detector *detector.Detector
	scorer   *scoring.Scorer
	logger   logging.Logger
	onTick   func(Snapshot)

	now  float64
	tick int

	mu       sync.RWMutex
	snapshot Snapshot
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithTickHook registers fn to be called with every published snapshot.
func WithTickHook(fn func(Snapshot)) Option {
	return func(s *Session) {
		s.onTick = fn
	}
}

// New wires a session for source and tl.
func New(source audio.Source, tl *timeline.Timeline, cfg Config, opts ...Option) (*Session, error) {
	if tl == nil {
		return nil, errors.New("session needs a timeline")
	}
	if cfg.TickRate <= 0 {
		return nil, fmt.Errorf("tick rate %.1f must be positive", cfg.TickRate)
	}
	det, err := detector.New(source, cfg.Detector)
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.NewScorer(tl, cfg.Scoring, cfg.Scanner)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:       uuid.New(),
		cfg:      cfg,
		timeline: tl,
		detector: det,
		scorer:   scorer,
		logger:   logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(logging.Fields{"session": s.id.String()})
	det.SetLogger(s.logger.WithFields(logging.Fields{"component": "detector"}))
	s.snapshot = Snapshot{SessionID: s.id.String()}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Timeline returns the melody being scored.
func (s *Session) Timeline() *timeline.Timeline {
	return s.timeline
}

// Tick advances song time by dt seconds. It returns io.EOF once a finite source
// has been drained; the snapshot is still updated.
func (s *Session) Tick(dt float64) (Snapshot, error) {
	det, err := s.detector.Process(dt)
	if err != nil && !errors.Is(err, io.EOF) {
		return s.Snapshot(), err
	}

	s.now += dt
	s.tick++
	res := s.scorer.Update(s.now, dt, det)

	snap := Snapshot{
		SessionID: s.id.String(),
		Tick:      s.tick,
		Time:      s.now,
		Detection: det,
		Result:    res,
		Finished:  s.now >= s.timeline.Duration(),
	}
	s.publish(snap)
	return snap, err
}

// Seek moves song time to t. The scanner notices the jump on the next tick.
func (s *Session) Seek(t float64) {
	s.logger.Debug("seek", logging.Fields{"from": s.now, "to": t})
	s.now = t
}

func (s *Session) publish(snap Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	if s.onTick != nil {
		s.onTick(snap)
	}
}

// Snapshot returns the latest published tick.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Score returns the running score.
func (s *Session) Score() scoring.ScoreState {
	return s.Snapshot().Result.Score
}

// Run ticks in real time until ctx is cancelled, the source ends or the song is over.
func (s *Session) Run(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / s.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("session started", logging.Fields{"notes": s.timeline.Len()})
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped", logging.Fields{"score": s.Score().Cumulative})
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			snap, err := s.Tick(dt)
			if errors.Is(err, io.EOF) || snap.Finished {
				s.logger.Info("session finished", logging.Fields{"score": snap.Result.Score.Cumulative})
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// Replay scores a recording as fast as possible, releasing one tick of audio at a time.
func (s *Session) Replay(ctx context.Context, src *audio.BufferSource) (scoring.ScoreState, error) {
	dt := 1 / s.cfg.TickRate
	step := time.Duration(dt * float64(time.Second))
	src.Pace()

	for {
		if err := ctx.Err(); err != nil {
			return s.Score(), err
		}
		src.Advance(step)
		_, err := s.Tick(dt)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.Score(), err
		}
	}
	s.logger.Info("replay finished", logging.Fields{
		"ticks": s.tick,
		"score": s.Score().Cumulative,
	})
	return s.Score(), nil
}
