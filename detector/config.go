package detector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/August13742/Homebrew-Karaoke/algorithms/tonal"
)

// Config holds every tunable of the detection pipeline.
type Config struct {
	// Signal conditioning
	AmplitudeThreshold float64 `json:"amplitude_threshold"` // peak below this is silence
	FilterCutoffHz     float64 `json:"filter_cutoff_hz"`    // one-pole low-pass corner, <= 0 disables
	DCBlockHz          float64 `json:"dc_block_hz"`         // DC blocker corner, <= 0 disables
	AnalysisSize       int     `json:"analysis_size"`       // sliding window handed to the estimator
	MinBlockSize       int     `json:"min_block_size"`      // fresh samples needed before analysing

	// Estimation
	MinFreq             float64                    `json:"min_freq"`
	MaxFreq             float64                    `json:"max_freq"`
	ConfidenceThreshold float64                    `json:"confidence_threshold"`
	Method              tonal.PitchDetectionMethod `json:"method"`
	Difference          tonal.DifferenceStrategy   `json:"difference"`

	// Stabilization
	HistorySize    int     `json:"history_size"`     // median window, odd
	SmoothingSpeed float64 `json:"smoothing_speed"`  // lerp rate per second toward the median
	OffsetHoldTime float64 `json:"offset_hold_time"` // seconds held detected after the voice stops
}

// DefaultConfig returns settings tuned for a solo singing voice.
func DefaultConfig() Config {
	return Config{
		AmplitudeThreshold:  0.02,
		FilterCutoffHz:      1500,
		DCBlockHz:           0,
		AnalysisSize:        2048,
		MinBlockSize:        1024,
		MinFreq:             65,
		MaxFreq:             1000,
		ConfidenceThreshold: 0.15,
		Method:              tonal.MethodYIN,
		Difference:          tonal.DifferenceDirect,
		HistorySize:         5,
		SmoothingSpeed:      15,
		OffsetHoldTime:      0.15,
	}
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.AmplitudeThreshold < 0 || c.AmplitudeThreshold > 1 {
		errs = append(errs, fmt.Errorf("amplitude threshold %.3f outside [0, 1]", c.AmplitudeThreshold))
	}
	if c.MinFreq <= 0 {
		errs = append(errs, fmt.Errorf("min frequency %.1f must be positive", c.MinFreq))
	}
	if c.MinFreq >= c.MaxFreq {
		errs = append(errs, fmt.Errorf("min frequency %.1f must be below max frequency %.1f", c.MinFreq, c.MaxFreq))
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold >= 1 {
		errs = append(errs, fmt.Errorf("confidence threshold %.3f outside (0, 1)", c.ConfidenceThreshold))
	}
	if c.HistorySize <= 0 || c.HistorySize%2 == 0 {
		errs = append(errs, fmt.Errorf("history size %d must be positive and odd", c.HistorySize))
	}
	if c.SmoothingSpeed <= 0 {
		errs = append(errs, fmt.Errorf("smoothing speed %.2f must be positive", c.SmoothingSpeed))
	}
	if c.OffsetHoldTime < 0 {
		errs = append(errs, fmt.Errorf("offset hold time %.3f must not be negative", c.OffsetHoldTime))
	}
	if c.MinBlockSize <= 0 {
		errs = append(errs, fmt.Errorf("min block size %d must be positive", c.MinBlockSize))
	}
	if c.AnalysisSize < c.MinBlockSize {
		errs = append(errs, fmt.Errorf("analysis size %d smaller than min block size %d", c.AnalysisSize, c.MinBlockSize))
	}
	if c.Method != tonal.MethodYIN && c.Method != tonal.MethodAutocorrelation {
		errs = append(errs, fmt.Errorf("unknown pitch detection method %d", c.Method))
	}
	if c.Difference != tonal.DifferenceDirect && c.Difference != tonal.DifferenceFFT {
		errs = append(errs, fmt.Errorf("unknown difference strategy %d", c.Difference))
	}
	return errors.Join(errs...)
}

// EstimatorParams derives the estimator settings for a sample rate.
func (c Config) EstimatorParams(sampleRate int) tonal.EstimatorParams {
	return tonal.EstimatorParams{
		Method:     c.Method,
		Difference: c.Difference,
		SampleRate: sampleRate,
		MinFreq:    c.MinFreq,
		MaxFreq:    c.MaxFreq,
		Threshold:  c.ConfidenceThreshold,
		MaxWindow:  c.AnalysisSize,
	}
}

// LoadConfig reads a JSON file over the defaults. Keys absent from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading detector config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing detector config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Option adjusts a Config.
type Option func(*Config)

func WithAmplitudeThreshold(threshold float64) Option {
	return func(c *Config) {
		c.AmplitudeThreshold = threshold
	}
}

func WithFrequencyRange(minFreq, maxFreq float64) Option {
	return func(c *Config) {
		c.MinFreq = minFreq
		c.MaxFreq = maxFreq
	}
}

func WithFilterCutoff(hz float64) Option {
	return func(c *Config) {
		c.FilterCutoffHz = hz
	}
}

func WithDCBlock(hz float64) Option {
	return func(c *Config) {
		c.DCBlockHz = hz
	}
}

func WithConfidenceThreshold(threshold float64) Option {
	return func(c *Config) {
		c.ConfidenceThreshold = threshold
	}
}

func WithHistorySize(n int) Option {
	return func(c *Config) {
		c.HistorySize = n
	}
}

func WithSmoothingSpeed(speed float64) Option {
	return func(c *Config) {
		c.SmoothingSpeed = speed
	}
}

func WithOffsetHoldTime(seconds float64) Option {
	return func(c *Config) {
		c.OffsetHoldTime = seconds
	}
}

func WithBlockSizes(minBlock, analysis int) Option {
	return func(c *Config) {
		c.MinBlockSize = minBlock
		c.AnalysisSize = analysis
	}
}

func WithMethod(method tonal.PitchDetectionMethod) Option {
	return func(c *Config) {
		c.Method = method
	}
}

func WithDifference(strategy tonal.DifferenceStrategy) Option {
	return func(c *Config) {
		c.Difference = strategy
	}
}

// Apply returns a copy of c with opts applied.
func (c Config) Apply(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
