// Package transcode decodes recordings and backing tracks that the native readers
// do not handle by piping them through ffmpeg.
package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/August13742/Homebrew-Karaoke/audio"
	"github.com/August13742/Homebrew-Karaoke/logging"
)

// ErrNoAudioStream is returned when ffprobe finds nothing to decode.
var ErrNoAudioStream = errors.New("no audio stream found")

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	SampleRate  int           `json:"sample_rate"`
	Channels    int           `json:"channels"`
	MaxDuration time.Duration `json:"max_duration"`
	FFmpegPath  string        `json:"ffmpeg_path"`
	FFprobePath string        `json:"ffprobe_path"`
	Timeout     time.Duration `json:"timeout"`

	// Loudness normalization evens out quiet phone recordings before the gate.
	Normalize  bool    `json:"normalize"`
	TargetLUFS float64 `json:"target_lufs"`
	TargetPeak float64 `json:"target_peak"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		SampleRate:  44100,
		Channels:    1,
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Timeout:     60 * time.Second,
		TargetLUFS:  -16.0,
		TargetPeak:  -1.5,
	}
}

// Validate checks the numeric settings. It does not look for the binaries.
func (c DecoderConfig) Validate() error {
	var errs []error
	if err := audio.ValidateFormat(c.Channels, c.SampleRate); err != nil {
		errs = append(errs, err)
	}
	if c.Channels > 2 {
		errs = append(errs, fmt.Errorf("channels must be 1 or 2: %d", c.Channels))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive: %v", c.Timeout))
	}
	if c.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("max duration must not be negative: %v", c.MaxDuration))
	}
	if c.Normalize && c.TargetPeak > 0 {
		errs = append(errs, fmt.Errorf("target peak must be <= 0 dBTP: %.1f", c.TargetPeak))
	}
	return errors.Join(errs...)
}

// Metadata holds the input properties reported by ffprobe.
type Metadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
}

// Decoder handles audio decoding using FFmpeg
type Decoder struct {
	config DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a decoder after validating config.
func NewDecoder(config DecoderConfig) (*Decoder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid decoder config: %w", err)
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{"component": "audio_decoder"}),
	}, nil
}

// SetLogger replaces the decoder's logger.
func (d *Decoder) SetLogger(logger logging.Logger) {
	d.logger = logger
}

// Config returns the decoder configuration.
func (d *Decoder) Config() DecoderConfig {
	return d.config
}

// Available reports whether both binaries can be run.
func (d *Decoder) Available(ctx context.Context) error {
	for _, bin := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		if err := exec.CommandContext(ctx, bin, "-version").Run(); err != nil {
			return fmt.Errorf("%s not usable: %w", bin, err)
		}
	}
	return nil
}

// Probe reads the first audio stream's properties.
func (d *Decoder) Probe(ctx context.Context, filename string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		filename,
	}
	output, err := exec.CommandContext(ctx, d.config.FFprobePath, args...).Output()
	if err != nil {
		return Metadata{}, commandError("ffprobe", err)
	}
	return parseProbeOutput(output)
}

// DecodeFile decodes filename into a buffer source at the configured format.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*audio.BufferSource, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": filename,
	})

	meta, err := d.Probe(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}
	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": meta.SampleRate,
		"input_channels":    meta.Channels,
		"input_codec":       meta.Codec,
		"input_duration":    meta.Duration,
	})

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	args := append([]string{"-i", filename}, d.buildArgs(meta)...)
	args = append(args, "pipe:1")

	logger.Debug("Running ffmpeg command", logging.Fields{"args": strings.Join(args, " ")})

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		logger.Error(err, "FFmpeg decode failed", logging.Fields{"stderr": stderr.String()})
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat32(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s decoded to nothing", ErrNoAudioStream, filename)
	}

	src, err := audio.NewBufferSource(samples, d.config.Channels, d.config.SampleRate)
	if err != nil {
		return nil, err
	}
	logger.Debug("FFmpeg decode completed", logging.Fields{
		"output_frames":   src.TotalFrames(),
		"output_duration": src.Duration().Seconds(),
	})
	return src, nil
}

// buildArgs builds the output half of the ffmpeg command line.
func (d *Decoder) buildArgs(meta Metadata) []string {
	args := []string{
		"-f", "f32le",
		"-ac", strconv.Itoa(d.config.Channels),
		"-ar", strconv.Itoa(d.config.SampleRate),
	}

	var filters []string
	if meta.SampleRate != 0 && meta.SampleRate != d.config.SampleRate {
		filters = append(filters, "aresample=resampler=soxr:precision=20")
	}
	if d.config.Normalize {
		filters = append(filters, fmt.Sprintf("loudnorm=I=%.1f:TP=%.1f:LRA=7.0",
			d.config.TargetLUFS, d.config.TargetPeak))
	}
	if len(filters) > 0 {
		args = append(args, "-af", strings.Join(filters, ","))
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}
	return append(args, "-v", "error")
}

func parseProbeOutput(jsonData []byte) (Metadata, error) {
	var probe struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			Duration   string `json:"duration"`
			BitRate    string `json:"bit_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return Metadata{}, ErrNoAudioStream
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return Metadata{}, fmt.Errorf("%w: stream is %s", ErrNoAudioStream, stream.CodecType)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return Metadata{}, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	// ffprobe reports numbers as strings and leaves them out for some containers
	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return Metadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
	}, nil
}

func bytesToFloat32(data []byte) []float32 {
	n := len(data) / 4
	if n == 0 {
		return nil
	}
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

func commandError(name string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%s failed: %w, stderr: %s", name, err, exitErr.Stderr)
	}
	return fmt.Errorf("%s failed: %w", name, err)
}

// Open reads WAV and MP3 natively and hands everything else to dec.
// A nil dec restricts Open to the native formats.
func Open(ctx context.Context, path string, dec *Decoder) (*audio.BufferSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave", ".mp3":
		return audio.ReadFile(path)
	}
	if dec == nil {
		return nil, fmt.Errorf("%w: %q needs ffmpeg", audio.ErrInvalidFormat, filepath.Ext(path))
	}
	return dec.DecodeFile(ctx, path)
}
