package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/August13742/Homebrew-Karaoke/logging"
)

// CaptureConfig selects the capture device format.
type CaptureConfig struct {
	SampleRate int
	Channels   int
	// BufferSeconds bounds how much unread audio is kept; older frames are dropped.
	BufferSeconds float64
}

// DefaultCaptureConfig returns mono 44.1 kHz with one second of backlog.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: 44100, Channels: 1, BufferSeconds: 1}
}

// CaptureSource is fed by the audio device callback and drained by the tick loop.
// The device thread only appends; the reader only consumes.
type CaptureSource struct {
	mu       sync.Mutex
	ring     []float32
	head     int // index of oldest sample
	count    int // samples held
	dropped  int
	channels int
	rate     int
	closed   bool

	mctx   *malgo.AllocatedContext
	device *malgo.Device
	logger logging.Logger
}

func newCaptureBuffer(cfg CaptureConfig) *CaptureSource {
	frames := int(cfg.BufferSeconds * float64(cfg.SampleRate))
	if frames < 1 {
		frames = cfg.SampleRate
	}
	return &CaptureSource{
		ring:     make([]float32, frames*cfg.Channels),
		channels: cfg.Channels,
		rate:     cfg.SampleRate,
		logger:   logging.WithFields(logging.Fields{"component": "capture"}),
	}
}

// OpenCapture starts the default capture device with 32-bit float samples.
func OpenCapture(cfg CaptureConfig) (*CaptureSource, error) {
	if err := ValidateFormat(cfg.Channels, cfg.SampleRate); err != nil {
		return nil, err
	}
	src := newCaptureBuffer(cfg)

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		src.logger.Debug(message)
	})
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatF32
	devCfg.Capture.Channels = uint32(cfg.Channels)
	devCfg.SampleRate = uint32(cfg.SampleRate)
	devCfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, devCfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			src.push(input)
		},
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	src.mctx = mctx
	src.device = device
	src.logger.Info("capture started", logging.Fields{
		"sample_rate": cfg.SampleRate,
		"channels":    cfg.Channels,
	})
	return src, nil
}

// push appends little-endian float32 samples, overwriting the oldest when full.
func (c *CaptureSource) push(input []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	size := len(c.ring)
	for i := 0; i+4 <= len(input); i += 4 {
		if c.count == size {
			// drop a whole frame so channels stay aligned
			c.head = (c.head + c.channels) % size
			c.count -= c.channels
			c.dropped += c.channels
		}
		c.ring[(c.head+c.count)%size] = math.Float32frombits(binary.LittleEndian.Uint32(input[i:]))
		c.count++
	}
}

func (c *CaptureSource) FramesAvailable() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count / c.channels
}

func (c *CaptureSource) Read(dst []float32) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}

	frames := len(dst) / c.channels
	if avail := c.count / c.channels; frames > avail {
		frames = avail
	}
	n := frames * c.channels
	size := len(c.ring)
	for i := 0; i < n; i++ {
		dst[i] = c.ring[(c.head+i)%size]
	}
	c.head = (c.head + n) % size
	c.count -= n
	return frames, nil
}

// Dropped returns how many samples were overwritten before being read.
func (c *CaptureSource) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *CaptureSource) Channels() int   { return c.channels }
func (c *CaptureSource) SampleRate() int { return c.rate }

// Close stops the device and releases the audio context.
func (c *CaptureSource) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var err error
	if c.device != nil {
		err = c.device.Stop()
		c.device.Uninit()
	}
	if c.mctx != nil {
		if uerr := c.mctx.Uninit(); err == nil {
			err = uerr
		}
		c.mctx.Free()
	}
	return err
}
