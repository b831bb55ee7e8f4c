package detector

import (
	"github.com/August13742/Homebrew-Karaoke/algorithms/common"
	"github.com/August13742/Homebrew-Karaoke/algorithms/filters"
	"github.com/August13742/Homebrew-Karaoke/audio"
)

// Conditioner turns interleaved blocks into a filtered mono sliding window.
// Filter state persists across blocks so block boundaries leave no seams.
type Conditioner struct {
	lowPass  *filters.OnePoleLowPass
	dcBlock  *filters.DCRemoval
	window   *common.CircularBuffer
	mono     []float64
	fresh    int
	peak     float64
	minBlock int
}

// NewConditioner sizes the conditioner for cfg at sampleRate.
func NewConditioner(cfg Config, sampleRate int) *Conditioner {
	c := &Conditioner{
		lowPass:  filters.NewOnePoleLowPass(sampleRate, cfg.FilterCutoffHz),
		window:   common.NewCircularBuffer(cfg.AnalysisSize),
		mono:     make([]float64, cfg.MinBlockSize),
		minBlock: cfg.MinBlockSize,
	}
	if cfg.DCBlockHz > 0 {
		c.dcBlock = filters.NewDCRemovalWithCutoff(sampleRate, cfg.DCBlockHz)
	}
	return c
}

// Feed mixes block to mono, tracks the raw peak and appends the filtered samples
// to the analysis window.
func (c *Conditioner) Feed(block audio.Block) {
	frames := block.Frames()
	if frames > len(c.mono) {
		c.mono = make([]float64, frames)
	}
	mono := c.mono[:audio.MixToMono(block, c.mono)]

	// the gate looks at what the singer produced, not at the filter output
	if p := common.PeakAbs(mono); p > c.peak {
		c.peak = p
	}

	if c.dcBlock != nil {
		c.dcBlock.ProcessInPlace(mono)
	}
	c.lowPass.ProcessInPlace(mono)
	c.window.Write(mono)
	c.fresh += len(mono)
}

// Ready reports whether enough fresh audio has arrived for an analysis.
func (c *Conditioner) Ready() bool {
	return c.fresh >= c.minBlock
}

// Take copies the newest window into dst and returns its length together with
// the raw peak of the samples fed since the previous Take.
func (c *Conditioner) Take(dst []float64) (n int, peak float64) {
	n = c.window.Latest(dst)
	peak = c.peak
	c.fresh = 0
	c.peak = 0
	return n, peak
}

// Reset clears filter memory and the window.
func (c *Conditioner) Reset() {
	c.lowPass.Reset()
	if c.dcBlock != nil {
		c.dcBlock.Reset()
	}
	c.window.Clear()
	c.fresh = 0
	c.peak = 0
}
