package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/August13742/Homebrew-Karaoke/algorithms/common"
	"github.com/August13742/Homebrew-Karaoke/algorithms/tonal"
	"github.com/August13742/Homebrew-Karaoke/detector"
	"github.com/August13742/Homebrew-Karaoke/transcode"
)

var detectOnsets bool

func init() {
	detectCmd.Flags().BoolVar(&detectOnsets, "onsets", false, "print every note onset")
	rootCmd.AddCommand(detectCmd)
}

var detectCmd = &cobra.Command{
	Use:   "detect <recording>",
	Short: "Runs the pitch detector over a recording and summarizes what it heard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDetect(cmd.Context(), cmd, args[0])
	},
}

// pitchSummary collects voiced ticks from a detector run.
type pitchSummary struct {
	ticks   int
	voiced  []float64 // smoothed Hz of voiced ticks
	midi    []float64
	onsets  int
	offsets int
}

func (p *pitchSummary) add(det detector.Detection) {
	p.ticks++
	if det.IsOnset {
		p.onsets++
	}
	if det.IsOffset {
		p.offsets++
	}
	if det.IsVoiced && det.IsDetected {
		p.voiced = append(p.voiced, det.FrequencyHz)
		p.midi = append(p.midi, det.MidiFloat)
	}
}

func (p *pitchSummary) write(w io.Writer) {
	fmt.Fprintf(w, "ticks     %d\n", p.ticks)
	if p.ticks > 0 {
		fmt.Fprintf(w, "voiced    %.1f%%\n", 100*float64(len(p.voiced))/float64(p.ticks))
	}
	fmt.Fprintf(w, "onsets    %d\n", p.onsets)
	fmt.Fprintf(w, "offsets   %d\n", p.offsets)
	if len(p.voiced) == 0 {
		return
	}
	scratch := make([]float64, len(p.midi))
	center := common.Median(p.midi, scratch)
	low, high := p.midi[0], p.midi[0]
	for _, m := range p.midi {
		low, high = math.Min(low, m), math.Max(high, m)
	}
	fmt.Fprintf(w, "pitch     %.1f Hz ± %.1f\n", common.Mean(p.voiced), common.StandardDeviation(p.voiced))
	fmt.Fprintf(w, "center    %s\n", tonal.NoteName(int(math.Round(center))))
	fmt.Fprintf(w, "range     %s to %s\n", tonal.NoteName(int(math.Round(low))), tonal.NoteName(int(math.Round(high))))
}

func runDetect(ctx context.Context, cmd *cobra.Command, recording string) error {
	cfg, err := loadSessionConfig(cmd)
	if err != nil {
		return err
	}
	dec, err := transcode.NewDecoder(transcode.DefaultDecoderConfig())
	if err != nil {
		return err
	}
	src, err := transcode.Open(ctx, recording, dec)
	if err != nil {
		return fmt.Errorf("opening recording: %w", err)
	}

	det, err := detector.New(src, cfg.Detector)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	dt := 1 / cfg.TickRate
	step := time.Duration(dt * float64(time.Second))
	src.Pace()

	var summary pitchSummary
	for tick := 1; ; tick++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		src.Advance(step)
		d, err := det.Process(dt)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		summary.add(d)
		if detectOnsets && d.IsOnset {
			fmt.Fprintf(out, "%7.2fs  %-4s %+5.0f¢  %6.1f Hz\n", float64(tick)*dt, d.NoteName, d.CentDeviation, d.FrequencyHz)
		}
	}
	summary.write(out)
	return nil
}
