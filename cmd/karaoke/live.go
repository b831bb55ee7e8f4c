package main

import (
	"context"
	"errors"
	"time"

	"github.com/bep/debounce"
	"github.com/eiannone/keyboard"
	"github.com/spf13/cobra"

	"github.com/August13742/Homebrew-Karaoke/audio"
	"github.com/August13742/Homebrew-Karaoke/logging"
	"github.com/August13742/Homebrew-Karaoke/scoring"
	"github.com/August13742/Homebrew-Karaoke/server"
	"github.com/August13742/Homebrew-Karaoke/session"
	"github.com/August13742/Homebrew-Karaoke/store"
)

var (
	liveAddr     string
	liveSong     string
	liveNoSave   bool
	liveAnnounce time.Duration
)

var liveCapture = audio.DefaultCaptureConfig()

func init() {
	flags := liveCmd.Flags()
	flags.StringVar(&liveAddr, "addr", "127.0.0.1:8765", "serve the live state here, empty to disable")
	flags.StringVar(&liveSong, "song", "", "song name for the history, defaults to the chart file name")
	flags.BoolVar(&liveNoSave, "no-save", false, "do not record the result")
	flags.IntVar(&liveCapture.SampleRate, "rate", liveCapture.SampleRate, "capture sample rate")
	flags.IntVar(&liveCapture.Channels, "channels", liveCapture.Channels, "capture channels")
	flags.Float64Var(&liveCapture.BufferSeconds, "buffer", liveCapture.BufferSeconds, "seconds of unread audio to keep")
	flags.DurationVar(&liveAnnounce, "announce-every", 250*time.Millisecond, "quiet period before logging a tier change")
	rootCmd.AddCommand(liveCmd)
}

var liveCmd = &cobra.Command{
	Use:   "live <chart>",
	Short: "Scores the microphone against a chart in real time",
	Long: `Starts the song clock immediately and scores the default capture device.
Press q or Esc to stop early.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLive(cmd.Context(), cmd, args[0])
	},
}

func runLive(ctx context.Context, cmd *cobra.Command, chart string) error {
	logger := logging.WithFields(logging.Fields{"component": "live"})

	cfg, err := loadSessionConfig(cmd)
	if err != nil {
		return err
	}
	tl, err := loadChart(chart)
	if err != nil {
		return err
	}

	src, err := audio.OpenCapture(liveCapture)
	if err != nil {
		return err
	}
	defer src.Close()

	s, err := session.New(src, tl, cfg, session.WithTickHook(tierAnnouncer(logger, liveAnnounce)))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchQuitKeys(ctx, cancel, logger)

	if liveAddr != "" {
		srv := server.New(s, tl)
		go func() {
			if err := srv.ListenAndServe(ctx, liveAddr); err != nil {
				logger.Error(err, "state server stopped")
			}
		}()
	}

	err = s.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if n := src.Dropped(); n > 0 {
		logger.Warn("capture overran", logging.Fields{"dropped_samples": n})
	}

	final := s.Score()
	printScore(cmd.OutOrStdout(), final)
	if liveNoSave || final.ScoredSeconds == 0 {
		return nil
	}
	song := liveSong
	if song == "" {
		song = songName(chart)
	}
	// the run context may already be cancelled by the quit key
	return saveResult(context.Background(), cmd.OutOrStdout(),
		store.NewRecord(s.ID().String(), song, chart, cfg.Scoring.KeyShift, final))
}

// tierAnnouncer logs tier changes once the singer has held a tier for quiet.
func tierAnnouncer(logger logging.Logger, quiet time.Duration) func(session.Snapshot) {
	announce := debounce.New(quiet)
	last := scoring.Silent
	return func(snap session.Snapshot) {
		tier := snap.Result.Tier
		if tier == last {
			return
		}
		last = tier
		label := tier.Label()
		if label == "" {
			return
		}
		announce(func() {
			logger.Info(label, logging.Fields{
				"note":  snap.Detection.NoteName,
				"cents": snap.Result.Cents,
				"score": snap.Result.Score.Cumulative,
			})
		})
	}
}

func watchQuitKeys(ctx context.Context, cancel context.CancelFunc, logger logging.Logger) {
	keys, err := keyboard.GetKeys(8)
	if err != nil {
		logger.Warn("keyboard unavailable, stop with Ctrl+C", logging.Fields{"error": err.Error()})
		return
	}
	go func() {
		defer keyboard.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-keys:
				if ev.Err != nil {
					return
				}
				switch {
				case ev.Key == keyboard.KeyEsc, ev.Key == keyboard.KeyCtrlC, ev.Rune == 'q':
					cancel()
					return
				}
			}
		}
	}()
}
