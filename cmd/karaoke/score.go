package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/August13742/Homebrew-Karaoke/scoring"
	"github.com/August13742/Homebrew-Karaoke/session"
	"github.com/August13742/Homebrew-Karaoke/store"
	"github.com/August13742/Homebrew-Karaoke/transcode"
)

var (
	scoreSong      string
	scoreNoSave    bool
	scoreNormalize bool
)

func init() {
	scoreCmd.Flags().StringVar(&scoreSong, "song", "", "song name for the history, defaults to the chart file name")
	scoreCmd.Flags().BoolVar(&scoreNoSave, "no-save", false, "do not record the result")
	scoreCmd.Flags().BoolVar(&scoreNormalize, "normalize", false, "loudness-normalize recordings decoded through ffmpeg")
	rootCmd.AddCommand(scoreCmd)
}

var scoreCmd = &cobra.Command{
	Use:   "score <recording> <chart>",
	Short: "Scores a recorded take against a chart",
	Long: `Replays a recording through the detector at the session tick rate and scores it.
WAV and MP3 are read directly; anything else is decoded with ffmpeg.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScore(cmd.Context(), cmd, args[0], args[1])
	},
}

func runScore(ctx context.Context, cmd *cobra.Command, recording, chart string) error {
	cfg, err := loadSessionConfig(cmd)
	if err != nil {
		return err
	}
	tl, err := loadChart(chart)
	if err != nil {
		return err
	}

	decCfg := transcode.DefaultDecoderConfig()
	decCfg.Normalize = scoreNormalize
	dec, err := transcode.NewDecoder(decCfg)
	if err != nil {
		return err
	}
	src, err := transcode.Open(ctx, recording, dec)
	if err != nil {
		return fmt.Errorf("opening recording: %w", err)
	}

	s, err := session.New(src, tl, cfg)
	if err != nil {
		return err
	}
	final, err := s.Replay(ctx, src)
	if err != nil {
		return err
	}
	printScore(cmd.OutOrStdout(), final)

	if scoreNoSave {
		return nil
	}
	song := scoreSong
	if song == "" {
		song = songName(chart)
	}
	return saveResult(ctx, cmd.OutOrStdout(), store.NewRecord(s.ID().String(), song, chart, cfg.Scoring.KeyShift, final))
}

func printScore(w io.Writer, st scoring.ScoreState) {
	fmt.Fprintf(w, "score     %s\n", humanize.Commaf(math.Round(st.Cumulative)))
	fmt.Fprintf(w, "accuracy  %.1f%%\n", 100*st.Accuracy())
	fmt.Fprintf(w, "scored    %.1fs\n", st.ScoredSeconds)
	for i := len(scoring.Tiers) - 1; i >= 0; i-- {
		tier := scoring.Tiers[i]
		fmt.Fprintf(w, "%-9s %d\n", tier, st.Count(tier))
	}
}

func saveResult(ctx context.Context, w io.Writer, rec store.Record) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Save(ctx, rec); err != nil {
		return err
	}
	best, err := db.Best(ctx, rec.Song)
	if err != nil {
		return err
	}
	if best.ID == rec.ID {
		fmt.Fprintf(w, "new best for %s\n", rec.Song)
	} else {
		fmt.Fprintf(w, "best for %s is %s\n", rec.Song, humanize.Commaf(math.Round(best.Score)))
	}
	return nil
}
