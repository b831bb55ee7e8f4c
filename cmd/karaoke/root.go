package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/August13742/Homebrew-Karaoke/logging"
	"github.com/August13742/Homebrew-Karaoke/session"
	"github.com/August13742/Homebrew-Karaoke/store"
	"github.com/August13742/Homebrew-Karaoke/timeline"
)

var (
	logLevel      string
	configPath    string
	dbPath        string
	midiTrack     int
	midiChannel   int
	eventDuration float64
	keyShift      int
)

var rootCmd = &cobra.Command{
	Use:          "karaoke",
	Short:        "Pitch detection and scoring for karaoke",
	Long:         `Detects the sung pitch from a microphone or a recording and scores it against a melody chart.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logging.SetLevel(level)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flags.StringVarP(&configPath, "config", "c", "", "JSON session config; unset keys keep their defaults")
	flags.StringVar(&dbPath, "db", store.DefaultDBFile, "score history database")
	flags.IntVar(&midiTrack, "track", -1, "MIDI track holding the melody, -1 for all")
	flags.IntVar(&midiChannel, "channel", -1, "MIDI channel holding the melody, -1 for all")
	flags.Float64Var(&eventDuration, "event-duration", timeline.DefaultEventDuration, "seconds each JSON pitch event lasts")
	flags.IntVarP(&keyShift, "key-shift", "k", 0, "transpose the melody by this many semitones")
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}

func loadSessionConfig(cmd *cobra.Command) (session.Config, error) {
	cfg := session.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = session.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if cmd.Flags().Changed("key-shift") {
		cfg.Scoring.KeyShift = keyShift
	}
	return cfg, nil
}

func loadChart(path string) (*timeline.Timeline, error) {
	return timeline.LoadFile(path, eventDuration, timeline.SMFOptions{Track: midiTrack, Channel: midiChannel})
}

// songName derives a history key from a chart path.
func songName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
