package main

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/August13742/Homebrew-Karaoke/store"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of sessions to show, 0 for all")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [song]",
	Short: "Lists past sessions, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var song string
		if len(args) == 1 {
			song = args[0]
		}

		db, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		recs, err := db.List(cmd.Context(), song, historyLimit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no sessions yet")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tSONG\tKEY\tSCORE\tACCURACY\tPERFECT\tGOOD\tOK\tMISS")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%+d\t%s\t%.1f%%\t%d\t%d\t%d\t%d\n",
				humanize.Time(r.CreatedAt), r.Song, r.KeyShift,
				humanize.Commaf(math.Round(r.Score)), 100*r.Accuracy,
				r.Perfect, r.Good, r.Ok, r.Miss)
		}
		return tw.Flush()
	},
}
