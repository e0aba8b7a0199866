// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run id]",
	Short: "Lists the past searches, or prints the report of one of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := common.openStore()
		if err != nil {
			return err
		}
		defer repo.DB().Close()

		ctx := cmd.Context()

		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}

			run, err := repo.GetRun(ctx, id)
			if err != nil {
				return err
			}

			return booking.Render(cmd.OutOrStdout(), run.Report, run.Origin, run.Activity)
		}

		runs, err := repo.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			return store.ErrRunNotFound
		}

		printRuns(runs)

		return nil
	},
}

func pad(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

func printRuns(runs []*booking.Run) {
	a, b, c, d, e := strings.Repeat("─", 5), strings.Repeat("─", 16), strings.Repeat("─", 10), strings.Repeat("─", 14), strings.Repeat("─", 20)
	fmt.Printf("╭─%s─┬─%s─┬─%s─┬─%s─┬─%s─╮\n", a, b, c, d, e)
	fmt.Printf("│ %s │ %s │ %s │ %s │ %s │\n", pad("Id", 5), pad("Started", 16), pad("Postcode", 10), pad("Activity", 14), pad("Centres ok/failed", 20))
	fmt.Printf("├─%s─┼─%s─┼─%s─┼─%s─┼─%s─┤\n", a, b, c, d, e)

	for _, r := range runs {
		m := r.Metrics
		fmt.Printf("│ %s │ %s │ %s │ %s │ %s │\n",
			pad(strconv.FormatInt(r.ID, 10), 5),
			pad(r.StartedAt.Local().Format("2006-01-02 15:04"), 16),
			pad(r.Origin, 10),
			pad(r.Activity, 14),
			pad(fmt.Sprintf("%d/%d", m.OK+m.GeocodeFailed, m.NotFound+m.Failed), 20),
		)
	}

	fmt.Printf("╰─%s─┴─%s─┴─%s─┴─%s─┴─%s─╯\n", a, b, c, d, e)
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of searches listed")
	addDbPathFlag(historyCmd)
}
