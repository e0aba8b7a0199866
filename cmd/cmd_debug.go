// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jcodagnone/leisureslots/geocode"
	"github.com/jcodagnone/leisureslots/store"
)

func readLines(prompt string) ([]string, error) {
	if isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Fprintln(os.Stderr, prompt)
	}

	var ret []string

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			ret = append(ret, line)
		}
	}

	return ret, scanner.Err()
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugMatchCmd = &cobra.Command{
	Use:   "match <centre name>",
	Short: "Scores booking site names against a centre name",
	Long: `Reads one candidate per line and prints its similarity to the centre name,
marking the one that would be chosen.

$ printf 'Tadworth Community Centre\nEpsom & Ewell\n' | leisureslots debug match "Tadworth Leisure Centre"
*	0.87	Tadworth Community Centre
 	0.35	Epsom & Ewell
`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		m, err := common.matcher()
		if err != nil {
			return err
		}

		candidates, err := readLines("Enter candidate names, one per line…")
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		best, found := m.FindBestMatch(args[0], candidates)

		fmt.Printf("#\t%s\n", m.Normalize(args[0]))

		for i, c := range candidates {
			mark := " "
			if found && i == best.Index {
				mark = "*"
			}

			fmt.Printf("%s\t%.2f\t%s\n", mark, m.Score(args[0], c), c)
		}

		if !found {
			fmt.Fprintf(os.Stderr, "No candidate reaches %.2f\n", m.Threshold())
		}

		return nil
	},
}

var debugGeocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocodes one query per line",
	Long: `Reads a postcode or address per line and prints the geocoding result.

$ echo "KT20 5FH" | leisureslots debug geocode
KT20 5FH		{"point":{"lat":51.28,"lng":-0.23},"confidence":"high",…}
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var repo *store.Repository

		if !debugNoStore {
			var err error

			if repo, err = common.openStore(); err != nil {
				return err
			}
			defer repo.DB().Close()
		}

		g, err := common.geocoder(cmd.Context(), repo)
		if err != nil {
			return err
		}

		queries, err := readLines("Enter postcodes or addresses, one per line…")
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		return geocodeAll(cmd.Context(), g, queries, cmd.OutOrStdout())
	},
}

var debugNoStore bool

func geocodeAll(ctx context.Context, g geocode.Geocoder, queries []string, out io.Writer) error {
	for _, q := range queries {
		result, err := g.Geocode(ctx, q)
		if err != nil {
			fmt.Fprintf(out, "%s\t%q\n", q, err)

			continue
		}

		s, err := json.Marshal(result)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s\t\t%s\n", q, s)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugMatchCmd)
	debugCmd.AddCommand(debugGeocodeCmd)

	addMatchFlags(debugMatchCmd)

	debugGeocodeCmd.Flags().BoolVar(&debugNoStore, "no-store", false, "Don't use the geocoding cache")
	addDbPathFlag(debugGeocodeCmd)
	addGeocoderFlags(debugGeocodeCmd)
	addHTTPFlags(debugGeocodeCmd)
}
