// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jcodagnone/leisureslots/finder"
)

var (
	searchOptions   = &finder.Options{}
	searchProviders []string
	searchNoStore   bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Collects the free slots of an activity near a postcode",
	Long: `Searches the nearest centres of every provider for free slots of the
activity and writes them to "Available <activity> slots.txt".

$ leisureslots search --postcode "KT20 5FH" --activity badminton
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		common.HTTP.Timeout = searchOptions.Timeout

		registry, err := common.providers()
		if err != nil {
			return fmt.Errorf("initializing providers: %w", err)
		}

		if len(searchProviders) > 0 {
			if registry, err = registry.Select(searchProviders...); err != nil {
				return err
			}
		}

		if !searchNoStore {
			repo, err := common.openStore()
			if err != nil {
				return err
			}
			defer repo.DB().Close()

			searchOptions.Recorder = repo

			if searchOptions.Geocoder, err = common.geocoder(ctx, repo); err != nil {
				return err
			}
		} else if searchOptions.Geocoder, err = common.geocoder(ctx, nil); err != nil {
			return err
		}

		searchOptions.Providers = registry

		return runSearch(ctx, searchOptions)
	},
}

func runSearch(ctx context.Context, options *finder.Options) error {
	f, err := finder.New(options)
	if err != nil {
		return err
	}

	run, err := f.Run(ctx)
	if err != nil {
		return err
	}

	if run.File != "" {
		fmt.Println(run.File)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(
		&searchOptions.Origin,
		"postcode",
		os.Getenv("POSTCODE"),
		"Where to search from, defaults to $POSTCODE",
	)
	searchCmd.Flags().StringVar(
		&searchOptions.Activity,
		"activity",
		os.Getenv("ACTIVITY"),
		"Activity to search, matched as a substring (badminton, squash…), defaults to $ACTIVITY",
	)
	searchCmd.Flags().IntVar(
		&searchOptions.MaxCentres,
		"max-centres",
		finder.DefaultMaxCentres,
		"Nearest centres searched per provider, negative for all of them",
	)
	searchCmd.Flags().IntVar(
		&searchOptions.Workers,
		"workers",
		0,
		"Centres searched at the same time. Defaults to the number of CPUs",
	)
	searchCmd.Flags().DurationVar(
		&searchOptions.Timeout,
		"timeout",
		finder.DefaultTimeout,
		"Timeout of every request",
	)
	searchCmd.Flags().StringVar(
		&searchOptions.OutDir,
		"out",
		".",
		"Directory the report is written to",
	)
	searchCmd.Flags().BoolVar(
		&searchOptions.NoFile,
		"no-file",
		false,
		"Don't write the report file",
	)
	searchCmd.Flags().StringSliceVar(
		&searchProviders,
		"provider",
		nil,
		"Only search these providers (see `providers list`)",
	)
	searchCmd.Flags().BoolVar(
		&searchNoStore,
		"no-store",
		false,
		"Don't record the search nor use the geocoding cache",
	)
	searchCmd.Flags().StringVar(
		&common.EAEmail,
		"ea-email",
		os.Getenv("EA_EMAIL"),
		"Everyone Active account, defaults to $EA_EMAIL",
	)
	searchCmd.Flags().StringVar(
		&common.EAPassword,
		"ea-password",
		"",
		"Everyone Active password, defaults to $EA_PASSWORD",
	)

	searchCmd.PreRun = func(_ *cobra.Command, _ []string) {
		if common.EAPassword == "" {
			common.EAPassword = os.Getenv("EA_PASSWORD")
		}
	}

	addDbPathFlag(searchCmd)
	addGeocoderFlags(searchCmd)
	addHTTPFlags(searchCmd)
	addMatchFlags(searchCmd)
}
