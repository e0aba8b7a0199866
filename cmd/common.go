// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/spf13/cobra"

	"github.com/jcodagnone/leisureslots/geocode"
	"github.com/jcodagnone/leisureslots/matching"
	"github.com/jcodagnone/leisureslots/provider"
	"github.com/jcodagnone/leisureslots/provider/better"
	"github.com/jcodagnone/leisureslots/provider/everyoneactive"
	"github.com/jcodagnone/leisureslots/store"
	"github.com/jcodagnone/leisureslots/utils/httputils"
)

// Geocoder names accepted by --geocoder.
const (
	geocoderNominatim = "nominatim"
	geocoderGoogle    = "google"
	geocoderChain     = "chain"
)

type commonOptions struct {
	DbPath string

	HTTP httputils.ClientOptions

	Geocoder  string
	ProjectID string

	MatchThreshold float64
	NoiseTokens    []string

	EAEmail    string
	EAPassword string
}

var common = &commonOptions{}

func (o *commonOptions) userAgent() string {
	return fmt.Sprintf("leisureslots/%s (+https://github.com/jcodagnone/leisureslots)", Version)
}

func (o *commonOptions) httpOptions() *httputils.ClientOptions {
	ret := o.HTTP
	ret.UserAgent = o.userAgent()

	return &ret
}

// openStore opens the database under DbPath, creating both when missing.
func (o *commonOptions) openStore() (*store.Repository, error) {
	if err := os.MkdirAll(o.DbPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", o.DbPath, err)
	}

	db, err := sql.Open("duckdb", filepath.Join(o.DbPath, store.FileName))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	repo := store.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return repo, nil
}

func (o *commonOptions) matcher() (*matching.Matcher, error) {
	options := &matching.Options{Threshold: o.MatchThreshold}
	if len(o.NoiseTokens) > 0 {
		options.NoiseTokens = o.NoiseTokens
	}

	return matching.New(options)
}

// providers builds every known provider.
func (o *commonOptions) providers() (*provider.Registry, error) {
	m, err := o.matcher()
	if err != nil {
		return nil, err
	}

	ea, err := everyoneactive.New(&everyoneactive.Options{
		Email:    o.EAEmail,
		Password: o.EAPassword,
		Matcher:  m,
		HTTP:     o.httpOptions(),
	})
	if err != nil {
		return nil, err
	}

	return provider.NewRegistry(
		better.New(&better.Options{HTTP: o.httpOptions()}),
		ea,
	)
}

func (o *commonOptions) googleMaps(ctx context.Context) (*geocode.GoogleMaps, error) {
	apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if apiKey == "" {
		log.Println("GOOGLE_MAPS_API_KEY is not set. Attempting to retrieve via ADC...")

		var err error

		apiKey, err = geocode.APIKeyFromADC(ctx, o.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("retrieving API key via ADC: %w", err)
		}
	}

	client, err := httputils.NewClient(o.httpOptions())
	if err != nil {
		return nil, err
	}

	return geocode.NewGoogleMaps(apiKey, client)
}

// geocoder builds the geocoder named by --geocoder, cached by repo when
// not nil.
func (o *commonOptions) geocoder(ctx context.Context, repo *store.Repository) (geocode.Geocoder, error) {
	client, err := httputils.NewClient(o.httpOptions())
	if err != nil {
		return nil, err
	}

	nominatim, err := geocode.NewNominatim(&geocode.NominatimOptions{Client: client})
	if err != nil {
		return nil, err
	}

	var ret geocode.Geocoder

	switch strings.ToLower(o.Geocoder) {
	case geocoderNominatim:
		ret = nominatim
	case geocoderGoogle:
		if ret, err = o.googleMaps(ctx); err != nil {
			return nil, err
		}
	case geocoderChain:
		google, err := o.googleMaps(ctx)
		if err != nil {
			log.Printf("Google Maps unavailable, using Nominatim only: %v", err)

			ret = nominatim
		} else {
			ret = geocode.Chain{google, nominatim}
		}
	default:
		return nil, fmt.Errorf("unknown geocoder %q, expected one of %s, %s or %s",
			o.Geocoder, geocoderNominatim, geocoderGoogle, geocoderChain)
	}

	if repo != nil {
		ret = &geocode.Cached{Geocoder: ret, Cache: repo}
	}

	return ret, nil
}

func addDbPathFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&common.DbPath,
		"db-path",
		"db",
		"Directory holding the search history and geocoding cache",
	)
}

func addGeocoderFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&common.Geocoder,
		"geocoder",
		geocoderNominatim,
		"Geocoding service: nominatim, google or chain (google then nominatim)",
	)
	cmd.Flags().StringVar(
		&common.ProjectID,
		"project",
		"",
		"Google Cloud project holding the Maps API key, when it isn't in GOOGLE_MAPS_API_KEY",
	)
}

func addHTTPFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(
		&common.HTTP.EnableHTTPTrace,
		"trace-http",
		false,
		"Display HTTP requests-responses",
	)
	cmd.Flags().BoolVar(
		&common.HTTP.EnableHTTPBodyTrace,
		"trace-http-body",
		false,
		"Display HTTP requests-responses bodies",
	)
}

func addMatchFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(
		&common.MatchThreshold,
		"match-threshold",
		matching.DefaultThreshold,
		"Minimum similarity (0..1) for a centre name to match a booking site",
	)
	cmd.Flags().StringSliceVar(
		&common.NoiseTokens,
		"noise-token",
		nil,
		"Words ignored when comparing centre names, replaces the defaults",
	)
}
