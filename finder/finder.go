// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package finder runs a slot search across every provider: it lists and
// locates their centres, keeps the nearest ones, fetches their slots on a
// bounded pool of workers and merges everything into a single report.
package finder

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/geocode"
	"github.com/jcodagnone/leisureslots/provider"
	"github.com/jcodagnone/leisureslots/spatial"
)

// Defaults of Options.
const (
	DefaultMaxCentres = 5
	DefaultTimeout    = 10 * time.Second
)

// Recorder keeps the history of runs.
type Recorder interface {
	SaveRun(ctx context.Context, run *booking.Run) (int64, error)
}

// Options configures a Finder.
type Options struct {
	// Origin is where the search is made from, usually a postcode.
	Origin string
	// Activity is matched as a case insensitive substring of the
	// providers' activity names.
	Activity string

	// Nearest centres searched per provider. Negative means all of them.
	MaxCentres int

	// Centres searched at the same time. Zero means one per CPU.
	Workers int

	// Deadline of every geocoding and centre listing call.
	Timeout time.Duration

	// Directory the report file is written to. Empty means the working directory.
	OutDir string

	// Don't write the report file
	NoFile bool

	Providers *provider.Registry
	Geocoder  geocode.Geocoder

	// Optional
	Recorder Recorder

	Now func() time.Time
}

// Finder runs searches.
type Finder struct {
	options Options
	Metrics booking.OutcomeMetrics
}

// New validates options and creates a Finder.
func New(options *Options) (*Finder, error) {
	if options == nil {
		return nil, errors.New("missing options")
	}

	o := *options

	o.Origin = strings.TrimSpace(o.Origin)
	if o.Origin == "" {
		return nil, errors.New("missing origin")
	}

	o.Activity = strings.TrimSpace(o.Activity)
	if o.Activity == "" {
		return nil, errors.New("missing activity")
	}

	if o.Providers == nil || o.Providers.Len() == 0 {
		return nil, errors.New("no providers")
	}

	if o.Geocoder == nil {
		return nil, errors.New("missing geocoder")
	}

	if o.MaxCentres == 0 {
		o.MaxCentres = DefaultMaxCentres
	}

	if o.Workers < 0 {
		return nil, fmt.Errorf("invalid number of workers: %d", o.Workers)
	}

	o.Workers = cmp.Or(o.Workers, runtime.NumCPU())
	o.Timeout = cmp.Or(o.Timeout, DefaultTimeout)
	o.OutDir = cmp.Or(o.OutDir, ".")

	if o.Now == nil {
		o.Now = time.Now
	}

	return &Finder{options: o}, nil
}

// Run searches every provider in registration order. Provider faults only
// shrink the report; Run fails when the report file cannot be written.
func (f *Finder) Run(ctx context.Context) (*booking.Run, error) {
	started := f.options.Now()
	run := &booking.Run{
		Origin:    f.options.Origin,
		Activity:  f.options.Activity,
		StartedAt: started,
		Providers: f.options.Providers.Names(),
	}

	run.Home = f.locate(ctx, f.options.Origin)
	if run.Home == nil {
		log.Printf("Search - Home %q could not be located, distances will be unknown", f.options.Origin)
	}

	var partials []booking.Report

	err := f.options.Providers.Each(func(p provider.Provider) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcomes := f.search(ctx, p, run.Home)
		for _, o := range outcomes {
			run.Metrics.Add(o)
		}

		run.Outcomes = append(run.Outcomes, outcomes...)
		partials = append(partials, booking.ReportFromOutcomes(outcomes))

		return nil
	})
	if err != nil {
		log.Printf("Search - Interrupted: %v", err)
	}

	run.Report = booking.Merge(partials...)
	f.Metrics.Merge(&run.Metrics)

	if len(run.Report) == 0 {
		log.Printf("Search - No %s slots found near %q", f.options.Activity, f.options.Origin)
	}

	if !f.options.NoFile {
		path, err := booking.WriteReportFile(f.options.OutDir, run.Report, f.options.Origin, f.options.Activity)
		if err != nil {
			return run, fmt.Errorf("writing report: %w", err)
		}

		run.File = path
	}

	run.Duration = f.options.Now().Sub(started)

	if f.options.Recorder != nil {
		id, err := f.options.Recorder.SaveRun(ctx, run)
		if err != nil {
			log.Printf("Search - Saving run failed: %v", err)
		} else {
			run.ID = id
		}
	}

	log.Printf(
		"Search complete - %d centres reported: %d ok, %d not located, %d not found, %d without slots, %d failed.",
		len(run.Report),
		run.Metrics.OK,
		run.Metrics.GeocodeFailed,
		run.Metrics.NotFound,
		run.Metrics.Empty,
		run.Metrics.Failed,
	)

	return run, nil
}

// locate geocodes query, nil when it can't.
func (f *Finder) locate(ctx context.Context, query string) *spatial.Point {
	ctx, cancel := context.WithTimeout(ctx, f.options.Timeout)
	defer cancel()

	p, err := geocode.Point(ctx, f.options.Geocoder, query)
	if err != nil {
		log.Printf("Search - Geocoding %q failed: %v", query, err)

		return nil
	}

	return p
}

// centres lists and locates the centres of p, nearest first.
func (f *Finder) centres(ctx context.Context, p provider.Provider, home *spatial.Point) ([]booking.Centre, error) {
	log.Printf("Search - Retrieving %s centres near %q", p.Company(), f.options.Origin)

	listCtx, cancel := context.WithTimeout(ctx, f.options.Timeout)
	defer cancel()

	candidates, err := p.CandidateCentres(listCtx, f.options.Origin)
	if err != nil {
		return nil, err
	}

	centres := make([]booking.Centre, 0, len(candidates))

	for _, c := range candidates {
		if c.Point == nil && home != nil {
			c.Point = f.locate(ctx, cmp.Or(c.Address, c.Name))
		}

		centres = append(centres, booking.Locate(c, p.Company(), home))
	}

	limit := f.options.MaxCentres
	if limit < 0 {
		limit = 0
	}

	return booking.Rank(centres, limit), nil
}

// search fetches the slots of the nearest centres of p. Outcomes keep the
// rank order.
func (f *Finder) search(ctx context.Context, p provider.Provider, home *spatial.Point) []booking.Outcome {
	centres, err := f.centres(ctx, p, home)
	if err != nil {
		log.Printf("Search - %s unavailable: %v", p.Company(), err)

		return nil
	}

	n := len(centres)
	outcomes := make([]booking.Outcome, n)

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(n,
			progressbar.OptionSetDescription("Searching "+p.Company()),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	var wg sync.WaitGroup

	semaphore := make(chan struct{}, f.options.Workers)

	for i, c := range centres {
		wg.Add(1)

		go func(i int, c booking.Centre) {
			defer wg.Done()
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			activities, err := p.ActivitySlots(ctx, c, f.options.Activity)
			outcomes[i] = booking.NewOutcome(c, activities, booking.Wrap(p.Name(), c.Name, err))

			if bar == nil {
				log.Printf("Search - %s %q: %s", p.Company(), c.Name, outcomes[i].Kind)
			} else if err := bar.Add(1); err != nil {
				log.Printf("Search - Updating progress bar: %v", err)
			}
		}(i, c)
	}

	wg.Wait()

	for _, o := range outcomes {
		switch o.Kind {
		case booking.OutcomeNotFound:
			log.Printf("Search - %q cannot be found: %v", o.Centre.Name, o.Err)
		case booking.OutcomeEmpty:
			log.Printf("Search - %s is not available at %q", f.options.Activity, o.Centre.Name)
		case booking.OutcomeFailed:
			log.Printf("Search - %q failed: %v", o.Centre.Name, o.Err)
		case booking.OutcomeGeocodeFailed:
			log.Printf("Search - %q could not be located", o.Centre.Name)
		case booking.OutcomeOK:
		}
	}

	return outcomes
}
