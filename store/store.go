// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package store keeps the history of searches and the geocoding cache in
// DuckDB.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/geocode"
	"github.com/jcodagnone/leisureslots/spatial"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// FileName is the name of the database file under the data directory.
const FileName = "leisureslots.duckdb"

// Repository is the DuckDB store.
type Repository struct {
	db *sql.DB
}

var (
	_ geocode.Cache = (*Repository)(nil)
)

// NewRepository wraps db. CreateSchema must be called on new databases.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying database connection.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// CreateSchema creates the tables that don't exist yet.
func (r *Repository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS runs_seq START 1;

		CREATE TABLE IF NOT EXISTS runs (
			id BIGINT PRIMARY KEY DEFAULT nextval('runs_seq'),
			origin VARCHAR NOT NULL,
			activity VARCHAR NOT NULL,
			home_lat DOUBLE,
			home_lng DOUBLE,
			started_at TIMESTAMPTZ NOT NULL,
			duration_ms BIGINT NOT NULL,
			providers VARCHAR NOT NULL,
			ok INTEGER NOT NULL,
			geocode_failed INTEGER NOT NULL,
			not_found INTEGER NOT NULL,
			empty INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			file VARCHAR
		);

		CREATE TABLE IF NOT EXISTS centres (
			run_id BIGINT NOT NULL,
			seq INTEGER NOT NULL,
			name VARCHAR NOT NULL,
			company VARCHAR NOT NULL,
			address VARCHAR,
			ref VARCHAR,
			outcome VARCHAR NOT NULL,
			error VARCHAR,
			distance_km DOUBLE,
			lat DOUBLE,
			lng DOUBLE,
			h3_res5 BIGINT,
			h3_res6 BIGINT,
			h3_res7 BIGINT,
			h3_res8 BIGINT
		);

		CREATE TABLE IF NOT EXISTS report_centres (
			run_id BIGINT NOT NULL,
			name VARCHAR NOT NULL,
			company VARCHAR NOT NULL,
			address VARCHAR NOT NULL,
			distance_km DOUBLE,
			PRIMARY KEY (run_id, name)
		);

		CREATE TABLE IF NOT EXISTS slots (
			run_id BIGINT NOT NULL,
			centre VARCHAR NOT NULL,
			activity VARCHAR NOT NULL,
			date VARCHAR NOT NULL,
			seq INTEGER NOT NULL,
			time_range VARCHAR NOT NULL,
			price VARCHAR NOT NULL,
			spaces INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS geocode_cache (
			query VARCHAR PRIMARY KEY,
			lat DOUBLE NOT NULL,
			lng DOUBLE NOT NULL,
			confidence VARCHAR,
			provider VARCHAR,
			display_name VARCHAR,
			created_at TIMESTAMPTZ NOT NULL
		);
	`)

	return err
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}

	return booking.Float64(v.Float64)
}

func nve(v string) any {
	if v == "" {
		return nil
	}

	return v
}

func errString(err error) any {
	if err == nil {
		return nil
	}

	return err.Error()
}

// SaveRun stores run and returns its id.
func (r *Repository) SaveRun(ctx context.Context, run *booking.Run) (id int64, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("failed to rollback run transaction: %v", err)
		}
	}()

	var homeLat, homeLng sql.NullFloat64
	if run.Home != nil {
		homeLat = sql.NullFloat64{Float64: run.Home.Lat, Valid: true}
		homeLng = sql.NullFloat64{Float64: run.Home.Lng, Valid: true}
	}

	m := run.Metrics

	err = tx.QueryRowContext(ctx, `
		INSERT INTO runs (
			origin, activity, home_lat, home_lng, started_at, duration_ms, providers,
			ok, geocode_failed, not_found, empty, failed, file
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		run.Origin,
		run.Activity,
		homeLat,
		homeLng,
		run.StartedAt,
		run.Duration.Milliseconds(),
		strings.Join(run.Providers, ","),
		m.OK, m.GeocodeFailed, m.NotFound, m.Empty, m.Failed,
		nve(run.File),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}

	if err := saveCentres(ctx, tx, id, run.Outcomes); err != nil {
		return 0, err
	}

	if err := saveReport(ctx, tx, id, run.Report); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}

	return id, nil
}

func saveCentres(ctx context.Context, tx *sql.Tx, runID int64, outcomes []booking.Outcome) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO centres (
			run_id, seq, name, company, address, ref, outcome, error, distance_km,
			lat, lng, h3_res5, h3_res6, h3_res7, h3_res8
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing centres statement: %w", err)
	}
	defer stmt.Close()

	for i, o := range outcomes {
		c := o.Centre

		var lat, lng any

		cells := make([]any, spatial.MaxH3Resolution-spatial.MinH3Resolution+1)

		if c.Point != nil {
			lat, lng = c.Point.Lat, c.Point.Lng

			h3Cells, err := c.Point.H3Cells()
			if err != nil {
				return fmt.Errorf("indexing centre %q: %w", c.Name, err)
			}

			for res, cell := range h3Cells {
				cells[res-spatial.MinH3Resolution] = int64(cell)
			}
		}

		_, err := stmt.ExecContext(ctx,
			runID,
			i,
			c.Name,
			c.Company,
			nve(c.Address),
			nve(c.Ref),
			o.Kind.String(),
			errString(o.Err),
			nullFloat(c.DistanceKm),
			lat,
			lng,
			cells[0], cells[1], cells[2], cells[3],
		)
		if err != nil {
			return fmt.Errorf("inserting centre %q: %w", c.Name, err)
		}
	}

	return nil
}

func saveReport(ctx context.Context, tx *sql.Tx, runID int64, report booking.Report) error {
	centreStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_centres (run_id, name, company, address, distance_km) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing report statement: %w", err)
	}
	defer centreStmt.Close()

	slotStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO slots (run_id, centre, activity, date, seq, time_range, price, spaces)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing slots statement: %w", err)
	}
	defer slotStmt.Close()

	for name, cr := range report {
		if _, err := centreStmt.ExecContext(ctx, runID, name, cr.Company, cr.Address, nullFloat(cr.DistanceKm)); err != nil {
			return fmt.Errorf("inserting report centre %q: %w", name, err)
		}

		for activity, dates := range cr.Activities {
			for date, slots := range dates {
				for i, s := range slots {
					if _, err := slotStmt.ExecContext(ctx,
						runID, name, activity, date, i, s.TimeRange, s.Price, s.Spaces,
					); err != nil {
						return fmt.Errorf("inserting slot of %q: %w", name, err)
					}
				}
			}
		}
	}

	return nil
}

const runColumns = `
	id, origin, activity, home_lat, home_lng, started_at, duration_ms, providers,
	ok, geocode_failed, not_found, empty, failed, COALESCE(file, '')
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*booking.Run, error) {
	var (
		run              booking.Run
		homeLat, homeLng sql.NullFloat64
		durationMs       int64
		providers        string
	)

	m := &run.Metrics

	err := row.Scan(
		&run.ID, &run.Origin, &run.Activity, &homeLat, &homeLng, &run.StartedAt, &durationMs, &providers,
		&m.OK, &m.GeocodeFailed, &m.NotFound, &m.Empty, &m.Failed, &run.File,
	)
	if err != nil {
		return nil, err
	}

	if homeLat.Valid && homeLng.Valid {
		run.Home = &spatial.Point{Lat: homeLat.Float64, Lng: homeLng.Float64}
	}

	run.Duration = time.Duration(durationMs) * time.Millisecond
	if providers != "" {
		run.Providers = strings.Split(providers, ",")
	}

	return &run, nil
}

// ListRuns returns the latest runs first, without their reports.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]*booking.Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var ret []*booking.Run

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}

		ret = append(ret, run)
	}

	return ret, rows.Err()
}

// GetRun returns the run with its report and the centres searched.
func (r *Repository) GetRun(ctx context.Context, id int64) (*booking.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("querying run %d: %w", id, err)
	}

	if run.Outcomes, err = r.loadOutcomes(ctx, id); err != nil {
		return nil, err
	}

	if run.Report, err = r.loadReport(ctx, id); err != nil {
		return nil, err
	}

	return run, nil
}

// LatestRun returns the last run saved.
func (r *Repository) LatestRun(ctx context.Context) (*booking.Run, error) {
	var id int64

	err := r.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	} else if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}

	return r.GetRun(ctx, id)
}

func (r *Repository) loadOutcomes(ctx context.Context, runID int64) ([]booking.Outcome, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, company, COALESCE(address, ''), COALESCE(ref, ''), outcome, COALESCE(error, ''),
			distance_km, lat, lng
		FROM centres
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying centres of run %d: %w", runID, err)
	}
	defer rows.Close()

	var ret []booking.Outcome

	for rows.Next() {
		var (
			o                  booking.Outcome
			kind, message      string
			distance, lat, lng sql.NullFloat64
		)

		c := &o.Centre
		if err := rows.Scan(&c.Name, &c.Company, &c.Address, &c.Ref, &kind, &message, &distance, &lat, &lng); err != nil {
			return nil, fmt.Errorf("scanning centre: %w", err)
		}

		o.Kind, _ = booking.ParseOutcomeKind(kind)
		c.DistanceKm = floatPtr(distance)

		if lat.Valid && lng.Valid {
			c.Point = &spatial.Point{Lat: lat.Float64, Lng: lng.Float64}
		}

		if message != "" {
			o.Err = errors.New(message)
		}

		ret = append(ret, o)
	}

	return ret, rows.Err()
}

func (r *Repository) loadReport(ctx context.Context, runID int64) (booking.Report, error) {
	report := booking.Report{}

	rows, err := r.db.QueryContext(ctx, `
		SELECT name, company, address, distance_km FROM report_centres WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying report of run %d: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name     string
			cr       = &booking.CentreReport{Activities: booking.Activities{}}
			distance sql.NullFloat64
		)

		if err := rows.Scan(&name, &cr.Company, &cr.Address, &distance); err != nil {
			return nil, fmt.Errorf("scanning report centre: %w", err)
		}

		cr.DistanceKm = floatPtr(distance)
		report[name] = cr
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	slots, err := r.db.QueryContext(ctx, `
		SELECT centre, activity, date, time_range, price, spaces
		FROM slots
		WHERE run_id = ?
		ORDER BY centre, activity, date, seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying slots of run %d: %w", runID, err)
	}
	defer slots.Close()

	for slots.Next() {
		var (
			centre, activity, date string
			s                      booking.Slot
		)

		if err := slots.Scan(&centre, &activity, &date, &s.TimeRange, &s.Price, &s.Spaces); err != nil {
			return nil, fmt.Errorf("scanning slot: %w", err)
		}

		cr, ok := report[centre]
		if !ok {
			continue
		}

		dates := cr.Activities[activity]
		if dates == nil {
			dates = booking.Dates{}
			cr.Activities[activity] = dates
		}

		dates[date] = append(dates[date], s)
	}

	return report, slots.Err()
}
