// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package server is a local, read-only web view over the stored runs.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/spatial"
	"github.com/jcodagnone/leisureslots/store"
)

// DefaultAddr only listens on the loopback interface.
const DefaultAddr = "localhost:8080"

// RunRepository is the part of the store the server reads.
type RunRepository interface {
	ListRuns(ctx context.Context, limit int) ([]*booking.Run, error)
	GetRun(ctx context.Context, id int64) (*booking.Run, error)
	LatestRun(ctx context.Context) (*booking.Run, error)
	CentresNear(ctx context.Context, p spatial.Point, k int) ([]booking.Centre, error)
}

type Server struct {
	repo RunRepository
}

func NewServer(repo RunRepository) *Server {
	return &Server{repo: repo}
}

// Handler returns the router serving every route.
func (s *Server) Handler() *gin.Engine {
	r := gin.Default()

	r.GET("/", s.latestView)
	r.GET("/api/runs", s.listRuns)
	r.GET("/api/runs/:id", s.getRun)
	r.GET("/api/runs/:id/text", s.runText)
	r.GET("/api/centres/near", s.centresNear)

	return r
}

func (s *Server) Run(addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	return s.Handler().Run(addr)
}

func (s *Server) renderRun(ctx *gin.Context, run *booking.Run) {
	ctx.String(http.StatusOK, booking.RenderString(run.Report, run.Origin, run.Activity))
}

func (s *Server) latestView(ctx *gin.Context) {
	run, err := s.repo.LatestRun(ctx.Request.Context())
	if errors.Is(err, store.ErrRunNotFound) {
		ctx.String(http.StatusNotFound, "No searches yet. Run `leisureslots search` first.\n")

		return
	} else if err != nil {
		ctx.String(http.StatusInternalServerError, err.Error())

		return
	}

	s.renderRun(ctx, run)
}

func (s *Server) listRuns(ctx *gin.Context) {
	limit := 50

	if l := ctx.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})

			return
		}

		limit = n
	}

	runs, err := s.repo.ListRuns(ctx.Request.Context(), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if runs == nil {
		runs = []*booking.Run{}
	}

	ctx.JSON(http.StatusOK, runs)
}

// lookupRun answers the error itself and returns nil when the run can't be
// served.
func (s *Server) lookupRun(ctx *gin.Context) *booking.Run {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})

		return nil
	}

	run, err := s.repo.GetRun(ctx.Request.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		return nil
	} else if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return nil
	}

	return run
}

// RunResponse is a run with its centres in search order.
type RunResponse struct {
	*booking.Run
	Centres []CentreOutcome `json:"centres"`
	Entries []booking.Entry `json:"entries"`
}

// CentreOutcome is how a searched centre fared.
type CentreOutcome struct {
	booking.Centre
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) getRun(ctx *gin.Context) {
	run := s.lookupRun(ctx)
	if run == nil {
		return
	}

	resp := RunResponse{Run: run, Centres: []CentreOutcome{}, Entries: run.Report.Entries()}

	for _, o := range run.Outcomes {
		c := CentreOutcome{Centre: o.Centre, Outcome: o.Kind.String()}
		if o.Err != nil {
			c.Error = o.Err.Error()
		}

		resp.Centres = append(resp.Centres, c)
	}

	ctx.JSON(http.StatusOK, resp)
}

func (s *Server) runText(ctx *gin.Context) {
	if run := s.lookupRun(ctx); run != nil {
		s.renderRun(ctx, run)
	}
}

func (s *Server) centresNear(ctx *gin.Context) {
	lat, errLat := strconv.ParseFloat(ctx.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(ctx.Query("lng"), 64)

	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng query parameters are required"})

		return
	}

	k := 3

	if v := ctx.Query("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > store.MaxRings {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid k parameter"})

			return
		}

		k = n
	}

	centres, err := s.repo.CentresNear(ctx.Request.Context(), spatial.Point{Lat: lat, Lng: lng}, k)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if centres == nil {
		centres = []booking.Centre{}
	}

	ctx.JSON(http.StatusOK, centres)
}
