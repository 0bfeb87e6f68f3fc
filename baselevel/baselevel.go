/*
Copyright © 2026 the LandEvo authors.
This file is part of LandEvo.

LandEvo is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

LandEvo is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with LandEvo.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package baselevel adjusts the elevation of designated boundary nodes
// through time.
//
// A handler is driven either by a constant lowering rate or by a
// history file giving cumulative elevation change since the start of
// the run, and it applies identical changes to the bedrock elevation
// field when that field exists, so that externally forced lowering
// never changes the regolith thickness.
package baselevel

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/spatialmodel/landevo"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// Handler is the interface shared by the baselevel handlers. The outer
// time-stepping loop calls RunOneStep once per simulation step; all
// effects are through mutation of the grid's elevation fields.
type Handler interface {
	RunOneStep(dt float64)
}

// ConfigError indicates an invalid combination of lowering options.
// It is fatal at construction time and never recoverable.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "baselevel: " + e.Reason }

// ResourceError indicates that a lowering history file could not be
// read. It is fatal at construction time and never recoverable.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("baselevel: reading lowering history %s: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Opts configures the lowering forcing of a handler. Exactly one of
// LoweringRate and LoweringFilePath must be set.
type Opts struct {
	// LoweringRate is a constant rate of elevation change [m per model
	// time unit]. Negative values mean the driven nodes lower.
	LoweringRate *float64

	// LoweringFilePath names a plain-text table with one header row
	// followed by comma-delimited rows of `time, elevation change`,
	// where the change is cumulative since the onset of the run.
	// Times must be strictly increasing.
	LoweringFilePath string

	// ModelEndElevation optionally rescales a lowering history so the
	// driven nodes end the run at this elevation, preserving the shape
	// of the history curve. It is ignored in constant-rate mode.
	ModelEndElevation *float64
}

// source resolves, once at construction, how elevation change through
// time is produced. The mask-side sign convention is folded in here so
// the handlers contain no sign arithmetic of their own.
type source struct {
	sign float64

	// constant-rate mode
	constant bool
	rate     float64

	// history mode: traj maps model time to target elevation.
	// Queries outside the loaded time span clamp to the nearest
	// endpoint of the table.
	traj interp.PiecewiseLinear
}

// newSource validates o and builds the lowering source. startElevation
// is the driven nodes' elevation at construction; the history
// trajectory is anchored to it.
func newSource(o Opts, sign, startElevation float64) (*source, error) {
	switch {
	case o.LoweringRate == nil && o.LoweringFilePath == "":
		return nil, &ConfigError{"one of LoweringRate and LoweringFilePath is required"}
	case o.LoweringRate != nil && o.LoweringFilePath != "":
		return nil, &ConfigError{"both LoweringRate and LoweringFilePath were provided; provide only one"}
	case o.LoweringRate != nil:
		return &source{sign: sign, constant: true, rate: *o.LoweringRate}, nil
	}

	times, changes, err := readHistory(o.LoweringFilePath)
	if err != nil {
		return nil, err
	}

	scale := 1.0
	if o.ModelEndElevation != nil {
		scale = math.Abs(startElevation-*o.ModelEndElevation) /
			math.Abs(changes[0]-changes[len(changes)-1])
	}
	elevs := make([]float64, len(changes))
	for i, c := range changes {
		elevs[i] = startElevation + scale*c
	}

	s := &source{sign: sign}
	if err := s.traj.Fit(times, elevs); err != nil {
		return nil, &ConfigError{fmt.Sprintf("fitting lowering history: %v", err)}
	}
	return s, nil
}

// rateDelta returns the elevation change over a step of duration dt in
// constant-rate mode.
func (s *source) rateDelta(dt float64) float64 { return s.sign * s.rate * dt }

// trajectoryDelta returns the change that must be subtracted from
// current to move it onto the target trajectory at model time t. It
// must be evaluated with the pre-mutation elevation, because the
// bedrock field needs the identical delta before the topography is
// overwritten.
func (s *source) trajectoryDelta(current, t float64) float64 {
	return s.sign * (current - s.traj.Predict(t))
}

// readHistory loads a two-column lowering history table, skipping the
// header row.
func readHistory(path string) (times, changes []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &ResourceError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true
	if _, err := r.Read(); err != nil { // header
		return nil, nil, &ResourceError{Path: path, Err: err}
	}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, nil, &ResourceError{Path: path, Err: err}
		}
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, nil, &ResourceError{Path: path, Err: err}
		}
		c, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, nil, &ResourceError{Path: path, Err: err}
		}
		times = append(times, t)
		changes = append(changes, c)
	}
	if len(times) < 2 {
		return nil, nil, &ConfigError{fmt.Sprintf("lowering history %s needs at least 2 samples, found %d", path, len(times))}
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return nil, nil, &ConfigError{fmt.Sprintf("lowering history %s: times must be strictly increasing (row %d)", path, i+1)}
		}
	}
	return times, changes, nil
}

// SingleNodeHandler controls the elevation of a single open boundary
// node, referred to as the outlet.
type SingleNodeHandler struct {
	node      int
	z         []float64 // topographic elevation, borrowed from the grid
	rock      []float64 // bedrock elevation; nil when the field is absent
	src       *source
	modelTime float64
}

// NewSingleNodeHandler creates a handler that drives outletNode's
// elevation according to o. The grid must already have a
// topographic elevation field; the bedrock elevation field is resolved
// once here and tracked for the handler's lifetime if present.
func NewSingleNodeHandler(g *landevo.RasterGrid, outletNode int, o Opts) (*SingleNodeHandler, error) {
	z, err := g.Field(landevo.TopographicElevation)
	if err != nil {
		return nil, &ConfigError{err.Error()}
	}
	if outletNode < 0 || outletNode >= g.NumNodes() {
		return nil, &ConfigError{fmt.Sprintf("outlet node %d is outside the grid", outletNode)}
	}
	src, err := newSource(o, 1, z[outletNode])
	if err != nil {
		return nil, err
	}
	rock, _ := g.Field(landevo.BedrockElevation)
	return &SingleNodeHandler{
		node: outletNode,
		z:    z,
		rock: rock,
		src:  src,
	}, nil
}

// RunOneStep updates the outlet elevation for a step of duration dt.
// The handler clock is incremented after the field mutation, so a
// history trajectory is evaluated at the time coordinate of the
// beginning of the step.
func (h *SingleNodeHandler) RunOneStep(dt float64) {
	if h.src.constant {
		delta := h.src.rateDelta(dt)
		h.z[h.node] += delta
		if h.rock != nil {
			h.rock[h.node] += delta
		}
	} else {
		// The change needed to land on the trajectory, from the
		// pre-mutation elevation. Bedrock gets it first.
		delta := h.src.trajectoryDelta(h.z[h.node], h.modelTime)
		if h.rock != nil {
			h.rock[h.node] -= delta
		}
		h.z[h.node] -= delta
	}
	h.modelTime += dt
}

// ElapsedTime returns the total model time the handler has advanced.
func (h *SingleNodeHandler) ElapsedTime() float64 { return h.modelTime }

// ClosedNodeHandler controls the elevation of every node on one side
// of the grid's core/non-core classification. The node set is fixed
// from the status snapshot taken at construction; later status changes
// are not observed.
type ClosedNodeHandler struct {
	nodes     []int
	z         []float64
	rock      []float64
	src       *source
	modelTime float64
}

// NewClosedNodeHandler creates a handler driving either all non-core
// nodes (modifyClosedNodes true, lowering directive applied directly)
// or all core nodes (modifyClosedNodes false, directive applied with
// opposite sign, so that a "lowering" of the boundary becomes a raising
// of the interior).
func NewClosedNodeHandler(g *landevo.RasterGrid, modifyClosedNodes bool, o Opts) (*ClosedNodeHandler, error) {
	z, err := g.Field(landevo.TopographicElevation)
	if err != nil {
		return nil, &ConfigError{err.Error()}
	}

	var nodes []int
	var sign float64
	if modifyClosedNodes {
		sign = 1
		for i, s := range g.Status {
			if s != landevo.CoreNode {
				nodes = append(nodes, i)
			}
		}
	} else {
		sign = -1
		for i, s := range g.Status {
			if s == landevo.CoreNode {
				nodes = append(nodes, i)
			}
		}
	}
	if len(nodes) == 0 {
		return nil, &ConfigError{"no nodes to drive: the selected status class is empty"}
	}

	vals := make([]float64, len(nodes))
	for i, n := range nodes {
		vals[i] = z[n]
	}
	src, err := newSource(o, sign, stat.Mean(vals, nil))
	if err != nil {
		return nil, err
	}
	rock, _ := g.Field(landevo.BedrockElevation)
	return &ClosedNodeHandler{
		nodes: nodes,
		z:     z,
		rock:  rock,
		src:   src,
	}, nil
}

// RunOneStep updates the driven nodes for a step of duration dt.
// Unlike SingleNodeHandler, the handler clock is incremented before
// the field mutation, so a history trajectory is evaluated at the time
// coordinate of the end of the step. The two handlers differ in this
// ordering on purpose: trajectories produced by each are established
// behavior, and unifying them would shift history-mode results by one
// dt at table boundaries.
func (h *ClosedNodeHandler) RunOneStep(dt float64) {
	h.modelTime += dt
	if h.src.constant {
		delta := h.src.rateDelta(dt)
		for _, n := range h.nodes {
			h.z[n] += delta
			if h.rock != nil {
				h.rock[n] += delta
			}
		}
	} else {
		for _, n := range h.nodes {
			change := h.src.trajectoryDelta(h.z[n], h.modelTime)
			if h.rock != nil {
				h.rock[n] -= change
			}
			h.z[n] -= change
		}
	}
}

// ElapsedTime returns the total model time the handler has advanced.
func (h *ClosedNodeHandler) ElapsedTime() float64 { return h.modelTime }

// Update returns a function that advances each handler by the model
// time step. It should run after the erosion components in a step.
func Update(handlers ...Handler) landevo.DomainManipulator {
	return func(d *landevo.Model) error {
		for _, h := range handlers {
			h.RunOneStep(d.Dt)
		}
		return nil
	}
}
