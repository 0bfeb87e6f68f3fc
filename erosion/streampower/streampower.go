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

// Package streampower erodes channels by the stream power law, with a
// smoothed erosion threshold.
//
// The erosion rate at a node is E = ω − ωc·(1 − exp(−ω/ωc)), where
// ω = K·Aᵐ·Sⁿ is the stream power and ωc the threshold. The smoothing
// makes E approach zero gradually as ω drops below ωc instead of
// switching off abruptly, which keeps the implicit solve well behaved.
// The equation is integrated implicitly, one node at a time from
// downstream to upstream, so each node sees its receiver's
// already-updated elevation and the scheme remains stable for large
// time steps.
package streampower

import (
	"fmt"
	"math"

	"github.com/spatialmodel/landevo"
	"github.com/spatialmodel/landevo/flow"
)

// Erodibility and threshold field names shared with model assemblies.
const (
	// ErosionThreshold is the name of the optional per-node erosion
	// threshold field [m per model time unit].
	ErosionThreshold = "water_erosion_rule__threshold"

	// CumulativeErosionDepth is the name of the field tracking the
	// total depth of material removed at each node since the start of
	// the run [m].
	CumulativeErosionDepth = "cumulative_erosion__depth"
)

const (
	newtonTolerance = 1.e-10
	maxNewtonIter   = 50
)

// Opts configures an Eroder.
type Opts struct {
	// K is the erodibility coefficient.
	K float64

	// M and N are the area and slope exponents of the stream power
	// law. Zero values default to 0.5 and 1.
	M, N float64

	// Threshold is a spatially constant erosion threshold ωc. Zero
	// disables the threshold, reducing the law to pure stream power.
	Threshold float64

	// ThresholdField optionally names a per-node threshold field that
	// overrides Threshold. The field must exist before the eroder is
	// created; it is re-read every node visit so another component may
	// update it between steps.
	ThresholdField string

	// AreaField names the field supplying the erosive flux term Aᵐ.
	// Empty means the drainage area computed by the flow router;
	// model variants substitute discharge or effective drainage area.
	AreaField string
}

// Eroder erodes the topography along the flow paths computed by a
// Router.
type Eroder struct {
	g    *landevo.RasterGrid
	r    *flow.Router
	opts Opts

	z         []float64
	area      []float64
	threshold []float64 // nil when the threshold is constant
	eroded    []float64
}

// NewEroder creates a stream power eroder that follows the flow
// directions of r. The area field (and the threshold field, when
// named) must already exist on the grid.
func NewEroder(g *landevo.RasterGrid, r *flow.Router, opts Opts) (*Eroder, error) {
	z, err := g.Field(landevo.TopographicElevation)
	if err != nil {
		return nil, fmt.Errorf("streampower: %v", err)
	}
	if opts.M == 0 {
		opts.M = 0.5
	}
	if opts.N == 0 {
		opts.N = 1
	}
	areaName := opts.AreaField
	if areaName == "" {
		areaName = flow.DrainageArea
	}
	area, err := g.Field(areaName)
	if err != nil {
		return nil, fmt.Errorf("streampower: %v", err)
	}
	e := &Eroder{
		g:      g,
		r:      r,
		opts:   opts,
		z:      z,
		area:   area,
		eroded: g.AddZeros(CumulativeErosionDepth),
	}
	if opts.ThresholdField != "" {
		e.threshold, err = g.Field(opts.ThresholdField)
		if err != nil {
			return nil, fmt.Errorf("streampower: %v", err)
		}
	}
	return e, nil
}

// RunOneStep erodes the topography over a step of duration dt. Nodes
// inside filled depressions are left untouched; everything reaching
// them settles out in the lake.
func (e *Eroder) RunOneStep(dt float64) error {
	g := e.g
	rec := e.r.Receivers()
	flooded := e.r.Flooded()
	for _, i := range e.r.Order() {
		if g.Status[i] != landevo.CoreNode || flooded[i] || rec[i] == i {
			continue
		}
		d := e.dist(i, rec[i])
		zNew := e.solve(e.z[i], e.z[rec[i]], e.area[i], e.thresholdAt(i), d, dt)
		e.eroded[i] += e.z[i] - zNew
		e.z[i] = zNew
	}
	return nil
}

func (e *Eroder) thresholdAt(i int) float64 {
	if e.threshold != nil {
		return e.threshold[i]
	}
	return e.opts.Threshold
}

// solve implicitly integrates dz/dt = −E for one node given its
// receiver's already-updated elevation zr, by Newton iteration on
// f(x) = x − z0 + dt·E(x). The result never drops below zr.
func (e *Eroder) solve(z0, zr, area, omegaC, dist, dt float64) float64 {
	if z0 <= zr {
		return z0
	}
	am := e.opts.K * math.Pow(area, e.opts.M)
	x := z0
	for iter := 0; iter < maxNewtonIter; iter++ {
		s := (x - zr) / dist
		if s < 0 {
			s = 0
		}
		omega := am * math.Pow(s, e.opts.N)
		var erosion, dEdOmega float64
		if omegaC <= 0 {
			erosion = omega
			dEdOmega = 1
		} else {
			expTerm := math.Exp(-omega / omegaC)
			erosion = omega - omegaC*(1-expTerm)
			dEdOmega = 1 - expTerm
		}
		var dOmegaDx float64
		if s > 0 {
			dOmegaDx = am * e.opts.N * math.Pow(s, e.opts.N-1) / dist
		}
		f := x - z0 + dt*erosion
		fPrime := 1 + dt*dEdOmega*dOmegaDx
		step := f / fPrime
		x -= step
		if x < zr {
			x = zr
		}
		if math.Abs(step) < newtonTolerance {
			break
		}
	}
	if x > z0 { // erosion only
		x = z0
	}
	return x
}

func (e *Eroder) dist(i, j int) float64 {
	ri, ci := e.g.RowCol(i)
	rj, cj := e.g.RowCol(j)
	if ri != rj && ci != cj {
		return e.g.Dx * math.Sqrt2
	}
	return e.g.Dx
}

// Erode returns a function that erodes the channel network once per
// time step. It must run after the flow router in RunFuncs.
func Erode(e *Eroder) landevo.DomainManipulator {
	return func(d *landevo.Model) error {
		return e.RunOneStep(d.Dt)
	}
}
