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

// Package diffusion smooths hillslopes by linear soil creep.
//
// The topography evolves by ∂z/∂t = D·∇²z, discretized with the
// standard five-point Laplacian over the four orthogonal neighbors.
// Closed boundary nodes exchange no material, giving a no-flux
// condition along closed edges; open boundary nodes participate as
// fixed-value sinks but are never themselves modified.
package diffusion

import (
	"fmt"
	"math"

	"github.com/spatialmodel/landevo"
)

// Opts configures a Differ.
type Opts struct {
	// D is the hillslope diffusivity [m² per model time unit].
	D float64
}

// Differ applies linear diffusion to the topography.
type Differ struct {
	g    *landevo.RasterGrid
	d    float64
	z    []float64
	dzdt []float64 // scratch
}

// NewDiffer creates a hillslope differ for g.
func NewDiffer(g *landevo.RasterGrid, opts Opts) (*Differ, error) {
	z, err := g.Field(landevo.TopographicElevation)
	if err != nil {
		return nil, fmt.Errorf("diffusion: %v", err)
	}
	if opts.D < 0 {
		return nil, fmt.Errorf("diffusion: diffusivity must be non-negative, got %g", opts.D)
	}
	return &Differ{
		g:    g,
		d:    opts.D,
		z:    z,
		dzdt: make([]float64, g.NumNodes()),
	}, nil
}

// RunOneStep diffuses the topography over a step of duration dt. The
// step is subdivided to satisfy the explicit stability limit
// dt ≤ dx²/(4D), so callers may use the same dt as the rest of the
// model regardless of diffusivity.
func (df *Differ) RunOneStep(dt float64) error {
	if df.d == 0 || dt == 0 {
		return nil
	}
	g := df.g
	stableDt := g.Dx * g.Dx / (4 * df.d)
	nSub := int(math.Ceil(dt / stableDt))
	subDt := dt / float64(nSub)

	dx2 := g.Dx * g.Dx
	for sub := 0; sub < nSub; sub++ {
		for i := range df.dzdt {
			df.dzdt[i] = 0
			if g.Status[i] != landevo.CoreNode {
				continue
			}
			var lap float64
			for _, nb := range g.AdjacentNodes(i) {
				if g.Status[nb] == landevo.ClosedBoundary {
					continue // no flux through closed nodes
				}
				lap += df.z[nb] - df.z[i]
			}
			df.dzdt[i] = df.d * lap / dx2
		}
		for i, r := range df.dzdt {
			df.z[i] += r * subDt
		}
	}
	return nil
}

// Diffuse returns a function that diffuses the hillslopes once per
// time step.
func Diffuse(df *Differ) landevo.DomainManipulator {
	return func(d *landevo.Model) error {
		return df.RunOneStep(d.Dt)
	}
}
