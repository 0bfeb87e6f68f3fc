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

package streampower

import (
	"math"
	"testing"

	"github.com/spatialmodel/landevo"
	"github.com/spatialmodel/landevo/flow"
)

func different(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance*math.Abs(b) && math.Abs(a-b) > tolerance {
		return true
	}
	return false
}

// pedestalGrid returns a 3×3 grid with a single core node one meter
// above its boundary neighbors.
func pedestalGrid(t *testing.T) (*landevo.RasterGrid, int) {
	t.Helper()
	g := landevo.NewRasterGrid(3, 3, 1)
	z := g.AddZeros(landevo.TopographicElevation)
	center := g.NodeAt(1, 1)
	z[center] = 1
	return g, center
}

func route(t *testing.T, g *landevo.RasterGrid) *flow.Router {
	t.Helper()
	r, err := flow.NewRouter(g, flow.Opts{FillDepressions: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.RunOneStep(); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestImplicitSolveMatchesAnalytic(t *testing.T) {
	g, center := pedestalGrid(t)
	r := route(t, g)
	e, err := NewEroder(g, r, Opts{K: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RunOneStep(1); err != nil {
		t.Fatal(err)
	}
	// For n=1 and no threshold the implicit update is linear:
	// z = z0/(1 + K·Aᵐ·dt/dx), with A = dx² = 1.
	z, err := g.Field(landevo.TopographicElevation)
	if err != nil {
		t.Fatal(err)
	}
	want := 1.0 / 1.5
	if different(z[center], want, 1.e-8) {
		t.Errorf("eroded elevation: got %g, want %g", z[center], want)
	}
}

func TestLargeThresholdSuppressesErosion(t *testing.T) {
	g, center := pedestalGrid(t)
	r := route(t, g)
	e, err := NewEroder(g, r, Opts{K: 0.5, Threshold: 1.e6})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RunOneStep(1); err != nil {
		t.Fatal(err)
	}
	z, err := g.Field(landevo.TopographicElevation)
	if err != nil {
		t.Fatal(err)
	}
	erosion := 1 - z[center]
	if erosion < 0 {
		t.Errorf("threshold run deposited material: Δz=%g", -erosion)
	}
	// The smoothed law gives E ≈ ω²/(2ωc) well below threshold.
	if erosion > 1.e-6 {
		t.Errorf("erosion %g not suppressed by a threshold far above ω", erosion)
	}
}

func TestPerNodeThresholdField(t *testing.T) {
	g := landevo.NewRasterGrid(3, 4, 1)
	z := g.AddZeros(landevo.TopographicElevation)
	hard, soft := g.NodeAt(1, 1), g.NodeAt(1, 2)
	z[hard], z[soft] = 1, 1
	thresh := g.AddZeros(ErosionThreshold)
	thresh[hard] = 1.e6

	r, err := flow.NewRouter(g, flow.Opts{FillDepressions: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.RunOneStep(); err != nil {
		t.Fatal(err)
	}
	e, err := NewEroder(g, r, Opts{K: 0.5, ThresholdField: ErosionThreshold})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RunOneStep(1); err != nil {
		t.Fatal(err)
	}
	if erosion := 1 - z[hard]; erosion > 1.e-6 {
		t.Errorf("high-threshold node eroded by %g", erosion)
	}
	if want := 1.0 / 1.5; different(z[soft], want, 1.e-8) {
		t.Errorf("zero-threshold node: got %g, want %g", z[soft], want)
	}
}

func TestFloodedNodesAreSkipped(t *testing.T) {
	g := landevo.NewRasterGrid(5, 5, 1)
	z := g.AddZeros(landevo.TopographicElevation)
	for i := range z {
		row, _ := g.RowCol(i)
		z[i] = float64(row)
	}
	if err := g.SetWatershedBoundary(g.NodeAt(0, 2)); err != nil {
		t.Fatal(err)
	}
	pit := g.NodeAt(2, 2)
	z[pit] = -5

	r, err := flow.NewRouter(g, flow.Opts{FillDepressions: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.RunOneStep(); err != nil {
		t.Fatal(err)
	}
	e, err := NewEroder(g, r, Opts{K: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.RunOneStep(1); err != nil {
		t.Fatal(err)
	}
	if z[pit] != -5 {
		t.Errorf("lake-bottom node eroded: z=%g", z[pit])
	}
}

func TestCumulativeErosionDepth(t *testing.T) {
	g, center := pedestalGrid(t)
	r := route(t, g)
	e, err := NewEroder(g, r, Opts{K: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	for step := 0; step < 3; step++ {
		if err := r.RunOneStep(); err != nil {
			t.Fatal(err)
		}
		if err := e.RunOneStep(1); err != nil {
			t.Fatal(err)
		}
	}
	z, err := g.Field(landevo.TopographicElevation)
	if err != nil {
		t.Fatal(err)
	}
	eroded, err := g.Field(CumulativeErosionDepth)
	if err != nil {
		t.Fatal(err)
	}
	if different(eroded[center], 1-z[center], 1.e-12) {
		t.Errorf("cumulative depth %g does not match elevation change %g",
			eroded[center], 1-z[center])
	}
}

func TestEroderRequiresAreaField(t *testing.T) {
	g, _ := pedestalGrid(t)
	r := route(t, g)
	if _, err := NewEroder(g, r, Opts{K: 0.5, AreaField: "no_such_field"}); err == nil {
		t.Error("expected an error for a missing area field")
	}
}
