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

package diffusion

import (
	"math"
	"testing"

	"github.com/spatialmodel/landevo"
)

func different(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance*math.Abs(b) && math.Abs(a-b) > tolerance {
		return true
	}
	return false
}

func TestSpikeDiffuses(t *testing.T) {
	g := landevo.NewRasterGrid(5, 5, 1)
	z := g.AddZeros(landevo.TopographicElevation)
	center := g.NodeAt(2, 2)
	z[center] = 1

	df, err := NewDiffer(g, Opts{D: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if err := df.RunOneStep(1); err != nil {
		t.Fatal(err)
	}
	// One explicit step: dz = D·dt·(0 − 4·1)/dx² at the spike, and
	// D·dt·1/dx² at each orthogonal neighbor.
	if different(z[center], 0.6, 1.e-12) {
		t.Errorf("spike: got %g, want 0.6", z[center])
	}
	for _, nb := range g.AdjacentNodes(center) {
		if different(z[nb], 0.1, 1.e-12) {
			t.Errorf("neighbor %d: got %g, want 0.1", nb, z[nb])
		}
	}
	for _, nb := range g.DiagonalNodes(center) {
		if z[nb] != 0 {
			t.Errorf("diagonal neighbor %d received material: %g", nb, z[nb])
		}
	}
}

func TestMassConservedInteriorly(t *testing.T) {
	g := landevo.NewRasterGrid(7, 7, 1)
	z := g.AddZeros(landevo.TopographicElevation)
	z[g.NodeAt(3, 3)] = 1

	df, err := NewDiffer(g, Opts{D: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if err := df.RunOneStep(2); err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, v := range z {
		sum += v
	}
	// Nothing has reached the boundary yet, so total volume holds.
	if different(sum, 1, 1.e-12) {
		t.Errorf("total volume: got %g, want 1", sum)
	}
}

func TestSubSteppingIsStable(t *testing.T) {
	g := landevo.NewRasterGrid(5, 5, 1)
	z := g.AddZeros(landevo.TopographicElevation)
	center := g.NodeAt(2, 2)
	z[center] = 1

	// dt far beyond the explicit limit dx²/(4D).
	df, err := NewDiffer(g, Opts{D: 10})
	if err != nil {
		t.Fatal(err)
	}
	if err := df.RunOneStep(100); err != nil {
		t.Fatal(err)
	}
	for i, v := range z {
		if math.IsNaN(v) || math.Abs(v) > 1 {
			t.Fatalf("unstable solution at node %d: %g", i, v)
		}
	}
	// After a long time everything has drained to the boundary.
	if math.Abs(z[center]) > 1.e-3 {
		t.Errorf("spike remains after long diffusion: %g", z[center])
	}
}

func TestClosedBoundariesBlockFlux(t *testing.T) {
	g := landevo.NewRasterGrid(5, 5, 1)
	if err := g.SetWatershedBoundary(g.NodeAt(0, 2)); err != nil {
		t.Fatal(err)
	}
	z := g.AddZeros(landevo.TopographicElevation)
	for _, i := range g.CoreNodes() {
		z[i] = 1
	}

	df, err := NewDiffer(g, Opts{D: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if err := df.RunOneStep(1); err != nil {
		t.Fatal(err)
	}
	for i, s := range g.Status {
		if s == landevo.ClosedBoundary && z[i] != 0 {
			t.Errorf("closed node %d gained material: %g", i, z[i])
		}
	}
	// The core node above the outlet loses to the outlet; core nodes
	// bordering only closed nodes and level core nodes are unchanged.
	if v := z[g.NodeAt(2, 1)]; different(v, 1, 1.e-12) {
		t.Errorf("interior node against closed edge changed: %g", v)
	}
	if v := z[g.NodeAt(1, 2)]; v >= 1 {
		t.Errorf("node above outlet did not lose material: %g", v)
	}
}

func TestNegativeDiffusivityRejected(t *testing.T) {
	g := landevo.NewRasterGrid(5, 5, 1)
	g.AddZeros(landevo.TopographicElevation)
	if _, err := NewDiffer(g, Opts{D: -1}); err == nil {
		t.Error("expected an error for negative diffusivity")
	}
}
