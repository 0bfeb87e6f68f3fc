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

package precip

import (
	"math"
	"testing"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/spatialmodel/landevo"
	"github.com/spatialmodel/landevo/flow"
)

func different(a, b, tolerance float64) bool {
	if math.Abs(a-b) > tolerance*math.Abs(b) && math.Abs(a-b) > tolerance {
		return true
	}
	return false
}

func TestGammaMoments(t *testing.T) {
	gen, err := NewGenerator(Opts{MeanIntensity: 1, ShapeFactor: 0.7, Seed: 1})
	if err != nil {
		t.Fatal(err)
	}
	var s stats.Stats
	for i := 0; i < 200000; i++ {
		p := gen.Intensity()
		if p < 0 {
			t.Fatalf("negative storm intensity %g", p)
		}
		s.Update(p)
	}
	if different(s.Mean(), 1, 0.02) {
		t.Errorf("sample mean: got %g, want 1", s.Mean())
	}
	// Gamma variance is mean²/shape.
	if different(s.SampleVariance(), 1/0.7, 0.05) {
		t.Errorf("sample variance: got %g, want %g", s.SampleVariance(), 1/0.7)
	}
}

func TestRunoffLossFunction(t *testing.T) {
	gen, err := NewGenerator(Opts{MeanIntensity: 1, ShapeFactor: 1, InfiltrationCapacity: 2})
	if err != nil {
		t.Fatal(err)
	}
	// A heavy storm loses just the infiltration capacity.
	if r := gen.Runoff(100); different(r, 98, 1.e-3) {
		t.Errorf("heavy storm runoff: got %g, want ≈98", r)
	}
	// A light storm infiltrates almost completely.
	if r := gen.Runoff(0.01); r > 1.e-4 {
		t.Errorf("light storm runoff: got %g, want ≈0", r)
	}
	for _, p := range []float64{0, 0.1, 1, 5, 50} {
		r := gen.Runoff(p)
		if r < 0 || r > p {
			t.Errorf("runoff %g outside [0, %g]", r, p)
		}
	}
}

func TestNoInfiltration(t *testing.T) {
	gen, err := NewGenerator(Opts{MeanIntensity: 1, ShapeFactor: 1})
	if err != nil {
		t.Fatal(err)
	}
	if r := gen.Runoff(3); r != 3 {
		t.Errorf("runoff without infiltration: got %g, want 3", r)
	}
}

func TestSeedReproducibility(t *testing.T) {
	newGen := func(seed uint64) *Generator {
		gen, err := NewGenerator(Opts{MeanIntensity: 1, ShapeFactor: 0.7, Seed: seed})
		if err != nil {
			t.Fatal(err)
		}
		return gen
	}
	a, b, c := newGen(42), newGen(42), newGen(43)
	same, differ := true, false
	for i := 0; i < 100; i++ {
		va, vb, vc := a.Intensity(), b.Intensity(), c.Intensity()
		if va != vb {
			same = false
		}
		if va != vc {
			differ = true
		}
	}
	if !same {
		t.Error("identical seeds produced different storm sequences")
	}
	if !differ {
		t.Error("different seeds produced identical storm sequences")
	}
}

func TestUpdateScalesDischargeWithArea(t *testing.T) {
	g := landevo.NewRasterGrid(5, 5, 1)
	z := g.AddZeros(landevo.TopographicElevation)
	for i := range z {
		row, _ := g.RowCol(i)
		z[i] = float64(row)
	}
	r, err := flow.NewRouter(g, flow.Opts{})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.RunOneStep(); err != nil {
		t.Fatal(err)
	}
	gen, err := NewGenerator(Opts{MeanIntensity: 1, ShapeFactor: 0.7, Intermittency: 0.5, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	d := &landevo.Model{Grid: g, Dt: 1}
	if err := Update(gen)(d); err != nil {
		t.Fatal(err)
	}
	area, err := g.Field(flow.DrainageArea)
	if err != nil {
		t.Fatal(err)
	}
	q, err := g.Field(flow.SurfaceDischarge)
	if err != nil {
		t.Fatal(err)
	}
	rate := q[g.NodeAt(1, 1)] / area[g.NodeAt(1, 1)]
	if rate < 0 {
		t.Fatalf("negative runoff rate %g", rate)
	}
	for i := range q {
		if different(q[i], rate*area[i], 1.e-12) {
			t.Errorf("node %d: discharge %g is not runoff %g times area %g",
				i, q[i], rate, area[i])
		}
	}
}

func TestInvalidOpts(t *testing.T) {
	bad := []Opts{
		{MeanIntensity: 0, ShapeFactor: 1},
		{MeanIntensity: -1, ShapeFactor: 1},
		{MeanIntensity: 1, ShapeFactor: 0},
		{MeanIntensity: 1, ShapeFactor: 1, Intermittency: 1.5},
		{MeanIntensity: 1, ShapeFactor: 1, Intermittency: -0.1},
	}
	for _, o := range bad {
		if _, err := NewGenerator(o); err == nil {
			t.Errorf("expected an error for %+v", o)
		}
	}
}
