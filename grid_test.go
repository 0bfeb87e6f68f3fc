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

package landevo

import (
	"sort"
	"testing"
)

func TestNodeIndexing(t *testing.T) {
	g := NewRasterGrid(4, 5, 10)
	if n := g.NumNodes(); n != 20 {
		t.Fatalf("NumNodes: got %d, want 20", n)
	}
	for i := 0; i < g.NumNodes(); i++ {
		row, col := g.RowCol(i)
		if j := g.NodeAt(row, col); j != i {
			t.Errorf("NodeAt(RowCol(%d)) = %d", i, j)
		}
		if x := g.X(i); x != float64(col)*10 {
			t.Errorf("X(%d): got %g, want %g", i, x, float64(col)*10)
		}
		if y := g.Y(i); y != float64(row)*10 {
			t.Errorf("Y(%d): got %g, want %g", i, y, float64(row)*10)
		}
	}
	if a := g.CellArea(); a != 100 {
		t.Errorf("CellArea: got %g, want 100", a)
	}
}

func TestDefaultBoundaryStatus(t *testing.T) {
	g := NewRasterGrid(4, 4, 1)
	for i, s := range g.Status {
		if g.IsPerimeter(i) && s != FixedValueBoundary {
			t.Errorf("perimeter node %d has status %d", i, s)
		}
		if !g.IsPerimeter(i) && s != CoreNode {
			t.Errorf("interior node %d has status %d", i, s)
		}
	}
	if got, want := len(g.CoreNodes()), 4; got != want {
		t.Errorf("core node count: got %d, want %d", got, want)
	}
}

func TestWatershedBoundary(t *testing.T) {
	g := NewRasterGrid(5, 5, 1)
	outlet := g.NodeAt(0, 2)
	if err := g.SetWatershedBoundary(outlet); err != nil {
		t.Fatal(err)
	}
	for i, s := range g.Status {
		switch {
		case i == outlet:
			if s != FixedValueBoundary {
				t.Errorf("outlet has status %d", s)
			}
		case g.IsPerimeter(i):
			if s != ClosedBoundary {
				t.Errorf("perimeter node %d has status %d", i, s)
			}
		default:
			if s != CoreNode {
				t.Errorf("interior node %d has status %d", i, s)
			}
		}
	}
	if err := g.SetWatershedBoundary(-1); err == nil {
		t.Error("expected an error for an out-of-range outlet")
	}
}

func TestNeighbors(t *testing.T) {
	g := NewRasterGrid(3, 3, 1)
	center := g.NodeAt(1, 1)
	if adj := g.AdjacentNodes(center); len(adj) != 4 {
		t.Errorf("center adjacent count: got %d, want 4", len(adj))
	}
	if diag := g.DiagonalNodes(center); len(diag) != 4 {
		t.Errorf("center diagonal count: got %d, want 4", len(diag))
	}
	corner := g.NodeAt(0, 0)
	if adj := g.AdjacentNodes(corner); len(adj) != 2 {
		t.Errorf("corner adjacent count: got %d, want 2", len(adj))
	}
	if diag := g.DiagonalNodes(corner); len(diag) != 1 {
		t.Errorf("corner diagonal count: got %d, want 1", len(diag))
	}
}

func TestFields(t *testing.T) {
	g := NewRasterGrid(3, 3, 1)
	if _, err := g.Field(TopographicElevation); err == nil {
		t.Error("expected an error for a missing field")
	}
	z := g.AddZeros(TopographicElevation)
	z[4] = 7
	// AddZeros returns the existing field rather than clearing it.
	if z2 := g.AddZeros(TopographicElevation); z2[4] != 7 {
		t.Errorf("AddZeros cleared an existing field: %g", z2[4])
	}
	f, err := g.Field(TopographicElevation)
	if err != nil {
		t.Fatal(err)
	}
	f[4] = 9
	if z[4] != 9 {
		t.Error("Field did not return the grid's own storage")
	}
	if !g.HasField(TopographicElevation) || g.HasField(BedrockElevation) {
		t.Error("HasField misreports")
	}
	g.AddZeros(BedrockElevation)
	names := g.FieldNames()
	sort.Strings(names)
	want := []string{BedrockElevation, TopographicElevation}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("FieldNames: got %v, want %v", names, want)
	}
}

func TestCellPolygon(t *testing.T) {
	g := NewRasterGrid(3, 3, 2)
	p := g.CellPolygon(g.NodeAt(1, 1))
	if len(p) != 1 || len(p[0]) != 5 {
		t.Fatalf("unexpected polygon shape: %v", p)
	}
	if p[0][0] != p[0][4] {
		t.Error("polygon ring is not closed")
	}
	if p[0][0].X != 1 || p[0][0].Y != 1 || p[0][2].X != 3 || p[0][2].Y != 3 {
		t.Errorf("cell corners wrong: %v", p[0])
	}
}
