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
	"fmt"

	"github.com/ctessum/geom"
)

// NodeStatus classifies a grid node for boundary-condition handling.
type NodeStatus uint8

// Node status code points.
const (
	// CoreNode is an interior node that participates fully in the
	// simulation.
	CoreNode NodeStatus = iota

	// FixedValueBoundary is an open boundary node whose value is set
	// externally (for example by a baselevel handler).
	FixedValueBoundary

	// FixedGradientBoundary is an open boundary node across which a
	// constant gradient is maintained.
	FixedGradientBoundary

	// LoopedBoundary is a boundary node wrapped to the opposite grid
	// edge.
	LoopedBoundary

	// ClosedBoundary is a node that is excluded from the simulation;
	// no flow enters or leaves through it.
	ClosedBoundary
)

// Elevation field names shared between components.
const (
	// TopographicElevation is the name of the primary land-surface
	// elevation field.
	TopographicElevation = "topographic__elevation"

	// BedrockElevation is the name of the optional rock-surface
	// elevation field. Components that lower the topography by
	// external forcing must apply the identical change here so the
	// regolith thickness is preserved.
	BedrockElevation = "bedrock__elevation"
)

// RasterGrid is a uniform rectangular model grid. Nodes are numbered
// from the lower-left corner, row by row.
type RasterGrid struct {
	// Rows and Cols are the grid dimensions in nodes.
	Rows, Cols int

	// Dx is the node spacing [m].
	Dx float64

	// Status classifies each node.
	Status []NodeStatus

	fields map[string][]float64
}

// NewRasterGrid creates a grid of rows × cols nodes with the given
// node spacing. All perimeter nodes start as fixed-value boundaries
// and all interior nodes as core nodes.
func NewRasterGrid(rows, cols int, dx float64) *RasterGrid {
	g := &RasterGrid{
		Rows:   rows,
		Cols:   cols,
		Dx:     dx,
		Status: make([]NodeStatus, rows*cols),
		fields: make(map[string][]float64),
	}
	for i := range g.Status {
		if g.IsPerimeter(i) {
			g.Status[i] = FixedValueBoundary
		}
	}
	return g
}

// NumNodes returns the total number of grid nodes.
func (g *RasterGrid) NumNodes() int { return g.Rows * g.Cols }

// CellArea returns the surface area associated with one node [m²].
func (g *RasterGrid) CellArea() float64 { return g.Dx * g.Dx }

// NodeAt returns the index of the node at the given row and column.
func (g *RasterGrid) NodeAt(row, col int) int { return row*g.Cols + col }

// RowCol returns the row and column of node i.
func (g *RasterGrid) RowCol(i int) (row, col int) { return i / g.Cols, i % g.Cols }

// X returns the x coordinate of node i [m].
func (g *RasterGrid) X(i int) float64 { return float64(i%g.Cols) * g.Dx }

// Y returns the y coordinate of node i [m].
func (g *RasterGrid) Y(i int) float64 { return float64(i/g.Cols) * g.Dx }

// IsPerimeter reports whether node i lies on the grid edge.
func (g *RasterGrid) IsPerimeter(i int) bool {
	row, col := g.RowCol(i)
	return row == 0 || col == 0 || row == g.Rows-1 || col == g.Cols-1
}

// AddZeros creates a new zero-valued field with the given name and
// returns it. If the field already exists it is returned unchanged.
func (g *RasterGrid) AddZeros(name string) []float64 {
	if f, ok := g.fields[name]; ok {
		return f
	}
	f := make([]float64, g.NumNodes())
	g.fields[name] = f
	return f
}

// Field returns the field with the given name. The returned slice is
// the grid's own storage: the grid owns it and outlives any component
// that borrows it, and multiple components may hold the same slice at
// once. Callers must sequence their mutations externally.
func (g *RasterGrid) Field(name string) ([]float64, error) {
	f, ok := g.fields[name]
	if !ok {
		return nil, fmt.Errorf("landevo: grid has no field %q", name)
	}
	return f, nil
}

// HasField reports whether a field with the given name exists.
func (g *RasterGrid) HasField(name string) bool {
	_, ok := g.fields[name]
	return ok
}

// FieldNames returns the names of all grid fields.
func (g *RasterGrid) FieldNames() []string {
	names := make([]string, 0, len(g.fields))
	for n := range g.fields {
		names = append(names, n)
	}
	return names
}

// SetClosedBoundaries closes the selected grid edges. Corner nodes are
// closed if either adjacent edge is closed.
func (g *RasterGrid) SetClosedBoundaries(bottom, left, right, top bool) {
	for i := range g.Status {
		row, col := g.RowCol(i)
		switch {
		case bottom && row == 0,
			top && row == g.Rows-1,
			left && col == 0,
			right && col == g.Cols-1:
			g.Status[i] = ClosedBoundary
		}
	}
}

// SetWatershedBoundary closes the entire grid perimeter except for the
// outlet node, which becomes the only open (fixed-value) boundary.
func (g *RasterGrid) SetWatershedBoundary(outlet int) error {
	if outlet < 0 || outlet >= g.NumNodes() {
		return fmt.Errorf("landevo: outlet node %d is outside the grid", outlet)
	}
	g.SetClosedBoundaries(true, true, true, true)
	g.Status[outlet] = FixedValueBoundary
	return nil
}

// CoreNodes returns the indices of all core nodes.
func (g *RasterGrid) CoreNodes() []int {
	var nodes []int
	for i, s := range g.Status {
		if s == CoreNode {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// AdjacentNodes returns the indices of the up to four
// orthogonally-adjacent neighbors of node i.
func (g *RasterGrid) AdjacentNodes(i int) []int {
	row, col := g.RowCol(i)
	nodes := make([]int, 0, 4)
	if col > 0 {
		nodes = append(nodes, i-1)
	}
	if col < g.Cols-1 {
		nodes = append(nodes, i+1)
	}
	if row > 0 {
		nodes = append(nodes, i-g.Cols)
	}
	if row < g.Rows-1 {
		nodes = append(nodes, i+g.Cols)
	}
	return nodes
}

// DiagonalNodes returns the indices of the up to four
// diagonally-adjacent neighbors of node i.
func (g *RasterGrid) DiagonalNodes(i int) []int {
	row, col := g.RowCol(i)
	nodes := make([]int, 0, 4)
	if row > 0 && col > 0 {
		nodes = append(nodes, i-g.Cols-1)
	}
	if row > 0 && col < g.Cols-1 {
		nodes = append(nodes, i-g.Cols+1)
	}
	if row < g.Rows-1 && col > 0 {
		nodes = append(nodes, i+g.Cols-1)
	}
	if row < g.Rows-1 && col < g.Cols-1 {
		nodes = append(nodes, i+g.Cols+1)
	}
	return nodes
}

// CellPolygon returns the square cell of land surface associated with
// node i, for use when encoding model output to geographic formats.
func (g *RasterGrid) CellPolygon(i int) geom.Polygon {
	x, y := g.X(i), g.Y(i)
	h := g.Dx / 2
	return geom.Polygon{{
		{X: x - h, Y: y - h},
		{X: x + h, Y: y - h},
		{X: x + h, Y: y + h},
		{X: x - h, Y: y + h},
		{X: x - h, Y: y - h},
	}}
}
