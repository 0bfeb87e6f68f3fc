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

// Package flow routes surface water across a raster grid and
// accumulates drainage area.
//
// Routing uses single-direction (D8) steepest descent on a
// depression-filled copy of the topography, so that every core node
// drains to an open boundary even when the raw surface contains pits.
// Nodes whose filled elevation exceeds their true elevation are
// reported as flooded; erosion components treat them as lake bottoms.
package flow

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/spatialmodel/landevo"
)

// Field names created by the router.
const (
	DrainageArea     = "drainage_area"
	SteepestSlope    = "topographic__steepest_slope"
	ReceiverNode     = "flow__receiver_node"
	SurfaceDischarge = "surface_water__discharge"
)

// minGradient is the artificial gradient imposed across filled
// depressions so that flow directions inside lakes are defined.
const minGradient = 1.e-8

// Opts configures a Router.
type Opts struct {
	// RunoffRate scales drainage area to water discharge
	// [m per model time unit]. Zero means discharge equals area.
	RunoffRate float64

	// FillDepressions enables pit filling before flow directions are
	// assigned. Without it, pit nodes drain to themselves.
	FillDepressions bool
}

// Router directs flow and accumulates drainage area over a grid.
type Router struct {
	g    *landevo.RasterGrid
	opts Opts

	z         []float64 // topographic elevation, borrowed from the grid
	area      []float64
	slope     []float64
	recField  []float64
	discharge []float64

	receiver []int
	filled   []float64
	flooded  []bool
	order    []int // node indices sorted from downstream to upstream
}

// NewRouter creates a router for g, creating the drainage area,
// steepest slope, receiver node, and discharge fields.
func NewRouter(g *landevo.RasterGrid, opts Opts) (*Router, error) {
	z, err := g.Field(landevo.TopographicElevation)
	if err != nil {
		return nil, fmt.Errorf("flow: %v", err)
	}
	if opts.RunoffRate == 0 {
		opts.RunoffRate = 1
	}
	n := g.NumNodes()
	return &Router{
		g:         g,
		opts:      opts,
		z:         z,
		area:      g.AddZeros(DrainageArea),
		slope:     g.AddZeros(SteepestSlope),
		recField:  g.AddZeros(ReceiverNode),
		discharge: g.AddZeros(SurfaceDischarge),
		receiver:  make([]int, n),
		filled:    make([]float64, n),
		flooded:   make([]bool, n),
		order:     make([]int, 0, n),
	}, nil
}

// RunOneStep re-derives flow directions from the current topography
// and accumulates drainage area and discharge.
func (r *Router) RunOneStep() error {
	r.fill()
	r.direct()
	r.accumulate()
	return nil
}

// Flooded reports, per node, whether the node lies within a filled
// depression. The slice is reused between steps.
func (r *Router) Flooded() []bool { return r.flooded }

// Receivers returns the downstream receiver of each node. Boundary
// nodes and unresolvable pits receive themselves. The slice is reused
// between steps.
func (r *Router) Receivers() []int { return r.receiver }

// Order returns the node indices reachable from an open boundary,
// sorted from downstream to upstream (ascending drainage elevation).
// The slice is reused between steps.
func (r *Router) Order() []int { return r.order }

type pqItem struct {
	node int
	key  float64
	seq  int
}

// floodQueue is a min-heap of nodes keyed by elevation, with insertion
// order breaking ties so the flood front advances stably.
type floodQueue []pqItem

func (q floodQueue) Len() int { return len(q) }
func (q floodQueue) Less(i, j int) bool {
	if q[i].key != q[j].key {
		return q[i].key < q[j].key
	}
	return q[i].seq < q[j].seq
}
func (q floodQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *floodQueue) Push(x interface{}) { *q = append(*q, x.(pqItem)) }
func (q *floodQueue) Pop() interface{} {
	old := *q
	n := len(old) - 1
	it := old[n]
	*q = old[:n]
	return it
}

// fill computes the depression-filled surface by priority flooding
// inward from the open boundary nodes, and records the pop sequence as
// the downstream-to-upstream processing order. Closed nodes and core
// nodes walled off from every open boundary are never visited and
// carry no flow.
func (r *Router) fill() {
	g := r.g
	n := g.NumNodes()
	visited := make([]bool, n)
	q := new(floodQueue)
	seq := 0

	r.order = r.order[:0]
	for i := 0; i < n; i++ {
		r.filled[i] = r.z[i]
		r.flooded[i] = false
		switch g.Status[i] {
		case landevo.ClosedBoundary:
			visited[i] = true
		case landevo.CoreNode:
		default:
			visited[i] = true
			heap.Push(q, pqItem{node: i, key: r.z[i], seq: seq})
			seq++
		}
	}

	for q.Len() > 0 {
		i := heap.Pop(q).(pqItem).node
		r.order = append(r.order, i)
		for _, nb := range neighbors8(g, i) {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			if r.opts.FillDepressions {
				raised := r.filled[i] + minGradient*r.dist(i, nb)
				if r.z[nb] < raised {
					r.filled[nb] = raised
					r.flooded[nb] = true
				}
			}
			heap.Push(q, pqItem{node: nb, key: r.filled[nb], seq: seq})
			seq++
		}
	}
}

// direct assigns each core node the neighbor with the steepest
// downhill gradient on the filled surface.
func (r *Router) direct() {
	g := r.g
	for i := 0; i < g.NumNodes(); i++ {
		r.receiver[i] = i
		r.slope[i] = 0
		if g.Status[i] != landevo.CoreNode {
			r.recField[i] = float64(i)
			continue
		}
		best, bestSlope := i, 0.0
		for _, nb := range neighbors8(g, i) {
			if g.Status[nb] == landevo.ClosedBoundary {
				continue
			}
			s := (r.filled[i] - r.filled[nb]) / r.dist(i, nb)
			if s > bestSlope {
				best, bestSlope = nb, s
			}
		}
		r.receiver[i] = best
		r.recField[i] = float64(best)
		// Report the slope of the true surface, floored at zero so
		// lake bottoms read as flat.
		r.slope[i] = math.Max(0, (r.z[i]-r.z[best])/r.dist(i, best))
	}
}

// accumulate sums cell areas from upstream to downstream and converts
// them to discharge.
func (r *Router) accumulate() {
	g := r.g
	cellArea := g.CellArea()
	for i := range r.area {
		if g.Status[i] == landevo.ClosedBoundary {
			r.area[i] = 0
		} else {
			r.area[i] = cellArea
		}
	}
	for k := len(r.order) - 1; k >= 0; k-- {
		i := r.order[k]
		if rec := r.receiver[i]; rec != i {
			r.area[rec] += r.area[i]
		}
	}
	for i := range r.area {
		r.discharge[i] = r.opts.RunoffRate * r.area[i]
	}
}

func (r *Router) dist(i, j int) float64 {
	ri, ci := r.g.RowCol(i)
	rj, cj := r.g.RowCol(j)
	if ri != rj && ci != cj {
		return r.g.Dx * math.Sqrt2
	}
	return r.g.Dx
}

func neighbors8(g *landevo.RasterGrid, i int) []int {
	nbs := g.AdjacentNodes(i)
	return append(nbs, g.DiagonalNodes(i)...)
}

// Route returns a function that reruns flow routing for the current
// topography once per time step.
func Route(r *Router) landevo.DomainManipulator {
	return func(d *landevo.Model) error {
		return r.RunOneStep()
	}
}
