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
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// gridSnapshot is the gob wire form of a RasterGrid.
type gridSnapshot struct {
	Rows, Cols int
	Dx         float64
	Status     []NodeStatus
	Fields     map[string][]float64
}

// Save returns a function that saves the simulation state to a gob
// stream (format description at https://golang.org/pkg/encoding/gob/).
func Save(w io.Writer) DomainManipulator {
	return func(d *Model) error {
		e := gob.NewEncoder(w)
		s := gridSnapshot{
			Rows:   d.Grid.Rows,
			Cols:   d.Grid.Cols,
			Dx:     d.Grid.Dx,
			Status: d.Grid.Status,
			Fields: d.Grid.fields,
		}
		if err := e.Encode(s); err != nil {
			return fmt.Errorf("landevo.Model.Save: %v", err)
		}
		return nil
	}
}

// Load returns a function that loads the state from a previously Saved
// stream into a Model, replacing its grid.
func Load(r io.Reader) DomainManipulator {
	return func(d *Model) error {
		dec := gob.NewDecoder(r)
		var s gridSnapshot
		if err := dec.Decode(&s); err != nil {
			return fmt.Errorf("landevo.Model.Load: %v", err)
		}
		d.Grid = &RasterGrid{
			Rows:   s.Rows,
			Cols:   s.Cols,
			Dx:     s.Dx,
			Status: s.Status,
			fields: s.Fields,
		}
		return nil
	}
}

// WriteFields writes the grid topology and all grid fields to netcdf
// file w.
func (g *RasterGrid) WriteFields(w *os.File) error {
	h := cdf.NewHeader([]string{"y", "x"}, []int{g.Rows, g.Cols})
	h.AddAttribute("", "comment", "LandEvo landscape state file")
	h.AddAttribute("", "dx", []float64{g.Dx})
	h.AddAttribute("", "nrows", []int32{int32(g.Rows)})
	h.AddAttribute("", "ncols", []int32{int32(g.Cols)})

	// Sort the names so they write in the same order every time.
	names := make([]string, 0, len(g.fields))
	for n := range g.fields {
		names = append(names, n)
	}
	sort.Strings(names)

	h.AddVariable("node_status", []string{"y", "x"}, []float32{0})
	for _, name := range names {
		h.AddVariable(name, []string{"y", "x"}, []float32{0})
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}

	status := sparse.ZerosDense(g.Rows, g.Cols)
	for i, s := range g.Status {
		status.Elements[i] = float64(s)
	}
	if err := writeNCF(f, "node_status", status); err != nil {
		return fmt.Errorf("landevo: writing variable node_status to netcdf file: %v", err)
	}
	for _, name := range names {
		data := sparse.ZerosDense(g.Rows, g.Cols)
		copy(data.Elements, g.fields[name])
		if err := writeNCF(f, name, data); err != nil {
			return fmt.Errorf("landevo: writing variable %s to netcdf file: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, Var string, data *sparse.DenseArray) error {
	// Check that data matches dimensions.
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(Var)
	start := make([]int, len(end))
	w := f.Writer(Var, start, end)
	_, err := w.Write(data32)
	return err
}

// LoadFields creates a grid from a netcdf file previously written by
// WriteFields.
func LoadFields(rw cdf.ReaderWriterAt) (*RasterGrid, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("landevo.LoadFields: %v", err)
	}
	rows := int(f.Header.GetAttribute("", "nrows").([]int32)[0])
	cols := int(f.Header.GetAttribute("", "ncols").([]int32)[0])
	dx := f.Header.GetAttribute("", "dx").([]float64)[0]

	g := NewRasterGrid(rows, cols, dx)
	for _, v := range f.Header.Variables() {
		dims := f.Header.Lengths(v)
		n := 1
		for _, d := range dims {
			n *= d
		}
		if n != g.NumNodes() {
			return nil, fmt.Errorf("landevo.LoadFields: variable %s has %d elements for a %d-node grid", v, n, g.NumNodes())
		}
		tmp := make([]float32, n)
		if _, err := f.Reader(v, nil, nil).Read(tmp); err != nil {
			return nil, fmt.Errorf("landevo.LoadFields: %v", err)
		}
		if v == "node_status" {
			for i, val := range tmp {
				g.Status[i] = NodeStatus(val)
			}
			continue
		}
		field := g.AddZeros(v)
		for i, val := range tmp {
			field[i] = float64(val)
		}
	}
	return g, nil
}
