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

package landevoutil

import (
	"fmt"
	"io"
	"os"

	"github.com/spatialmodel/landevo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// fieldGrid adapts a grid field to the plotter.GridXYZ interface.
type fieldGrid struct {
	g *landevo.RasterGrid
	f []float64
}

func (fg fieldGrid) Dims() (c, r int)   { return fg.g.Cols, fg.g.Rows }
func (fg fieldGrid) Z(c, r int) float64 { return fg.f[fg.g.NodeAt(r, c)] }
func (fg fieldGrid) X(c int) float64    { return float64(c) * fg.g.Dx }
func (fg fieldGrid) Y(r int) float64    { return float64(r) * fg.g.Dx }

// PlotField renders the named grid field as a heat map and writes it
// to w in PNG format.
func PlotField(g *landevo.RasterGrid, field string, w io.Writer) error {
	f, err := g.Field(field)
	if err != nil {
		return fmt.Errorf("landevoutil: %v", err)
	}
	fg := fieldGrid{g: g, f: f}

	cm := moreland.SmoothBlueRed()
	min, max := f[0], f[0]
	for _, v := range f {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if min == max { // a flat field still needs a valid color range
		max = min + 1
	}
	cm.SetMin(min)
	cm.SetMax(max)

	p := plot.New()
	p.Title.Text = field
	p.X.Label.Text = "x [m]"
	p.Y.Label.Text = "y [m]"
	p.Add(plotter.NewHeatMap(fg, cm.Palette(255)))

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("landevoutil: rendering %s: %v", field, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("landevoutil: writing plot: %v", err)
	}
	return nil
}

// Plot reads a saved grid state file and renders one of its fields to
// a PNG file.
func Plot(gridData, field, plotFile string) error {
	if gridData == "" {
		return fmt.Errorf("landevoutil: the plot command requires the GridData configuration variable")
	}
	r, err := os.Open(gridData)
	if err != nil {
		return fmt.Errorf("landevoutil: opening grid state file: %v", err)
	}
	defer r.Close()
	g, err := landevo.LoadFields(r)
	if err != nil {
		return err
	}
	w, err := os.Create(plotFile)
	if err != nil {
		return fmt.Errorf("landevoutil: creating plot file: %v", err)
	}
	defer w.Close()
	return PlotField(g, field, w)
}
