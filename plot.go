/*
Copyright © 2019 the ClimDiag authors.
This file is part of ClimDiag.

ClimDiag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ClimDiag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ClimDiag.  If not, see <http://www.gnu.org/licenses/>.
*/

package climdiag

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// gridXYZ adapts a 2-dimensional (lat, lon) field to the
// plotter.GridXYZ interface.
type gridXYZ struct {
	grid *Grid
	data *Field
}

func (p gridXYZ) Dims() (c, r int)   { return p.grid.Nlon(), p.grid.Nlat() }
func (p gridXYZ) Z(c, r int) float64 { return p.data.Data.Get(r, c) }
func (p gridXYZ) X(c int) float64    { return p.grid.Lon[c] }
func (p gridXYZ) Y(r int) float64    { return p.grid.Lat[r] }

// checkPlottable returns an error if f is not a 2-dimensional field
// on grid g.
func checkPlottable(f *Field, g *Grid) error {
	sh := f.Data.Shape
	if len(sh) != 2 {
		return fmt.Errorf("climdiag: plotting requires a 2-dimensional (lat, lon) field; got shape %v", sh)
	}
	if sh[0] != g.Nlat() || sh[1] != g.Nlon() {
		return fmt.Errorf("climdiag: field shape %v does not match grid (%d, %d)", sh, g.Nlat(), g.Nlon())
	}
	return nil
}

// HeatMapPlot renders f, which must be a 2-dimensional (lat, lon)
// field on grid g, as a heat map and saves it to fileName. The output
// format is determined by the file extension (e.g. .png or .pdf).
func HeatMapPlot(f *Field, g *Grid, title, fileName string) error {
	if err := checkPlottable(f, g); err != nil {
		return err
	}
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.X.Label.Text = "longitude [degrees east]"
	p.Y.Label.Text = "latitude [degrees north]"
	h := plotter.NewHeatMap(gridXYZ{grid: g, data: f}, palette.Heat(16, 1))
	p.Add(h)
	return p.Save(6*vg.Inch, 4*vg.Inch, fileName)
}

// ContourPlot renders f, which must be a 2-dimensional (lat, lon)
// field on grid g, as a filled contour plot and saves it to fileName.
func ContourPlot(f *Field, g *Grid, title, fileName string) error {
	if err := checkPlottable(f, g); err != nil {
		return err
	}
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.X.Label.Text = "longitude [degrees east]"
	p.Y.Label.Text = "latitude [degrees north]"
	c := plotter.NewContour(gridXYZ{grid: g, data: f}, nil, palette.Heat(16, 1))
	p.Add(c)
	return p.Save(6*vg.Inch, 4*vg.Inch, fileName)
}

// ZonalMeanPlot renders the zonal mean of f, which must be a
// 2-dimensional (lat, lon) field on grid g, as a line plot of the
// mean value against latitude and saves it to fileName.
func ZonalMeanPlot(f *Field, g *Grid, title, fileName string) error {
	if err := checkPlottable(f, g); err != nil {
		return err
	}
	zm, err := ZonalMean(f)
	if err != nil {
		return err
	}
	pts := make(plotter.XYs, g.Nlat())
	for i := range pts {
		pts[i].X = g.Lat[i]
		pts[i].Y = zm.Data.Elements[i]
	}
	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = title
	p.X.Label.Text = "latitude [degrees north]"
	if f.Units != "" {
		p.Y.Label.Text = fmt.Sprintf("%s [%s]", f.Description, f.Units)
	} else {
		p.Y.Label.Text = f.Description
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(l)
	return p.Save(6*vg.Inch, 4*vg.Inch, fileName)
}
