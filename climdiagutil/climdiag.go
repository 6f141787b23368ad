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

package climdiagutil

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spatialmodel/climdiag"
)

// Average computes the area-weighted global average of variable
// varName in the configured input file, printing the result to w.
// If outputFile is not empty, the result is additionally saved there
// in NetCDF format.
func Average(w io.Writer, varName string, timeMean, useSupplied bool, outputFile string) error {
	logger.WithField("variable", varName).Info("computing global average")
	d, err := openInput(outChan())
	if err != nil {
		return err
	}
	defer d.Close()

	f, avg, err := averageVar(d, varName, timeMean, useSupplied)
	if err != nil {
		return err
	}
	if err := printField(w, varName+" global average", avg); err != nil {
		return err
	}
	if outputFile == "" {
		return nil
	}
	o := new(climdiag.Diagnostics)
	if err := o.AddVariable(varName+"_avg", avg.Dims,
		globalAverageDescription(f), f.Units, avg.Data); err != nil {
		return err
	}
	return writeDiagnostics(o, outputFile)
}

// averageVar reads varName from d, taking its time mean if timeMean
// is set, and returns the field together with its area-weighted
// global average.
func averageVar(d *climdiag.Dataset, varName string, timeMean, useSupplied bool) (f, avg *climdiag.Field, err error) {
	grid, err := d.Grid()
	if err != nil {
		return nil, nil, err
	}
	weights, err := grid.Weights(useSupplied)
	if err != nil {
		return nil, nil, err
	}
	if timeMean {
		f, err = d.TimeMean(varName)
	} else {
		f, err = d.ReadVar(varName)
	}
	if err != nil {
		return nil, nil, err
	}
	avg, err = climdiag.GlobalAverage(f, weights)
	if err != nil {
		return nil, nil, err
	}
	return f, avg, nil
}

// Zonal computes the zonal mean of variable varName in the configured
// input file, printing the result to w. If outputFile is not empty,
// the result is additionally saved there in NetCDF format.
func Zonal(w io.Writer, varName string, timeMean bool, outputFile string) error {
	logger.WithField("variable", varName).Info("computing zonal mean")
	d, err := openInput(outChan())
	if err != nil {
		return err
	}
	defer d.Close()

	var f *climdiag.Field
	if timeMean {
		f, err = d.TimeMean(varName)
	} else {
		f, err = d.ReadVar(varName)
	}
	if err != nil {
		return err
	}
	zm, err := climdiag.ZonalMean(f)
	if err != nil {
		return err
	}
	if len(zm.Data.Shape) == 1 {
		grid, err := d.Grid()
		if err != nil {
			return err
		}
		for i, lat := range grid.Lat {
			fmt.Fprintf(w, "%g\t%g\n", lat, zm.Data.Elements[i])
		}
	} else if err := printField(w, varName+" zonal mean", zm); err != nil {
		return err
	}
	if outputFile == "" {
		return nil
	}
	o := new(climdiag.Diagnostics)
	if err := o.AddVariable(varName+"_zonal", zm.Dims,
		"Zonal mean "+f.Description, f.Units, zm.Data); err != nil {
		return err
	}
	return writeDiagnostics(o, outputFile)
}

// Diag computes the given derived diagnostics from the configured
// input file along with the area-weighted global average of each,
// writes the results to outputFile in NetCDF format, and prints the
// averages to w.
func Diag(w io.Writer, vars []climdiag.DerivedVar, useSupplied bool, outputFile string) error {
	d, err := openInput(outChan())
	if err != nil {
		return err
	}
	defer d.Close()

	grid, err := d.Grid()
	if err != nil {
		return err
	}
	weights, err := grid.Weights(useSupplied)
	if err != nil {
		return err
	}
	o, err := climdiag.ComputeDerived(d, vars)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(o.Data))
	for name := range o.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dd := o.Data[name]
		f := &climdiag.Field{Data: dd.Data, Dims: dd.Dims, Description: dd.Description, Units: dd.Units}
		avg, err := climdiag.GlobalAverage(f, weights)
		if err != nil {
			return err
		}
		logger.WithField("variable", name).Info("computed diagnostic")
		if err := printField(w, name+" global average", avg); err != nil {
			return err
		}
		if err := o.AddVariable(name+"_avg", avg.Dims,
			globalAverageDescription(f), f.Units, avg.Data); err != nil {
			return err
		}
	}
	return writeDiagnostics(o, outputFile)
}

// Plot draws variable varName from the configured input file, as a
// "heatmap", "contour", or "zonal" figure depending on plotType, and
// saves it to plotFile.
func Plot(varName string, timeMean bool, plotType, plotFile string) error {
	d, err := openInput(outChan())
	if err != nil {
		return err
	}
	defer d.Close()

	grid, err := d.Grid()
	if err != nil {
		return err
	}
	var f *climdiag.Field
	if timeMean {
		f, err = d.TimeMean(varName)
	} else {
		f, err = d.ReadVar(varName)
	}
	if err != nil {
		return err
	}
	title := f.Description
	if title == "" {
		title = varName
	}
	switch plotType {
	case "heatmap":
		return climdiag.HeatMapPlot(f, grid, title, plotFile)
	case "contour":
		return climdiag.ContourPlot(f, grid, title, plotFile)
	case "zonal":
		return climdiag.ZonalMeanPlot(f, grid, title, plotFile)
	default:
		return fmt.Errorf("climdiag: invalid plot type %s; "+
			"options are heatmap, contour, and zonal", plotType)
	}
}

// printField writes the values of f to w, preceded by label.
func printField(w io.Writer, label string, f *climdiag.Field) error {
	if len(f.Data.Shape) == 0 {
		v, err := f.Scalar()
		if err != nil {
			return err
		}
		if f.Units != "" {
			_, err = fmt.Fprintf(w, "%s: %g %s\n", label, v, f.Units)
		} else {
			_, err = fmt.Fprintf(w, "%s: %g\n", label, v)
		}
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %v\n", label, f.Data.Elements)
	return err
}

func globalAverageDescription(f *climdiag.Field) string {
	if f.Description == "" {
		return "Global average"
	}
	return "Global average " + f.Description
}

// writeDiagnostics saves d to a NetCDF file at path.
func writeDiagnostics(d *climdiag.Diagnostics, path string) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("climdiag: creating output file: %v", err)
	}
	defer w.Close()
	return d.Write(w)
}
