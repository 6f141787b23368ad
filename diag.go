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
	"os"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// DerivedVar defines a diagnostic variable computed from an
// expression over dataset variables. Expressions can use the
// standard arithmetic operators; variable names refer to variables
// in the input dataset, which are averaged over time before the
// expression is evaluated.
type DerivedVar struct {
	Name        string
	Expression  string
	Description string
	Units       string
}

// DefaultDerivedVars are the derived radiative-flux diagnostics
// computed when no others are specified. FSNT and FLNT are the
// all-sky net shortwave and longwave fluxes at the top of the model,
// and FSNTC and FLNTC are their clear-sky counterparts.
var DefaultDerivedVars = []DerivedVar{
	{
		Name:        "SWCF",
		Expression:  "FSNT - FSNTC",
		Description: "Shortwave cloud forcing",
		Units:       "W/m2",
	},
	{
		Name:        "LWCF",
		Expression:  "FLNTC - FLNT",
		Description: "Longwave cloud forcing",
		Units:       "W/m2",
	},
	{
		Name:        "RESTOM",
		Expression:  "FSNT - FLNT",
		Description: "Net radiative flux at top of model",
		Units:       "W/m2",
	},
}

// Diagnostics holds a set of processed diagnostic variables that can
// be written to, and loaded from, a NetCDF file.
type Diagnostics struct {
	// Data is a map of information about the processed variables,
	// with the keys being the variable names.
	Data map[string]struct {
		Dims        []string           // netcdf dimensions for this variable
		Description string             // variable description
		Units       string             // variable units
		Data        *sparse.DenseArray // variable data
	}

	dimLengths map[string]int
}

// AddVariable adds data for a new variable to d. The dimension
// lengths implied by dims and the data shape must be consistent with
// previously added variables.
func (d *Diagnostics) AddVariable(name string, dims []string, description, units string, data *sparse.DenseArray) error {
	if len(dims) != len(data.Shape) {
		return fmt.Errorf("climdiag: variable %s has %d dimension names but %d axes", name, len(dims), len(data.Shape))
	}
	if d.Data == nil {
		d.Data = make(map[string]struct {
			Dims        []string
			Description string
			Units       string
			Data        *sparse.DenseArray
		})
		d.dimLengths = make(map[string]int)
	}
	for i, dim := range dims {
		if l, ok := d.dimLengths[dim]; ok {
			if l != data.Shape[i] {
				return fmt.Errorf("climdiag: variable %s dimension %s has length %d; previously added as %d",
					name, dim, data.Shape[i], l)
			}
		} else {
			d.dimLengths[dim] = data.Shape[i]
		}
	}
	d.Data[name] = struct {
		Dims        []string
		Description string
		Units       string
		Data        *sparse.DenseArray
	}{
		Dims:        dims,
		Description: description,
		Units:       units,
		Data:        data,
	}
	return nil
}

// Write writes d to NetCDF file w.
func (d *Diagnostics) Write(w *os.File) error {
	// Sort the names so they write in the same order every time.
	names := make([]string, 0, len(d.Data))
	for n := range d.Data {
		names = append(names, n)
	}
	sort.Strings(names)

	dims := make([]string, 0, len(d.dimLengths))
	for dim := range d.dimLengths {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	lengths := make([]int, len(dims))
	for i, dim := range dims {
		lengths[i] = d.dimLengths[dim]
	}

	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "comment", "ClimDiag global diagnostics data file")
	h.AddAttribute("", "data_version", DataVersion)
	for _, name := range names {
		dd := d.Data[name]
		h.AddVariable(name, dd.Dims, []float32{0})
		h.AddAttribute(name, "long_name", dd.Description)
		h.AddAttribute(name, "units", dd.Units)
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := writeNCF(f, name, d.Data[name].Data); err != nil {
			return fmt.Errorf("climdiag: writing variable %s to netcdf file: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

// LoadDiagnostics loads diagnostic data from a netcdf file.
func LoadDiagnostics(rw cdf.ReaderWriterAt) (*Diagnostics, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("climdiag.LoadDiagnostics: %v", err)
	}
	dataVersion := f.Header.GetAttribute("", "data_version")
	if dataVersion != nil && dataVersion.(string) != DataVersion {
		return nil, fmt.Errorf("climdiag.LoadDiagnostics: data version %s is incompatible "+
			"with the required version %s", dataVersion, DataVersion)
	}
	o := new(Diagnostics)
	for _, v := range f.Header.Variables() {
		dims := f.Header.Lengths(v)
		r := f.Reader(v, nil, nil)
		buf := r.Zero(-1)
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("climdiag.LoadDiagnostics: %v", err)
		}
		vals, err := toFloat64(buf)
		if err != nil {
			return nil, fmt.Errorf("climdiag.LoadDiagnostics: variable %s: %v", v, err)
		}
		data := sparse.ZerosDense(dims...)
		if len(vals) != len(data.Elements) {
			return nil, fmt.Errorf("climdiag.LoadDiagnostics: variable %s dims give %d elements but "+
				"array length is %d", v, len(data.Elements), len(vals))
		}
		copy(data.Elements, vals)
		var desc, units string
		if a := f.Header.GetAttribute(v, "long_name"); a != nil {
			desc, _ = a.(string)
		}
		if a := f.Header.GetAttribute(v, "units"); a != nil {
			units, _ = a.(string)
		}
		if err := o.AddVariable(v, f.Header.Dimensions(v), desc, units, data); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// writeNCF writes the data for variable Var to netcdf file f.
func writeNCF(f *cdf.File, Var string, data *sparse.DenseArray) error {
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

// ComputeDerived evaluates the given derived-variable definitions
// against the time means of the variables in the dataset and returns
// the results. Each expression is evaluated element-wise; all
// variables used in one expression must have the same shape.
func ComputeDerived(d *Dataset, vars []DerivedVar) (*Diagnostics, error) {
	o := new(Diagnostics)
	for _, dv := range vars {
		expression, err := govaluate.NewEvaluableExpression(dv.Expression)
		if err != nil {
			return nil, fmt.Errorf("climdiag: derived variable %s: %v", dv.Name, err)
		}
		inputs := removeDuplicates(expression.Vars())
		fields := make(map[string]*Field, len(inputs))
		var dims []string
		var shape []int
		for _, v := range inputs {
			f, err := d.TimeMean(v)
			if err != nil {
				return nil, fmt.Errorf("climdiag: derived variable %s: %v", dv.Name, err)
			}
			if shape == nil {
				shape = f.Data.Shape
				dims = f.Dims
			} else if !sameShape(shape, f.Data.Shape) {
				return nil, fmt.Errorf("climdiag: derived variable %s: input %s has shape %v; expected %v",
					dv.Name, v, f.Data.Shape, shape)
			}
			fields[v] = f
		}
		result := sparse.ZerosDense(shape...)
		params := make(map[string]interface{}, len(inputs))
		for i := range result.Elements {
			for _, v := range inputs {
				params[v] = fields[v].Data.Elements[i]
			}
			val, err := expression.Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("climdiag: derived variable %s: %v", dv.Name, err)
			}
			v, ok := val.(float64)
			if !ok {
				return nil, fmt.Errorf("climdiag: derived variable %s: expression %q evaluates to %T; must be a number",
					dv.Name, dv.Expression, val)
			}
			result.Elements[i] = v
		}
		if err := o.AddVariable(dv.Name, dims, dv.Description, dv.Units, result); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Topography returns the surface elevation [m] of the dataset,
// converted from the surface geopotential variable PHIS [m2/s2].
func Topography(d *Dataset) (*Field, error) {
	phis, err := d.ReadVar("PHIS")
	if err != nil {
		return nil, err
	}
	data := phis.Data
	if len(data.Shape) > 2 {
		// Surface geopotential is constant in time; use the first
		// record.
		data, err = d.ReadRecord("PHIS", 0)
		if err != nil {
			return nil, err
		}
	}
	elev := data.ScaleCopy(1 / g)
	dims := phis.Dims
	if len(dims) > 2 {
		dims = dims[len(dims)-2:]
	}
	return &Field{
		Data:        elev,
		Dims:        dims,
		Description: "Surface elevation",
		Units:       "m",
	}, nil
}

// removeDuplicates removes all duplicated strings from a slice,
// returning a slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]string)
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = val
		}
	}
	return result
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}
