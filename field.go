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

	"github.com/ctessum/sparse"
)

// Field holds a gridded data variable along with its metadata. The
// latitude and longitude axes, when present, are the final two axes
// of the array; leading axes (time, vertical level) come before them,
// matching NetCDF dimension ordering in climate-model output.
type Field struct {
	Data        *sparse.DenseArray
	Dims        []string // netcdf dimensions for this variable
	Description string   // variable description
	Units       string   // variable units
}

// Copy returns a deep copy of f.
func (f *Field) Copy() *Field {
	return &Field{
		Data:        f.Data.Copy(),
		Dims:        append([]string{}, f.Dims...),
		Description: f.Description,
		Units:       f.Units,
	}
}

// Scalar returns the value of a zero-dimensional (fully reduced)
// field.
func (f *Field) Scalar() (float64, error) {
	if len(f.Data.Shape) != 0 {
		return 0, fmt.Errorf("climdiag: field with shape %v is not a scalar", f.Data.Shape)
	}
	return f.Data.Elements[0], nil
}

// Record returns the i'th sub-array along the leading axis of f,
// for example one time step of a (time, lat, lon) variable.
func (f *Field) Record(i int) (*Field, error) {
	sh := f.Data.Shape
	if len(sh) == 0 {
		return nil, fmt.Errorf("climdiag: cannot take a record of a scalar field")
	}
	if i < 0 || i >= sh[0] {
		return nil, fmt.Errorf("climdiag: record index %d out of range [0,%d)", i, sh[0])
	}
	out := sparse.ZerosDense(sh[1:]...)
	stride := len(out.Elements)
	copy(out.Elements, f.Data.Elements[i*stride:(i+1)*stride])
	return &Field{
		Data:        out,
		Dims:        append([]string{}, f.Dims[1:]...),
		Description: f.Description,
		Units:       f.Units,
	}, nil
}
