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
	"io"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// NextData is a type of function that returns data for the next time
// step. If there are no more time steps, it should return the io.EOF
// error.
type NextData func() (*sparse.DenseArray, error)

// GlobalAverage computes the area-weighted mean of f over the
// latitude and longitude axes, which must be the final two axes of
// the array. weights holds one weight per latitude row, normalized so
// the weights average to one (see AreaWeights); the weight is
// broadcast across longitude and all leading axes. The returned field
// retains the leading axes (time, level), or is a scalar if latitude
// and longitude were the only axes.
//
// A zero-dimensional input is already spatially reduced and is
// returned unchanged, so the operation is idempotent under
// re-application to its own output.
func GlobalAverage(f *Field, weights []float64) (*Field, error) {
	sh := f.Data.Shape
	if len(sh) == 0 {
		return f.Copy(), nil
	}
	if len(sh) < 2 {
		return nil, fmt.Errorf("climdiag: global average requires latitude and longitude axes; got shape %v", sh)
	}
	nlat, nlon := sh[len(sh)-2], sh[len(sh)-1]
	if nlat == 0 || nlon == 0 {
		return nil, fmt.Errorf("climdiag: global average over empty spatial axis; got shape %v", sh)
	}
	if len(weights) != nlat {
		return nil, fmt.Errorf("climdiag: weight length %d does not match latitude axis length %d", len(weights), nlat)
	}

	lead := sh[:len(sh)-2]
	out := sparse.ZerosDense(lead...)
	stride := nlat * nlon
	for c := range out.Elements {
		block := f.Data.Elements[c*stride : (c+1)*stride]
		var sum float64
		for j := 0; j < nlat; j++ {
			sum += weights[j] * floats.Sum(block[j*nlon:(j+1)*nlon])
		}
		out.Elements[c] = sum / float64(stride)
	}
	return &Field{
		Data:        out,
		Dims:        append([]string{}, f.Dims[:max(len(f.Dims)-2, 0)]...),
		Description: f.Description,
		Units:       f.Units,
	}, nil
}

// UnweightedAverage computes the plain arithmetic mean of f over the
// final two (latitude and longitude) axes, without any correction for
// the convergence of meridians toward the poles. It is primarily
// useful for demonstrating the bias that area weighting removes.
func UnweightedAverage(f *Field) (*Field, error) {
	sh := f.Data.Shape
	if len(sh) < 2 {
		return nil, fmt.Errorf("climdiag: unweighted average requires latitude and longitude axes; got shape %v", sh)
	}
	ones := make([]float64, sh[len(sh)-2])
	for i := range ones {
		ones[i] = 1
	}
	return GlobalAverage(f, ones)
}

// ZonalMean computes the mean of f over the longitude axis only,
// retaining latitude and all leading axes. No area weighting is
// needed because all cells in a latitude row have equal area.
func ZonalMean(f *Field) (*Field, error) {
	sh := f.Data.Shape
	if len(sh) < 1 {
		return nil, fmt.Errorf("climdiag: zonal mean of a scalar field")
	}
	nlon := sh[len(sh)-1]
	if nlon == 0 {
		return nil, fmt.Errorf("climdiag: zonal mean over empty longitude axis")
	}
	out := sparse.ZerosDense(sh[:len(sh)-1]...)
	for c := range out.Elements {
		out.Elements[c] = floats.Sum(f.Data.Elements[c*nlon:(c+1)*nlon]) / float64(nlon)
	}
	return &Field{
		Data:        out,
		Dims:        append([]string{}, f.Dims[:max(len(f.Dims)-1, 0)]...),
		Description: f.Description,
		Units:       f.Units,
	}, nil
}

// average calculates the arithmetic mean of a set of arrays.
func average(dataFunc NextData) (*sparse.DenseArray, error) {
	var avgdata *sparse.DenseArray
	firstData := true
	var n int
	for {
		data, err := dataFunc()
		if err != nil {
			if err == io.EOF {
				return arrayAverage(avgdata, n), nil
			}
			return nil, err
		}
		if firstData {
			avgdata = sparse.ZerosDense(data.Shape...)
			firstData = false
		}
		avgdata.AddDense(data)
		n++
	}
}

func arrayAverage(s *sparse.DenseArray, numTsteps int) *sparse.DenseArray {
	if s == nil {
		return nil
	}
	n := float64(numTsteps)
	for i, val := range s.Elements {
		s.Elements[i] = val / n
	}
	return s
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
