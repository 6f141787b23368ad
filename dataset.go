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
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/ctessum/cdf"
	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
)

// Default coordinate variable names, following CF and CESM
// conventions.
const (
	DefaultLatVar    = "lat"
	DefaultLonVar    = "lon"
	DefaultWeightVar = "gw"
	DefaultTimeDim   = "time"
)

// Dataset provides access to the variables in a NetCDF-formatted
// climate-model output file. Repeated reads of the same variable are
// served from an in-memory cache.
type Dataset struct {
	f  *os.File
	cf *cdf.File

	// LatVar, LonVar, and WeightVar are the names of the latitude
	// and longitude coordinate variables and the source-supplied
	// area-weight variable, respectively, and TimeDim is the name of
	// the time dimension. They are set to DefaultLatVar,
	// DefaultLonVar, DefaultWeightVar, and DefaultTimeDim by
	// OpenDataset and can be changed before the first read.
	LatVar, LonVar, WeightVar string
	TimeDim                   string

	// CacheSize specifies the number of variables to be held in the
	// memory cache. The default is 20. CacheSize can only be changed
	// before the Dataset is first read from.
	CacheSize int

	cache     *requestcache.Cache
	cacheInit sync.Once

	msgChan chan string
}

// OpenDataset opens the NetCDF file at path. If msgChan is not nil,
// status messages will be sent to it.
func OpenDataset(path string, msgChan chan string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("climdiag: opening dataset: %v", err)
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("climdiag: opening dataset %s: %v", path, err)
	}
	return &Dataset{
		f:         f,
		cf:        cf,
		LatVar:    DefaultLatVar,
		LonVar:    DefaultLonVar,
		WeightVar: DefaultWeightVar,
		TimeDim:   DefaultTimeDim,
		CacheSize: 20,
		msgChan:   msgChan,
	}, nil
}

// Close closes the underlying file.
func (d *Dataset) Close() error { return d.f.Close() }

// Variables returns the names of the variables in the dataset, sorted
// alphabetically.
func (d *Dataset) Variables() []string {
	v := d.cf.Header.Variables()
	sort.Strings(v)
	return v
}

// Dims returns the dimension names of variable v, or nil if v is not
// in the dataset.
func (d *Dataset) Dims(v string) []string { return d.cf.Header.Dimensions(v) }

// Lengths returns the dimension lengths of variable v.
func (d *Dataset) Lengths(v string) []int { return d.cf.Header.Lengths(v) }

// Attr returns the string value of attribute a of variable v (or a
// global attribute if v is empty), or the empty string if the
// attribute is not present or not character data.
func (d *Dataset) Attr(v, a string) string {
	val := d.cf.Header.GetAttribute(v, a)
	if val == nil {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// Describe writes a human-readable summary of the dataset header to w.
func (d *Dataset) Describe(w io.Writer) {
	fmt.Fprintf(w, "%s\n", d.f.Name())
	for _, v := range d.Variables() {
		fmt.Fprintf(w, "\t%s(%s) [%s]: %s\n", v,
			strings.Join(d.Dims(v), ","), d.Attr(v, "units"), d.Attr(v, "long_name"))
	}
}

// ReadVar reads the entirety of variable name into a Field, converting
// the stored values to float64.
func (d *Dataset) ReadVar(name string) (*Field, error) {
	d.cacheInit.Do(func() {
		d.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			return d.readVar(request.(string))
		}, runtime.GOMAXPROCS(-1),
			requestcache.Deduplicate(), requestcache.Memory(d.CacheSize))
	})
	req := d.cache.NewRequest(context.TODO(), name, name)
	result, err := req.Result()
	if err != nil {
		return nil, err
	}
	// Return a copy so callers cannot inadvertently edit the cached
	// result.
	return result.(*Field).Copy(), nil
}

// readVar reads variable name without caching.
func (d *Dataset) readVar(name string) (*Field, error) {
	dims := d.cf.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("climdiag: read netcdf: variable %v not in file", name)
	}
	r := d.cf.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("climdiag: read netcdf variable %s: %v", name, err)
	}
	vals, err := toFloat64(buf)
	if err != nil {
		return nil, fmt.Errorf("climdiag: read netcdf variable %s: %v", name, err)
	}
	data := sparse.ZerosDense(dims...)
	copy(data.Elements, vals)
	if d.msgChan != nil {
		d.msgChan <- fmt.Sprintf("Read %s from %s", name, d.f.Name())
	}
	return &Field{
		Data:        data,
		Dims:        d.cf.Header.Dimensions(name),
		Description: d.Attr(name, "long_name"),
		Units:       d.Attr(name, "units"),
	}, nil
}

// ReadRecord reads the values of variable name at the given index
// along its leading (record, usually time) dimension.
func (d *Dataset) ReadRecord(name string, i int) (*sparse.DenseArray, error) {
	dims := d.cf.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("climdiag: read netcdf: variable %v not in file", name)
	}
	dims = dims[1:]
	nread := 1
	for _, dim := range dims {
		nread *= dim
	}
	start, end := make([]int, len(dims)+1), make([]int, len(dims)+1)
	start[0], end[0] = i, i+1
	r := d.cf.Reader(name, start, end)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("climdiag: read netcdf variable %s record %d: %v", name, i, err)
	}
	vals, err := toFloat64(buf)
	if err != nil {
		return nil, fmt.Errorf("climdiag: read netcdf variable %s: %v", name, err)
	}
	data := sparse.ZerosDense(dims...)
	copy(data.Elements, vals)
	return data, nil
}

// NextData returns a function that sequentially retrieves the records
// of variable name along its leading dimension, returning io.EOF after
// the last record.
func (d *Dataset) NextData(name string) NextData {
	dims := d.cf.Header.Lengths(name)
	var i int
	return func() (*sparse.DenseArray, error) {
		if len(dims) == 0 {
			return nil, fmt.Errorf("climdiag: read netcdf: variable %v not in file", name)
		}
		if i >= dims[0] {
			if d.msgChan != nil {
				d.msgChan <- fmt.Sprintf("Read %d records of %s from %s", i, name, d.f.Name())
			}
			return nil, io.EOF
		}
		data, err := d.ReadRecord(name, i)
		if err != nil {
			return nil, err
		}
		i++
		return data, nil
	}
}

// TimeMean returns the mean of variable name over its time dimension.
// Variables without a time dimension are returned unchanged.
func (d *Dataset) TimeMean(name string) (*Field, error) {
	dims := d.cf.Header.Dimensions(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("climdiag: read netcdf: variable %v not in file", name)
	}
	if dims[0] != d.TimeDim {
		return d.ReadVar(name)
	}
	data, err := average(d.NextData(name))
	if err != nil {
		return nil, err
	}
	return &Field{
		Data:        data,
		Dims:        dims[1:],
		Description: d.Attr(name, "long_name"),
		Units:       d.Attr(name, "units"),
	}, nil
}

// Grid reads the horizontal coordinates of the dataset, along with
// the source-supplied area weights if present.
func (d *Dataset) Grid() (*Grid, error) {
	lat, err := d.coordinate(d.LatVar)
	if err != nil {
		return nil, err
	}
	if len(lat) == 0 {
		return nil, fmt.Errorf("climdiag: dataset %s: empty latitude axis", d.f.Name())
	}
	lon, err := d.coordinate(d.LonVar)
	if err != nil {
		return nil, err
	}
	grid := &Grid{Lat: lat, Lon: lon}
	if hasVariable(d.cf.Header.Variables(), d.WeightVar) {
		grid.GaussWeights, err = d.coordinate(d.WeightVar)
		if err != nil {
			return nil, err
		}
	}
	return grid, nil
}

// coordinate reads the one-dimensional variable name.
func (d *Dataset) coordinate(name string) ([]float64, error) {
	f, err := d.ReadVar(name)
	if err != nil {
		return nil, err
	}
	if len(f.Data.Shape) != 1 {
		return nil, fmt.Errorf("climdiag: coordinate variable %s has shape %v; should be 1-dimensional",
			name, f.Data.Shape)
	}
	return f.Data.Elements, nil
}

func hasVariable(vars []string, name string) bool {
	for _, v := range vars {
		if v == name {
			return true
		}
	}
	return false
}

// toFloat64 converts a slice read from a NetCDF file to float64
// values.
func toFloat64(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported data type %T", buf)
	}
}
