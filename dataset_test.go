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
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/cdf"
)

// writeTestDataset writes a small model-history file to a temporary
// directory and returns its path. The file has 3 time steps on a
// 5x4 (lat, lon) grid.
func writeTestDataset(t *testing.T) string {
	t.Helper()

	const (
		nt, nlat, nlon = 3, 5, 4
	)
	lat := []float64{-90, -45, 0, 45, 90}
	lon := []float64{0, 90, 180, 270}
	// Sine-of-edge-difference area weights, as CESM supplies them.
	gw := make([]float64, nlat)
	for i, l := range lat {
		hi := math.Min(l+22.5, 90) * degToRad
		lo := math.Max(l-22.5, -90) * degToRad
		gw[i] = math.Sin(hi) - math.Sin(lo)
	}

	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{nt, nlat, nlon})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "long_name", "latitude")
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "long_name", "longitude")
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddVariable("gw", []string{"lat"}, []float64{0})
	h.AddAttribute("gw", "long_name", "gauss weights")
	h.AddVariable("TS", []string{"time", "lat", "lon"}, []float64{0})
	h.AddAttribute("TS", "long_name", "Surface temperature")
	h.AddAttribute("TS", "units", "K")
	for _, v := range []string{"FSNT", "FSNTC", "FLNT", "FLNTC"} {
		h.AddVariable(v, []string{"lat", "lon"}, []float64{0})
		h.AddAttribute(v, "units", "W/m2")
	}
	h.AddVariable("PHIS", []string{"lat", "lon"}, []float64{0})
	h.AddAttribute("PHIS", "long_name", "Surface geopotential")
	h.AddAttribute("PHIS", "units", "m2/s2")
	h.Define()

	path := filepath.Join(t.TempDir(), "history.nc")
	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	f, err := cdf.Create(w, h)
	if err != nil {
		t.Fatal(err)
	}

	write := func(v string, data []float64) {
		end := f.Header.Lengths(v)
		start := make([]int, len(end))
		wr := f.Writer(v, start, end)
		if _, err := wr.Write(data); err != nil {
			t.Fatalf("writing %s: %v", v, err)
		}
	}
	write("lat", lat)
	write("lon", lon)
	write("gw", gw)

	// TS holds 280+10*t everywhere at time step t, so its time mean
	// is 290 everywhere.
	ts := make([]float64, nt*nlat*nlon)
	for it := 0; it < nt; it++ {
		for i := 0; i < nlat*nlon; i++ {
			ts[it*nlat*nlon+i] = 280 + 10*float64(it)
		}
	}
	write("TS", ts)

	uniform := func(val float64) []float64 {
		d := make([]float64, nlat*nlon)
		for i := range d {
			d[i] = val
		}
		return d
	}
	write("FSNT", uniform(200))
	write("FSNTC", uniform(240))
	write("FLNT", uniform(210))
	write("FLNTC", uniform(230))
	write("PHIS", uniform(980.665))

	if err := cdf.UpdateNumRecs(w); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDatasetHeader(t *testing.T) {
	d, err := OpenDataset(writeTestDataset(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	wantVars := []string{"FLNT", "FLNTC", "FSNT", "FSNTC", "PHIS", "TS", "gw", "lat", "lon"}
	if vars := d.Variables(); !reflect.DeepEqual(vars, wantVars) {
		t.Errorf("variables = %v, want %v", vars, wantVars)
	}
	if dims := d.Dims("TS"); !reflect.DeepEqual(dims, []string{"time", "lat", "lon"}) {
		t.Errorf("TS dims = %v", dims)
	}
	if lengths := d.Lengths("TS"); !reflect.DeepEqual(lengths, []int{3, 5, 4}) {
		t.Errorf("TS lengths = %v", lengths)
	}
	if units := d.Attr("TS", "units"); units != "K" {
		t.Errorf("TS units = %q, want K", units)
	}
	if a := d.Attr("TS", "missing"); a != "" {
		t.Errorf("missing attribute = %q, want empty", a)
	}

	var buf bytes.Buffer
	d.Describe(&buf)
	if !bytes.Contains(buf.Bytes(), []byte("TS(time,lat,lon) [K]: Surface temperature")) {
		t.Errorf("unexpected describe output:\n%s", buf.String())
	}
}

func TestReadVar(t *testing.T) {
	d, err := OpenDataset(writeTestDataset(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	f, err := d.ReadVar("lat")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{-90, -45, 0, 45, 90}
	if !reflect.DeepEqual(f.Data.Elements, want) {
		t.Errorf("lat = %v, want %v", f.Data.Elements, want)
	}
	if f.Units != "degrees_north" {
		t.Errorf("lat units = %q", f.Units)
	}

	// Edits to a returned field must not affect the cache.
	f.Data.Elements[0] = -9999
	f2, err := d.ReadVar("lat")
	if err != nil {
		t.Fatal(err)
	}
	if f2.Data.Elements[0] != -90 {
		t.Errorf("cached lat was modified: %v", f2.Data.Elements)
	}

	if _, err := d.ReadVar("nosuchvar"); err == nil {
		t.Error("expected error for missing variable")
	}
}

func TestReadRecord(t *testing.T) {
	d, err := OpenDataset(writeTestDataset(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	rec, err := d.ReadRecord("TS", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rec.Shape, []int{5, 4}) {
		t.Fatalf("record shape = %v, want [5 4]", rec.Shape)
	}
	for i, v := range rec.Elements {
		if v != 290 {
			t.Fatalf("element %d = %g, want 290", i, v)
		}
	}
}

func TestNextData(t *testing.T) {
	d, err := OpenDataset(writeTestDataset(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	next := d.NextData("TS")
	var n int
	for {
		data, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		want := 280 + 10*float64(n)
		if data.Elements[0] != want {
			t.Errorf("record %d = %g, want %g", n, data.Elements[0], want)
		}
		n++
	}
	if n != 3 {
		t.Errorf("read %d records, want 3", n)
	}
}

func TestTimeMean(t *testing.T) {
	d, err := OpenDataset(writeTestDataset(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	f, err := d.TimeMean("TS")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f.Data.Shape, []int{5, 4}) {
		t.Fatalf("time mean shape = %v, want [5 4]", f.Data.Shape)
	}
	for i, v := range f.Data.Elements {
		if math.Abs(v-290) > testTolerance {
			t.Fatalf("element %d = %g, want 290", i, v)
		}
	}

	// A variable without a time dimension is returned unchanged.
	fsnt, err := d.TimeMean("FSNT")
	if err != nil {
		t.Fatal(err)
	}
	if fsnt.Data.Elements[0] != 200 {
		t.Errorf("FSNT = %g, want 200", fsnt.Data.Elements[0])
	}
}

func TestDatasetGrid(t *testing.T) {
	d, err := OpenDataset(writeTestDataset(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	grid, err := d.Grid()
	if err != nil {
		t.Fatal(err)
	}
	if grid.Nlat() != 5 || grid.Nlon() != 4 {
		t.Fatalf("grid size = (%d, %d), want (5, 4)", grid.Nlat(), grid.Nlon())
	}
	if grid.GaussWeights == nil {
		t.Fatal("supplied weights not read")
	}

	// The area-weighted time-mean surface temperature of the uniform
	// test field is exactly its value, using either weight source.
	ts, err := d.TimeMean("TS")
	if err != nil {
		t.Fatal(err)
	}
	for _, useSupplied := range []bool{false, true} {
		w, err := grid.Weights(useSupplied)
		if err != nil {
			t.Fatal(err)
		}
		avg, err := GlobalAverage(ts, w)
		if err != nil {
			t.Fatal(err)
		}
		v, err := avg.Scalar()
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(v-290) > testTolerance {
			t.Errorf("supplied=%v: average = %g, want 290", useSupplied, v)
		}
	}
}
