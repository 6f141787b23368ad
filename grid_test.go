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
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

const testTolerance = 1.e-6

// testLats returns n latitude cell centers evenly spanning
// [-90, 90] degrees.
func testLats(n int) []float64 {
	lat := make([]float64, n)
	for i := range lat {
		lat[i] = -90 + 180*float64(i)/float64(n-1)
	}
	return lat
}

// uniformField returns a (lat, lon) field holding val everywhere.
func uniformField(nlat, nlon int, val float64) *Field {
	data := sparse.ZerosDense(nlat, nlon)
	for i := range data.Elements {
		data.Elements[i] = val
	}
	return &Field{Data: data, Dims: []string{"lat", "lon"}}
}

func TestAreaWeights(t *testing.T) {
	lat := testLats(91)
	w, err := AreaWeights(lat)
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	if mean := sum / float64(len(w)); math.Abs(mean-1) > testTolerance {
		t.Errorf("weight mean = %g, want 1", mean)
	}
	// Weights are proportional to cos(lat): the equator row must carry
	// the largest weight and the pole rows none.
	if w[45] <= w[10] {
		t.Errorf("equator weight %g not greater than mid-latitude weight %g", w[45], w[10])
	}
	if w[0] > testTolerance || w[90] > testTolerance {
		t.Errorf("pole weights = %g, %g, want 0", w[0], w[90])
	}
}

func TestAreaWeightsEmpty(t *testing.T) {
	if _, err := AreaWeights(nil); err == nil {
		t.Fatal("expected error for empty latitude axis")
	}
}

func TestAreaWeightsSingleRow(t *testing.T) {
	w, err := AreaWeights([]float64{37.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(w) != 1 || math.Abs(w[0]-1) > testTolerance {
		t.Errorf("single-row weights = %v, want [1]", w)
	}
}

func TestGlobalAverageUniform(t *testing.T) {
	// A spatially uniform field must average to exactly its value, on
	// any grid, because the weights are normalized to mean one.
	cases := []struct{ nlat, nlon int }{
		{5, 4}, {91, 180}, {2, 2}, {1, 8},
	}
	for _, c := range cases {
		f := uniformField(c.nlat, c.nlon, 287.6)
		w, err := AreaWeights(testLats(max(c.nlat, 2))[:c.nlat])
		if err != nil {
			t.Fatal(err)
		}
		avg, err := GlobalAverage(f, w)
		if err != nil {
			t.Fatal(err)
		}
		v, err := avg.Scalar()
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(v-287.6) > testTolerance {
			t.Errorf("grid (%d, %d): average = %g, want 287.6", c.nlat, c.nlon, v)
		}
	}
}

func TestGlobalAverageAllOnes(t *testing.T) {
	lat := []float64{-90, -45, 0, 45, 90}
	w, err := AreaWeights(lat)
	if err != nil {
		t.Fatal(err)
	}
	avg, err := GlobalAverage(uniformField(len(lat), 4, 1), w)
	if err != nil {
		t.Fatal(err)
	}
	v, err := avg.Scalar()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v-1) > testTolerance {
		t.Errorf("average of ones = %g, want 1", v)
	}
}

func TestGlobalAverageCosineField(t *testing.T) {
	// For a field equal to cos(lat), the weighted mean is
	// sum(cos²)/sum(cos), which differs measurably from the plain
	// arithmetic mean; the gap is the polar bias that area weighting
	// removes.
	lat := testLats(91)
	const nlon = 16
	f := sparse.ZerosDense(len(lat), nlon)
	var sumCos, sumCos2 float64
	for i, l := range lat {
		c := math.Cos(l * degToRad)
		sumCos += c
		sumCos2 += c * c
		for j := 0; j < nlon; j++ {
			f.Set(c, i, j)
		}
	}
	want := sumCos2 / sumCos

	field := &Field{Data: f, Dims: []string{"lat", "lon"}}
	w, err := AreaWeights(lat)
	if err != nil {
		t.Fatal(err)
	}
	avg, err := GlobalAverage(field, w)
	if err != nil {
		t.Fatal(err)
	}
	got, err := avg.Scalar()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-want) > testTolerance {
		t.Errorf("weighted average = %g, want %g", got, want)
	}

	flat, err := UnweightedAverage(field)
	if err != nil {
		t.Fatal(err)
	}
	gotFlat, err := flat.Scalar()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-gotFlat) < 0.01 {
		t.Errorf("weighted (%g) and unweighted (%g) averages should differ for a latitude-dependent field", got, gotFlat)
	}
}

func TestGlobalAverageIdempotent(t *testing.T) {
	lat := testLats(19)
	w, err := AreaWeights(lat)
	if err != nil {
		t.Fatal(err)
	}
	avg, err := GlobalAverage(uniformField(len(lat), 6, 255.0), w)
	if err != nil {
		t.Fatal(err)
	}
	again, err := GlobalAverage(avg, w)
	if err != nil {
		t.Fatal(err)
	}
	v1, err := avg.Scalar()
	if err != nil {
		t.Fatal(err)
	}
	v2, err := again.Scalar()
	if err != nil {
		t.Fatal(err)
	}
	if v1 != v2 {
		t.Errorf("re-applied average = %g, want %g", v2, v1)
	}
}

func TestSuppliedWeights(t *testing.T) {
	// Weights derived from sine-of-edge differences, as model output
	// files supply them, agree with cosine-derived weights to within
	// one percent on a smooth field.
	const nlat, nlon = 45, 72
	lat := testLats(nlat)
	half := 180.0 / float64(nlat-1) / 2
	gw := make([]float64, nlat)
	for i, l := range lat {
		hi := math.Min(l+half, 90) * degToRad
		lo := math.Max(l-half, -90) * degToRad
		gw[i] = math.Sin(hi) - math.Sin(lo)
	}

	f := sparse.ZerosDense(nlat, nlon)
	for i, l := range lat {
		s := math.Sin(l * degToRad)
		for j := 0; j < nlon; j++ {
			f.Set(288-60*s*s, i, j)
		}
	}
	field := &Field{Data: f, Dims: []string{"lat", "lon"}}

	g := &Grid{Lat: lat, Lon: make([]float64, nlon), GaussWeights: gw}
	wSup, err := g.Weights(true)
	if err != nil {
		t.Fatal(err)
	}
	wCos, err := g.Weights(false)
	if err != nil {
		t.Fatal(err)
	}
	avgSup, err := GlobalAverage(field, wSup)
	if err != nil {
		t.Fatal(err)
	}
	avgCos, err := GlobalAverage(field, wCos)
	if err != nil {
		t.Fatal(err)
	}
	vSup, err := avgSup.Scalar()
	if err != nil {
		t.Fatal(err)
	}
	vCos, err := avgCos.Scalar()
	if err != nil {
		t.Fatal(err)
	}
	if rel := math.Abs(vSup-vCos) / math.Abs(vCos); rel > 0.01 {
		t.Errorf("supplied-weight average %g differs from cosine-weight average %g by %g%%",
			vSup, vCos, rel*100)
	}
}

func TestGlobalAverageNaN(t *testing.T) {
	lat := testLats(5)
	w, err := AreaWeights(lat)
	if err != nil {
		t.Fatal(err)
	}

	// An all-NaN field averages to NaN.
	f := uniformField(len(lat), 4, math.NaN())
	avg, err := GlobalAverage(f, w)
	if err != nil {
		t.Fatal(err)
	}
	v, err := avg.Scalar()
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(v) {
		t.Errorf("average of all-NaN field = %g, want NaN", v)
	}

	// A single NaN cell poisons the mean; cells are not skipped.
	f = uniformField(len(lat), 4, 288)
	f.Data.Set(math.NaN(), 2, 1)
	avg, err = GlobalAverage(f, w)
	if err != nil {
		t.Fatal(err)
	}
	v, err = avg.Scalar()
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(v) {
		t.Errorf("average of partial-NaN field = %g, want NaN", v)
	}
}

func TestWeightsLengthMismatch(t *testing.T) {
	g := &Grid{Lat: testLats(5), GaussWeights: []float64{1, 2, 3}}
	if _, err := g.Weights(true); err == nil {
		t.Fatal("expected error for mismatched supplied weight length")
	}
	f := uniformField(5, 4, 1)
	if _, err := GlobalAverage(f, []float64{1, 1}); err == nil {
		t.Fatal("expected error for mismatched weight length")
	}
}
