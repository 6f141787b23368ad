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
	"math"

	"gonum.org/v1/gonum/floats"
)

// Grid holds the horizontal coordinates of a latitude-longitude grid.
// Coordinate values are grid-cell centers in degrees. Latitude spacing
// is not assumed to be uniform; the only guaranteed input shape is a
// monotonic latitude ordering.
type Grid struct {
	// Lat holds the latitude coordinate values [degrees north].
	Lat []float64
	// Lon holds the longitude coordinate values [degrees east].
	Lon []float64

	// GaussWeights optionally holds per-latitude area weights supplied
	// by the data source (for example the CESM 'gw' variable). When
	// present, they can be used in place of cosine-derived weights;
	// the two agree to within a small relative difference.
	GaussWeights []float64
}

// Nlat returns the number of grid cells in the South-North direction.
func (g *Grid) Nlat() int { return len(g.Lat) }

// Nlon returns the number of grid cells in the West-East direction.
func (g *Grid) Nlon() int { return len(g.Lon) }

// AreaWeights returns one weight per latitude value, proportional to
// the cosine of the latitude and normalized so that the weights
// average to one. The weights represent the relative area of grid
// cells at each latitude on a sphere; normalization makes the
// weighted mean of a spatially constant field equal that constant
// exactly. A single latitude row degenerates to the weight {1}.
func AreaWeights(lat []float64) ([]float64, error) {
	if len(lat) == 0 {
		return nil, fmt.Errorf("climdiag: area weights: empty latitude axis")
	}
	w := make([]float64, len(lat))
	for i, l := range lat {
		w[i] = math.Cos(l * degToRad)
	}
	return normalizeWeights(w)
}

// Weights returns the per-latitude area weights for g. If
// useSupplied is true and the grid carries source-supplied weights,
// those are normalized and returned; otherwise cosine-derived weights
// are used.
func (g *Grid) Weights(useSupplied bool) ([]float64, error) {
	if useSupplied && g.GaussWeights != nil {
		if len(g.GaussWeights) != len(g.Lat) {
			return nil, fmt.Errorf("climdiag: supplied weight length %d does not match latitude axis length %d",
				len(g.GaussWeights), len(g.Lat))
		}
		return normalizeWeights(g.GaussWeights)
	}
	return AreaWeights(g.Lat)
}

// normalizeWeights scales w so that its arithmetic mean is one.
// The input is not modified.
func normalizeWeights(w []float64) ([]float64, error) {
	if len(w) == 0 {
		return nil, fmt.Errorf("climdiag: normalize weights: empty weight vector")
	}
	mean := floats.Sum(w) / float64(len(w))
	if mean == 0 {
		return nil, fmt.Errorf("climdiag: normalize weights: weights sum to zero")
	}
	o := make([]float64, len(w))
	for i, v := range w {
		o[i] = v / mean
	}
	return o, nil
}
