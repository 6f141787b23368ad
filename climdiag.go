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

// Package climdiag computes global diagnostics from gridded climate-model
// output stored in NetCDF files: area-weighted global averages, zonal
// means, time means, and derived radiative-flux diagnostics such as
// cloud forcing.
package climdiag

// Version gives the version number.
const Version = "1.2.1"

// DataVersion gives the version of the diagnostic output data files
// produced by this version of the program.
const DataVersion = Version

// physical constants
const (
	g = 9.80665 // m/s2, gravitational acceleration

	degToRad = 0.017453292519943295 // π/180
)
