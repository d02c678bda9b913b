// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// enuRotation returns the ECEF→ENU rotation for a tangent plane at lat/lon
// (degrees). Rows are the east, north and up unit vectors in ECEF.
func enuRotation(lat, lon float64) *mat.Dense {
	phi := radians(lat)
	lambda := radians(lon)

	sinLat, cosLat := math.Sin(phi), math.Cos(phi)
	sinLon, cosLon := math.Sin(lambda), math.Cos(lambda)

	return mat.NewDense(3, 3, []float64{
		-sinLon, cosLon, 0,
		-sinLat * cosLon, -sinLat * sinLon, cosLat,
		cosLat * cosLon, cosLat * sinLon, sinLat,
	})
}

// ECEFToENU rotates the displacement point − origin into the tangent plane
// at originLat/originLon (degrees).
func ECEFToENU(point, origin ECEF, originLat, originLon float64) ENU {
	d := point.Sub(origin)

	var out mat.VecDense
	out.MulVec(enuRotation(originLat, originLon), mat.NewVecDense(3, []float64{d.X, d.Y, d.Z}))

	return ENU{East: out.AtVec(0), North: out.AtVec(1), Up: out.AtVec(2)}
}

// ENUToECEF applies the inverse (transposed) rotation of the tangent plane at
// origin to enu and adds the origin's ECEF position.
func ENUToECEF(enu ENU, origin Point) ECEF {
	o := origin.ToECEF()

	var out mat.VecDense
	out.MulVec(enuRotation(origin.Latitude, origin.Longitude).T(),
		mat.NewVecDense(3, []float64{enu.East, enu.North, enu.Up}))

	return ECEF{
		X: out.AtVec(0) + o.X,
		Y: out.AtVec(1) + o.Y,
		Z: out.AtVec(2) + o.Z,
	}
}

// ToENU returns the offset of p from origin in origin's tangent plane.
func (p Point) ToENU(origin Point) ENU {
	return ECEFToENU(p.ToECEF(), origin.ToECEF(), origin.Latitude, origin.Longitude)
}

// FromENU returns the geographic position of an ENU offset from origin.
func FromENU(enu ENU, origin Point) Point {
	return ECEFToGeodetic(ENUToECEF(enu, origin))
}

// LocalOffset returns where target sits relative to origin, in renderer axes
// (X east, Y up, Z north). Any non-finite intermediate yields the zero
// vector rather than an error.
func LocalOffset(origin, target Point) Vec3 {
	if !origin.Valid() || !target.Valid() {
		return Vec3{}
	}
	enu := target.ToENU(origin)
	if !finite(enu.East, enu.North, enu.Up) {
		return Vec3{}
	}
	return enu.Vec3()
}
