// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geo

import "math"

// GeodeticToECEF converts latitude/longitude (degrees) and ellipsoidal height
// (meters) to ECEF meters.
func GeodeticToECEF(lat, lon, alt float64) ECEF {
	phi := radians(lat)
	lambda := radians(lon)

	sinLat := math.Sin(phi)
	cosLat := math.Cos(phi)
	sinLon := math.Sin(lambda)
	cosLon := math.Cos(lambda)

	// Radius of curvature in the prime vertical.
	n := SemiMajorAxis / math.Sqrt(1-e2*sinLat*sinLat)

	return ECEF{
		X: (n + alt) * cosLat * cosLon,
		Y: (n + alt) * cosLat * sinLon,
		Z: (b2/a2*n + alt) * sinLat,
	}
}

// ToECEF is GeodeticToECEF for a Point.
func (p Point) ToECEF() ECEF {
	return GeodeticToECEF(p.Latitude, p.Longitude, p.Altitude)
}

// ECEFToGeodetic converts an ECEF position to geodetic coordinates using
// Heikkinen's closed-form solution. There is no iteration.
//
// Degenerate inputs (on the polar axis, at or near the Earth's centre) are
// guarded so the result is always finite. Accuracy and Time of the returned
// Point are zero.
func ECEFToGeodetic(p ECEF) Point {
	if !finite(p.X, p.Y, p.Z) {
		return Point{}
	}

	x, y, z := p.X, p.Y, p.Z
	r := math.Hypot(x, y)
	z2 := z * z
	r2 := r * r

	f := 54.0 * b2 * z2
	g := r2 + (1-e2)*z2 - e2*(a2-b2)
	if g == 0 {
		// Only reachable deep inside the ellipsoid; nudge off the singularity.
		g = math.SmallestNonzeroFloat64
	}

	c := e2 * e2 * f * r2 / (g * g * g)
	s := math.Cbrt(1 + c + math.Sqrt(math.Max(0, c*c+2*c)))
	k := s + 1/s + 1
	pp := f / (3 * k * k * g * g)
	q := math.Sqrt(1 + 2*e2*e2*pp)

	r0 := -pp*e2*r/(1+q) +
		math.Sqrt(math.Max(0, 0.5*a2*(1+1/q)-pp*(1-e2)*z2/(q*(1+q))-0.5*pp*r2))

	t := r - e2*r0
	u := math.Sqrt(t*t + z2)
	v := math.Sqrt(t*t + (1-e2)*z2)

	var z0, h float64
	if v > 0 {
		z0 = b2 * z / (SemiMajorAxis * v)
		h = u * (1 - b2/(SemiMajorAxis*v))
	} else {
		h = -SemiMinorAxis
	}

	// atan2 instead of atan(·/r) keeps the poles (r == 0) finite.
	lat := math.Atan2(z+ep2*z0, r)
	lon := math.Atan2(y, x)

	out := Point{
		Latitude:  ClampLatitude(degrees(lat)),
		Longitude: NormalizeLongitude(degrees(lon)),
		Altitude:  h,
	}
	if !finite(out.Latitude, out.Longitude, out.Altitude) {
		return Point{}
	}
	return out
}
