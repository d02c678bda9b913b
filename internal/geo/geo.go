// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package geo converts between geographic coordinates, the Earth-centered
// Earth-fixed frame (ECEF) and local East-North-Up tangent planes (ENU) on
// the WGS-84 ellipsoid.
//
// All functions are pure and safe for concurrent use. Public angles are in
// degrees, distances in meters.
//
// Renderer axis convention used by LocalOffset and Vec3:
//
//	east  = +X
//	up    = +Y
//	north = +Z
package geo

import (
	"math"
	"time"
)

// WGS-84 ellipsoid parameters.
const (
	SemiMajorAxis = 6378137.0    // a (meters)
	SemiMinorAxis = 6356752.3142 // b (meters)
)

var (
	a2 = SemiMajorAxis * SemiMajorAxis
	b2 = SemiMinorAxis * SemiMinorAxis

	// first eccentricity squared, e² = 1 − b²/a²
	e2 = 1 - b2/a2
	// second eccentricity squared, e'² = (a² − b²)/b²
	ep2 = (a2 - b2) / b2
)

// Point is a geographic position. Accuracy is the horizontal accuracy radius
// in meters (0 when unknown); Time is the zero value when unknown.
type Point struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Altitude  float64   `json:"alt"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Time      time.Time `json:"time"`
}

// ECEF is an Earth-centered Earth-fixed position in meters.
type ECEF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ENU is an offset in a local tangent plane, in meters. It has no meaning
// without the origin it was computed against.
type ENU struct {
	East  float64 `json:"e"`
	North float64 `json:"n"`
	Up    float64 `json:"u"`
}

// Vec3 is an ENU offset expressed in renderer axes (X east, Y up, Z north).
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ENU returns v in East-North-Up order.
func (v Vec3) ENU() ENU {
	return ENU{East: v.X, North: v.Z, Up: v.Y}
}

// Vec3 returns e in renderer axes.
func (e ENU) Vec3() Vec3 {
	return Vec3{X: e.East, Y: e.Up, Z: e.North}
}

// ForwardNegativeZ flips the Z axis so that north maps to −Z, for renderers
// whose forward direction is −Z.
func (v Vec3) ForwardNegativeZ() Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: -v.Z}
}

// Scaled multiplies every component by f.
func (v Vec3) Scaled(f float64) Vec3 {
	return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// Sub returns p − q.
func (p ECEF) Sub(q ECEF) ECEF {
	return ECEF{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Norm returns the Euclidean length of p.
func (p ECEF) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func radians(deg float64) float64 { return deg * math.Pi / 180.0 }
func degrees(rad float64) float64 { return rad * 180.0 / math.Pi }

// NormalizeLongitude maps any longitude in degrees into (-180, 180].
func NormalizeLongitude(lon float64) float64 {
	if !finite(lon) {
		return lon
	}
	lon = math.Mod(lon, 360)
	if lon <= -180 {
		lon += 360
	} else if lon > 180 {
		lon -= 360
	}
	return lon
}

// ClampLatitude limits latitude to [-90, 90].
func ClampLatitude(lat float64) float64 {
	return math.Max(-90, math.Min(90, lat))
}

// Valid reports whether p has finite coordinates within the geographic range.
func (p Point) Valid() bool {
	return finite(p.Latitude, p.Longitude, p.Altitude) &&
		p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}
