// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package heading

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// StandardGravity is used for the free-fall check.
const StandardGravity = 9.81

// freeFallRatio rejects gravity vectors shorter than 10% of 1 g (|g|² < 0.01 g²).
const freeFallRatio = 0.01

// minEastNorm rejects a magnetic field (nearly) parallel to gravity.
const minEastNorm = 0.1

// Axis names a device axis for Remap. Values match the platform constants
// so configs and logs carry the familiar numbers.
type Axis int

const (
	AxisX      Axis = 1
	AxisY      Axis = 2
	AxisZ      Axis = 3
	AxisMinusX      = AxisX | 0x80
	AxisMinusY      = AxisY | 0x80
	AxisMinusZ      = AxisZ | 0x80
)

// RotationMatrix builds the device-to-world direction cosine matrix from a
// gravity (accelerometer) and geomagnetic vector, both in device axes.
//
// Rows are east, north and up:
//
//	up    = unit(gravity)
//	east  = unit(geomagnetic × up)
//	north = up × east
//
// ok is false in free fall or when the field is parallel to gravity.
func RotationMatrix(gravity, geomagnetic r3.Vec) (r *mat.Dense, ok bool) {
	if r3.Norm2(gravity) < freeFallRatio*StandardGravity*StandardGravity {
		return nil, false
	}

	east := r3.Cross(geomagnetic, gravity)
	normEast := r3.Norm(east)
	if !(normEast >= minEastNorm) {
		return nil, false
	}

	east = r3.Scale(1/normEast, east)
	up := r3.Unit(gravity)
	north := r3.Cross(up, east)

	return mat.NewDense(3, 3, []float64{
		east.X, east.Y, east.Z,
		north.X, north.Y, north.Z,
		up.X, up.Y, up.Z,
	}), true
}

// Remap rotates r so that device axis x takes the role of the world X axis
// and device axis y that of the world Y axis. The third axis follows from
// the right-hand rule. It is the usual way to keep azimuth stable when the
// device is held upright or the screen is rotated.
//
// ok is false when x and y are not two distinct, valid axes.
func Remap(r mat.Matrix, x, y Axis) (out *mat.Dense, ok bool) {
	if x&^0x83 != 0 || y&^0x83 != 0 {
		return nil, false
	}
	if x&0x3 == 0 || y&0x3 == 0 {
		return nil, false
	}
	if x&0x3 == y&0x3 {
		return nil, false
	}

	z := x ^ y
	xi := int(x&0x3) - 1
	yi := int(y&0x3) - 1
	zi := int(z&0x3) - 1

	// z must complete a right-handed frame; flip it when x,y are not in
	// cyclic order.
	axisY := (zi + 1) % 3
	axisZ := (zi + 2) % 3
	if (xi^axisY)|(yi^axisZ) != 0 {
		z ^= 0x80
	}

	sx := x >= 0x80
	sy := y >= 0x80
	sz := z >= 0x80

	out = mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		out.Set(j, xi, signed(r.At(j, 0), sx))
		out.Set(j, yi, signed(r.At(j, 1), sy))
		out.Set(j, zi, signed(r.At(j, 2), sz))
	}
	return out, true
}

func signed(v float64, negate bool) float64 {
	if negate {
		return -v
	}
	return v
}
