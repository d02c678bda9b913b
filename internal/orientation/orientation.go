// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Pose is the device orientation in degrees. Yaw is the azimuth, clockwise
// from magnetic north.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Angles extracts azimuth, pitch and roll in radians from a 3x3 rotation
// matrix whose rows are the east, north and up axes expressed in device
// coordinates:
//
//	azimuth = atan2(R[0][1], R[1][1])
//	pitch   = asin(-R[2][1])
//	roll    = atan2(-R[2][0], R[2][2])
//
// R[2][1] is clamped to [-1, 1] so rounding never yields NaN.
func Angles(r mat.Matrix) (azimuth, pitch, roll float64) {
	azimuth = math.Atan2(r.At(0, 1), r.At(1, 1))
	pitch = math.Asin(math.Max(-1, math.Min(1, -r.At(2, 1))))
	roll = math.Atan2(-r.At(2, 0), r.At(2, 2))
	return azimuth, pitch, roll
}

// FromRotationMatrix returns the Pose (degrees) of a rotation matrix.
func FromRotationMatrix(r mat.Matrix) Pose {
	azimuth, pitch, roll := Angles(r)
	return Pose{
		Roll:  roll * 180.0 / math.Pi,
		Pitch: pitch * 180.0 / math.Pi,
		Yaw:   azimuth * 180.0 / math.Pi,
	}
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is 0; it needs the magnetometer (see package heading).
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}
