// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"
	"time"
)

// Earth field and gravity used by the simulator. The field roughly matches
// central Europe: 22 µT horizontal, 40 µT downward.
const (
	Gravity           = 9.81
	FieldHorizontalUT = 22.0
	FieldVerticalUT   = 40.0
)

// Synthesize returns the accelerometer and magnetometer readings a device
// would report while facing heading (degrees clockwise from magnetic north).
//
// upright=false: device flat, screen up, top edge pointing at heading.
// upright=true: device held vertical, camera (−Z) pointing at heading.
func Synthesize(heading float64, upright bool) (accel, mag [3]float64) {
	psi := heading * math.Pi / 180.0
	s, c := math.Sin(psi), math.Cos(psi)

	if upright {
		return [3]float64{0, Gravity, 0},
			[3]float64{-FieldHorizontalUT * s, -FieldVerticalUT, -FieldHorizontalUT * c}
	}
	return [3]float64{0, 0, Gravity},
		[3]float64{-FieldHorizontalUT * s, FieldHorizontalUT * c, -FieldVerticalUT}
}

// Simulator produces samples for a device slowly turning in place.
type Simulator struct {
	start   time.Time
	now     func() time.Time
	rate    float64 // deg/s
	wobble  float64 // deg amplitude
	upright bool
}

// NewSimulator creates a Source whose heading advances at rateDegPerSec and
// oscillates by wobbleDeg around that track.
func NewSimulator(rateDegPerSec, wobbleDeg float64, upright bool) *Simulator {
	return &Simulator{
		start:   time.Now(),
		now:     time.Now,
		rate:    rateDegPerSec,
		wobble:  wobbleDeg,
		upright: upright,
	}
}

// Heading returns the simulated heading at elapsed seconds, in [0, 360).
func (s *Simulator) Heading(elapsed float64) float64 {
	h := elapsed*s.rate + s.wobble*math.Sin(elapsed)
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// Next returns one accelerometer and one magnetometer sample.
func (s *Simulator) Next() ([]Sample, error) {
	now := s.now()
	accel, mag := Synthesize(s.Heading(now.Sub(s.start).Seconds()), s.upright)

	return []Sample{
		{Sensor: Accelerometer, X: accel[0], Y: accel[1], Z: accel[2], Time: now},
		{Sensor: Magnetometer, X: mag[0], Y: mag[1], Z: mag[2], Time: now},
	}, nil
}
