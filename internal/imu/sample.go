// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "time"

// SensorType tags which channel a Sample belongs to.
type SensorType string

const (
	Accelerometer SensorType = "accelerometer"
	Magnetometer  SensorType = "magnetometer"
)

// Sample is a single 3-axis reading in device coordinates.
// Accelerometer values are m/s², magnetometer values are µT.
type Sample struct {
	Sensor SensorType `json:"sensor"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Z      float64    `json:"z"`
	Time   time.Time  `json:"time"`
}

// Vector returns the sample components as an array.
func (s Sample) Vector() [3]float64 {
	return [3]float64{s.X, s.Y, s.Z}
}

// AccuracyEvent reports a change in a sensor's own accuracy tier.
// Level follows the platform numbering: -1 no contact, 0 unreliable,
// 1 low, 2 medium, 3 high.
type AccuracyEvent struct {
	Sensor SensorType `json:"sensor"`
	Level  int        `json:"level"`
	Time   time.Time  `json:"time"`
}

// Source is anything that can provide accel+mag sample pairs over time:
// the simulator, a replay file, a hardware driver.
type Source interface {
	Next() ([]Sample, error)
}
