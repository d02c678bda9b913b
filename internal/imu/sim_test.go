package imu

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize_FieldMagnitude(t *testing.T) {
	want := math.Hypot(FieldHorizontalUT, FieldVerticalUT)
	for _, upright := range []bool{false, true} {
		for _, h := range []float64{0, 45, 200, 359} {
			accel, mag := Synthesize(h, upright)
			assert.InDelta(t, Gravity, math.Sqrt(accel[0]*accel[0]+accel[1]*accel[1]+accel[2]*accel[2]), 1e-9)
			assert.InDelta(t, want, math.Sqrt(mag[0]*mag[0]+mag[1]*mag[1]+mag[2]*mag[2]), 1e-9)
		}
	}
}

func TestSynthesize_FlatNorth(t *testing.T) {
	accel, mag := Synthesize(0, false)
	assert.Equal(t, [3]float64{0, 0, Gravity}, accel)
	assert.InDelta(t, 0.0, mag[0], 1e-12)
	assert.InDelta(t, FieldHorizontalUT, mag[1], 1e-12)
	assert.InDelta(t, -FieldVerticalUT, mag[2], 1e-12)
}

func TestSimulator_Next(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSimulator(10, 0, true)
	s.start = base
	s.now = func() time.Time { return base.Add(9 * time.Second) }

	samples, err := s.Next()
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, Accelerometer, samples[0].Sensor)
	assert.Equal(t, Magnetometer, samples[1].Sensor)

	_, mag := Synthesize(90, true)
	assert.InDelta(t, mag[0], samples[1].X, 1e-9)
	assert.InDelta(t, mag[2], samples[1].Z, 1e-9)
	assert.Equal(t, mag, samples[1].Vector())
}

func TestSimulator_HeadingWraps(t *testing.T) {
	s := NewSimulator(-30, 0, false)
	assert.InDelta(t, 330.0, s.Heading(1), 1e-9)

	s = NewSimulator(50, 0, false)
	assert.InDelta(t, 40.0, s.Heading(8), 1e-9)
}
