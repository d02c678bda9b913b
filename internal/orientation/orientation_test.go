package orientation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestFromRotationMatrix_Identity(t *testing.T) {
	p := FromRotationMatrix(mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}))

	assert.InDelta(t, 0.0, p.Yaw, 1e-12)
	assert.InDelta(t, 0.0, p.Pitch, 1e-12)
	assert.InDelta(t, 0.0, p.Roll, 1e-12)
}

func TestFromRotationMatrix_Yaw(t *testing.T) {
	for _, deg := range []float64{30, 90, -45, 179} {
		psi := deg * math.Pi / 180
		// Device y axis pointing at heading psi while lying flat.
		r := mat.NewDense(3, 3, []float64{
			math.Cos(psi), math.Sin(psi), 0,
			-math.Sin(psi), math.Cos(psi), 0,
			0, 0, 1,
		})

		p := FromRotationMatrix(r)
		assert.InDelta(t, deg, p.Yaw, 1e-9)
		assert.InDelta(t, 0.0, p.Pitch, 1e-9)
		assert.InDelta(t, 0.0, p.Roll, 1e-9)
	}
}

func TestAngles_ClampsPitch(t *testing.T) {
	r := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 0, 1,
		0, -1.0000000001, 0,
	})

	_, pitch, _ := Angles(r)
	assert.False(t, math.IsNaN(pitch))
	assert.InDelta(t, math.Pi/2, pitch, 1e-9)
}

func TestComputePoseFromAccel(t *testing.T) {
	flat := ComputePoseFromAccel(0, 0, 9.81)
	assert.InDelta(t, 0.0, flat.Roll, 1e-9)
	assert.InDelta(t, 0.0, flat.Pitch, 1e-9)

	side := ComputePoseFromAccel(0, 9.81, 0)
	assert.InDelta(t, 90.0, side.Roll, 1e-9)

	nose := ComputePoseFromAccel(-9.81, 0, 0)
	assert.InDelta(t, 90.0, nose.Pitch, 1e-9)
	assert.Zero(t, nose.Yaw)
}
