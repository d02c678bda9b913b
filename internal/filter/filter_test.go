package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCircularMean_InvalidWindow(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := NewCircularMean(n)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	}
}

func TestCircularMean_Empty(t *testing.T) {
	c, err := NewCircularMean(10)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(c.Mean()))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 10, c.Cap())
}

func TestCircularMean_SingleSampleExact(t *testing.T) {
	c, err := NewCircularMean(10)
	require.NoError(t, err)

	c.Push(2.5)
	assert.Equal(t, 2.5, c.Mean())

	// Outside [-π, π] is still returned unchanged.
	c.Reset()
	c.Push(7.0)
	assert.Equal(t, 7.0, c.Mean())
}

func TestCircularMean_Wraparound(t *testing.T) {
	c, err := NewCircularMean(10)
	require.NoError(t, err)

	c.Push(-math.Pi + 0.01)
	c.Push(math.Pi - 0.01)

	got := c.Mean()
	assert.InDelta(t, math.Pi, math.Abs(got), 1e-9, "mean %v should sit at ±π, not 0", got)
}

func TestCircularMean_Symmetric(t *testing.T) {
	c, err := NewCircularMean(4)
	require.NoError(t, err)

	c.Push(0.2)
	c.Push(-0.2)
	assert.InDelta(t, 0.0, c.Mean(), 1e-12)

	c.Push(math.Pi / 2)
	c.Push(math.Pi / 2)
	assert.InDelta(t, math.Atan2(2, 2*math.Cos(0.2)), c.Mean(), 1e-12)
}

func TestCircularMean_Windowing(t *testing.T) {
	const n = 5
	c, err := NewCircularMean(n)
	require.NoError(t, err)

	// Old samples near π must be forgotten after the window rolls over.
	for i := 0; i < 3; i++ {
		c.Push(3.0)
	}
	for i := 0; i < n; i++ {
		c.Push(0.5)
	}

	assert.Equal(t, n, c.Len())
	assert.InDelta(t, 0.5, c.Mean(), 1e-12)

	c.Push(1.0)
	want := math.Atan2(4*math.Sin(0.5)+math.Sin(1.0), 4*math.Cos(0.5)+math.Cos(1.0))
	assert.InDelta(t, want, c.Mean(), 1e-12)
}

func TestCircularMean_WindowOfOne(t *testing.T) {
	c, err := NewCircularMean(1)
	require.NoError(t, err)

	c.Push(1)
	c.Push(-2)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, -2.0, c.Mean())
}

func TestNewVectorEMA_InvalidBias(t *testing.T) {
	for _, b := range []float64{-0.1, 1.1, math.NaN()} {
		_, err := NewVectorEMA(b)
		assert.ErrorIs(t, err, ErrInvalidBias, "bias %v", b)
	}
}

func TestVectorEMA_FirstSampleVerbatim(t *testing.T) {
	f, err := NewVectorEMA(0.99)
	require.NoError(t, err)
	assert.False(t, f.Initialized())

	s := [3]float64{1.5, -2, 9.81}
	f.Update(s)

	assert.True(t, f.Initialized())
	assert.Equal(t, s, f.Value())
}

func TestVectorEMA_FixedPoint(t *testing.T) {
	f, err := NewVectorEMA(0.25)
	require.NoError(t, err)

	s := [3]float64{0.5, 22, -40}
	for i := 0; i < 20; i++ {
		f.Update(s)
	}
	for i, v := range f.Value() {
		assert.InDelta(t, s[i], v, 1e-12)
	}
}

func TestVectorEMA_Blend(t *testing.T) {
	f, err := NewVectorEMA(0.25)
	require.NoError(t, err)

	f.Update([3]float64{0, 0, 0})
	f.Update([3]float64{4, 8, -4})

	assert.Equal(t, [3]float64{3, 6, -3}, f.Value())

	raw, err := NewVectorEMA(0)
	require.NoError(t, err)
	raw.Update([3]float64{1, 1, 1})
	raw.Update([3]float64{2, 3, 4})
	assert.Equal(t, [3]float64{2, 3, 4}, raw.Value())
}

func TestVectorEMA_ValueIsCopy(t *testing.T) {
	f, err := NewVectorEMA(0.5)
	require.NoError(t, err)

	s := [3]float64{1, 2, 3}
	f.Update(s)
	v := f.Value()
	v[0] = 100

	assert.Equal(t, 1.0, f.Value()[0])

	f.Reset()
	assert.False(t, f.Initialized())
	assert.Equal(t, [3]float64{}, f.Value())
}
