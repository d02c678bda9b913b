package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidBias is returned for a VectorEMA bias outside [0, 1].
var ErrInvalidBias = errors.New("filter: bias must be within [0, 1]")

// VectorEMA is an exponential moving average over a 3-axis sensor vector.
//
// The first sample is taken verbatim; every later sample is blended as
//
//	v[i] = v[i]*bias + sample[i]*(1-bias)
//
// so bias 0 tracks the raw signal and bias close to 1 smooths heavily.
type VectorEMA struct {
	bias        float64
	value       [3]float64
	initialized bool
}

// NewVectorEMA returns an uninitialized filter.
func NewVectorEMA(bias float64) (*VectorEMA, error) {
	if !(bias >= 0 && bias <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidBias, bias)
	}
	return &VectorEMA{bias: bias}, nil
}

// Update folds a new sample into the average.
func (f *VectorEMA) Update(sample [3]float64) {
	if !f.initialized {
		f.value = sample
		f.initialized = true
		return
	}
	for i := range f.value {
		f.value[i] = f.value[i]*f.bias + sample[i]*(1-f.bias)
	}
}

// Value returns the current smoothed vector (a copy).
func (f *VectorEMA) Value() [3]float64 {
	return f.value
}

// Initialized reports whether at least one sample has been seen.
func (f *VectorEMA) Initialized() bool {
	return f.initialized
}

// Bias returns the configured smoothing weight.
func (f *VectorEMA) Bias() float64 {
	return f.bias
}

// Reset returns the filter to its uninitialized state.
func (f *VectorEMA) Reset() {
	f.value = [3]float64{}
	f.initialized = false
}
