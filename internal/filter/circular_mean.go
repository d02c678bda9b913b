// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filter holds the small stateful smoothing filters used on sensor
// streams. None of the types are safe for concurrent mutation; callers
// serialize updates per instance.
package filter

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWindow is returned for a circular mean window smaller than one.
var ErrInvalidWindow = errors.New("filter: window size must be at least 1")

// CircularMean keeps the last N angles (radians) in a ring buffer and
// averages them with atan2(Σsin, Σcos), which is correct across the ±π wrap
// where a linear average is not.
type CircularMean struct {
	values []float64
	cursor int
	full   bool
}

// NewCircularMean returns an empty filter with a window of size samples.
func NewCircularMean(size int) (*CircularMean, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindow, size)
	}
	return &CircularMean{values: make([]float64, size)}, nil
}

// Push records an angle in radians, overwriting the oldest once full.
func (c *CircularMean) Push(rad float64) {
	c.values[c.cursor] = rad
	c.cursor++
	if c.cursor == len(c.values) {
		c.cursor = 0
		c.full = true
	}
}

// Len is the number of valid samples, min(pushed, Cap()).
func (c *CircularMean) Len() int {
	if c.full {
		return len(c.values)
	}
	return c.cursor
}

// Cap is the window size.
func (c *CircularMean) Cap() int {
	return len(c.values)
}

// Mean returns the circular mean in radians, in [-π, π]. A single sample is
// returned unchanged. With no samples the result is NaN.
func (c *CircularMean) Mean() float64 {
	n := c.Len()
	switch n {
	case 0:
		return math.NaN()
	case 1:
		return c.values[0]
	}

	var sumSin, sumCos float64
	for _, v := range c.values[:n] {
		sumSin += math.Sin(v)
		sumCos += math.Cos(v)
	}
	return math.Atan2(sumSin, sumCos)
}

// Reset discards all samples.
func (c *CircularMean) Reset() {
	clear(c.values)
	c.cursor = 0
	c.full = false
}
