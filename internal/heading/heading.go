// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package heading turns accelerometer and magnetometer samples into a
// smoothed compass azimuth.
//
// Pipeline per sample:
//
//	VectorEMA (per channel) → RotationMatrix → Remap → azimuth → CircularMean
//
// An Estimator is not safe for concurrent use; feed it from one goroutine.
package heading

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/relabs-tech/geo_anchor/internal/filter"
	"github.com/relabs-tech/geo_anchor/internal/imu"
	"github.com/relabs-tech/geo_anchor/internal/orientation"
)

var (
	ErrInvalidMode     = errors.New("heading: invalid mode")
	ErrInvalidRotation = errors.New("heading: invalid screen rotation")
)

// Mode selects how device axes are remapped before extracting azimuth.
type Mode int

const (
	// ModeScreen follows the display rotation (phone held in any
	// orientation, screen facing the user).
	ModeScreen Mode = iota
	// ModeFixed assumes the device is held upright with the camera looking
	// forward and always remaps (X, Z).
	ModeFixed
)

func (m Mode) String() string {
	switch m {
	case ModeScreen:
		return "screen"
	case ModeFixed:
		return "fixed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "screen" or "fixed" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "screen":
		return ModeScreen, nil
	case "fixed":
		return ModeFixed, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// ScreenRotation is the display rotation in degrees.
type ScreenRotation int

const (
	Rotation0   ScreenRotation = 0
	Rotation90  ScreenRotation = 90
	Rotation180 ScreenRotation = 180
	Rotation270 ScreenRotation = 270
)

// ParseScreenRotation validates a rotation in degrees.
func ParseScreenRotation(deg int) (ScreenRotation, error) {
	r := ScreenRotation(deg)
	if _, _, ok := r.Axes(); !ok {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRotation, deg)
	}
	return r, nil
}

// Axes returns the Remap arguments for r.
func (r ScreenRotation) Axes() (x, y Axis, ok bool) {
	switch r {
	case Rotation0:
		return AxisZ, AxisY, true
	case Rotation90:
		return AxisY, AxisMinusZ, true
	case Rotation180:
		return AxisMinusZ, AxisMinusY, true
	case Rotation270:
		return AxisMinusY, AxisZ, true
	default:
		return 0, 0, false
	}
}

// RotationFunc reports the current screen rotation; it is queried on every
// update.
type RotationFunc func() ScreenRotation

// Accuracy is the sensor's self-reported accuracy tier. It is passed
// through, never computed.
type Accuracy int

const (
	AccuracyUnknown    Accuracy = -2
	AccuracyNoContact  Accuracy = -1
	AccuracyUnreliable Accuracy = 0
	AccuracyLow        Accuracy = 1
	AccuracyMedium     Accuracy = 2
	AccuracyHigh       Accuracy = 3
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyUnknown:
		return "unknown"
	case AccuracyNoContact:
		return "no_contact"
	case AccuracyUnreliable:
		return "unreliable"
	case AccuracyLow:
		return "low"
	case AccuracyMedium:
		return "medium"
	case AccuracyHigh:
		return "high"
	default:
		return fmt.Sprintf("Accuracy(%d)", int(a))
	}
}

// Config holds the estimator tuning.
type Config struct {
	WindowSize  int     // circular mean window (samples)
	AccelBias   float64 // VectorEMA bias for gravity
	MagBias     float64 // VectorEMA bias for the magnetic field
	Mode        Mode
	Rotation    ScreenRotation // used in ModeScreen when no RotationFunc is set
	Declination float64        // degrees, added to produce TrueAzimuth
}

// DefaultConfig returns the tuning used for each mode: a short window with
// light accelerometer smoothing for screen mode, a long window for the
// fixed-axis mode.
func DefaultConfig(mode Mode) Config {
	if mode == ModeFixed {
		return Config{WindowSize: 60, AccelBias: 0.01, MagBias: 0.01, Mode: ModeFixed}
	}
	return Config{WindowSize: 10, AccelBias: 0.25, MagBias: 0, Mode: ModeScreen}
}

// Reading is one smoothed heading update.
type Reading struct {
	Azimuth     float64          `json:"azimuth"`      // smoothed, degrees from magnetic north
	TrueAzimuth float64          `json:"true_azimuth"` // Azimuth + declination
	Pose        orientation.Pose `json:"pose"`         // unsmoothed pose of this update
	Accuracy    Accuracy         `json:"accuracy"`
	Time        time.Time        `json:"time"`
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithRotation sets the screen rotation source for ModeScreen.
func WithRotation(fn RotationFunc) Option {
	return func(e *Estimator) { e.rotation = fn }
}

// OnAzimuth registers a callback invoked after every qualifying update.
func OnAzimuth(fn func(Reading)) Option {
	return func(e *Estimator) { e.onAzimuth = fn }
}

// OnAccuracy registers a callback invoked on every SetAccuracy.
func OnAccuracy(fn func(Accuracy)) Option {
	return func(e *Estimator) { e.onAccuracy = fn }
}

// Estimator fuses gravity and magnetic field into a smoothed azimuth.
type Estimator struct {
	cfg Config

	accel *filter.VectorEMA
	mag   *filter.VectorEMA
	mean  *filter.CircularMean

	rotation   RotationFunc
	onAzimuth  func(Reading)
	onAccuracy func(Accuracy)

	accuracy Accuracy
	last     Reading
	hasLast  bool
}

// New validates cfg and returns an Estimator with empty filters.
func New(cfg Config, opts ...Option) (*Estimator, error) {
	if cfg.Mode != ModeScreen && cfg.Mode != ModeFixed {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(cfg.Mode))
	}
	if _, _, ok := cfg.Rotation.Axes(); !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRotation, int(cfg.Rotation))
	}
	if math.IsNaN(cfg.Declination) || math.IsInf(cfg.Declination, 0) {
		return nil, fmt.Errorf("heading: declination must be finite, got %v", cfg.Declination)
	}

	mean, err := filter.NewCircularMean(cfg.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("heading: %w", err)
	}
	accel, err := filter.NewVectorEMA(cfg.AccelBias)
	if err != nil {
		return nil, fmt.Errorf("heading: accelerometer: %w", err)
	}
	mag, err := filter.NewVectorEMA(cfg.MagBias)
	if err != nil {
		return nil, fmt.Errorf("heading: magnetometer: %w", err)
	}

	e := &Estimator{
		cfg:      cfg,
		accel:    accel,
		mag:      mag,
		mean:     mean,
		accuracy: AccuracyUnknown,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the configuration the estimator was built with.
func (e *Estimator) Config() Config {
	return e.cfg
}

// UpdateAccelerometer feeds a gravity sample (m/s², device axes).
func (e *Estimator) UpdateAccelerometer(v [3]float64) {
	e.accel.Update(v)
	e.process(time.Time{})
}

// UpdateMagnetometer feeds a magnetic field sample (µT, device axes).
func (e *Estimator) UpdateMagnetometer(v [3]float64) {
	e.mag.Update(v)
	e.process(time.Time{})
}

// Update dispatches s by its sensor tag. Unknown sensors are ignored.
func (e *Estimator) Update(s imu.Sample) {
	switch s.Sensor {
	case imu.Accelerometer:
		e.accel.Update(s.Vector())
	case imu.Magnetometer:
		e.mag.Update(s.Vector())
	default:
		return
	}
	e.process(s.Time)
}

// SetAccuracy records the sensor's accuracy tier and forwards it.
func (e *Estimator) SetAccuracy(a Accuracy) {
	e.accuracy = a
	if e.hasLast {
		e.last.Accuracy = a
	}
	if e.onAccuracy != nil {
		e.onAccuracy(a)
	}
}

// Accuracy returns the last reported accuracy tier.
func (e *Estimator) Accuracy() Accuracy {
	return e.accuracy
}

// Azimuth returns the latest smoothed azimuth in degrees. ok is false until
// both channels have produced a usable rotation.
func (e *Estimator) Azimuth() (float64, bool) {
	return e.last.Azimuth, e.hasLast
}

// Reading returns the latest full reading.
func (e *Estimator) Reading() (Reading, bool) {
	return e.last, e.hasLast
}

// Reset clears all filter state. The accuracy tier is kept.
func (e *Estimator) Reset() {
	e.accel.Reset()
	e.mag.Reset()
	e.mean.Reset()
	e.last = Reading{}
	e.hasLast = false
}

func (e *Estimator) axes() (x, y Axis, ok bool) {
	if e.cfg.Mode == ModeFixed {
		return AxisX, AxisZ, true
	}
	rot := e.cfg.Rotation
	if e.rotation != nil {
		rot = e.rotation()
	}
	return rot.Axes()
}

func (e *Estimator) process(t time.Time) {
	if !e.accel.Initialized() || !e.mag.Initialized() {
		return
	}

	g, m := e.accel.Value(), e.mag.Value()
	r, ok := RotationMatrix(r3.Vec{X: g[0], Y: g[1], Z: g[2]}, r3.Vec{X: m[0], Y: m[1], Z: m[2]})
	if !ok {
		return
	}

	x, y, ok := e.axes()
	if !ok {
		return
	}
	remapped, ok := Remap(r, x, y)
	if !ok {
		return
	}

	azimuth, _, _ := orientation.Angles(remapped)
	if math.IsNaN(azimuth) {
		return
	}
	e.mean.Push(azimuth)

	smoothed := e.mean.Mean() * 180.0 / math.Pi
	e.last = Reading{
		Azimuth:     smoothed,
		TrueAzimuth: TrueNorth(smoothed, e.cfg.Declination),
		Pose:        orientation.FromRotationMatrix(remapped),
		Accuracy:    e.accuracy,
		Time:        t,
	}
	e.hasLast = true

	if e.onAzimuth != nil {
		e.onAzimuth(e.last)
	}
}

// NormalizeDegrees maps an angle into [0, 360).
func NormalizeDegrees(v float64) float64 {
	v = math.Mod(v, 360)
	if v < 0 {
		v += 360
	}
	if v >= 360 {
		return 0
	}
	return v
}

// TrueNorth converts a magnetic azimuth to a true one given the local
// declination (degrees, east positive).
func TrueNorth(azimuth, declination float64) float64 {
	return azimuth + declination
}
