// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fusion decides which location fixes are trusted. A Policy keeps
// the current best fix and replaces it only when a new fix is far enough
// away or meaningfully more accurate.
//
// A Policy is not safe for concurrent use.
package fusion

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/geo_anchor/internal/geo"
	"github.com/relabs-tech/geo_anchor/internal/monitoring"
)

var ErrInvalidConfig = errors.New("fusion: invalid config")

// Config controls the acceptance rule.
type Config struct {
	UpdateIntervalMeters    float64 `json:"update_interval_m"`
	AccuracyThresholdMeters float64 `json:"accuracy_threshold_m"`
	UpdateOnMoreAccurate    bool    `json:"update_on_more_accurate"`
	ReceiveUpdates          bool    `json:"receive_updates"`
}

// DefaultConfig returns 500 m / 100 m with accuracy updates and location
// updates enabled.
func DefaultConfig() Config {
	return Config{
		UpdateIntervalMeters:    500,
		AccuracyThresholdMeters: 100,
		UpdateOnMoreAccurate:    true,
		ReceiveUpdates:          true,
	}
}

// Validate checks that both distances are finite and non-negative.
func (c Config) Validate() error {
	if !(c.UpdateIntervalMeters >= 0) || math.IsInf(c.UpdateIntervalMeters, 0) {
		return fmt.Errorf("%w: update interval %v", ErrInvalidConfig, c.UpdateIntervalMeters)
	}
	if !(c.AccuracyThresholdMeters >= 0) || math.IsInf(c.AccuracyThresholdMeters, 0) {
		return fmt.Errorf("%w: accuracy threshold %v", ErrInvalidConfig, c.AccuracyThresholdMeters)
	}
	return nil
}

// Decision explains why a fix was accepted or rejected.
type Decision int

const (
	Rejected Decision = iota
	AcceptedMoved
	AcceptedMoreAccurate
	AcceptedUnconditional
	IgnoredUpdatesOff
	IgnoredInvalid
)

func (d Decision) String() string {
	switch d {
	case Rejected:
		return "rejected"
	case AcceptedMoved:
		return "moved"
	case AcceptedMoreAccurate:
		return "more_accurate"
	case AcceptedUnconditional:
		return "unconditional"
	case IgnoredUpdatesOff:
		return "updates_off"
	case IgnoredInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Accepted reports whether d replaces the current best fix.
func (d Decision) Accepted() bool {
	return d == AcceptedMoved || d == AcceptedMoreAccurate || d == AcceptedUnconditional
}

// Listener is notified with every accepted fix.
type Listener func(geo.Point)

// Option configures a Policy.
type Option func(*Policy)

// OnLocationChanged adds a listener for accepted fixes.
func OnLocationChanged(fn Listener) Option {
	return func(p *Policy) { p.listeners = append(p.listeners, fn) }
}

// WithDistance replaces the fix-to-fix distance (meters). The default is the
// great-circle distance.
func WithDistance(fn func(a, b geo.Point) float64) Option {
	return func(p *Policy) { p.distance = fn }
}

// Policy holds the fused location state.
type Policy struct {
	cfg       Config
	distance  func(a, b geo.Point) float64
	listeners []Listener

	best         geo.Point
	hasBest      bool
	bestAccuracy float64
	updating     bool
}

// New returns a Policy with no fix and accuracy +Inf. Updates start enabled
// when cfg.ReceiveUpdates is set.
func New(cfg Config, opts ...Option) *Policy {
	p := &Policy{
		cfg:          cfg,
		distance:     geo.Distance,
		bestAccuracy: math.Inf(1),
		updating:     cfg.ReceiveUpdates,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// accuracyOf treats unknown (<= 0 or NaN) accuracy as infinitely bad.
func accuracyOf(fix geo.Point) float64 {
	if !(fix.Accuracy > 0) {
		return math.Inf(1)
	}
	return fix.Accuracy
}

// Evaluate applies the acceptance rule to fix without changing state or
// looking at the updates gate.
//
// Accept when any of:
//   - distance(best, fix) > UpdateIntervalMeters (always true before the first fix)
//   - UpdateOnMoreAccurate and fix.Accuracy < best accuracy and fix.Accuracy < threshold
//   - !UpdateOnMoreAccurate
func (p *Policy) Evaluate(fix geo.Point) Decision {
	if !fix.Valid() {
		return IgnoredInvalid
	}

	dist := math.Inf(1)
	if p.hasBest {
		dist = p.distance(p.best, fix)
	}
	if dist > p.cfg.UpdateIntervalMeters {
		return AcceptedMoved
	}

	acc := accuracyOf(fix)
	if p.cfg.UpdateOnMoreAccurate && acc < p.bestAccuracy && acc < p.cfg.AccuracyThresholdMeters {
		return AcceptedMoreAccurate
	}
	if !p.cfg.UpdateOnMoreAccurate {
		return AcceptedUnconditional
	}
	return Rejected
}

// Offer feeds one fix from the location provider. It returns true when the
// fix became the new best location. Fixes are ignored while updates are
// stopped.
func (p *Policy) Offer(fix geo.Point) bool {
	if !p.updating {
		monitoring.Logf("fusion: ignoring fix %.6f,%.6f: updates stopped", fix.Latitude, fix.Longitude)
		return false
	}
	return p.apply(fix)
}

// SetLocation is a manual override: the accuracy gate is reset and fix is
// evaluated even while updates are stopped.
func (p *Policy) SetLocation(fix geo.Point) bool {
	p.ResetAccuracy()
	return p.apply(fix)
}

func (p *Policy) apply(fix geo.Point) bool {
	d := p.Evaluate(fix)
	if !d.Accepted() {
		if d == IgnoredInvalid {
			monitoring.Logf("fusion: dropping invalid fix %+v", fix)
		}
		return false
	}

	p.best = fix
	p.hasBest = true
	p.bestAccuracy = accuracyOf(fix)

	monitoring.Logf("fusion: accepted fix %.6f,%.6f acc=%.1fm (%s)", fix.Latitude, fix.Longitude, fix.Accuracy, d)

	for _, fn := range p.listeners {
		fn(fix)
	}
	return true
}

// ResetAccuracy forgets the accuracy of the current best fix so the next
// fix under the threshold wins. The position itself is kept.
func (p *Policy) ResetAccuracy() {
	p.bestAccuracy = math.Inf(1)
}

// StartUpdates re-enables Offer.
func (p *Policy) StartUpdates() {
	p.updating = true
}

// StopUpdates makes Offer ignore fixes until StartUpdates.
func (p *Policy) StopUpdates() {
	p.updating = false
}

// Updating reports whether Offer currently accepts fixes.
func (p *Policy) Updating() bool {
	return p.updating
}

// Location returns the current best fix. ok is false before the first
// accepted fix.
func (p *Policy) Location() (geo.Point, bool) {
	return p.best, p.hasBest
}

// Accuracy returns the accuracy gate in meters; +Inf when no fix is trusted.
func (p *Policy) Accuracy() float64 {
	return p.bestAccuracy
}

// Config returns the policy configuration.
func (p *Policy) Config() Config {
	return p.cfg
}
