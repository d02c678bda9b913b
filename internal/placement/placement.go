// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package placement computes where geo-anchored objects sit in a local
// render space centred on the device's fused location.
//
// Render axes follow package geo: X east, Y up, Z north, meters.
package placement

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/relabs-tech/geo_anchor/internal/geo"
)

var (
	ErrMissingLocation      = errors.New("placement: anchor location not set")
	ErrInvalidLocation      = errors.New("placement: anchor location out of range")
	ErrInvalidFixCoordinate = errors.New("placement: fixed coordinate must be finite")
	ErrInvalidWorld         = errors.New("placement: invalid world")
	ErrDuplicateAnchor      = errors.New("placement: duplicate anchor id")
)

// Config controls how one anchor's offset is turned into a local position.
type Config struct {
	// RelativeScaling scales the anchor by its distance from the device so
	// it keeps a constant apparent size.
	RelativeScaling bool `json:"relative_scaling"`
	// FixCoordinate pins individual render axes (X, Y, Z) to a constant
	// instead of the computed offset. nil leaves the axis computed.
	FixCoordinate [3]*float64 `json:"fix_coordinate"`
	// ScaleWithWorld multiplies the position by the world scale. When false
	// the anchor is wrapped so world scaling is cancelled out.
	ScaleWithWorld bool `json:"scale_with_world"`
}

// DefaultConfig scales with the world and fixes no axis.
func DefaultConfig() Config {
	return Config{ScaleWithWorld: true}
}

// Anchor is an object pinned to a geographic location.
type Anchor struct {
	ID       string    `json:"id"`
	Location geo.Point `json:"location"`
	Config   Config    `json:"config"`
}

// Builder assembles an Anchor and validates it on Build.
type Builder struct {
	id       string
	location *geo.Point
	cfg      *Config
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) SetID(id string) *Builder {
	b.id = id
	return b
}

func (b *Builder) SetLocation(p geo.Point) *Builder {
	b.location = &p
	return b
}

func (b *Builder) SetConfig(cfg Config) *Builder {
	b.cfg = &cfg
	return b
}

// Build returns the anchor or the first configuration error. A missing
// config falls back to DefaultConfig; a missing location is an error.
func (b *Builder) Build() (*Anchor, error) {
	if b.location == nil {
		return nil, ErrMissingLocation
	}
	if !b.location.Valid() {
		return nil, fmt.Errorf("%w: %.6f,%.6f", ErrInvalidLocation, b.location.Latitude, b.location.Longitude)
	}

	cfg := DefaultConfig()
	if b.cfg != nil {
		cfg = *b.cfg
	}
	for i, v := range cfg.FixCoordinate {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return nil, fmt.Errorf("%w: axis %d = %v", ErrInvalidFixCoordinate, i, *v)
		}
	}

	return &Anchor{ID: b.id, Location: *b.location, Config: cfg}, nil
}

// World carries the settings shared by every anchor.
type World struct {
	// Scale is the uniform scale applied to the whole anchored scene.
	Scale float64 `json:"scale"`
	// NorthRotated turns the scene to true north using the heading; see Yaw.
	NorthRotated bool `json:"north_rotated"`
	// MaxRenderingDistance is the far clip distance in render units; 0
	// disables culling.
	MaxRenderingDistance float64 `json:"max_rendering_distance"`
}

// DefaultWorld is unscaled, north-rotated, with a 1 km far plane.
func DefaultWorld() World {
	return World{Scale: 1, NorthRotated: true, MaxRenderingDistance: 1000}
}

// Validate checks the world scale and clip distance.
func (w World) Validate() error {
	if !(w.Scale > 0) || math.IsInf(w.Scale, 0) {
		return fmt.Errorf("%w: scale %v", ErrInvalidWorld, w.Scale)
	}
	if !(w.MaxRenderingDistance >= 0) || math.IsInf(w.MaxRenderingDistance, 0) {
		return fmt.Errorf("%w: max rendering distance %v", ErrInvalidWorld, w.MaxRenderingDistance)
	}
	return nil
}

// Yaw returns the rotation about the up axis (degrees) to apply to the
// anchored scene so that +Z points to true north. It is 0 when the world is
// not north-rotated.
func (w World) Yaw(trueAzimuth float64) float64 {
	if !w.NorthRotated {
		return 0
	}
	return trueAzimuth
}

// Placement is the computed local pose of one anchor.
type Placement struct {
	ID       string   `json:"id"`
	Position geo.Vec3 `json:"position"`
	// Scale is the anchor's own uniform scale.
	Scale float64 `json:"scale"`
	// WrapperScale cancels the world scale for anchors that do not scale
	// with the world; 1 otherwise.
	WrapperScale float64 `json:"wrapper_scale"`
	// Distance is the great-circle distance from the reference in meters.
	Distance float64 `json:"distance_m"`
	Visible  bool    `json:"visible"`
}

// Place computes the anchor's position relative to reference.
//
// An anchor altitude of exactly 0 is treated as unknown and replaced by the
// reference altitude so the object sits at eye level.
func (w World) Place(a *Anchor, reference geo.Point) Placement {
	target := a.Location
	if target.Altitude == 0 {
		target.Altitude = reference.Altitude
	}

	pos := geo.LocalOffset(reference, target)
	dist := geo.Distance(reference, target)
	if math.IsNaN(dist) {
		dist = 0
	}

	scale := 1.0
	if a.Config.RelativeScaling {
		scale = dist
	}

	fix := a.Config.FixCoordinate
	if fix[0] != nil {
		pos.X = *fix[0]
	}
	if fix[1] != nil {
		pos.Y = *fix[1]
	}
	if fix[2] != nil {
		pos.Z = *fix[2]
	}

	wrapper := 1.0
	if a.Config.ScaleWithWorld {
		pos = pos.Scaled(w.Scale)
	} else if w.Scale > 0 {
		wrapper = 1 / w.Scale
	}

	visible := true
	if w.MaxRenderingDistance > 0 {
		r := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
		visible = r <= w.MaxRenderingDistance
	}

	return Placement{
		ID:           a.ID,
		Position:     pos,
		Scale:        scale,
		WrapperScale: wrapper,
		Distance:     dist,
		Visible:      visible,
	}
}

// EstimateLocation inverts Place for an unscaled world: it returns the
// geographic position of a point at local offset (render axes) from
// reference. Used to estimate where the camera is after it moved away from
// the last fix.
func EstimateLocation(offset geo.Vec3, reference geo.Point) geo.Point {
	p := geo.FromENU(offset.ENU(), reference)
	p.Time = reference.Time
	return p
}

// Set is a collection of anchors placed against one world.
type Set struct {
	world   World
	anchors map[string]*Anchor
}

// NewSet validates world and returns an empty Set.
func NewSet(world World) (*Set, error) {
	if err := world.Validate(); err != nil {
		return nil, err
	}
	return &Set{world: world, anchors: make(map[string]*Anchor)}, nil
}

// Add registers an anchor. IDs must be unique.
func (s *Set) Add(a *Anchor) error {
	if _, ok := s.anchors[a.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateAnchor, a.ID)
	}
	s.anchors[a.ID] = a
	return nil
}

// Remove drops an anchor; unknown IDs are ignored.
func (s *Set) Remove(id string) {
	delete(s.anchors, id)
}

// Len returns the number of anchors.
func (s *Set) Len() int {
	return len(s.anchors)
}

// World returns the world settings.
func (s *Set) World() World {
	return s.world
}

// Place computes every anchor against reference, ordered by ID.
func (s *Set) Place(reference geo.Point) []Placement {
	out := make([]Placement, 0, len(s.anchors))
	for _, a := range s.anchors {
		out = append(out, s.world.Place(a, reference))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
