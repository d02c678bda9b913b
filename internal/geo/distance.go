package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Distance returns the great-circle distance between two points in meters,
// ignoring altitude.
func Distance(p, q Point) float64 {
	return orbgeo.DistanceHaversine(p.orb(), q.orb())
}

// Bearing returns the initial bearing from p to q in degrees, in (-180, 180].
func Bearing(p, q Point) float64 {
	return NormalizeLongitude(orbgeo.Bearing(p.orb(), q.orb()))
}

func (p Point) orb() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// SlantRange returns the straight-line distance between two points in meters,
// including the altitude difference.
func SlantRange(p, q Point) float64 {
	d := p.ToECEF().Sub(q.ToECEF()).Norm()
	if math.IsNaN(d) {
		return 0
	}
	return d
}
