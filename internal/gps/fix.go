package gps

import (
	"time"

	"github.com/relabs-tech/geo_anchor/internal/geo"
)

// DefaultUERE is the user equivalent range error (meters) used to turn HDOP
// into a horizontal accuracy estimate when none is configured.
const DefaultUERE = 5.0

// Fix represents a single combined GPS fix suitable for JSON and MQTT.
type Fix struct {
	Time            string    `json:"time"`             // e.g. "10:15:30.0000"
	Date            string    `json:"date"`             // e.g. "04/05/26"
	Timestamp       time.Time `json:"timestamp"`        // UTC, zero if date or time missing
	Latitude        float64   `json:"lat"`              // decimal degrees
	Longitude       float64   `json:"lon"`              // decimal degrees
	Altitude        float64   `json:"alt"`              // meters above mean sea level (GGA)
	GeoidSeparation float64   `json:"geoid_separation"` // WGS-84 ellipsoid to geoid (GGA)
	SpeedKnots      float64   `json:"speed_knots"`      // speed over ground
	CourseDeg       float64   `json:"course_deg"`       // course over ground
	Validity        string    `json:"validity"`         // "A" (valid) / "V" (void), etc.
	FixQuality      string    `json:"fix_quality"`      // GGA quality, "" without GGA
	Satellites      int64     `json:"satellites"`
	HDOP            float64   `json:"hdop"`
	AccuracyM       float64   `json:"accuracy_m"` // HDOP × UERE, 0 when unknown
}

// Valid reports whether the receiver flagged the fix as usable.
func (f Fix) Valid() bool {
	return f.Validity == "A"
}

// EllipsoidalHeight returns the height above the WGS-84 ellipsoid: the mean
// sea level altitude plus the geoid separation.
func (f Fix) EllipsoidalHeight() float64 {
	return f.Altitude + f.GeoidSeparation
}

// Point converts the fix for the fusion policy. The point altitude is the
// ellipsoidal height, the datum package geo works in.
func (f Fix) Point() geo.Point {
	return geo.Point{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Altitude:  f.EllipsoidalHeight(),
		Accuracy:  f.AccuracyM,
		Time:      f.Timestamp,
	}
}
