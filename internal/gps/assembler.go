// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"errors"
	"fmt"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// ErrNotNMEA is returned for lines that do not start with '$'.
var ErrNotNMEA = errors.New("gps: not an NMEA sentence")

// Assembler merges RMC (position, validity, date) and GGA (altitude, HDOP,
// satellites) sentences of the same epoch into one Fix.
//
// Receivers send RMC and GGA in either order. A fix is emitted as soon as
// both sentences of an epoch are present. An RMC that is superseded before
// its GGA arrives is emitted alone, so RMC-only receivers still produce
// fixes, one epoch late.
type Assembler struct {
	uere float64
	rmc  *nmea.RMC
	gga  *nmea.GGA
}

// NewAssembler returns an Assembler using uere meters per unit of HDOP.
// uere <= 0 selects DefaultUERE.
func NewAssembler(uere float64) *Assembler {
	if uere <= 0 {
		uere = DefaultUERE
	}
	return &Assembler{uere: uere}
}

// Feed parses one line and returns the fixes it completed, oldest first.
// A single line can complete two fixes: an RMC that supersedes a pending
// RMC-only epoch while also matching an already received GGA. Blank lines
// and sentence types other than RMC/GGA return nothing and no error.
func (a *Assembler) Feed(line string) ([]Fix, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, "$") {
		return nil, ErrNotNMEA
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("gps: parse: %w", err)
	}

	var out []Fix
	switch sentence.DataType() {
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		if a.rmc != nil && a.rmc.Time != m.Time {
			out = append(out, a.build(*a.rmc, nil))
		}
		a.rmc = &m

	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		a.gga = &m

	default:
		return nil, nil
	}

	if a.rmc != nil && a.gga != nil && a.rmc.Time == a.gga.Time {
		out = append(out, a.build(*a.rmc, a.gga))
		a.rmc, a.gga = nil, nil
	}
	return out, nil
}

// Flush returns a pending RMC-only fix, if any.
func (a *Assembler) Flush() (Fix, bool) {
	if a.rmc == nil {
		return Fix{}, false
	}
	fix := a.build(*a.rmc, nil)
	a.rmc = nil
	return fix, true
}

func (a *Assembler) build(rmc nmea.RMC, gga *nmea.GGA) Fix {
	fix := Fix{
		Time:       rmc.Time.String(),
		Date:       rmc.Date.String(),
		Timestamp:  timestamp(rmc.Date, rmc.Time),
		Latitude:   rmc.Latitude,
		Longitude:  rmc.Longitude,
		SpeedKnots: rmc.Speed,
		CourseDeg:  rmc.Course,
		Validity:   string(rmc.Validity),
	}
	if gga != nil {
		fix.Altitude = gga.Altitude
		fix.GeoidSeparation = gga.Separation
		fix.FixQuality = gga.FixQuality
		fix.Satellites = gga.NumSatellites
		fix.HDOP = gga.HDOP
		if gga.HDOP > 0 {
			fix.AccuracyM = gga.HDOP * a.uere
		}
	}
	return fix
}

func timestamp(d nmea.Date, t nmea.Time) time.Time {
	if !d.Valid || !t.Valid {
		return time.Time{}
	}
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
