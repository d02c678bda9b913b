package gps

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rmc1 = "$GPRMC,101530.00,A,4912.8076,N,01844.9674,E,0.5,45.0,040526,,,A*6B"
	gga1 = "$GPGGA,101530.00,4912.8076,N,01844.9674,E,1,08,1.2,354.0,M,42.0,M,,*67"
	rmc2 = "$GPRMC,101531.00,A,4912.7649,N,01844.8838,E,0.4,44.0,040526,,,A*68"
	gga2 = "$GPGGA,101531.00,4912.7649,N,01844.8838,E,1,09,0.8,350.5,M,42.0,M,,*6F"
	rmcV = "$GPRMC,101532.00,V,4912.7649,N,01844.8838,E,0.0,0.0,040526,,,N*47"
	rmc3 = "$GPRMC,101533.00,A,4912.7649,N,01844.8838,E,0.4,44.0,040526,,,A*6A"
	gsa  = "$GPGSA,A,3,04,05,,09,12,,,24,,,,,2.5,1.3,2.1*39"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func feedAll(t *testing.T, a *Assembler, lines ...string) []Fix {
	t.Helper()
	var out []Fix
	for _, l := range lines {
		fixes, err := a.Feed(l)
		require.NoError(t, err, l)
		out = append(out, fixes...)
	}
	return out
}

func TestAssembler_RMCThenGGA(t *testing.T) {
	got := feedAll(t, NewAssembler(5), rmc1, gsa, gga1)
	require.Len(t, got, 1)

	want := Fix{
		Time:            got[0].Time,
		Date:            got[0].Date,
		Timestamp:       time.Date(2026, 5, 4, 10, 15, 30, 0, time.UTC),
		Latitude:        49 + 12.8076/60,
		Longitude:       18 + 44.9674/60,
		Altitude:        354,
		GeoidSeparation: 42,
		SpeedKnots:      0.5,
		CourseDeg:       45,
		Validity:        "A",
		FixQuality:      "1",
		Satellites:      8,
		HDOP:            1.2,
		AccuracyM:       6,
	}
	if diff := cmp.Diff(want, got[0], approx); diff != "" {
		t.Errorf("fix mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got[0].Valid())

	// MSL 354 m + 42 m geoid separation.
	assert.InDelta(t, 396.0, got[0].Point().Altitude, 1e-9)
}

func TestAssembler_GGAThenRMC(t *testing.T) {
	got := feedAll(t, NewAssembler(0), gga2, rmc2)
	require.Len(t, got, 1)

	assert.InDelta(t, 49.212748333, got[0].Latitude, 1e-6)
	assert.InDelta(t, 350.5, got[0].Altitude, 1e-9)
	assert.InDelta(t, 0.8*DefaultUERE, got[0].AccuracyM, 1e-9)
}

func TestAssembler_RMCOnly(t *testing.T) {
	a := NewAssembler(5)
	got := feedAll(t, a, rmc1, rmcV, rmc3)
	require.Len(t, got, 2)

	assert.True(t, got[0].Valid())
	assert.Zero(t, got[0].AccuracyM, "no GGA, accuracy unknown")
	assert.False(t, got[1].Valid())

	last, ok := a.Flush()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 5, 4, 10, 15, 33, 0, time.UTC), last.Timestamp)

	_, ok = a.Flush()
	assert.False(t, ok)
}

func TestAssembler_Sequence(t *testing.T) {
	got := feedAll(t, NewAssembler(5), rmc1, gga1, rmc2, gga2)
	require.Len(t, got, 2)
	assert.Equal(t, int64(9), got[1].Satellites)
}

func TestAssembler_SupersededAndCompleteInOneLine(t *testing.T) {
	// The next epoch's GGA arrives before its RMC while the previous RMC is
	// still waiting: rmc2 both retires rmc1 and completes epoch 2.
	a := NewAssembler(5)
	require.Empty(t, feedAll(t, a, rmc1, gga2))

	got, err := a.Feed(rmc2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, time.Date(2026, 5, 4, 10, 15, 30, 0, time.UTC), got[0].Timestamp)
	assert.Zero(t, got[0].AccuracyM, "rmc1 had no GGA")
	assert.Equal(t, time.Date(2026, 5, 4, 10, 15, 31, 0, time.UTC), got[1].Timestamp)
	assert.Equal(t, int64(9), got[1].Satellites)

	_, ok := a.Flush()
	assert.False(t, ok)
}

func TestAssembler_Errors(t *testing.T) {
	a := NewAssembler(5)

	fixes, err := a.Feed("   ")
	assert.NoError(t, err)
	assert.Empty(t, fixes)

	_, err = a.Feed("garbage")
	assert.ErrorIs(t, err, ErrNotNMEA)

	_, err = a.Feed("$GPRMC,101530.00,A,4912.8076,N,01844.9674,E,0.5,45.0,040526,,,A*00")
	assert.Error(t, err, "bad checksum")
}

func TestFix_Point(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 15, 30, 0, time.UTC)
	f := Fix{Latitude: 1, Longitude: 2, Altitude: 3, GeoidSeparation: -1.5, AccuracyM: 4, Timestamp: at}

	p := f.Point()
	assert.Equal(t, 1.0, p.Latitude)
	assert.Equal(t, 2.0, p.Longitude)
	assert.Equal(t, 1.5, p.Altitude, "ellipsoidal height")
	assert.Equal(t, 4.0, p.Accuracy)
	assert.Equal(t, at, p.Time)
}
