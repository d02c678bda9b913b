package track

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/geo_anchor/internal/geo"
	"github.com/relabs-tech/geo_anchor/internal/monitoring"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	s, err := Open(filepath.Join(t.TempDir(), "track.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Locations(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	fixTime := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	first := geo.Point{Latitude: 49.213460, Longitude: 18.749457, Altitude: 354, Accuracy: 12, Time: fixTime}
	second := geo.Point{Latitude: 49.212748, Longitude: 18.748063, Altitude: 350, Accuracy: 8, Time: fixTime.Add(time.Second)}

	id1, err := s.RecordLocation(ctx, first, "gps")
	require.NoError(t, err)
	id2, err := s.RecordLocation(ctx, second, "manual")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	got, err := s.RecentLocations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, id2, got[0].ID)
	assert.Equal(t, "manual", got[0].Source)
	assert.Equal(t, second, got[0].Point)
	assert.Equal(t, first, got[1].Point)

	limited, err := s.RecentLocations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_LocationWithoutTime(t *testing.T) {
	s := openTemp(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.RecordLocation(context.Background(), geo.Point{Latitude: 1, Longitude: 2}, "gps")
	require.NoError(t, err)

	got, err := s.RecentLocations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, now, got[0].Point.Time)
	assert.Equal(t, now, got[0].Recorded)
}

func TestStore_Headings(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, ok, err := s.LatestHeading(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.RecordHeading(ctx, Heading{Recorded: at, Azimuth: -45, TrueAzimuth: -40.5, Accuracy: 3}))
	require.NoError(t, s.RecordHeading(ctx, Heading{Recorded: at.Add(time.Second), Azimuth: 10, TrueAzimuth: 14.5, Accuracy: 2}))

	h, ok, err := s.LatestHeading(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Heading{Recorded: at.Add(time.Second), Azimuth: 10, TrueAzimuth: 14.5, Accuracy: 2}, h)
}

func TestOpen_BadPath(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	defer func() { monitoring.Logf = original }()

	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "track.db"))
	assert.Error(t, err)
}
