package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/geo_anchor/internal/heading"
	"github.com/relabs-tech/geo_anchor/internal/placement"
)

const sample = `
# broker
MQTT_BROKER=tcp://localhost:1883
MQTT_CLIENT_ID_FUSION=fusion-1

TOPIC_AZIMUTH = test/azimuth
GPS_UERE_METERS=4.5
HEADING_MODE=fixed
HEADING_MAG_BIAS=0.5
SCREEN_ROTATION=90
MAGNETIC_DECLINATION_DEG=4.6
UPDATE_INTERVAL_METERS=250
RECEIVE_LOCATION_UPDATES=false
ANCHOR=tower,49.212748,18.748063,354
ANCHOR=gate, 49.214513, 18.737469
TRACK_DB_PATH=/tmp/track.db
`

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "fusion-1", cfg.MQTTClientIDFusion)
	assert.Equal(t, "test/azimuth", cfg.TopicAzimuth)
	assert.Equal(t, "geo_anchor/gps", cfg.TopicGPS, "default kept")
	assert.Equal(t, 4.5, cfg.GPSUERE)
	assert.Equal(t, heading.ModeFixed, cfg.HeadingMode)
	assert.Equal(t, heading.Rotation90, cfg.ScreenRotation)
	assert.Equal(t, "/tmp/track.db", cfg.TrackDBPath)

	require.Len(t, cfg.Anchors, 2)
	assert.Equal(t, "tower", cfg.Anchors[0].ID)
	assert.Equal(t, 354.0, cfg.Anchors[0].Point.Altitude)
	assert.Equal(t, "gate", cfg.Anchors[1].ID)
	assert.Equal(t, 18.737469, cfg.Anchors[1].Point.Longitude)
}

func TestParse_AnchorOptions(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`MQTT_BROKER=x
ANCHOR=a,49.2,18.7,12,relative,fix_y=1.5,noscale
ANCHOR=b,49.2,18.7,relative
ANCHOR=c,49.2,18.7
`))
	require.NoError(t, err)
	require.Len(t, cfg.Anchors, 3)

	a := cfg.Anchors[0].Config
	assert.Equal(t, 12.0, cfg.Anchors[0].Point.Altitude)
	assert.True(t, a.RelativeScaling)
	assert.False(t, a.ScaleWithWorld)
	assert.Nil(t, a.FixCoordinate[0])
	require.NotNil(t, a.FixCoordinate[1])
	assert.Equal(t, 1.5, *a.FixCoordinate[1])
	assert.Nil(t, a.FixCoordinate[2])

	assert.Zero(t, cfg.Anchors[1].Point.Altitude, "option in the altitude slot")
	assert.True(t, cfg.Anchors[1].Config.RelativeScaling)
	assert.True(t, cfg.Anchors[1].Config.ScaleWithWorld)

	assert.Equal(t, placement.DefaultConfig(), cfg.Anchors[2].Config)
}

func TestHeadingConfig(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	hc := cfg.HeadingConfig()
	assert.Equal(t, 60, hc.WindowSize, "fixed mode default window")
	assert.Equal(t, 0.01, hc.AccelBias, "fixed mode default accel bias")
	assert.Equal(t, 0.5, hc.MagBias, "explicit override")
	assert.Equal(t, heading.Rotation90, hc.Rotation)
	assert.Equal(t, 4.6, hc.Declination)

	_, err = heading.New(hc)
	assert.NoError(t, err)

	def := Default().HeadingConfig()
	assert.Equal(t, 10, def.WindowSize)
	assert.Equal(t, 0.25, def.AccelBias)
}

func TestFusionConfigAndWorld(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	fc := cfg.FusionConfig()
	assert.Equal(t, 250.0, fc.UpdateIntervalMeters)
	assert.Equal(t, 100.0, fc.AccuracyThresholdMeters)
	assert.True(t, fc.UpdateOnMoreAccurate)
	assert.False(t, fc.ReceiveUpdates)

	w := cfg.World()
	assert.Equal(t, 1.0, w.Scale)
	assert.True(t, w.NorthRotated)
	assert.Equal(t, 1000.0, w.MaxRenderingDistance)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing broker", "TOPIC_GPS=x\n", "MQTT_BROKER"},
		{"no equals", "MQTT_BROKER=x\nJUNK\n", "invalid config line 2"},
		{"unknown key", "MQTT_BROKER=x\nFOO=1\n", "unknown config key"},
		{"bad rotation", "MQTT_BROKER=x\nSCREEN_ROTATION=45\n", "invalid screen rotation"},
		{"bad mode", "MQTT_BROKER=x\nHEADING_MODE=gyro\n", "invalid mode"},
		{"bad bias", "MQTT_BROKER=x\nHEADING_ACCEL_BIAS=1.5\n", "within 0-1"},
		{"bad window", "MQTT_BROKER=x\nHEADING_WINDOW=0\n", "at least 1"},
		{"bad bool", "MQTT_BROKER=x\nNORTH_ROTATED=maybe\n", "invalid NORTH_ROTATED"},
		{"bad anchor", "MQTT_BROKER=x\nANCHOR=a,1\n", "id,lat,lon"},
		{"anchor option", "MQTT_BROKER=x\nANCHOR=a,1,2,bogus\n", "unknown option"},
		{"anchor fix no value", "MQTT_BROKER=x\nANCHOR=a,1,2,0,fix_y\n", "needs a value"},
		{"anchor fix bad value", "MQTT_BROKER=x\nANCHOR=a,1,2,fix_y=abc\n", "invalid fix_y"},
		{"anchor flag value", "MQTT_BROKER=x\nANCHOR=a,1,2,relative=1\n", "takes no value"},
		{"anchor range", "MQTT_BROKER=x\nANCHOR=a,91,0\n", "out of range"},
		{"duplicate anchor", "MQTT_BROKER=x\nANCHOR=a,1,2\nANCHOR=a,3,4\n", "duplicate ANCHOR"},
		{"negative interval", "MQTT_BROKER=x\nUPDATE_INTERVAL_METERS=-5\n", "update interval"},
		{"zero scale", "MQTT_BROKER=x\nWORLD_SCALE=0\n", "scale"},
		{"bad port", "MQTT_BROKER=x\nWEB_SERVER_PORT=70000\n", "WEB_SERVER_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestClientID(t *testing.T) {
	assert.Equal(t, "fixed-id", ClientID("fixed-id", "gps"))

	a := ClientID("", "gps")
	b := ClientID("", "gps")
	assert.True(t, strings.HasPrefix(a, "geo-anchor-gps-"))
	assert.NotEqual(t, a, b)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)

	assert.Equal(t, heading.ModeScreen, cfg.HeadingMode)
	assert.Equal(t, 10, cfg.HeadingConfig().WindowSize)
	require.Len(t, cfg.Anchors, 2)
	assert.Zero(t, cfg.Anchors[1].Point.Altitude)
	assert.True(t, cfg.Anchors[1].Config.RelativeScaling)
	assert.Equal(t, "geo_anchor/location/control", cfg.TopicLocationControl)
	assert.NoError(t, cfg.FusionConfig().Validate())
}
