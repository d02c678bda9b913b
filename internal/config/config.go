package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/relabs-tech/geo_anchor/internal/fusion"
	"github.com/relabs-tech/geo_anchor/internal/geo"
	"github.com/relabs-tech/geo_anchor/internal/heading"
	"github.com/relabs-tech/geo_anchor/internal/placement"
)

// DefaultPath is the config file the commands read when no -config flag is given.
const DefaultPath = "geo_anchor_config.txt"

var ErrMissingKey = errors.New("config: required key missing")

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDGPS     string
	MQTTClientIDIMU     string
	MQTTClientIDFusion  string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string

	// Topics
	TopicIMU             string
	TopicIMUAccuracy     string
	TopicGPS             string
	TopicAzimuth         string
	TopicLocationFused   string
	TopicLocationControl string
	TopicPlacements      string

	// GPS
	GPSSerialPort string
	GPSBaudRate   int
	GPSUERE       float64 // meters per unit of HDOP

	// Heading. Window and biases left unset take the mode's defaults.
	HeadingMode            heading.Mode
	HeadingWindow          int
	HeadingAccelBias       *float64
	HeadingMagBias         *float64
	ScreenRotation         heading.ScreenRotation
	MagneticDeclinationDeg float64

	// World / fusion
	NorthRotated                 bool
	MaxRenderingDistance         float64
	WorldScale                   float64
	UpdateIntervalMeters         float64
	LocationAccuracyThreshold    float64
	ReceiveLocationUpdates       bool
	UpdateOnMoreAccurateLocation bool
	Anchors                      []AnchorSpec

	// IMU simulator
	IMUSampleInterval int     // milliseconds
	SimHeadingRateDeg float64 // deg/s
	SimWobbleDeg      float64
	SimUpright        bool

	// Web server
	WebServerPort int

	// Storage; empty disables the track log.
	TrackDBPath string
}

// AnchorSpec is one ANCHOR=id,lat,lon[,alt][,option...] line.
//
// Options:
//
//	relative     scale the anchor by its distance from the device
//	noscale      keep the anchor's size when the world is scaled
//	fix_x=<m>    pin the east render axis (likewise fix_y up, fix_z north)
type AnchorSpec struct {
	ID     string
	Point  geo.Point
	Config placement.Config
}

// Package-level unexported variables for the singleton:
//   - globalConfig: only reachable through InitGlobal/Get.
//   - configOnce: InitGlobal runs Load at most once.
//   - configMu: write lock for initialization, read lock for Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for every key a file leaves out.
func Default() *Config {
	return &Config{
		TopicIMU:             "geo_anchor/imu",
		TopicIMUAccuracy:     "geo_anchor/imu/accuracy",
		TopicGPS:             "geo_anchor/gps",
		TopicAzimuth:         "geo_anchor/azimuth",
		TopicLocationFused:   "geo_anchor/location/fused",
		TopicLocationControl: "geo_anchor/location/control",
		TopicPlacements:      "geo_anchor/placements",

		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,
		GPSUERE:       5,

		HeadingMode:    heading.ModeScreen,
		ScreenRotation: heading.Rotation0,

		NorthRotated:                 true,
		MaxRenderingDistance:         1000,
		WorldScale:                   1,
		UpdateIntervalMeters:         500,
		LocationAccuracyThreshold:    100,
		ReceiveLocationUpdates:       true,
		UpdateOnMoreAccurateLocation: true,

		IMUSampleInterval: 20,
		SimHeadingRateDeg: 10,
		SimWobbleDeg:      3,
		SimUpright:        false,

		WebServerPort: 8080,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default and validates the result.
// Blank lines and lines starting with '#' are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseInt(key, value string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

func parseBool(key, value string) (bool, error) {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return v, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error

	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_IMU":
		c.MQTTClientIDIMU = value
	case "MQTT_CLIENT_ID_FUSION":
		c.MQTTClientIDFusion = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_IMU":
		c.TopicIMU = value
	case "TOPIC_IMU_ACCURACY":
		c.TopicIMUAccuracy = value
	case "TOPIC_GPS":
		c.TopicGPS = value
	case "TOPIC_AZIMUTH":
		c.TopicAzimuth = value
	case "TOPIC_LOCATION_FUSED":
		c.TopicLocationFused = value
	case "TOPIC_LOCATION_CONTROL":
		c.TopicLocationControl = value
	case "TOPIC_PLACEMENTS":
		c.TopicPlacements = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value)
		if err == nil && c.GPSBaudRate <= 0 {
			err = fmt.Errorf("GPS_BAUD_RATE must be positive, got %d", c.GPSBaudRate)
		}
	case "GPS_UERE_METERS":
		c.GPSUERE, err = parseFloat(key, value)
		if err == nil && !(c.GPSUERE > 0) {
			err = fmt.Errorf("GPS_UERE_METERS must be positive, got %v", c.GPSUERE)
		}

	// Heading
	case "HEADING_MODE":
		c.HeadingMode, err = heading.ParseMode(value)
	case "HEADING_WINDOW":
		c.HeadingWindow, err = parseInt(key, value)
		if err == nil && c.HeadingWindow < 1 {
			err = fmt.Errorf("HEADING_WINDOW must be at least 1, got %d", c.HeadingWindow)
		}
	case "HEADING_ACCEL_BIAS", "HEADING_MAG_BIAS":
		var bias float64
		bias, err = parseFloat(key, value)
		if err == nil && !(bias >= 0 && bias <= 1) {
			err = fmt.Errorf("%s must be within 0-1, got %v", key, bias)
		}
		if key == "HEADING_ACCEL_BIAS" {
			c.HeadingAccelBias = &bias
		} else {
			c.HeadingMagBias = &bias
		}
	case "SCREEN_ROTATION":
		var deg int
		if deg, err = parseInt(key, value); err == nil {
			c.ScreenRotation, err = heading.ParseScreenRotation(deg)
		}
	case "MAGNETIC_DECLINATION_DEG":
		c.MagneticDeclinationDeg, err = parseFloat(key, value)
		if err == nil && (c.MagneticDeclinationDeg < -180 || c.MagneticDeclinationDeg > 180) {
			err = fmt.Errorf("MAGNETIC_DECLINATION_DEG must be within -180..180, got %v", c.MagneticDeclinationDeg)
		}

	// World / fusion
	case "NORTH_ROTATED":
		c.NorthRotated, err = parseBool(key, value)
	case "MAX_RENDERING_DISTANCE":
		c.MaxRenderingDistance, err = parseFloat(key, value)
	case "WORLD_SCALE":
		c.WorldScale, err = parseFloat(key, value)
	case "UPDATE_INTERVAL_METERS":
		c.UpdateIntervalMeters, err = parseFloat(key, value)
	case "LOCATION_ACCURACY_THRESHOLD":
		c.LocationAccuracyThreshold, err = parseFloat(key, value)
	case "RECEIVE_LOCATION_UPDATES":
		c.ReceiveLocationUpdates, err = parseBool(key, value)
	case "UPDATE_ON_MORE_ACCURATE_LOCATION":
		c.UpdateOnMoreAccurateLocation, err = parseBool(key, value)
	case "ANCHOR":
		var a AnchorSpec
		if a, err = parseAnchor(value); err == nil {
			c.Anchors = append(c.Anchors, a)
		}

	// IMU simulator
	case "IMU_SAMPLE_INTERVAL":
		c.IMUSampleInterval, err = parseInt(key, value)
	case "SIM_HEADING_RATE_DEG":
		c.SimHeadingRateDeg, err = parseFloat(key, value)
	case "SIM_WOBBLE_DEG":
		c.SimWobbleDeg, err = parseFloat(key, value)
	case "SIM_UPRIGHT":
		c.SimUpright, err = parseBool(key, value)

	// Web server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value)

	// Storage
	case "TRACK_DB_PATH":
		c.TrackDBPath = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// parseAnchor reads "id,lat,lon[,alt][,option...]". The fourth field is
// the altitude when it is numeric.
func parseAnchor(value string) (AnchorSpec, error) {
	fields := strings.Split(value, ",")
	if len(fields) < 3 {
		return AnchorSpec{}, fmt.Errorf("ANCHOR must be id,lat,lon[,alt][,option...], got %q", value)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	a := AnchorSpec{ID: fields[0], Config: placement.DefaultConfig()}
	if a.ID == "" {
		return AnchorSpec{}, fmt.Errorf("ANCHOR id is empty in %q", value)
	}

	var err error
	if a.Point.Latitude, err = parseFloat("ANCHOR latitude", fields[1]); err != nil {
		return AnchorSpec{}, err
	}
	if a.Point.Longitude, err = parseFloat("ANCHOR longitude", fields[2]); err != nil {
		return AnchorSpec{}, err
	}
	if !a.Point.Valid() {
		return AnchorSpec{}, fmt.Errorf("ANCHOR %q coordinates out of range", a.ID)
	}

	options := fields[3:]
	if len(options) > 0 {
		if alt, err := strconv.ParseFloat(options[0], 64); err == nil {
			a.Point.Altitude = alt
			options = options[1:]
		}
	}
	for _, opt := range options {
		if err := a.applyOption(opt); err != nil {
			return AnchorSpec{}, fmt.Errorf("ANCHOR %q: %w", a.ID, err)
		}
	}
	return a, nil
}

func (a *AnchorSpec) applyOption(opt string) error {
	name, arg, hasArg := strings.Cut(opt, "=")
	switch name {
	case "relative":
		a.Config.RelativeScaling = true
	case "noscale":
		a.Config.ScaleWithWorld = false
	case "fix_x", "fix_y", "fix_z":
		if !hasArg {
			return fmt.Errorf("option %s needs a value", name)
		}
		v, err := parseFloat(name, arg)
		if err != nil {
			return err
		}
		a.Config.FixCoordinate[name[4]-'x'] = &v
	default:
		return fmt.Errorf("unknown option %q", opt)
	}
	if hasArg && !strings.HasPrefix(name, "fix_") {
		return fmt.Errorf("option %s takes no value", name)
	}
	return nil
}

// validate checks that all required fields are set and that the derived
// component configs are usable.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("%w: MQTT_BROKER", ErrMissingKey)
	}
	if c.IMUSampleInterval <= 0 {
		return fmt.Errorf("IMU_SAMPLE_INTERVAL must be positive, got %d", c.IMUSampleInterval)
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	if err := c.FusionConfig().Validate(); err != nil {
		return err
	}
	if err := c.World().Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Anchors))
	for _, a := range c.Anchors {
		if seen[a.ID] {
			return fmt.Errorf("duplicate ANCHOR id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

// HeadingConfig returns the estimator tuning: the mode's defaults with any
// explicit HEADING_* overrides applied.
func (c *Config) HeadingConfig() heading.Config {
	hc := heading.DefaultConfig(c.HeadingMode)
	if c.HeadingWindow > 0 {
		hc.WindowSize = c.HeadingWindow
	}
	if c.HeadingAccelBias != nil {
		hc.AccelBias = *c.HeadingAccelBias
	}
	if c.HeadingMagBias != nil {
		hc.MagBias = *c.HeadingMagBias
	}
	hc.Rotation = c.ScreenRotation
	hc.Declination = c.MagneticDeclinationDeg
	return hc
}

// FusionConfig returns the location fusion policy settings.
func (c *Config) FusionConfig() fusion.Config {
	return fusion.Config{
		UpdateIntervalMeters:    c.UpdateIntervalMeters,
		AccuracyThresholdMeters: c.LocationAccuracyThreshold,
		UpdateOnMoreAccurate:    c.UpdateOnMoreAccurateLocation,
		ReceiveUpdates:          c.ReceiveLocationUpdates,
	}
}

// World returns the placement world settings.
func (c *Config) World() placement.World {
	return placement.World{
		Scale:                c.WorldScale,
		NorthRotated:         c.NorthRotated,
		MaxRenderingDistance: c.MaxRenderingDistance,
	}
}

// ClientID returns configured, or a random "geo-anchor-<role>-<uuid>" ID
// when the configured value is empty. Brokers drop a session when a second
// client connects with the same ID.
func ClientID(configured, role string) string {
	if configured != "" {
		return configured
	}
	return fmt.Sprintf("geo-anchor-%s-%s", role, uuid.NewString())
}

// InitGlobal loads the global configuration from file exactly once.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
