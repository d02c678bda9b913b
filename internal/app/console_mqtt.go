package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/geo_anchor/internal/config"
	"github.com/relabs-tech/geo_anchor/internal/geo"
	"github.com/relabs-tech/geo_anchor/internal/gps"
	"github.com/relabs-tech/geo_anchor/internal/heading"
	"github.com/relabs-tech/geo_anchor/internal/imu"
	"github.com/relabs-tech/geo_anchor/internal/orientation"
)

// formatAzimuth renders one [AZIM] console line.
func formatAzimuth(r heading.Reading) string {
	return fmt.Sprintf(
		"[AZIM] MAG=%6.1f  TRUE=%6.1f  ROLL=%6.2f  PITCH=%6.2f  ACC=%s",
		heading.NormalizeDegrees(r.Azimuth), heading.NormalizeDegrees(r.TrueAzimuth),
		r.Pose.Roll, r.Pose.Pitch, r.Accuracy,
	)
}

func formatLocation(p geo.Point) string {
	return fmt.Sprintf("[LOC ] lat=%.6f lon=%.6f alt=%.1f acc=%.1fm", p.Latitude, p.Longitude, p.Altitude, p.Accuracy)
}

func formatFix(f gps.Fix) string {
	return fmt.Sprintf(
		"[GPS ] time=%s date=%s lat=%.6f lon=%.6f alt=%.1f sats=%d hdop=%.1f validity=%s",
		f.Time, f.Date, f.Latitude, f.Longitude, f.Altitude, f.Satellites, f.HDOP, f.Validity,
	)
}

// formatSample prints magnetometer samples raw and accelerometer samples
// with the tilt they imply.
func formatSample(s imu.Sample) string {
	if s.Sensor == imu.Accelerometer {
		p := orientation.ComputePoseFromAccel(s.X, s.Y, s.Z)
		return fmt.Sprintf("[IMU ] ax=%7.3f ay=%7.3f az=%7.3f  roll=%6.2f pitch=%6.2f", s.X, s.Y, s.Z, p.Roll, p.Pitch)
	}
	return fmt.Sprintf("[IMU ] mx=%7.2f my=%7.2f mz=%7.2f", s.X, s.Y, s.Z)
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(config.ClientID(cfg.MQTTClientIDConsole, "console"))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to azimuth
	azToken := client.Subscribe(cfg.TopicAzimuth, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r heading.Reading
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("console: azimuth unmarshal error: %v", err)
			return
		}
		fmt.Println(formatAzimuth(r))
	})
	azToken.Wait()
	if azToken.Error() != nil {
		return azToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicAzimuth)

	// Subscribe to fused location
	locToken := client.Subscribe(cfg.TopicLocationFused, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var p geo.Point
		if err := json.Unmarshal(msg.Payload(), &p); err != nil {
			log.Printf("console: location unmarshal error: %v", err)
			return
		}
		fmt.Println(formatLocation(p))
	})
	locToken.Wait()
	if locToken.Error() != nil {
		return locToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicLocationFused)

	// Subscribe to GPS
	gpsToken := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: gps unmarshal error: %v", err)
			return
		}
		fmt.Println(formatFix(f))
	})
	gpsToken.Wait()
	if gpsToken.Error() != nil {
		return gpsToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGPS)

	// Subscribe to IMU
	imuToken := client.Subscribe(cfg.TopicIMU, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s imu.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: imu unmarshal error: %v", err)
			return
		}
		fmt.Println(formatSample(s))
	})
	imuToken.Wait()
	if imuToken.Error() != nil {
		return imuToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicIMU)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
