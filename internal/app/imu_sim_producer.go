package app

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/geo_anchor/internal/config"
	"github.com/relabs-tech/geo_anchor/internal/heading"
	"github.com/relabs-tech/geo_anchor/internal/imu"
)

// RunIMUSimProducer publishes synthetic accelerometer and magnetometer
// samples for a device turning at SIM_HEADING_RATE_DEG.
func RunIMUSimProducer() error {
	log.Println("starting geo-anchor IMU simulator")

	cfg := config.Get()
	src := imu.NewSimulator(cfg.SimHeadingRateDeg, cfg.SimWobbleDeg, cfg.SimUpright)

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(config.ClientID(cfg.MQTTClientIDIMU, "imu"))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Println("imu: connected to MQTT, starting publish loop")

	// Synthetic data is always calibrated.
	publishJSON(client, outbound{
		topic:    cfg.TopicIMUAccuracy,
		retained: true,
		payload:  imu.AccuracyEvent{Sensor: imu.Magnetometer, Level: int(heading.AccuracyHigh), Time: time.Now()},
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	var count int
	for {
		select {
		case <-ticker.C:
			if err := publishSamples(client, cfg.TopicIMU, src); err != nil {
				log.Printf("imu: %v", err)
				continue
			}
			count++
			if count%250 == 0 {
				log.Printf("imu: published %d sample pairs", count)
			}
		case <-sigCh:
			log.Println("imu: shutting down")
			return nil
		}
	}
}

func publishSamples(client mqtt.Client, topic string, src imu.Source) error {
	samples, err := src.Next()
	if err != nil {
		return err
	}
	for _, s := range samples {
		payload, err := json.Marshal(s)
		if err != nil {
			return err
		}
		token := client.Publish(topic, 0, false, payload)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
	}
	return nil
}
