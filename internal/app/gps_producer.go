package app

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/geo_anchor/internal/config"
	"github.com/relabs-tech/geo_anchor/internal/gps"
)

// RunGPSProducer opens the GPS serial port, merges NMEA RMC/GGA sentences
// into fixes, and publishes each fix as JSON to the configured GPS topic.
func RunGPSProducer() error {
	cfg := config.Get()

	// ---- 1) Connect to MQTT broker ----
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(config.ClientID(cfg.MQTTClientIDGPS, "gps"))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("gps: connected to MQTT broker at %s", cfg.MQTTBroker)

	// ---- 2) Open GPS serial port ----
	serialOpts := serial.OpenOptions{
		PortName:              cfg.GPSSerialPort,
		BaudRate:              uint(cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("gps: serial port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	return streamFixes(port, gps.NewAssembler(cfg.GPSUERE), func(f gps.Fix) error {
		payload, err := json.Marshal(f)
		if err != nil {
			return err
		}
		token := client.Publish(cfg.TopicGPS, 0, true, payload)
		token.Wait()
		return token.Error()
	})
}

// streamFixes reads NMEA lines from r until EOF and hands every assembled
// fix to publish. Parse and publish errors are logged and skipped; a read
// error ends the stream.
func streamFixes(r io.Reader, asm *gps.Assembler, publish func(gps.Fix) error) error {
	reader := bufio.NewReader(r)
	emit := func(f gps.Fix) {
		if err := publish(f); err != nil {
			log.Printf("gps: publish error: %v", err)
			return
		}
		log.Printf("gps: published fix lat=%.6f lon=%.6f acc=%.1fm validity=%s",
			f.Latitude, f.Longitude, f.AccuracyM, f.Validity)
	}

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			fixes, perr := asm.Feed(line)
			switch {
			case errors.Is(perr, gps.ErrNotNMEA):
			case perr != nil:
				// noisy receivers emit partial sentences at startup
			default:
				for _, f := range fixes {
					emit(f)
				}
			}
		}
		if err != nil {
			if fix, ok := asm.Flush(); ok {
				emit(fix)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			log.Printf("gps: read error: %v", err)
			return err
		}
	}
}
