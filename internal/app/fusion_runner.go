// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/geo_anchor/internal/config"
	"github.com/relabs-tech/geo_anchor/internal/fusion"
	"github.com/relabs-tech/geo_anchor/internal/geo"
	"github.com/relabs-tech/geo_anchor/internal/gps"
	"github.com/relabs-tech/geo_anchor/internal/heading"
	"github.com/relabs-tech/geo_anchor/internal/imu"
	"github.com/relabs-tech/geo_anchor/internal/placement"
	"github.com/relabs-tech/geo_anchor/internal/track"
)

// headingRecordInterval limits how often azimuth readings reach the track log.
const headingRecordInterval = time.Second

// inbound is one MQTT message handed to the pipeline goroutine.
type inbound struct {
	topic   string
	payload []byte
}

// outbound is one message the pipeline wants published.
type outbound struct {
	topic    string
	retained bool
	payload  interface{}
}

// Location control actions accepted on the control topic.
const (
	ActionSetLocation   = "set_location"
	ActionResetAccuracy = "reset_accuracy"
	ActionStartUpdates  = "start_updates"
	ActionStopUpdates   = "stop_updates"
)

// LocationCommand is the control topic payload. Location is required for
// set_location only.
type LocationCommand struct {
	Action   string     `json:"action"`
	Location *geo.Point `json:"location,omitempty"`
}

// PlacementsMessage is published on every fused location change.
type PlacementsMessage struct {
	Reference  geo.Point             `json:"reference"`
	Yaw        float64               `json:"yaw"`
	Placements []placement.Placement `json:"placements"`
}

// pipeline owns the heading estimator, the fusion policy and the anchor set.
// It is driven from a single goroutine.
type pipeline struct {
	cfg       *config.Config
	estimator *heading.Estimator
	policy    *fusion.Policy
	anchors   *placement.Set
	store     *track.Store

	pending      []outbound
	source       string // producer of the fix being applied
	now          func() time.Time
	lastRecorded time.Time
}

func newPipeline(cfg *config.Config, store *track.Store) (*pipeline, error) {
	p := &pipeline{cfg: cfg, store: store, source: "gps", now: time.Now}

	est, err := heading.New(cfg.HeadingConfig(), heading.OnAzimuth(p.onAzimuth))
	if err != nil {
		return nil, err
	}
	p.estimator = est

	fc := cfg.FusionConfig()
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	p.policy = fusion.New(fc, fusion.OnLocationChanged(p.onLocation))

	set, err := placement.NewSet(cfg.World())
	if err != nil {
		return nil, err
	}
	for _, spec := range cfg.Anchors {
		a, err := placement.NewBuilder().
			SetID(spec.ID).
			SetLocation(spec.Point).
			SetConfig(spec.Config).
			Build()
		if err != nil {
			return nil, fmt.Errorf("anchor %q: %w", spec.ID, err)
		}
		if err := set.Add(a); err != nil {
			return nil, err
		}
	}
	p.anchors = set

	return p, nil
}

// handle processes one message and returns what should be published.
func (p *pipeline) handle(msg inbound) []outbound {
	p.pending = p.pending[:0]

	switch msg.topic {
	case p.cfg.TopicIMU:
		var s imu.Sample
		if err := json.Unmarshal(msg.payload, &s); err != nil {
			log.Printf("fusion: imu unmarshal error: %v", err)
			break
		}
		p.estimator.Update(s)

	case p.cfg.TopicIMUAccuracy:
		var ev imu.AccuracyEvent
		if err := json.Unmarshal(msg.payload, &ev); err != nil {
			log.Printf("fusion: accuracy unmarshal error: %v", err)
			break
		}
		// The compass tier is the magnetometer's.
		if ev.Sensor == imu.Magnetometer {
			p.estimator.SetAccuracy(heading.Accuracy(ev.Level))
			log.Printf("fusion: compass accuracy %s", heading.Accuracy(ev.Level))
		}

	case p.cfg.TopicGPS:
		var f gps.Fix
		if err := json.Unmarshal(msg.payload, &f); err != nil {
			log.Printf("fusion: gps unmarshal error: %v", err)
			break
		}
		if !f.Valid() {
			break
		}
		p.policy.Offer(f.Point())

	case p.cfg.TopicLocationControl:
		var cmd LocationCommand
		if err := json.Unmarshal(msg.payload, &cmd); err != nil {
			log.Printf("fusion: control unmarshal error: %v", err)
			break
		}
		p.control(cmd)

	default:
		log.Printf("fusion: unexpected topic %q", msg.topic)
	}

	out := make([]outbound, len(p.pending))
	copy(out, p.pending)
	return out
}

func (p *pipeline) control(cmd LocationCommand) {
	switch cmd.Action {
	case ActionSetLocation:
		if cmd.Location == nil {
			log.Printf("fusion: %s without location", cmd.Action)
			return
		}
		p.source = "manual"
		accepted := p.policy.SetLocation(*cmd.Location)
		p.source = "gps"
		if !accepted {
			log.Printf("fusion: manual location %.6f,%.6f rejected", cmd.Location.Latitude, cmd.Location.Longitude)
		}
	case ActionResetAccuracy:
		p.policy.ResetAccuracy()
	case ActionStartUpdates:
		p.policy.StartUpdates()
	case ActionStopUpdates:
		// Deactivation also drops the accuracy gate.
		p.policy.StopUpdates()
		p.policy.ResetAccuracy()
	default:
		log.Printf("fusion: unknown control action %q", cmd.Action)
		return
	}
	log.Printf("fusion: control %s, updates on=%t", cmd.Action, p.policy.Updating())
}

func (p *pipeline) onAzimuth(r heading.Reading) {
	p.pending = append(p.pending, outbound{topic: p.cfg.TopicAzimuth, payload: r})
	if p.store == nil {
		return
	}

	// Untimed samples fall back to the local clock; a clock that steps
	// backwards restarts the interval.
	at := r.Time
	if at.IsZero() {
		at = p.now()
	}
	if !p.lastRecorded.IsZero() && !at.Before(p.lastRecorded) && at.Sub(p.lastRecorded) < headingRecordInterval {
		return
	}
	p.lastRecorded = at
	err := p.store.RecordHeading(context.Background(), track.Heading{
		Recorded:    at,
		Azimuth:     r.Azimuth,
		TrueAzimuth: r.TrueAzimuth,
		Accuracy:    int(r.Accuracy),
	})
	if err != nil {
		log.Printf("fusion: record heading: %v", err)
	}
}

func (p *pipeline) onLocation(loc geo.Point) {
	log.Printf("fusion: location changed lat=%.6f lon=%.6f acc=%.1fm", loc.Latitude, loc.Longitude, loc.Accuracy)
	p.pending = append(p.pending, outbound{topic: p.cfg.TopicLocationFused, retained: true, payload: loc})
	p.pending = append(p.pending, outbound{topic: p.cfg.TopicPlacements, retained: true, payload: p.placements(loc)})

	if p.store != nil {
		if _, err := p.store.RecordLocation(context.Background(), loc, p.source); err != nil {
			log.Printf("fusion: record location: %v", err)
		}
	}
}

func (p *pipeline) placements(reference geo.Point) PlacementsMessage {
	msg := PlacementsMessage{Reference: reference, Placements: p.anchors.Place(reference)}
	if r, ok := p.estimator.Reading(); ok {
		msg.Yaw = p.anchors.World().Yaw(r.TrueAzimuth)
	}
	return msg
}

// RunFusion subscribes to IMU, GPS and location control topics, runs the heading estimator and
// location fusion, and publishes azimuth, fused location and anchor
// placements.
func RunFusion() error {
	cfg := config.Get()

	var store *track.Store
	if cfg.TrackDBPath != "" {
		s, err := track.Open(cfg.TrackDBPath)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
		log.Printf("fusion: recording track to %s", cfg.TrackDBPath)
	}

	p, err := newPipeline(cfg, store)
	if err != nil {
		return err
	}
	log.Printf("fusion: heading mode=%s window=%d, %d anchors", cfg.HeadingMode, cfg.HeadingConfig().WindowSize, p.anchors.Len())

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(config.ClientID(cfg.MQTTClientIDFusion, "fusion"))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("fusion: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Callbacks run on paho's goroutines; funnel them into one channel so
	// the core state is only touched by the loop below.
	in := make(chan inbound, 256)
	forward := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case in <- inbound{topic: msg.Topic(), payload: msg.Payload()}:
		default:
			log.Printf("fusion: queue full, dropping message on %s", msg.Topic())
		}
	}
	for _, topic := range []string{cfg.TopicIMU, cfg.TopicIMUAccuracy, cfg.TopicGPS, cfg.TopicLocationControl} {
		token := client.Subscribe(topic, 0, forward)
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("fusion: subscribed to %s", topic)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case msg := <-in:
			for _, o := range p.handle(msg) {
				publishJSON(client, o)
			}
		case <-sigCh:
			log.Println("fusion: shutting down")
			return nil
		}
	}
}

func publishJSON(client mqtt.Client, o outbound) {
	payload, err := json.Marshal(o.payload)
	if err != nil {
		log.Printf("publish: marshal error on %s: %v", o.topic, err)
		return
	}
	token := client.Publish(o.topic, 0, o.retained, payload)
	token.Wait()
	if token.Error() != nil {
		log.Printf("publish: %s: %v", o.topic, token.Error())
	}
}
