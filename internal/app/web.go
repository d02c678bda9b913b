package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/geo_anchor/internal/config"
	"github.com/relabs-tech/geo_anchor/internal/track"
)

// liveUpdate is the websocket envelope: the MQTT payload tagged by kind.
type liveUpdate struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// webState keeps the latest payload of each topic the web server follows.
type webState struct {
	mu     sync.RWMutex
	latest map[string]json.RawMessage
	kinds  map[string]string // topic -> kind
	hub    *Hub
	store  *track.Store
	static string // directory served at /
}

func newWebState(cfg *config.Config, hub *Hub, store *track.Store) *webState {
	return &webState{
		latest: make(map[string]json.RawMessage),
		kinds: map[string]string{
			cfg.TopicAzimuth:       "azimuth",
			cfg.TopicLocationFused: "location",
			cfg.TopicPlacements:    "placements",
		},
		hub:    hub,
		store:  store,
		static: "web",
	}
}

// update stores payload as the latest value of topic's kind and pushes it to
// websocket clients.
func (s *webState) update(topic string, payload []byte) {
	kind, ok := s.kinds[topic]
	if !ok {
		return
	}
	if !json.Valid(payload) {
		log.Printf("web: invalid JSON on %s", topic)
		return
	}
	raw := json.RawMessage(append([]byte(nil), payload...))

	s.mu.Lock()
	s.latest[kind] = raw
	s.mu.Unlock()

	if s.hub == nil {
		return
	}
	msg, err := json.Marshal(liveUpdate{Type: kind, Data: raw})
	if err != nil {
		log.Printf("web: marshal update: %v", err)
		return
	}
	s.hub.Broadcast(msg)
}

// latestHandler serves the last payload of kind.
func (s *webState) latestHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		raw, ok := s.latest[kind]
		s.mu.RUnlock()

		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(raw)
	}
}

// trackHandler serves recent fused locations from the track log.
func (s *webState) trackHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "track log disabled", http.StatusNotFound)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 10000 {
			http.Error(w, fmt.Sprintf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.store.RecentLocations(r.Context(), limit)
	if err != nil {
		log.Printf("web: %v", err)
		http.Error(w, "track query failed", http.StatusInternalServerError)
		return
	}
	h, haveHeading, err := s.store.LatestHeading(r.Context())
	if err != nil {
		log.Printf("web: %v", err)
		http.Error(w, "track query failed", http.StatusInternalServerError)
		return
	}

	resp := struct {
		Locations []track.Entry  `json:"locations"`
		Heading   *track.Heading `json:"heading,omitempty"`
	}{Locations: entries}
	if haveHeading {
		resp.Heading = &h
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func (s *webState) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/azimuth", s.latestHandler("azimuth"))
	mux.HandleFunc("/api/location", s.latestHandler("location"))
	mux.HandleFunc("/api/placements", s.latestHandler("placements"))
	mux.HandleFunc("/api/track", s.trackHandler)
	if s.hub != nil {
		mux.Handle("/ws", s.hub)
	}
	// Static files from ./web as the root
	mux.Handle("/", http.FileServer(http.Dir(s.static)))
	return mux
}

// RunWeb serves the latest azimuth, fused location and placements over HTTP
// and pushes every update to websocket clients on /ws.
func RunWeb() error {
	cfg := config.Get()

	var store *track.Store
	if cfg.TrackDBPath != "" {
		s, err := track.Open(cfg.TrackDBPath)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	state := newWebState(cfg, NewHub(), store)

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(config.ClientID(cfg.MQTTClientIDWeb, "web"))

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to every topic the API serves
	for topic := range state.kinds {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			state.update(msg.Topic(), msg.Payload())
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("web: subscribed to %s", topic)
	}

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, state.routes())
}
