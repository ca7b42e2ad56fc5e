package api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/AaronLay10/AdventureEngine/internal/events"
	"github.com/AaronLay10/AdventureEngine/internal/navigator"
	"github.com/AaronLay10/AdventureEngine/internal/version"
)

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// metrics returns Prometheus-compatible metrics in text format.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	nav := s.sess.Navigator()
	cache := s.sess.Cache()

	var uptime float64
	if started := s.sess.StartedAt(); !started.IsZero() {
		uptime = time.Since(started).Seconds()
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	labels := fmt.Sprintf(`session="%s",instance="%s",version="%s"`, s.sess.ID(), hostname, version.Version)

	writeMetric("adventure_uptime_seconds", "gauge",
		"Number of seconds since the session started", uptime, labels)

	writeMetric("adventure_graph_ready", "gauge",
		"Whether the scene graph is loaded (1) or not (0)", boolGauge(s.sess.Graph().Ready()), labels)

	writeMetric("adventure_scene_transitioning", "gauge",
		"Whether a scene transition is in progress (1) or not (0)",
		boolGauge(nav.State() == navigator.StateTransitioning), labels)

	writeMetric("adventure_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount(), labels)

	writeMetric("adventure_asset_cache_entries", "gauge",
		"Number of entries in the asset cache", len(cache.Snapshot()), labels)

	writeMetric("adventure_asset_loads_total", "counter",
		"Total number of backend asset loads started", cache.LoadCount(), labels)

	writeMetric("adventure_ws_clients", "gauge",
		"Number of active WebSocket client connections", events.SubscriberCount(), labels)

	if s.mqttUp != nil {
		writeMetric("adventure_mqtt_connected", "gauge",
			"Whether MQTT broker is connected (1) or not (0)", boolGauge(s.mqttUp()), labels)
	}
	if s.pgUp != nil {
		writeMetric("adventure_postgres_connected", "gauge",
			"Whether PostgreSQL is connected (1) or not (0)", boolGauge(s.pgUp()), labels)
	}
	if s.presence != nil {
		writeMetric("adventure_presentation_clients", "gauge",
			"Number of presentation clients sending heartbeats", len(s.presence.Connected()), labels)
	}
}
