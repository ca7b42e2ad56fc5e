package mqtt

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/AdventureEngine/internal/events"
)

// TopicPresence carries heartbeats from presentation clients.
const TopicPresence = "presence"

// Heartbeat is published periodically by each presentation client.
type Heartbeat struct {
	ClientID     string `json:"client_id"`
	HeartbeatSec int    `json:"heartbeat_sec"`
}

// ClientState tracks one presentation client's health.
type ClientState struct {
	ClientID     string    `json:"client_id"`
	LastSeen     time.Time `json:"last_seen"`
	HeartbeatSec int       `json:"heartbeat_sec"`
	Connected    bool      `json:"connected"`
}

// Presence tracks which presentation clients are attached to the session.
type Presence struct {
	mu        sync.RWMutex
	clients   map[string]*ClientState
	tolerance float64 // multiplier for heartbeat interval (e.g., 2.0 = 2x heartbeat)
	now       func() time.Time
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewPresence creates a presence tracker.
// tolerance is the multiplier for heartbeat interval before considering disconnected.
func NewPresence(tolerance float64) *Presence {
	if tolerance <= 1.0 {
		tolerance = 2.0 // miss 1 heartbeat
	}
	return &Presence{
		clients:   make(map[string]*ClientState),
		tolerance: tolerance,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Subscribe routes heartbeats on the presence topic into p.
func (p *Presence) Subscribe(sub Subscriber, cfg Config) error {
	return sub.Subscribe(cfg.Topic(TopicPresence), func(_ paho.Client, msg paho.Message) {
		var hb Heartbeat
		if err := json.Unmarshal(msg.Payload(), &hb); err != nil {
			return
		}
		p.HandleHeartbeat(hb)
	})
}

// HandleHeartbeat records a heartbeat, marking the client connected.
func (p *Presence) HandleHeartbeat(hb Heartbeat) {
	if hb.ClientID == "" {
		return
	}
	if hb.HeartbeatSec <= 0 {
		hb.HeartbeatSec = 5
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	existing, seen := p.clients[hb.ClientID]
	wasConnected := seen && existing.Connected

	p.clients[hb.ClientID] = &ClientState{
		ClientID:     hb.ClientID,
		LastSeen:     p.now(),
		HeartbeatSec: hb.HeartbeatSec,
		Connected:    true,
	}

	if !wasConnected {
		events.Emit("info", "presentation.connected", "", map[string]interface{}{
			"client_id": hb.ClientID,
			"reconnect": seen,
		})
	}
}

// Start begins the background health check loop.
func (p *Presence) Start(checkInterval time.Duration) {
	p.wg.Add(1)
	go p.healthCheckLoop(checkInterval)
}

// Stop stops the background health check loop.
func (p *Presence) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Presence) healthCheckLoop(interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.checkHealth()
		}
	}
}

func (p *Presence) checkHealth() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for id, state := range p.clients {
		if !state.Connected {
			continue
		}

		timeout := time.Duration(float64(state.HeartbeatSec)*p.tolerance) * time.Second
		if now.Sub(state.LastSeen) > timeout {
			state.Connected = false
			events.Emit("warning", "presentation.disconnected", "heartbeat timeout", map[string]interface{}{
				"client_id":   id,
				"last_seen":   state.LastSeen.Format(time.RFC3339),
				"timeout_sec": timeout.Seconds(),
			})
		}
	}
}

// Client returns a copy of one client's state, or nil.
func (p *Presence) Client(clientID string) *ClientState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if state, ok := p.clients[clientID]; ok {
		cpy := *state
		return &cpy
	}
	return nil
}

// Connected returns the connected client ids, sorted.
func (p *Presence) Connected() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var ids []string
	for id, state := range p.clients {
		if state.Connected {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
