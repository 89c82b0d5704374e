// Package realtime pushes in-app alerts to browser clients over WebSocket.
// Alerts arrive on Redis pub/sub from the evaluator and are fanned out to
// every socket open for the alert's organization.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/finsightx/alert-engine/internal/metrics"
)

type broadcastMessage struct {
	organizationID string
	data           []byte
}

// Hub tracks connected clients per organization.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]bool // organization id -> clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMessage
	done       chan struct{}
}

// NewHub creates a hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Broadcast queues data for every client of an organization.
func (h *Hub) Broadcast(organizationID string, data []byte) {
	select {
	case h.broadcast <- broadcastMessage{organizationID: organizationID, data: data}:
	case <-h.done:
	}
}

// ClientCount returns the number of clients connected for an organization.
func (h *Hub) ClientCount(organizationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[organizationID])
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.organizationID]
	if !ok {
		set = make(map[*Client]bool)
		h.clients[c.organizationID] = set
	}
	set[c] = true
	metrics.WebSocketClients.Inc()
	slog.Debug("WebSocket client connected", "organization_id", c.organizationID)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.organizationID]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.organizationID)
	}
	close(c.send)
	metrics.WebSocketClients.Dec()
	slog.Debug("WebSocket client disconnected", "organization_id", c.organizationID)
}

func (h *Hub) deliver(msg broadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[msg.organizationID] {
		select {
		case c.send <- msg.data:
		default:
			slog.Warn("Dropping in-app message for slow WebSocket client",
				"organization_id", msg.organizationID,
			)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for org, set := range h.clients {
		for c := range set {
			close(c.send)
			metrics.WebSocketClients.Dec()
		}
		delete(h.clients, org)
	}
}
