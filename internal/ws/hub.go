package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"clubsync/internal/observability"
)

// UIEvent is the envelope pushed to attached UI consumers.
type UIEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// UI event types.
const (
	UIRoomsChanged    = "rooms.changed"
	UITypingChanged   = "typing.changed"
	UIAlertsChanged   = "alerts.changed"
	UIConnChanged     = "connection.changed"
	UIPresenceChanged = "presence.changed"
	UIModalOpen       = "modal.open"
)

// Hub fans synchronized-state changes out to attached UI websocket clients.
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]ConnInfo
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]ConnInfo)}
}

// Add registers a UI websocket connection.
func (h *Hub) Add(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = info
}

// Remove drops a UI websocket connection.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Count returns the number of attached consumers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast pushes one event to every attached consumer. A consumer whose
// write fails is closed and removed.
func (h *Hub) Broadcast(event UIEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ui event marshal error: %v", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("ui websocket write error: %v", err)
			conn.Close()
			h.Remove(conn)
			h.publishWSError(conn, err)
		}
	}
}

func (h *Hub) publishWSError(conn *websocket.Conn, err error) {
	h.mu.RLock()
	info, ok := h.conns[conn]
	h.mu.RUnlock()
	if !ok {
		return
	}

	observability.IncWSEvent("ws_error")
	_ = observability.PublishEvent(context.Background(), "ws_events.ui", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload: map[string]any{
			"conn_id":     info.ConnID,
			"ip":          info.IP,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
	})
}
