package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"clubsync/internal/observability"
)

// UIHandler upgrades UI consumers onto the fan-out hub.
type UIHandler struct {
	hub   *Hub
	token string
}

// NewUIHandler constructs a UIHandler; token guards the local surface.
func NewUIHandler(hub *Hub, token string) *UIHandler {
	return &UIHandler{hub: hub, token: token}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and keeps it registered until it closes.
// UI consumers are read-only; inbound frames are drained and ignored.
func (h *UIHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("clubsync/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	if h.token != "" && c.Query("token") != h.token {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.Add(conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.ui", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload: map[string]any{
			"conn_id": info.ConnID,
			"ip":      info.IP,
		},
	})

	go func() {
		defer func() {
			h.hub.Remove(conn)
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			_ = observability.PublishEvent(context.Background(), "ws_events.ui", observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload: map[string]any{
					"conn_id":     info.ConnID,
					"ip":          info.IP,
					"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				},
			})
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
