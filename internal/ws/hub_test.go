package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startUIServer(t *testing.T, hub *Hub, token string) *httptest.Server {
	t.Helper()
	router := gin.New()
	router.GET("/ws", NewUIHandler(hub, token).Handle)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialUI(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastReachesAllConsumers(t *testing.T) {
	hub := NewHub()
	srv := startUIServer(t, hub, "")

	first := dialUI(t, srv, "")
	second := dialUI(t, srv, "")
	require.Eventually(t, func() bool { return hub.Count() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(UIEvent{Type: UIAlertsChanged, Payload: map[string]int{"count": 3}})

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)

		var event UIEvent
		require.NoError(t, json.Unmarshal(raw, &event))
		require.Equal(t, UIAlertsChanged, event.Type)
	}
}

func TestFailedConsumerIsRemoved(t *testing.T) {
	hub := NewHub()
	srv := startUIServer(t, hub, "")

	conn := dialUI(t, srv, "")
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond,
		"a closed consumer must drop off the hub")

	// Broadcasting with nobody attached is a no-op.
	hub.Broadcast(UIEvent{Type: UIRoomsChanged})
}

func TestHandshakeRequiresToken(t *testing.T) {
	hub := NewHub()
	srv := startUIServer(t, hub, "secret")

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := dialUI(t, srv, "?token=secret")
	require.NotNil(t, conn)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)
}
