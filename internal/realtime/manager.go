// Package realtime owns the persistent push channel to the club server:
// dialing, exponential-backoff reconnects, heartbeats, and re-issuing
// logical subscriptions after every reconnect.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"clubsync/internal/models"
	"clubsync/internal/observability"
)

var ErrNotConnected = errors.New("channel not connected")

// StateChange is one connection-state transition.
type StateChange struct {
	State   models.ConnState
	Attempt int
	Err     error
}

// Options configures the manager; zero fields fall back to defaults.
type Options struct {
	URL               string
	Token             func() string
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	HeartbeatInterval time.Duration
}

// Manager keeps exactly one channel to the server alive. All state is
// mutated under mu by transport callbacks; consumers observe it through the
// state and event streams.
type Manager struct {
	opts   Options
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	writeMu  sync.Mutex
	state    models.ConnState
	attempt  int
	explicit bool
	topics   map[string]bool
	retry    *time.Timer
	gen      int

	subMu     sync.Mutex
	stateSubs []chan StateChange
	eventSubs []chan models.ChannelEvent
}

// NewManager builds a disconnected manager.
func NewManager(opts Options) *Manager {
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = time.Second
	}
	if opts.BackoffCap < opts.BackoffBase {
		opts.BackoffCap = 30 * time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 25 * time.Second
	}
	if opts.Token == nil {
		opts.Token = func() string { return "" }
	}
	return &Manager{
		opts:   opts,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		state:  models.ConnDisconnected,
		topics: make(map[string]bool),
	}
}

// Connect opens the channel unless it is already open or opening.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.state == models.ConnConnected || m.state == models.ConnConnecting {
		m.mu.Unlock()
		return
	}
	m.explicit = false
	m.setStateLocked(models.ConnConnecting, nil)
	m.mu.Unlock()

	go m.dial()
}

// Disconnect closes the channel and cancels any pending reconnect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.explicit = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	conn := m.conn
	m.conn = nil
	m.gen++
	m.attempt = 0
	m.setStateLocked(models.ConnDisconnected, nil)
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), deadline)
		conn.Close()
	}
}

// Connected reports whether the channel is currently usable.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == models.ConnConnected
}

// State returns the current connection state and attempt counter.
func (m *Manager) State() (models.ConnState, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.attempt
}

// Subscribe records a logical topic and, when connected, issues the
// subscribe frame. The topic is re-issued after every reconnect.
func (m *Manager) Subscribe(topic string) {
	m.mu.Lock()
	m.topics[topic] = true
	connected := m.state == models.ConnConnected
	m.mu.Unlock()

	if connected {
		_ = m.writeFrame(models.ClientFrame{Type: models.FrameSubscribe, Topic: topic})
	}
}

// Unsubscribe forgets a topic and tells the server when connected.
func (m *Manager) Unsubscribe(topic string) {
	m.mu.Lock()
	delete(m.topics, topic)
	connected := m.state == models.ConnConnected
	m.mu.Unlock()

	if connected {
		_ = m.writeFrame(models.ClientFrame{Type: models.FrameUnsubscribe, Topic: topic})
	}
}

// SendTyping emits a typing frame for a room; fire-and-forget best effort.
func (m *Manager) SendTyping(roomID string, isTyping bool) error {
	return m.writeFrame(models.ClientFrame{Type: models.FrameTyping, RoomID: roomID, IsTyped: isTyping})
}

// States returns a stream of connection-state transitions. Slow consumers
// miss intermediate transitions rather than block the transport.
func (m *Manager) States() <-chan StateChange {
	ch := make(chan StateChange, 8)
	m.subMu.Lock()
	m.stateSubs = append(m.stateSubs, ch)
	m.subMu.Unlock()
	return ch
}

// Events returns the stream of decoded inbound push events.
func (m *Manager) Events() <-chan models.ChannelEvent {
	ch := make(chan models.ChannelEvent, 64)
	m.subMu.Lock()
	m.eventSubs = append(m.eventSubs, ch)
	m.subMu.Unlock()
	return ch
}

func (m *Manager) dial() {
	_, span := otel.Tracer("clubsync/realtime").Start(context.Background(), "channel.dial")
	defer span.End()

	header := make(map[string][]string)
	if token := m.opts.Token(); token != "" {
		header["Authorization"] = []string{"Bearer " + token}
	}

	conn, _, err := m.dialer.Dial(m.opts.URL, header)

	m.mu.Lock()
	if m.explicit {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		m.failLocked(err)
		m.mu.Unlock()
		return
	}

	m.conn = conn
	m.gen++
	gen := m.gen
	m.attempt = 0
	m.setStateLocked(models.ConnConnected, nil)
	topics := make([]string, 0, len(m.topics))
	for t := range m.topics {
		topics = append(topics, t)
	}
	m.mu.Unlock()

	observability.SetChannelConnected(true)

	// Server-side subscription state does not survive a reconnect.
	for _, t := range topics {
		_ = m.writeFrame(models.ClientFrame{Type: models.FrameSubscribe, Topic: t})
	}

	go m.readLoop(conn, gen)
	go m.heartbeat(conn, gen)
}

func (m *Manager) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			if m.gen != gen || m.explicit {
				m.mu.Unlock()
				return
			}
			m.conn = nil
			observability.SetChannelConnected(false)
			m.failLocked(err)
			m.mu.Unlock()
			conn.Close()
			return
		}

		var event models.ChannelEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("channel decode error: %v", err)
			continue
		}
		observability.IncPushEvent(event.Type)
		m.emitEvent(event)
	}
}

func (m *Manager) heartbeat(conn *websocket.Conn, gen int) {
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		stale := m.gen != gen || m.conn != conn
		m.mu.Unlock()
		if stale {
			return
		}

		deadline := time.Now().Add(5 * time.Second)
		if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			// The read loop observes the broken transport and drives the
			// reconnect; the heartbeat just stops.
			return
		}
	}
}

// failLocked records the failure and schedules the next attempt with
// delay = min(base << attempt, cap).
func (m *Manager) failLocked(err error) {
	delay := backoffDelay(m.opts.BackoffBase, m.opts.BackoffCap, m.attempt)
	m.attempt++
	m.setStateLocked(models.ConnReconnecting, err)
	observability.IncReconnect()
	log.Printf("channel disconnected, retrying attempt=%d delay=%s err=%v", m.attempt, delay, err)

	if m.retry != nil {
		m.retry.Stop()
	}
	m.retry = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.explicit {
			m.mu.Unlock()
			return
		}
		m.setStateLocked(models.ConnConnecting, nil)
		m.mu.Unlock()
		m.dial()
	})
}

func backoffDelay(base, limit time.Duration, attempt int) time.Duration {
	if attempt > 30 {
		return limit
	}
	delay := base << uint(attempt)
	if delay > limit || delay <= 0 {
		return limit
	}
	return delay
}

func (m *Manager) setStateLocked(state models.ConnState, err error) {
	m.state = state
	change := StateChange{State: state, Attempt: m.attempt, Err: err}

	m.subMu.Lock()
	subs := append([]chan StateChange(nil), m.stateSubs...)
	m.subMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func (m *Manager) emitEvent(event models.ChannelEvent) {
	m.subMu.Lock()
	subs := append([]chan models.ChannelEvent(nil), m.eventSubs...)
	m.subMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (m *Manager) writeFrame(frame models.ClientFrame) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(frame)
}
