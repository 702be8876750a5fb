// Package rooms keeps the room list and the active room's message window in
// sync with the club server, reconciling optimistic local sends against
// confirmed state.
package rooms

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"clubsync/internal/models"
	"clubsync/internal/observability"
)

// API is the slice of the club server REST surface the synchronizer needs.
type API interface {
	ListRooms(ctx context.Context) ([]models.Room, error)
	ListMessages(ctx context.Context, roomID string, limit int, before string) ([]models.Message, error)
	SendMessage(ctx context.Context, roomID, clientID, content string) (models.Message, error)
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error
	MarkRead(ctx context.Context, roomID string) error
}

// Channel is the logical-subscription seam on the connection manager.
type Channel interface {
	Subscribe(topic string)
	Unsubscribe(topic string)
}

// SendError reports a rejected send and hands the original content back to
// the caller for retry.
type SendError struct {
	Content string
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Update signals consumers that synchronized state changed. RoomID is empty
// when the room list itself changed.
type Update struct {
	RoomID string
}

// Identity resolves the local user for optimistic entries.
type Identity func() (id, name string)

// Synchronizer is the single writer of the room/message cache. Views read
// snapshots; all mutation happens here.
type Synchronizer struct {
	api      API
	channel  Channel
	self     Identity
	pageSize int

	mu      sync.RWMutex
	rooms   map[string]*models.Room
	active  string
	window  []models.Message
	known   map[string]bool
	pending map[string]bool
	loadGen int

	subMu sync.Mutex
	subs  []chan Update
}

// New builds a Synchronizer over the given API and channel seams.
func New(api API, channel Channel, self Identity, pageSize int) *Synchronizer {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Synchronizer{
		api:      api,
		channel:  channel,
		self:     self,
		pageSize: pageSize,
		rooms:    make(map[string]*models.Room),
		known:    make(map[string]bool),
		pending:  make(map[string]bool),
	}
}

// Run consumes channel push events until ctx is done.
func (s *Synchronizer) Run(ctx context.Context, events <-chan models.ChannelEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.HandleEvent(ev)
		}
	}
}

// RefreshRooms replaces the room list with the server's view.
func (s *Synchronizer) RefreshRooms(ctx context.Context) error {
	list, err := s.api.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("refresh rooms: %w", err)
	}

	s.mu.Lock()
	s.rooms = make(map[string]*models.Room, len(list))
	for i := range list {
		room := list[i]
		s.rooms[room.ID] = &room
	}
	s.mu.Unlock()

	s.emit(Update{})
	return nil
}

// SetActiveRoom switches the active room. The previous room's subscription
// is cancelled and its in-flight load invalidated; an empty id deactivates.
func (s *Synchronizer) SetActiveRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	prev := s.active
	s.active = roomID
	s.window = nil
	s.known = make(map[string]bool)
	s.pending = make(map[string]bool)
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	if prev != "" && prev != roomID {
		s.channel.Unsubscribe(roomTopic(prev))
	}
	s.emit(Update{RoomID: roomID})

	if roomID == "" {
		return nil
	}

	if prev != roomID {
		s.channel.Subscribe(roomTopic(roomID))
	}
	if err := s.api.JoinRoom(ctx, roomID); err != nil {
		return fmt.Errorf("activate room %s: %w", roomID, err)
	}

	msgs, err := s.api.ListMessages(ctx, roomID, s.pageSize, "")
	if err != nil {
		return fmt.Errorf("load room %s: %w", roomID, err)
	}

	s.mu.Lock()
	// A slow load for a room the user already left must not clobber the
	// now-active window.
	if s.loadGen != gen || s.active != roomID {
		s.mu.Unlock()
		return nil
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	s.window = s.window[:0]
	for _, m := range msgs {
		m.Delivery = models.DeliveryConfirmed
		s.window = append(s.window, m)
		if m.ID != "" {
			s.known[m.ID] = true
		}
	}
	if room, ok := s.rooms[roomID]; ok {
		room.Unread = 0
	}
	s.mu.Unlock()

	s.emit(Update{RoomID: roomID})
	return s.api.MarkRead(ctx, roomID)
}

// LoadOlder prepends the previous page of messages for the active room.
func (s *Synchronizer) LoadOlder(ctx context.Context) error {
	s.mu.Lock()
	roomID := s.active
	gen := s.loadGen
	var before string
	for _, m := range s.window {
		if m.Delivery == models.DeliveryConfirmed {
			before = m.ID
			break
		}
	}
	s.mu.Unlock()

	if roomID == "" || before == "" {
		return nil
	}

	msgs, err := s.api.ListMessages(ctx, roomID, s.pageSize, before)
	if err != nil {
		return fmt.Errorf("load older for %s: %w", roomID, err)
	}

	s.mu.Lock()
	if s.loadGen != gen || s.active != roomID {
		s.mu.Unlock()
		return nil
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	fresh := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID == "" || s.known[m.ID] {
			continue
		}
		m.Delivery = models.DeliveryConfirmed
		s.known[m.ID] = true
		fresh = append(fresh, m)
	}
	s.window = append(fresh, s.window...)
	s.mu.Unlock()

	s.emit(Update{RoomID: roomID})
	return nil
}

// Send appends an optimistic entry and issues the write. On rejection the
// entry is rolled back and the content returned inside a SendError; there is
// no automatic retry.
func (s *Synchronizer) Send(ctx context.Context, roomID, content string) (models.Message, error) {
	selfID, selfName := s.self()
	clientID := uuid.NewString()
	optimistic := models.Message{
		ClientID:   clientID,
		RoomID:     roomID,
		SenderID:   selfID,
		SenderName: selfName,
		Content:    content,
		Type:       models.MessageText,
		Delivery:   models.DeliveryOptimistic,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	appended := false
	gen := s.loadGen
	if s.active == roomID {
		s.window = append(s.window, optimistic)
		s.pending[clientID] = true
		appended = true
	}
	s.mu.Unlock()
	s.emit(Update{RoomID: roomID})

	confirmed, err := s.api.SendMessage(ctx, roomID, clientID, content)
	if err != nil {
		s.mu.Lock()
		s.removeOptimisticLocked(clientID)
		s.mu.Unlock()
		s.emit(Update{RoomID: roomID})
		observability.IncSend("failed")
		return models.Message{}, &SendError{Content: content, Err: err}
	}

	confirmed.Delivery = models.DeliveryConfirmed
	if confirmed.ClientID == "" {
		// Servers that do not echo the correlation id still confirm this
		// exact send; stamp it so reconciliation finds the right entry.
		confirmed.ClientID = clientID
	}
	s.mu.Lock()
	// The window belongs to whatever room is active now. Only a confirmation
	// for the still-active room, against the same window generation the
	// optimistic entry went into, may touch it; anything else updates room
	// metadata only. The push echo reaches the right window on its own.
	if appended && s.active == roomID && s.loadGen == gen {
		s.reconcileLocked(roomID, confirmed)
	} else {
		s.touchRoomLocked(roomID, confirmed)
	}
	s.mu.Unlock()
	s.emit(Update{RoomID: roomID})
	observability.IncSend("confirmed")
	return confirmed, nil
}

// MarkRead resets a room's unread counter locally and on the server.
func (s *Synchronizer) MarkRead(ctx context.Context, roomID string) error {
	s.mu.Lock()
	if room, ok := s.rooms[roomID]; ok {
		room.Unread = 0
	}
	s.mu.Unlock()

	s.emit(Update{})
	return s.api.MarkRead(ctx, roomID)
}

// HandleEvent applies one inbound push event. Duplicate deliveries of a
// known permanent id are no-ops.
func (s *Synchronizer) HandleEvent(ev models.ChannelEvent) {
	if ev.Type != models.EventMessageCreated {
		return
	}
	var payload models.MessageCreatedPayload
	if err := ev.Decode(&payload); err != nil {
		return
	}
	msg := payload.Message
	if msg.RoomID == "" {
		msg.RoomID = payload.RoomID
	}
	msg.Delivery = models.DeliveryConfirmed

	s.mu.Lock()
	if msg.RoomID == s.active {
		s.reconcileLocked(msg.RoomID, msg)
	} else if room, ok := s.rooms[msg.RoomID]; ok {
		room.Unread++
		room.LastMessage = msg.Content
		room.LastActivity = msg.CreatedAt
	}
	s.mu.Unlock()

	s.emit(Update{RoomID: msg.RoomID})
}

// Rooms returns a snapshot of the room list, most recent activity first.
func (s *Synchronizer) Rooms() []models.Room {
	s.mu.RLock()
	out := make([]models.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		out = append(out, *room)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Messages returns a snapshot of the active room's message window.
func (s *Synchronizer) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.window...)
}

// ActiveRoom returns the currently active room id, or "".
func (s *Synchronizer) ActiveRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Updates returns a stream of change signals for view consumers.
func (s *Synchronizer) Updates() <-chan Update {
	ch := make(chan Update, 32)
	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()
	return ch
}

// reconcileLocked merges one confirmed message into the active window:
// duplicates by permanent id are dropped, a matching pending client id
// replaces its specific optimistic entry, anything else is appended ahead of
// the optimistic tail.
func (s *Synchronizer) reconcileLocked(roomID string, msg models.Message) {
	if msg.ID != "" && s.known[msg.ID] {
		return
	}
	if msg.ID != "" {
		s.known[msg.ID] = true
	}

	if msg.ClientID != "" && s.pending[msg.ClientID] {
		delete(s.pending, msg.ClientID)
		for i := range s.window {
			if s.window[i].Delivery == models.DeliveryOptimistic && s.window[i].ClientID == msg.ClientID {
				s.window[i] = msg
				s.touchRoomLocked(roomID, msg)
				return
			}
		}
	}

	// Insert before any still-pending optimistic entries at the tail so
	// confirmed FIFO order is preserved.
	idx := len(s.window)
	for idx > 0 && s.window[idx-1].Delivery == models.DeliveryOptimistic {
		idx--
	}
	s.window = append(s.window, models.Message{})
	copy(s.window[idx+1:], s.window[idx:])
	s.window[idx] = msg
	s.touchRoomLocked(roomID, msg)
}

func (s *Synchronizer) touchRoomLocked(roomID string, msg models.Message) {
	if room, ok := s.rooms[roomID]; ok {
		room.LastMessage = msg.Content
		room.LastActivity = msg.CreatedAt
	}
}

func (s *Synchronizer) removeOptimisticLocked(clientID string) {
	delete(s.pending, clientID)
	for i := range s.window {
		if s.window[i].Delivery == models.DeliveryOptimistic && s.window[i].ClientID == clientID {
			s.window = append(s.window[:i], s.window[i+1:]...)
			return
		}
	}
}

func (s *Synchronizer) emit(update Update) {
	s.subMu.Lock()
	subs := append([]chan Update(nil), s.subs...)
	s.subMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- update:
		default:
		}
	}
}

func roomTopic(roomID string) string {
	return "room:" + roomID
}
