// Package presence tracks ephemeral typing state: debounced outbound typing
// signals and TTL-bounded inbound facts about other users.
package presence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clubsync/internal/models"
)

// Sender is the outbound typing seam on the connection manager.
type Sender interface {
	SendTyping(roomID string, isTyping bool) error
}

// Update signals that a room's typing set changed.
type Update struct {
	RoomID string
}

type factKey struct {
	room string
	user string
}

type fact struct {
	name    string
	expires time.Time
}

// Tracker debounces local typing into one start/stop pair per burst, and
// keeps (room, user) typing facts that self-expire after a fixed TTL.
type Tracker struct {
	sender   Sender
	debounce time.Duration
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
	facts  map[factKey]fact

	subMu sync.Mutex
	subs  []chan Update
}

// NewTracker builds a Tracker. now is injectable for tests; nil means
// time.Now.
func NewTracker(sender Sender, debounce, ttl time.Duration, now func() time.Time) *Tracker {
	if debounce <= 0 {
		debounce = 3 * time.Second
	}
	if ttl <= 0 {
		ttl = 2 * debounce
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		sender:   sender,
		debounce: debounce,
		ttl:      ttl,
		now:      now,
		timers:   make(map[string]*time.Timer),
		facts:    make(map[factKey]fact),
	}
}

// StartTyping reports local typing. The first call in a burst sends the
// start signal; calls inside the silence window only rearm the timer, and
// the stop signal goes out when the window lapses.
func (t *Tracker) StartTyping(roomID string) error {
	t.mu.Lock()
	if timer, ok := t.timers[roomID]; ok {
		timer.Reset(t.debounce)
		t.mu.Unlock()
		return nil
	}

	var timer *time.Timer
	timer = time.AfterFunc(t.debounce, func() {
		t.autoStop(roomID, timer)
	})
	t.timers[roomID] = timer
	t.mu.Unlock()

	return t.sender.SendTyping(roomID, true)
}

// StopTyping sends the stop signal immediately and cancels the timer.
func (t *Tracker) StopTyping(roomID string) error {
	t.mu.Lock()
	if timer, ok := t.timers[roomID]; ok {
		timer.Stop()
		delete(t.timers, roomID)
	}
	t.mu.Unlock()

	return t.sender.SendTyping(roomID, false)
}

func (t *Tracker) autoStop(roomID string, timer *time.Timer) {
	t.mu.Lock()
	current, ok := t.timers[roomID]
	if !ok || current != timer {
		t.mu.Unlock()
		return
	}
	delete(t.timers, roomID)
	t.mu.Unlock()

	_ = t.sender.SendTyping(roomID, false)
}

// Run consumes typing push events and sweeps expired facts until ctx ends.
func (t *Tracker) Run(ctx context.Context, events <-chan models.ChannelEvent) {
	ticker := time.NewTicker(t.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.HandleEvent(ev)
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// HandleEvent applies one inbound typing fact. A repeated start refreshes
// the expiry; a stop removes the fact immediately.
func (t *Tracker) HandleEvent(ev models.ChannelEvent) {
	if ev.Type != models.EventTypingChanged {
		return
	}
	var payload models.TypingChangedPayload
	if err := ev.Decode(&payload); err != nil {
		return
	}

	key := factKey{room: payload.RoomID, user: payload.UserID}
	t.mu.Lock()
	if payload.IsTyping {
		t.facts[key] = fact{name: payload.UserName, expires: t.now().Add(t.ttl)}
	} else {
		delete(t.facts, key)
	}
	t.mu.Unlock()

	t.emit(Update{RoomID: payload.RoomID})
}

// Sweep garbage-collects expired facts. Readers already filter by expiry, so
// this only bounds memory and pushes updates for rooms that went quiet.
func (t *Tracker) Sweep() {
	now := t.now()
	var changed []string

	t.mu.Lock()
	for key, f := range t.facts {
		if !f.expires.After(now) {
			delete(t.facts, key)
			changed = append(changed, key.room)
		}
	}
	t.mu.Unlock()

	for _, room := range changed {
		t.emit(Update{RoomID: room})
	}
}

// Typing returns the names currently typing in a room, sorted. Expired facts
// are invisible even if not yet swept.
func (t *Tracker) Typing(roomID string) []string {
	now := t.now()

	t.mu.Lock()
	var names []string
	for key, f := range t.facts {
		if key.room != roomID {
			continue
		}
		if !f.expires.After(now) {
			continue
		}
		names = append(names, f.name)
	}
	t.mu.Unlock()

	sort.Strings(names)
	return names
}

// TypingText renders the typing set for display: named up to two users,
// count-only beyond that.
func (t *Tracker) TypingText(roomID string) string {
	names := t.Typing(roomID)
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " is typing…"
	case 2:
		return names[0] + " and " + names[1] + " are typing…"
	default:
		return fmt.Sprintf("%d people are typing…", len(names))
	}
}

// Updates returns a stream of typing-set change signals.
func (t *Tracker) Updates() <-chan Update {
	ch := make(chan Update, 32)
	t.subMu.Lock()
	t.subs = append(t.subs, ch)
	t.subMu.Unlock()
	return ch
}

func (t *Tracker) emit(update Update) {
	t.subMu.Lock()
	subs := append([]chan Update(nil), t.subs...)
	t.subMu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- update:
		default:
		}
	}
}
