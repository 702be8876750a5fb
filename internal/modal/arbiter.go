// Package modal arbitrates interactive prompts: at most one prompt of a
// given kind is pending or open at any time, competing triggers are dropped.
package modal

import (
	"sync"
	"time"

	"clubsync/internal/observability"
)

// Opener is invoked once a request survives the coalescing delay.
type Opener func(kind string, payload any)

type slotState int

const (
	slotFree slotState = iota
	slotPending
	slotOpen
)

type slot struct {
	state   slotState
	payload any
	timer   *time.Timer
}

// Arbiter holds one slot per prompt kind. The pending/open/free state
// machine, not locking at the call sites, is what guarantees single flight.
type Arbiter struct {
	delay  time.Duration
	opener Opener

	mu    sync.Mutex
	slots map[string]*slot
}

// New builds an Arbiter with the given coalescing delay.
func New(delay time.Duration, opener Opener) *Arbiter {
	if opener == nil {
		opener = func(string, any) {}
	}
	return &Arbiter{
		delay:  delay,
		opener: opener,
		slots:  make(map[string]*slot),
	}
}

// Request asks to open a prompt. If one of this kind is already pending or
// open the request is dropped and false returned; otherwise the slot goes
// pending and the prompt opens after the coalescing delay.
func (a *Arbiter) Request(kind string, payload any) bool {
	a.mu.Lock()
	if s, ok := a.slots[kind]; ok && s.state != slotFree {
		a.mu.Unlock()
		observability.IncModalRequest(kind, "dropped")
		return false
	}

	s := &slot{state: slotPending, payload: payload}
	a.slots[kind] = s
	var timer *time.Timer
	timer = time.AfterFunc(a.delay, func() {
		a.open(kind, timer)
	})
	s.timer = timer
	a.mu.Unlock()

	observability.IncModalRequest(kind, "accepted")
	return true
}

func (a *Arbiter) open(kind string, timer *time.Timer) {
	a.mu.Lock()
	s, ok := a.slots[kind]
	if !ok || s.state != slotPending || s.timer != timer {
		a.mu.Unlock()
		return
	}
	s.state = slotOpen
	payload := s.payload
	a.mu.Unlock()

	a.opener(kind, payload)
}

// Close releases the slot for a kind unconditionally, whether the prompt was
// open or still pending.
func (a *Arbiter) Close(kind string) {
	a.mu.Lock()
	if s, ok := a.slots[kind]; ok {
		if s.timer != nil {
			s.timer.Stop()
		}
		delete(a.slots, kind)
	}
	a.mu.Unlock()
}

// ForceClose releases every slot, cancelling pending prompts; used when a
// higher-priority navigation makes them moot.
func (a *Arbiter) ForceClose() {
	a.mu.Lock()
	for kind, s := range a.slots {
		if s.timer != nil {
			s.timer.Stop()
		}
		delete(a.slots, kind)
	}
	a.mu.Unlock()
}

// State reports whether a prompt of the kind is pending or open.
func (a *Arbiter) State(kind string) (pending, open bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.slots[kind]
	if !ok {
		return false, false
	}
	return s.state == slotPending, s.state == slotOpen
}
