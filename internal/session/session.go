// Package session tracks the current user identity supplied by the external
// auth layer and fans out login/logout transitions to interested components.
package session

import (
	"sync"
)

// User is the authenticated club member.
type User struct {
	ID    string
	Name  string
	Token string
}

// Event is one auth-state transition.
type Event struct {
	LoggedIn bool
	User     User
}

// Session is the process-wide auth state holder. Mutation goes through Login
// and Logout only.
type Session struct {
	mu   sync.RWMutex
	user User
	in   bool
	subs []chan Event
}

func New() *Session {
	return &Session{}
}

// Login installs the user identity and notifies subscribers.
func (s *Session) Login(user User) {
	s.mu.Lock()
	s.user = user
	s.in = true
	subs := append([]chan Event(nil), s.subs...)
	s.mu.Unlock()

	emit(subs, Event{LoggedIn: true, User: user})
}

// Logout clears the identity and notifies subscribers.
func (s *Session) Logout() {
	s.mu.Lock()
	user := s.user
	s.user = User{}
	s.in = false
	subs := append([]chan Event(nil), s.subs...)
	s.mu.Unlock()

	emit(subs, Event{LoggedIn: false, User: user})
}

// Current returns the logged-in user, if any.
func (s *Session) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.in
}

// Subscribe returns a channel receiving auth transitions. Slow subscribers
// drop events rather than block the caller.
func (s *Session) Subscribe() <-chan Event {
	ch := make(chan Event, 4)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func emit(subs []chan Event, ev Event) {
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
