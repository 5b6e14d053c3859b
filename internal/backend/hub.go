package backend

import (
	"sync"

	"github.com/taskmith/authkit/internal/identity"
)

// AuthEventType labels a session transition pushed by a backend.
type AuthEventType string

const (
	EventSignedIn       AuthEventType = "signed_in"
	EventSignedOut      AuthEventType = "signed_out"
	EventTokenRefreshed AuthEventType = "token_refreshed"
)

// AuthEvent is delivered to auth-state subscribers. Session is nil for
// EventSignedOut.
type AuthEvent struct {
	Type    AuthEventType
	Session *identity.Session
}

// Subscription is a handle to an auth-state registration. Unsubscribe is
// idempotent and safe to call concurrently with event delivery.
type Subscription struct {
	once sync.Once
	stop func()
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.stop)
}

// Hub fans auth events out to subscribers. Both adapter variants embed one
// so the subscription surface is identical above this layer; fake adapters
// in tests reuse it too.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(AuthEvent)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(AuthEvent))}
}

func (h *Hub) Subscribe(fn func(AuthEvent)) *Subscription {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	return &Subscription{stop: func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}}
}

// Emit delivers ev to every subscriber registered at call time. Delivery is
// synchronous; subscribers are expected to hand the event off quickly.
func (h *Hub) Emit(ev AuthEvent) {
	h.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
