// Package session keeps one cart per signed-in agent. The coordinator does
// not serialize concurrent submissions itself; the per-session in-flight flag
// here is what guarantees at most one outstanding submit per cart.
package session

import (
	"sync"

	"github.com/fieldsales/api/internal/cart"
	"github.com/google/uuid"
)

// Session is the order-entry state of a single agent.
type Session struct {
	mu         sync.Mutex
	cart       *cart.Cart
	submitting bool
}

// WithCart runs fn with exclusive access to the session's cart.
func (s *Session) WithCart(fn func(c *cart.Cart)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cart)
}

// SnapshotCart returns an independent copy of the cart. Submissions work from
// the copy so a failure leaves the live cart untouched.
func (s *Session) SnapshotCart() *cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// TryBeginSubmit marks the session as having a submission in flight. It
// returns false if one is already outstanding; the caller must reject the
// second attempt rather than queue it.
func (s *Session) TryBeginSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return false
	}
	s.submitting = true
	return true
}

// EndSubmit clears the in-flight flag.
func (s *Session) EndSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
}

// Registry hands out sessions keyed by agent id.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

// Get returns the agent's session, creating it with an empty cart on first
// use.
func (r *Registry) Get(agentID uuid.UUID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[agentID]
	if !ok {
		s = &Session{cart: cart.New()}
		r.sessions[agentID] = s
	}
	return s
}
