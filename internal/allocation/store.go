// internal/allocation/store.go
package allocation

import (
	"sync"

	"github.com/google/uuid"
)

// Store holds the last-confirmed on-chain allocation set. It may be mutated
// only by the Coordinator (optimistic apply, rollback) or by a wholesale
// Replace from an authoritative refresh; everything else reads.
type Store struct {
	mu      sync.RWMutex
	current Set
	subs    map[string]func(Set)
}

// NewStore creates a store seeded with the given set.
func NewStore(initial Set) *Store {
	return &Store{
		current: initial.Clone(),
		subs:    make(map[string]func(Set)),
	}
}

// Current returns a copy of the last-confirmed set.
func (s *Store) Current() Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Replace swaps in a new authoritative snapshot and notifies subscribers.
func (s *Store) Replace(set Set) {
	s.mu.Lock()
	s.current = set.Clone()
	snapshot := s.current.Clone()
	subs := make([]func(Set), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// Subscribe registers fn to be called with a snapshot after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Set)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}
