package service

import (
	"sync"

	"github.com/bookwise/session-client/internal/core/domain"
)

// StateStore owns the committed session state and fans snapshots out to
// subscribers. Subscribers always receive the latest snapshot; intermediate
// ones may be skipped if a subscriber is slow.
type StateStore struct {
	mu     sync.RWMutex
	state  domain.State
	epoch  uint64
	subs   map[int]chan domain.State
	nextID int
	ready  chan struct{}
}

// NewStateStore returns a store in the uninitialized, loading state.
func NewStateStore() *StateStore {
	return &StateStore{
		state: domain.InitialState(),
		subs:  make(map[int]chan domain.State),
		ready: make(chan struct{}),
	}
}

// Get returns the current snapshot.
func (s *StateStore) Get() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the current state together with its epoch.
func (s *StateStore) Snapshot() (domain.State, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.epoch
}

// Epoch returns the identity generation. It changes whenever the committed
// identity is replaced or dropped.
func (s *StateStore) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Ready is closed the first time Initialized becomes true.
func (s *StateStore) Ready() <-chan struct{} {
	return s.ready
}

// Subscribe returns a channel primed with the current snapshot and a func
// that detaches it.
func (s *StateStore) Subscribe() (<-chan domain.State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan domain.State, 1)
	ch <- s.state
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// commit applies fn to the state and publishes the result.
func (s *StateStore) commit(fn func(st *domain.State)) domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(fn)
	return s.state
}

// commitAt applies fn only if the epoch is still epoch. It reports whether
// the update was applied.
func (s *StateStore) commitAt(epoch uint64, fn func(st *domain.State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.apply(fn)
	return true
}

// rotate bumps the epoch and applies fn in one step, invalidating every
// asynchronous result started under the previous identity.
func (s *StateStore) rotate(fn func(st *domain.State)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.apply(fn)
	return s.epoch
}

// must be called with mu held.
func (s *StateStore) apply(fn func(st *domain.State)) {
	wasReady := s.state.Initialized
	fn(&s.state)
	if s.state.Initialized && !wasReady {
		select {
		case <-s.ready:
		default:
			close(s.ready)
		}
	}
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.state
	}
}
