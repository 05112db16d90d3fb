package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	state   State
	expires time.Time
}

// MemoryStore is the in-process fallback used when redis is disabled.
type MemoryStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	states map[int64]entry
	marks  map[string]time.Time
	now    func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:    ttl,
		states: make(map[int64]entry),
		marks:  make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.states[userID]
	if !ok {
		return StateNone, nil
	}
	if !s.now().Before(e.expires) {
		delete(s.states, userID)
		return StateNone, nil
	}
	return e.state, nil
}

func (s *MemoryStore) Set(_ context.Context, userID int64, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state == StateNone {
		delete(s.states, userID)
		return nil
	}
	s.states[userID] = entry{state: state, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	delete(s.states, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.marks[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.marks[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Unmark(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.marks, key)
	s.mu.Unlock()
	return nil
}
