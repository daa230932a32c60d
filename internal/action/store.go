package action

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when an action id has no stored record.
var ErrNotFound = errors.New("action not found")

// Store is the typed repository for actions. The governance core depends
// only on this interface, never on a concrete storage client.
type Store interface {
	Create(ctx context.Context, a *Action) error
	Get(ctx context.Context, id string) (*Action, error)
	Update(ctx context.Context, a *Action) error
	ListByUser(ctx context.Context, userID string) ([]*Action, error)
}

// MemoryStore is an in-memory Store used in tests and DSN-less deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	actions map[string]*Action
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{actions: make(map[string]*Action)}
}

func (s *MemoryStore) Create(_ context.Context, a *Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.actions[a.ID]; exists {
		return errors.New("action already exists: " + a.ID)
	}
	cp := *a
	s.actions[a.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) Update(_ context.Context, a *Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	s.actions[a.ID] = &cp
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Action
	for _, a := range s.actions {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}
