package audit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when an entry id has no stored record.
var ErrNotFound = errors.New("audit entry not found")

// Filter selects entries on query. Zero fields match everything.
type Filter struct {
	Actor       string
	ActionID    string
	Event       EventType
	Environment string
	Since       time.Time
	Until       time.Time
}

// Store is the typed repository for audit entries. It is append-only by
// contract: there is deliberately no update or delete operation.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	Query(ctx context.Context, f Filter) ([]*Entry, error)
}

// MemoryStore is an in-memory append-only Store persisting insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	byID    map[string]*Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Entry)}
}

func (s *MemoryStore) Append(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[e.ID]; exists {
		return errors.New("audit entry already exists: " + e.ID)
	}
	cp := cloneEntry(e)
	s.entries = append(s.entries, cp)
	s.byID[e.ID] = cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntry(e), nil
}

func (s *MemoryStore) Query(_ context.Context, f Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Entry
	for _, e := range s.entries {
		if matches(e, f) {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}

// Corrupt overwrites a stored payload value in place. It exists only so
// integrity-check tests can simulate out-of-band tampering; nothing in the
// governance core calls it.
func (s *MemoryStore) Corrupt(id, key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return false
	}
	e.Payload[key] = value
	return true
}

func matches(e *Entry, f Filter) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.ActionID != "" && e.ActionID != f.ActionID {
		return false
	}
	if f.Event != "" && e.Event != f.Event {
		return false
	}
	if f.Environment != "" && e.Environment != f.Environment {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

func cloneEntry(e *Entry) *Entry {
	cp := *e
	cp.Payload = make(map[string]any, len(e.Payload))
	for k, v := range e.Payload {
		cp.Payload[k] = v
	}
	return &cp
}
