package trust

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when a user has no stored profile yet.
var ErrNotFound = errors.New("trust profile not found")

// ErrVersionConflict signals a lost optimistic-concurrency race; the caller
// should re-read and retry.
var ErrVersionConflict = errors.New("trust profile version conflict")

// Store is the typed repository for user trust profiles. Upsert must be
// compare-and-swap on the profile version so overlapping interactions for
// the same user never lose updates.
type Store interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Upsert(ctx context.Context, p *Profile) error
	List(ctx context.Context) ([]*Profile, error)
}

// MemoryStore is an in-memory Store for tests and DSN-less deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *MemoryStore) Upsert(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[p.UserID]
	if ok && existing.Version != p.Version {
		return ErrVersionConflict
	}
	cp := cloneProfile(p)
	cp.Version++
	s.profiles[p.UserID] = cp
	p.Version = cp.Version
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, cloneProfile(p))
	}
	return out, nil
}

func cloneProfile(p *Profile) *Profile {
	cp := *p
	cp.Adjustments = make(map[string]float64, len(p.Adjustments))
	for k, v := range p.Adjustments {
		cp.Adjustments[k] = v
	}
	cp.AutoApplyCategories = append([]string(nil), p.AutoApplyCategories...)
	return &cp
}
