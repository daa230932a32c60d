package trust

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// upsertRetries bounds the optimistic-concurrency retry loop.
const upsertRetries = 5

// Manager serializes read-modify-write cycles on trust profiles through the
// store's versioned upsert, retrying on conflict.
type Manager struct {
	store  Store
	logger *zap.Logger
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Get returns the user's profile, lazily creating the default one on first
// contact.
func (m *Manager) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := m.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		p = NewProfile(userID)
		if err := m.store.Upsert(ctx, p); err != nil && !errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("Get: %w", err)
		}
		// A conflict here means another goroutine created it first; re-read.
		return m.store.Get(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

// RecordShown bumps the user's shown counter.
func (m *Manager) RecordShown(ctx context.Context, userID string) (*Profile, error) {
	return m.mutate(ctx, userID, func(p *Profile) {
		p.RecordShown()
	})
}

// RecordInteraction applies one accepted/dismissed/disagreed interaction
// and recalibrates the user's trust level.
func (m *Manager) RecordInteraction(ctx context.Context, userID, category string, kind Interaction) (*Profile, error) {
	return m.mutate(ctx, userID, func(p *Profile) {
		p.RecordInteraction(kind, category)
	})
}

// DismissCategory suppresses a suggestion category for the user.
func (m *Manager) DismissCategory(ctx context.Context, userID, category string) (*Profile, error) {
	return m.mutate(ctx, userID, func(p *Profile) {
		p.DismissCategory(category)
	})
}

// Reset returns the user's profile to defaults. Profiles are never deleted.
func (m *Manager) Reset(ctx context.Context, userID string) (*Profile, error) {
	return m.mutate(ctx, userID, func(p *Profile) {
		p.Reset()
	})
}

// DecayAll runs the periodic adjustment decay over every stored profile.
// Individual failures are logged and skipped so one bad row never stalls
// the sweep.
func (m *Manager) DecayAll(ctx context.Context) error {
	profiles, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("DecayAll: %w", err)
	}
	for _, p := range profiles {
		if len(p.Adjustments) == 0 {
			continue
		}
		if _, err := m.mutate(ctx, p.UserID, func(p *Profile) {
			p.DecayAdjustments()
		}); err != nil {
			m.logger.Warn("trust adjustment decay failed",
				zap.String("user_id", p.UserID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (m *Manager) mutate(ctx context.Context, userID string, fn func(*Profile)) (*Profile, error) {
	var lastErr error
	for attempt := 0; attempt < upsertRetries; attempt++ {
		p, err := m.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		fn(p)
		if err := m.store.Upsert(ctx, p); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("mutate: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("mutate: retries exhausted: %w", lastErr)
}
