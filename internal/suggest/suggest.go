// Package suggest is the write surface for suggestion interactions. Every
// interaction updates the user's trust profile and leaves an audit entry;
// a trust level change gets its own entry.
package suggest

import (
	"context"
	"fmt"

	"github.com/wardenlabs/warden/internal/audit"
	"github.com/wardenlabs/warden/internal/trust"
)

// Service records suggestion lifecycle events against the trust manager and
// the audit log.
type Service struct {
	trust  *trust.Manager
	audits *audit.Log
}

// NewService creates a Service.
func NewService(trustMgr *trust.Manager, audits *audit.Log) *Service {
	return &Service{trust: trustMgr, audits: audits}
}

// Shown records that a suggestion was surfaced to the user.
func (s *Service) Shown(ctx context.Context, userID, suggestionID, category string) (*trust.Profile, error) {
	p, err := s.trust.RecordShown(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Shown: %w", err)
	}
	s.audits.Record(ctx, audit.Record{
		Event: audit.EventSuggestionShown,
		Payload: map[string]any{
			"suggestion_id": suggestionID,
			"category":      category,
		},
		Actor: userID,
	})
	return p, nil
}

// Accept records an accepted suggestion.
func (s *Service) Accept(ctx context.Context, userID, suggestionID, category string) (*trust.Profile, error) {
	return s.record(ctx, userID, suggestionID, category, trust.InteractionAccepted, audit.EventSuggestionAccepted)
}

// Dismiss records a dismissed suggestion.
func (s *Service) Dismiss(ctx context.Context, userID, suggestionID, category string) (*trust.Profile, error) {
	return s.record(ctx, userID, suggestionID, category, trust.InteractionDismissed, audit.EventSuggestionDismissed)
}

// Disagree records a disagreement. This is the strongest negative signal:
// the trust manager nudges the category down and may raise thresholds.
func (s *Service) Disagree(ctx context.Context, userID, suggestionID, category string) (*trust.Profile, error) {
	return s.record(ctx, userID, suggestionID, category, trust.InteractionDisagreed, audit.EventSuggestionDisagreed)
}

// DismissCategory suppresses an entire suggestion category for the user.
func (s *Service) DismissCategory(ctx context.Context, userID, category string) (*trust.Profile, error) {
	p, err := s.trust.DismissCategory(ctx, userID, category)
	if err != nil {
		return nil, fmt.Errorf("DismissCategory: %w", err)
	}
	s.audits.Record(ctx, audit.Record{
		Event:   audit.EventSuggestionDismissed,
		Payload: map[string]any{"category": category, "whole_category": true},
		Actor:   userID,
	})
	return p, nil
}

func (s *Service) record(ctx context.Context, userID, suggestionID, category string, kind trust.Interaction, event audit.EventType) (*trust.Profile, error) {
	before, err := s.trust.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	levelBefore := before.Level

	p, err := s.trust.RecordInteraction(ctx, userID, category, kind)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}

	s.audits.Record(ctx, audit.Record{
		Event: event,
		Payload: map[string]any{
			"suggestion_id": suggestionID,
			"category":      category,
		},
		Actor: userID,
	})

	if p.Level != levelBefore {
		s.audits.Record(ctx, audit.Record{
			Event: audit.EventTrustRecalibrated,
			Payload: map[string]any{
				"from":              string(levelBefore),
				"to":                string(p.Level),
				"interactions":      p.Interactions(),
				"acceptance_rate":   p.AcceptanceRate(),
				"auto_threshold":    p.AutoThreshold,
				"suggest_threshold": p.SuggestThreshold,
			},
			Actor: userID,
		})
	}
	return p, nil
}
