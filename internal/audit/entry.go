// Package audit provides the append-only, checksum-verified record of every
// governance-relevant event. Entries are immutable once written; integrity
// is re-verified on demand by recomputing checksums.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// EventType enumerates the governance lifecycle and safety events.
type EventType string

const (
	EventActionCreated    EventType = "action_created"
	EventActionApproved   EventType = "action_approved"
	EventActionRejected   EventType = "action_rejected"
	EventActionCancelled  EventType = "action_cancelled"
	EventActionExecuted   EventType = "action_executed"
	EventActionCompleted  EventType = "action_completed"
	EventActionFailed     EventType = "action_failed"
	EventActionRolledBack EventType = "action_rolled_back"

	EventStepCompleted      EventType = "step_completed"
	EventStepFailed         EventType = "step_failed"
	EventRollbackStarted    EventType = "rollback_started"
	EventRollbackCompleted  EventType = "rollback_completed"
	EventRollbackStepFailed EventType = "rollback_step_failed"

	EventSuggestionShown     EventType = "suggestion_shown"
	EventSuggestionAccepted  EventType = "suggestion_accepted"
	EventSuggestionDismissed EventType = "suggestion_dismissed"
	EventSuggestionDisagreed EventType = "suggestion_disagreed"
	EventTrustRecalibrated   EventType = "trust_recalibrated"

	EventIntegrityCheck       EventType = "integrity_check"
	EventVoiceCommandReceived EventType = "voice_command_received"
)

// Entry is one immutable audit record. The checksum is a SHA-256 digest of
// the canonical (RFC 8785) serialization of the payload, computed exactly
// once at write time.
type Entry struct {
	ID          string         `json:"id"`
	Event       EventType      `json:"event"`
	Payload     map[string]any `json:"payload"`
	ActionID    string         `json:"action_id,omitempty"`
	CommandID   string         `json:"command_id,omitempty"`
	Actor       string         `json:"actor"`
	SessionID   string         `json:"session_id,omitempty"`
	Environment string         `json:"environment"`
	Checksum    string         `json:"checksum"`
	CreatedAt   time.Time      `json:"created_at"`
}

// PayloadChecksum computes the hex SHA-256 digest over the canonical JSON
// form of a payload. Canonicalization makes the digest stable across map
// iteration order and encoder quirks.
func PayloadChecksum(payload map[string]any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("PayloadChecksum: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("PayloadChecksum: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// newEntry builds a checksummed entry from a record.
func newEntry(rec Record) (*Entry, error) {
	payload := rec.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	checksum, err := PayloadChecksum(payload)
	if err != nil {
		return nil, err
	}
	return &Entry{
		ID:          uuid.New().String(),
		Event:       rec.Event,
		Payload:     payload,
		ActionID:    rec.ActionID,
		CommandID:   rec.CommandID,
		Actor:       rec.Actor,
		SessionID:   rec.SessionID,
		Environment: rec.Environment,
		Checksum:    checksum,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Record is the inbound shape for writing an audit entry.
type Record struct {
	Event       EventType
	Payload     map[string]any
	ActionID    string
	CommandID   string
	Actor       string
	SessionID   string
	Environment string
}
