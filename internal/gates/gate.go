// Package gates implements the fixed-order authority gate pipeline that
// decides whether an action may execute.
package gates

import (
	"context"

	"github.com/wardenlabs/warden/internal/action"
	"github.com/wardenlabs/warden/internal/auth"
)

// Gate is one stage of the authority pipeline. Implementations must respect
// context deadlines and be side-effect-free.
type Gate interface {
	// Name returns the gate's unique identifier.
	Name() string

	// Evaluate checks the request. Must respect ctx deadline.
	Evaluate(ctx context.Context, req *Request) (*Result, error)
}

// Request carries everything a gate may inspect.
type Request struct {
	Action *action.Action
	Actor  *auth.Actor // nil when the caller is unauthenticated
	Policy Policy
}

// Result is the outcome of a single gate. Produced fresh per evaluation and
// never persisted as mutable state, only logged.
type Result struct {
	Gate   string `json:"gate"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

func pass(name string) *Result {
	return &Result{Gate: name, Passed: true}
}

func fail(name, reason string) *Result {
	return &Result{Gate: name, Passed: false, Reason: reason}
}

// Policy is the environment policy consulted by the execution safety gate.
// Nil pointer fields mean "use default".
type Policy struct {
	AllowVoice *bool // nil = voice-sourced actions allowed
}

// VoiceAllowed reports whether voice-sourced actions may execute.
func (p Policy) VoiceAllowed() bool {
	if p.AllowVoice == nil {
		return true
	}
	return *p.AllowVoice
}
