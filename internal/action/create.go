package action

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationError reports malformed action or step input. Inputs that fail
// validation are rejected before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CreateInput is the inbound contract for constructing an action.
// Confidence, RiskScore, and Rollback are optional; a zero RiskScore with
// ComputedRisk unset means "compute it for me".
type CreateInput struct {
	Source       Source
	Intent       string
	ParsedIntent map[string]any
	Authority    AuthorityLevel
	Scope        Scope
	Steps        []Step
	Dependencies []string
	Reversible   bool
	Rollback     *RollbackPlan
	Confidence   float64
	RiskScore    *float64 // nil = derive from authority/scope/environment
	UserID       string
	SessionID    string
	Environment  Environment
	Metadata     map[string]string
}

var validSources = map[Source]bool{
	SourceVoice: true, SourceIDE: true, SourceUI: true,
	SourceAPI: true, SourceAgent: true, SourceScheduled: true,
}

var validStepTypes = map[StepType]bool{
	StepQuery: true, StepMutation: true, StepFileWrite: true,
	StepAPICall: true, StepNotification: true,
}

// New validates the input and constructs a pending action with its risk
// score and approval requirement derived. The destructive-requires-approval
// invariant is enforced here, at construction time.
func New(in CreateInput) (*Action, error) {
	if !validSources[in.Source] {
		return nil, &ValidationError{Field: "source", Reason: fmt.Sprintf("unknown source %q", in.Source)}
	}
	if in.Intent == "" {
		return nil, &ValidationError{Field: "intent", Reason: "must not be empty"}
	}
	if _, ok := authorityRisk[in.Authority]; !ok {
		return nil, &ValidationError{Field: "authority_level", Reason: fmt.Sprintf("unknown level %q", in.Authority)}
	}
	if _, ok := scopeRisk[in.Scope]; !ok {
		return nil, &ValidationError{Field: "scope", Reason: fmt.Sprintf("unknown scope %q", in.Scope)}
	}
	if _, ok := environmentRisk[in.Environment]; !ok {
		return nil, &ValidationError{Field: "environment", Reason: fmt.Sprintf("unknown environment %q", in.Environment)}
	}
	if len(in.Steps) == 0 {
		return nil, &ValidationError{Field: "steps", Reason: "at least one step required"}
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return nil, &ValidationError{Field: "confidence", Reason: "must be within [0,1]"}
	}
	if in.RiskScore != nil && (*in.RiskScore < 0 || *in.RiskScore > 1) {
		return nil, &ValidationError{Field: "risk_score", Reason: "must be within [0,1]"}
	}
	for i := range in.Steps {
		if err := validateStep(&in.Steps[i], fmt.Sprintf("steps[%d]", i)); err != nil {
			return nil, err
		}
	}
	if in.Rollback != nil {
		for i := range in.Rollback.Steps {
			if err := validateStep(&in.Rollback.Steps[i], fmt.Sprintf("rollback.steps[%d]", i)); err != nil {
				return nil, err
			}
		}
	}

	steps := make([]Step, len(in.Steps))
	copy(steps, in.Steps)
	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = uuid.New().String()
		}
	}

	risk := 0.0
	if in.RiskScore != nil {
		risk = *in.RiskScore
	} else {
		risk = ComputeRisk(in.Authority, in.Scope, in.Environment, in.Source, in.Reversible)
	}

	requiresApproval := NeedsApproval(in.Authority, in.Source, in.Environment, risk)
	approvalLevel := ApprovalNone
	if requiresApproval {
		approvalLevel = ApprovalUser
		if in.Authority == AuthorityDestructive {
			approvalLevel = ApprovalAdmin
		}
	}

	return &Action{
		ID:               uuid.New().String(),
		Source:           in.Source,
		Intent:           in.Intent,
		ParsedIntent:     in.ParsedIntent,
		Authority:        in.Authority,
		Scope:            in.Scope,
		Steps:            steps,
		Dependencies:     in.Dependencies,
		Reversible:       in.Reversible,
		Rollback:         in.Rollback,
		RequiresApproval: requiresApproval,
		ApprovalLevel:    approvalLevel,
		Confidence:       in.Confidence,
		RiskScore:        risk,
		Status:           StatusPending,
		CreatedAt:        time.Now().UTC(),
		UserID:           in.UserID,
		SessionID:        in.SessionID,
		Environment:      in.Environment,
		Metadata:         in.Metadata,
	}, nil
}

func validateStep(s *Step, field string) error {
	if !validStepTypes[s.Type] {
		return &ValidationError{Field: field + ".type", Reason: fmt.Sprintf("unknown step type %q", s.Type)}
	}
	if s.Target == "" {
		return &ValidationError{Field: field + ".target", Reason: "must not be empty"}
	}
	if s.Timeout < 0 {
		return &ValidationError{Field: field + ".timeout", Reason: "must not be negative"}
	}
	return nil
}
