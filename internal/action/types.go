// Package action defines the governed unit of work: an Action with an
// ordered step sequence, authority and risk classification, and a lifecycle
// driven by the runner.
package action

import (
	"time"
)

// Source identifies where an action originated.
type Source string

const (
	SourceVoice     Source = "voice"
	SourceIDE       Source = "ide"
	SourceUI        Source = "ui"
	SourceAPI       Source = "api"
	SourceAgent     Source = "agent"
	SourceScheduled Source = "scheduled"
)

// AuthorityLevel classifies how dangerous an action is, ascending.
type AuthorityLevel string

const (
	AuthorityRead        AuthorityLevel = "read"
	AuthorityWrite       AuthorityLevel = "write"
	AuthorityStructural  AuthorityLevel = "structural"
	AuthorityDestructive AuthorityLevel = "destructive"
)

// Scope is the surface an action touches.
type Scope string

const (
	ScopeCode   Scope = "code"
	ScopeDB     Scope = "db"
	ScopeTasks  Scope = "tasks"
	ScopeDeploy Scope = "deploy"
	ScopeConfig Scope = "config"
	ScopeSystem Scope = "system"
)

// Environment is the deployment environment an action targets.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Status is an action's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusExecuting  Status = "executing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
	StatusCancelled  Status = "cancelled"
)

// ApprovalLevel is who must approve an action before it runs.
type ApprovalLevel string

const (
	ApprovalNone   ApprovalLevel = "none"
	ApprovalUser   ApprovalLevel = "user"
	ApprovalAdmin  ApprovalLevel = "admin"
	ApprovalSystem ApprovalLevel = "system"
)

// StepType classifies the effector a step targets.
type StepType string

const (
	StepQuery        StepType = "query"
	StepMutation     StepType = "mutation"
	StepFileWrite    StepType = "file_write"
	StepAPICall      StepType = "api_call"
	StepNotification StepType = "notification"
)

// RetryPolicy is passed through to the effector; the runner never
// interprets it.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	Backoff     time.Duration `json:"backoff"`
}

// Step is a single atomic effector call. Immutable once attached to an
// action; outcomes are recorded separately.
type Step struct {
	ID              string         `json:"id"`
	Type            StepType       `json:"type"`
	Target          string         `json:"target"`
	Payload         map[string]any `json:"payload"`
	ValidationRules map[string]any `json:"validation_rules,omitempty"` // JSON Schema
	Timeout         time.Duration  `json:"timeout"`
	Retry           *RetryPolicy   `json:"retry,omitempty"`
}

// StepOutcome records what happened when a step ran.
type StepOutcome struct {
	StepID     string    `json:"step_id"`
	Succeeded  bool      `json:"succeeded"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// RollbackPlan is a compensating step sequence, invoked at most once per
// failed action.
type RollbackPlan struct {
	Steps     []Step        `json:"steps"`
	Automatic bool          `json:"automatic"`
	Timeout   time.Duration `json:"timeout"`
}

// Action is the unit of governed work. Owned exclusively by the runner once
// created; never driven by more than one execution concurrently.
type Action struct {
	ID               string         `json:"id"`
	Source           Source         `json:"source"`
	Intent           string         `json:"intent"`
	ParsedIntent     map[string]any `json:"parsed_intent,omitempty"`
	Authority        AuthorityLevel `json:"authority_level"`
	Scope            Scope          `json:"scope"`
	Steps            []Step         `json:"steps"`
	Dependencies     []string       `json:"dependencies,omitempty"`
	Reversible       bool           `json:"reversible"`
	Rollback         *RollbackPlan  `json:"rollback,omitempty"`
	RequiresApproval bool           `json:"requires_approval"`
	ApprovalLevel    ApprovalLevel  `json:"approval_level"`
	Confidence       float64        `json:"confidence"`
	RiskScore        float64        `json:"risk_score"`
	Status           Status         `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	ExecutedAt  *time.Time `json:"executed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	UserID      string            `json:"user_id"`
	SessionID   string            `json:"session_id,omitempty"`
	Environment Environment       `json:"environment"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// transitions is the lifecycle state machine. Transitions are monotonic:
// terminal states have no successors.
var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusExecuting, StatusCancelled},
	StatusApproved:  {StatusExecuting, StatusCancelled},
	StatusExecuting: {StatusCompleted, StatusFailed, StatusRolledBack},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no legal successors.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}
