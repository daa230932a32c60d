package gates

import (
	"context"
	"testing"
	"time"

	"github.com/wardenlabs/warden/internal/action"
	"github.com/wardenlabs/warden/internal/auth"
)

func baseAction() *action.Action {
	return &action.Action{
		ID:          "a1",
		Source:      action.SourceAPI,
		Intent:      "update task status",
		Authority:   action.AuthorityWrite,
		Scope:       action.ScopeTasks,
		Reversible:  true,
		Confidence:  0.9,
		RiskScore:   0.1,
		Status:      action.StatusPending,
		UserID:      "user-1",
		Environment: action.EnvDevelopment,
	}
}

func baseRequest() *Request {
	return &Request{
		Action: baseAction(),
		Actor:  &auth.Actor{UserID: "user-1"},
	}
}

func TestSourceVerificationGate(t *testing.T) {
	g := NewSourceVerificationGate()
	ctx := context.Background()

	req := baseRequest()
	res, err := g.Evaluate(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Passed {
		t.Errorf("expected pass with actor, got fail: %s", res.Reason)
	}

	req.Actor = nil
	res, _ = g.Evaluate(ctx, req)
	if res.Passed {
		t.Error("expected fail without actor")
	}

	req.Actor = &auth.Actor{}
	res, _ = g.Evaluate(ctx, req)
	if res.Passed {
		t.Error("expected fail with empty user id")
	}
}

func TestIntentValidationGate(t *testing.T) {
	g := NewIntentValidationGate()
	ctx := context.Background()

	tests := []struct {
		name       string
		intent     string
		confidence float64
		wantPass   bool
	}{
		{"valid", "deploy the new build", 0.9, true},
		{"at threshold", "deploy the new build", 0.6, true},
		{"below threshold", "deploy the new build", 0.59, false},
		{"empty intent", "", 0.9, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			req.Action.Intent = tt.intent
			req.Action.Confidence = tt.confidence
			res, err := g.Evaluate(ctx, req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Passed != tt.wantPass {
				t.Errorf("passed = %v, want %v (%s)", res.Passed, tt.wantPass, res.Reason)
			}
		})
	}
}

func TestRiskAssessmentGate(t *testing.T) {
	g := NewRiskAssessmentGate()
	ctx := context.Background()

	tests := []struct {
		name       string
		authority  action.AuthorityLevel
		risk       float64
		reversible bool
		wantPass   bool
	}{
		{"low risk", action.AuthorityWrite, 0.1, true, true},
		{"high risk reversible", action.AuthorityWrite, 0.85, true, true},
		{"high risk irreversible", action.AuthorityWrite, 0.85, false, false},
		{"destructive low risk", action.AuthorityDestructive, 0.4, true, true},
		{"destructive elevated risk", action.AuthorityDestructive, 0.5, true, false},
		{"destructive elevated risk irreversible", action.AuthorityDestructive, 0.6, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			req.Action.Authority = tt.authority
			req.Action.RiskScore = tt.risk
			req.Action.Reversible = tt.reversible
			res, err := g.Evaluate(ctx, req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Passed != tt.wantPass {
				t.Errorf("passed = %v, want %v (%s)", res.Passed, tt.wantPass, res.Reason)
			}
		})
	}
}

func TestApprovalGate(t *testing.T) {
	g := NewApprovalGate()
	ctx := context.Background()

	req := baseRequest()
	req.Action.RequiresApproval = true
	res, _ := g.Evaluate(ctx, req)
	if res.Passed {
		t.Error("expected fail: approval required but not granted")
	}

	now := time.Now().UTC()
	req.Action.ApprovedAt = &now
	res, _ = g.Evaluate(ctx, req)
	if !res.Passed {
		t.Errorf("expected pass with approval timestamp, got: %s", res.Reason)
	}

	req = baseRequest()
	req.Action.RequiresApproval = false
	res, _ = g.Evaluate(ctx, req)
	if !res.Passed {
		t.Error("expected pass when no approval required")
	}
}

func TestExecutionSafetyGate(t *testing.T) {
	g := NewExecutionSafetyGate()
	ctx := context.Background()
	no := false

	tests := []struct {
		name     string
		mutate   func(*Request)
		wantPass bool
	}{
		{"safe defaults", func(*Request) {}, true},
		{"voice allowed by default", func(r *Request) {
			r.Action.Source = action.SourceVoice
		}, true},
		{"voice disallowed by policy", func(r *Request) {
			r.Action.Source = action.SourceVoice
			r.Policy.AllowVoice = &no
		}, false},
		{"structural in production", func(r *Request) {
			r.Action.Authority = action.AuthorityStructural
			r.Action.Environment = action.EnvProduction
		}, false},
		{"structural in staging", func(r *Request) {
			r.Action.Authority = action.AuthorityStructural
			r.Action.Environment = action.EnvStaging
		}, true},
		{"elevated risk no safety net", func(r *Request) {
			r.Action.RiskScore = 0.5
			r.Action.Reversible = false
			r.Action.Rollback = nil
		}, false},
		{"elevated risk with rollback", func(r *Request) {
			r.Action.RiskScore = 0.5
			r.Action.Reversible = false
			r.Action.Rollback = &action.RollbackPlan{Steps: []action.Step{{Type: action.StepMutation, Target: "undo"}}}
		}, true},
		{"elevated risk reversible", func(r *Request) {
			r.Action.RiskScore = 0.5
			r.Action.Reversible = true
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mutate(req)
			res, err := g.Evaluate(ctx, req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Passed != tt.wantPass {
				t.Errorf("passed = %v, want %v (%s)", res.Passed, tt.wantPass, res.Reason)
			}
		})
	}
}
