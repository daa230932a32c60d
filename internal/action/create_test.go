package action

import (
	"errors"
	"testing"
	"time"
)

func validInput() CreateInput {
	return CreateInput{
		Source:      SourceAPI,
		Intent:      "update task status",
		Authority:   AuthorityWrite,
		Scope:       ScopeTasks,
		Steps:       []Step{{Type: StepMutation, Target: "tasks.update", Payload: map[string]any{"id": "t1"}}},
		Reversible:  true,
		Confidence:  0.9,
		UserID:      "user-1",
		Environment: EnvDevelopment,
	}
}

func TestNew_Defaults(t *testing.T) {
	a, err := New(validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == "" {
		t.Error("expected generated id")
	}
	if a.Status != StatusPending {
		t.Errorf("status = %s, want pending", a.Status)
	}
	if a.Steps[0].ID == "" {
		t.Error("expected generated step id")
	}
	if a.RequiresApproval {
		t.Error("low-risk write should not require approval")
	}
	if a.ApprovalLevel != ApprovalNone {
		t.Errorf("approval level = %s, want none", a.ApprovalLevel)
	}
	want := ComputeRisk(AuthorityWrite, ScopeTasks, EnvDevelopment, SourceAPI, true)
	if a.RiskScore != want {
		t.Errorf("risk = %.3f, want computed %.3f", a.RiskScore, want)
	}
}

func TestNew_ExplicitRisk(t *testing.T) {
	in := validInput()
	risk := 0.1
	in.RiskScore = &risk
	a, err := New(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.RiskScore != 0.1 {
		t.Errorf("risk = %.3f, want caller-supplied 0.1", a.RiskScore)
	}
}

func TestNew_DestructiveRequiresApproval(t *testing.T) {
	in := validInput()
	in.Authority = AuthorityDestructive
	a, err := New(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.RequiresApproval {
		t.Error("destructive action must require approval at construction time")
	}
	if a.ApprovalLevel != ApprovalAdmin {
		t.Errorf("approval level = %s, want admin", a.ApprovalLevel)
	}
}

func TestNew_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"unknown source", func(in *CreateInput) { in.Source = "telepathy" }},
		{"empty intent", func(in *CreateInput) { in.Intent = "" }},
		{"unknown authority", func(in *CreateInput) { in.Authority = "root" }},
		{"unknown scope", func(in *CreateInput) { in.Scope = "everything" }},
		{"unknown environment", func(in *CreateInput) { in.Environment = "moon" }},
		{"no steps", func(in *CreateInput) { in.Steps = nil }},
		{"confidence out of range", func(in *CreateInput) { in.Confidence = 1.5 }},
		{"bad step type", func(in *CreateInput) { in.Steps[0].Type = "teleport" }},
		{"empty step target", func(in *CreateInput) { in.Steps[0].Target = "" }},
		{"negative step timeout", func(in *CreateInput) { in.Steps[0].Timeout = -time.Second }},
		{"bad rollback step", func(in *CreateInput) {
			in.Rollback = &RollbackPlan{Steps: []Step{{Type: StepMutation, Target: ""}}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := New(in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusExecuting, true},
		{StatusPending, StatusCancelled, true},
		{StatusApproved, StatusExecuting, true},
		{StatusApproved, StatusCancelled, true},
		{StatusExecuting, StatusCompleted, true},
		{StatusExecuting, StatusFailed, true},
		{StatusExecuting, StatusRolledBack, true},
		{StatusExecuting, StatusCancelled, false},
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusExecuting, false},
		{StatusFailed, StatusExecuting, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusRolledBack, StatusCancelled} {
		if !Terminal(s) {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusApproved, StatusExecuting} {
		if Terminal(s) {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
