// Package runner owns the action lifecycle: gate evaluation, sequential
// step execution, best-effort rollback, and the audit entries for every
// transition.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wardenlabs/warden/internal/action"
	"github.com/wardenlabs/warden/internal/audit"
	"github.com/wardenlabs/warden/internal/auth"
	"github.com/wardenlabs/warden/internal/gates"
)

// ExecutionResult is the structured outcome returned to callers. Gate
// blocks and step failures are reported here, never thrown past the runner
// boundary.
type ExecutionResult struct {
	Success        bool                 `json:"success"`
	Blocked        bool                 `json:"blocked"`
	BlockedBy      string               `json:"blocked_by,omitempty"`
	Reason         string               `json:"reason,omitempty"`
	StepsCompleted int                  `json:"steps_completed"`
	TotalSteps     int                  `json:"total_steps"`
	Result         any                  `json:"result,omitempty"`
	Error          string               `json:"error,omitempty"`
	Status         action.Status        `json:"status"`
	Duration       time.Duration        `json:"duration"`
	Outcomes       []action.StepOutcome `json:"outcomes,omitempty"`
}

// Runner drives actions through their lifecycle. One action is driven by
// exactly one Runner invocation; steps never run concurrently because later
// steps may depend on earlier results and rollback ordering must stay
// deterministic.
type Runner struct {
	actions   action.Store
	pipeline  *gates.Pipeline
	auditLog  *audit.Log
	mirror    audit.MirrorWriter
	effectors *EffectorRegistry
	policy    gates.Policy
	logger    *zap.Logger
}

// Config assembles a Runner's dependencies. All of them are injected;
// Mirror may be nil and degrades to a no-op.
type Config struct {
	Actions   action.Store
	Pipeline  *gates.Pipeline
	AuditLog  *audit.Log
	Mirror    audit.MirrorWriter
	Effectors *EffectorRegistry
	Policy    gates.Policy
	Logger    *zap.Logger
}

// New creates a Runner.
func New(cfg Config) *Runner {
	mirror := cfg.Mirror
	if mirror == nil {
		mirror = audit.NopMirror{}
	}
	return &Runner{
		actions:   cfg.Actions,
		pipeline:  cfg.Pipeline,
		auditLog:  cfg.AuditLog,
		mirror:    mirror,
		effectors: cfg.Effectors,
		policy:    cfg.Policy,
		logger:    cfg.Logger,
	}
}

// Create validates and persists a new pending action, and writes the
// action_created audit entry.
func (r *Runner) Create(ctx context.Context, in action.CreateInput) (*action.Action, error) {
	a, err := action.New(in)
	if err != nil {
		return nil, err
	}
	if err := r.actions.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	if a.Source == action.SourceVoice {
		r.auditLog.Record(ctx, audit.Record{
			Event:       audit.EventVoiceCommandReceived,
			Payload:     map[string]any{"intent": a.Intent},
			ActionID:    a.ID,
			Actor:       a.UserID,
			SessionID:   a.SessionID,
			Environment: string(a.Environment),
		})
	}

	r.auditLog.Record(ctx, audit.Record{
		Event: audit.EventActionCreated,
		Payload: map[string]any{
			"authority_level":   string(a.Authority),
			"scope":             string(a.Scope),
			"source":            string(a.Source),
			"risk_score":        a.RiskScore,
			"requires_approval": a.RequiresApproval,
			"steps":             len(a.Steps),
		},
		ActionID:    a.ID,
		Actor:       a.UserID,
		SessionID:   a.SessionID,
		Environment: string(a.Environment),
	})
	return a, nil
}

// Approve marks a pending action as approved. Returns false when the action
// is in any other state.
func (r *Runner) Approve(ctx context.Context, id, approverID string) (bool, error) {
	a, err := r.actions.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("Approve: %w", err)
	}
	if a.Status != action.StatusPending {
		return false, nil
	}

	now := time.Now().UTC()
	a.ApprovedAt = &now
	a.Status = action.StatusApproved
	if err := r.actions.Update(ctx, a); err != nil {
		return false, fmt.Errorf("Approve: %w", err)
	}

	r.auditLog.Record(ctx, audit.Record{
		Event:       audit.EventActionApproved,
		Payload:     map[string]any{"approver": approverID},
		ActionID:    a.ID,
		Actor:       approverID,
		Environment: string(a.Environment),
	})
	return true, nil
}

// Cancel cancels a pending or approved action. Cancellation is always
// permitted from those states; nothing can override it. Returns false once
// execution has started or the action is terminal.
func (r *Runner) Cancel(ctx context.Context, id, actorID string) (bool, error) {
	a, err := r.actions.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("Cancel: %w", err)
	}
	if a.Status != action.StatusPending && a.Status != action.StatusApproved {
		return false, nil
	}

	a.Status = action.StatusCancelled
	if err := r.actions.Update(ctx, a); err != nil {
		return false, fmt.Errorf("Cancel: %w", err)
	}

	r.auditLog.Record(ctx, audit.Record{
		Event:       audit.EventActionCancelled,
		Payload:     map[string]any{"cancelled_by": actorID},
		ActionID:    a.ID,
		Actor:       actorID,
		Environment: string(a.Environment),
	})
	return true, nil
}

// Execute evaluates the gate pipeline for an action and, on pass, runs its
// steps in declaration order. A blocked action is audited as rejected and
// never executed; its status does not change.
func (r *Runner) Execute(ctx context.Context, id string, actor *auth.Actor) (*ExecutionResult, error) {
	start := time.Now()

	a, err := r.actions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}
	if a.Status != action.StatusPending && a.Status != action.StatusApproved {
		return nil, fmt.Errorf("Execute: action %s not executable from status %q", a.ID, a.Status)
	}

	pipelineResult := r.pipeline.Evaluate(ctx, &gates.Request{
		Action: a,
		Actor:  actor,
		Policy: r.policy,
	})

	if !pipelineResult.Passed {
		r.auditLog.Record(ctx, audit.Record{
			Event: audit.EventActionRejected,
			Payload: map[string]any{
				"blocked_by": pipelineResult.BlockedBy,
				"reason":     pipelineResult.Reason,
				"gates":      gateSummary(pipelineResult),
			},
			ActionID:    a.ID,
			Actor:       a.UserID,
			SessionID:   a.SessionID,
			Environment: string(a.Environment),
		})
		result := &ExecutionResult{
			Blocked:    true,
			BlockedBy:  pipelineResult.BlockedBy,
			Reason:     pipelineResult.Reason,
			TotalSteps: len(a.Steps),
			Status:     a.Status,
			Duration:   time.Since(start),
		}
		r.writeMirror(a, pipelineResult, "blocked", 0, result.Duration)
		return result, nil
	}

	now := time.Now().UTC()
	a.Status = action.StatusExecuting
	a.ExecutedAt = &now
	if err := r.actions.Update(ctx, a); err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}
	r.auditLog.Record(ctx, audit.Record{
		Event:       audit.EventActionExecuted,
		Payload:     map[string]any{"steps": len(a.Steps)},
		ActionID:    a.ID,
		Actor:       a.UserID,
		SessionID:   a.SessionID,
		Environment: string(a.Environment),
	})

	result := r.runSteps(ctx, a)
	result.Duration = time.Since(start)

	done := time.Now().UTC()
	a.CompletedAt = &done
	a.Status = result.Status
	if err := r.actions.Update(ctx, a); err != nil {
		// The action already ran; surface the persistence failure but keep
		// the execution outcome authoritative.
		r.logger.Error("final status persist failed",
			zap.String("action_id", a.ID),
			zap.String("status", string(result.Status)),
			zap.Error(err),
		)
	}

	r.writeMirror(a, pipelineResult, string(result.Status), result.StepsCompleted, result.Duration)
	return result, nil
}

// runSteps executes the action's steps strictly in order, stopping at the
// first failure. Step N+1 never starts before step N's outcome is recorded.
func (r *Runner) runSteps(ctx context.Context, a *action.Action) *ExecutionResult {
	result := &ExecutionResult{TotalSteps: len(a.Steps)}

	for _, step := range a.Steps {
		outcome := r.runStep(ctx, a, step)
		result.Outcomes = append(result.Outcomes, outcome)

		if !outcome.Succeeded {
			result.Error = outcome.Error
			result.Status = r.handleFailure(ctx, a, outcome)
			return result
		}
		result.StepsCompleted++
		result.Result = outcome.Result
	}

	result.Success = true
	result.Status = action.StatusCompleted
	r.auditLog.Record(ctx, audit.Record{
		Event:       audit.EventActionCompleted,
		Payload:     map[string]any{"steps_completed": result.StepsCompleted},
		ActionID:    a.ID,
		Actor:       a.UserID,
		SessionID:   a.SessionID,
		Environment: string(a.Environment),
	})
	return result
}

// runStep validates and dispatches one step, recording its outcome.
func (r *Runner) runStep(ctx context.Context, a *action.Action, step action.Step) action.StepOutcome {
	outcome := action.StepOutcome{StepID: step.ID}

	fail := func(err error) action.StepOutcome {
		outcome.Error = err.Error()
		outcome.FinishedAt = time.Now().UTC()
		r.auditLog.Record(ctx, audit.Record{
			Event: audit.EventStepFailed,
			Payload: map[string]any{
				"step_id": step.ID,
				"type":    string(step.Type),
				"target":  step.Target,
				"error":   err.Error(),
			},
			ActionID:    a.ID,
			Actor:       a.UserID,
			Environment: string(a.Environment),
		})
		return outcome
	}

	if err := validatePayload(step); err != nil {
		return fail(err)
	}

	eff, err := r.effectors.Lookup(step.Type)
	if err != nil {
		return fail(err)
	}

	stepCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	res, err := eff.Execute(stepCtx, step)
	if err != nil {
		return fail(err)
	}

	outcome.Succeeded = true
	outcome.Result = res
	outcome.FinishedAt = time.Now().UTC()
	r.auditLog.Record(ctx, audit.Record{
		Event: audit.EventStepCompleted,
		Payload: map[string]any{
			"step_id": step.ID,
			"type":    string(step.Type),
			"target":  step.Target,
		},
		ActionID:    a.ID,
		Actor:       a.UserID,
		Environment: string(a.Environment),
	})
	return outcome
}

// handleFailure runs the rollback plan if one exists and settles the
// action's terminal status. Rollback step failures are logged and audited
// but never escalate: a failing rollback must not keep the action from
// reaching a terminal state.
func (r *Runner) handleFailure(ctx context.Context, a *action.Action, failed action.StepOutcome) action.Status {
	if a.Rollback == nil {
		r.auditLog.Record(ctx, audit.Record{
			Event: audit.EventActionFailed,
			Payload: map[string]any{
				"failed_step": failed.StepID,
				"error":       failed.Error,
			},
			ActionID:    a.ID,
			Actor:       a.UserID,
			Environment: string(a.Environment),
		})
		return action.StatusFailed
	}

	r.auditLog.Record(ctx, audit.Record{
		Event:       audit.EventRollbackStarted,
		Payload:     map[string]any{"steps": len(a.Rollback.Steps)},
		ActionID:    a.ID,
		Actor:       a.UserID,
		Environment: string(a.Environment),
	})

	rollbackCtx := ctx
	if a.Rollback.Timeout > 0 {
		var cancel context.CancelFunc
		rollbackCtx, cancel = context.WithTimeout(ctx, a.Rollback.Timeout)
		defer cancel()
	}

	for _, step := range a.Rollback.Steps {
		if err := r.runRollbackStep(rollbackCtx, step); err != nil {
			r.logger.Warn("rollback step failed",
				zap.String("action_id", a.ID),
				zap.String("step_id", step.ID),
				zap.Error(err),
			)
			r.auditLog.Record(ctx, audit.Record{
				Event: audit.EventRollbackStepFailed,
				Payload: map[string]any{
					"step_id": step.ID,
					"error":   err.Error(),
				},
				ActionID:    a.ID,
				Actor:       a.UserID,
				Environment: string(a.Environment),
			})
		}
	}

	r.auditLog.Record(ctx, audit.Record{
		Event:       audit.EventRollbackCompleted,
		Payload:     map[string]any{},
		ActionID:    a.ID,
		Actor:       a.UserID,
		Environment: string(a.Environment),
	})
	r.auditLog.Record(ctx, audit.Record{
		Event: audit.EventActionRolledBack,
		Payload: map[string]any{
			"failed_step": failed.StepID,
			"error":       failed.Error,
		},
		ActionID:    a.ID,
		Actor:       a.UserID,
		Environment: string(a.Environment),
	})
	return action.StatusRolledBack
}

func (r *Runner) runRollbackStep(ctx context.Context, step action.Step) error {
	eff, err := r.effectors.Lookup(step.Type)
	if err != nil {
		return err
	}
	_, err = eff.Execute(ctx, step)
	return err
}

func (r *Runner) writeMirror(a *action.Action, pr *gates.PipelineResult, outcome string, stepsDone int, duration time.Duration) {
	names := make([]string, len(pr.Results))
	passed := make([]bool, len(pr.Results))
	reasons := make([]string, len(pr.Results))
	for i, res := range pr.Results {
		names[i] = res.Gate
		passed[i] = res.Passed
		reasons[i] = res.Reason
	}
	r.mirror.Write(&audit.DecisionEvent{
		ActionID:    a.ID,
		UserID:      a.UserID,
		SessionID:   a.SessionID,
		Timestamp:   time.Now().UTC(),
		Source:      string(a.Source),
		Environment: string(a.Environment),
		Authority:   string(a.Authority),
		Scope:       string(a.Scope),
		RiskScore:   a.RiskScore,
		Confidence:  a.Confidence,
		Outcome:     outcome,
		BlockedBy:   pr.BlockedBy,
		GateNames:   names,
		GatePassed:  passed,
		GateReasons: reasons,
		StepsTotal:  int32(len(a.Steps)),
		StepsDone:   int32(stepsDone),
		LatencyMs:   float32(float64(duration) / float64(time.Millisecond)),
	})
}

func gateSummary(pr *gates.PipelineResult) []map[string]any {
	out := make([]map[string]any, 0, len(pr.Results))
	for _, res := range pr.Results {
		out = append(out, map[string]any{
			"gate":   res.Gate,
			"passed": res.Passed,
			"reason": res.Reason,
		})
	}
	return out
}
