package gates

import (
	"context"
	"fmt"

	"github.com/wardenlabs/warden/internal/action"
	"github.com/wardenlabs/warden/internal/safety"
)

// ExecutionSafetyGate is the last line before execution: environment policy,
// the structural-staging-first invariant, and the rollback safety net.
type ExecutionSafetyGate struct{}

func NewExecutionSafetyGate() *ExecutionSafetyGate {
	return &ExecutionSafetyGate{}
}

func (g *ExecutionSafetyGate) Name() string {
	return "execution_safety"
}

func (g *ExecutionSafetyGate) Evaluate(_ context.Context, req *Request) (*Result, error) {
	a := req.Action
	if a.Source == action.SourceVoice && !req.Policy.VoiceAllowed() {
		return fail(g.Name(), "environment policy disallows voice-sourced actions"), nil
	}
	if safety.Enforced(safety.StructuralStagingFirst) &&
		a.Environment == action.EnvProduction && a.Authority == action.AuthorityStructural {
		return fail(g.Name(), "structural changes must land in staging before production"), nil
	}
	if a.RiskScore >= 0.5 && a.Rollback == nil && !a.Reversible {
		return fail(g.Name(), fmt.Sprintf("risk %.2f with no rollback plan and no reversibility", a.RiskScore)), nil
	}
	return pass(g.Name()), nil
}
