package gates

import (
	"context"
	"fmt"

	"github.com/wardenlabs/warden/internal/action"
)

// RiskAssessmentGate blocks actions whose risk outweighs their safety
// margins. Destructive authority combined with elevated risk always needs a
// human, regardless of reversibility.
type RiskAssessmentGate struct{}

func NewRiskAssessmentGate() *RiskAssessmentGate {
	return &RiskAssessmentGate{}
}

func (g *RiskAssessmentGate) Name() string {
	return "risk_assessment"
}

func (g *RiskAssessmentGate) Evaluate(_ context.Context, req *Request) (*Result, error) {
	a := req.Action
	if a.RiskScore >= 0.8 && !a.Reversible {
		return fail(g.Name(), fmt.Sprintf("risk %.2f is irreversible and too high", a.RiskScore)), nil
	}
	if a.Authority == action.AuthorityDestructive && a.RiskScore >= 0.5 {
		return fail(g.Name(), fmt.Sprintf("destructive action with elevated risk %.2f requires human review", a.RiskScore)), nil
	}
	return pass(g.Name()), nil
}
