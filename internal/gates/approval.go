package gates

import "context"

// ApprovalGate verifies that an action requiring approval has actually been
// approved.
type ApprovalGate struct{}

func NewApprovalGate() *ApprovalGate {
	return &ApprovalGate{}
}

func (g *ApprovalGate) Name() string {
	return "approval"
}

func (g *ApprovalGate) Evaluate(_ context.Context, req *Request) (*Result, error) {
	a := req.Action
	if a.RequiresApproval && a.ApprovedAt == nil {
		return fail(g.Name(), "approval required but not granted"), nil
	}
	return pass(g.Name()), nil
}
