package gates

import "context"

// SourceVerificationGate refuses any action without an authenticated actor
// attached.
type SourceVerificationGate struct{}

func NewSourceVerificationGate() *SourceVerificationGate {
	return &SourceVerificationGate{}
}

func (g *SourceVerificationGate) Name() string {
	return "source_verification"
}

func (g *SourceVerificationGate) Evaluate(_ context.Context, req *Request) (*Result, error) {
	if req.Actor == nil || req.Actor.UserID == "" {
		return fail(g.Name(), "no authenticated actor attached"), nil
	}
	return pass(g.Name()), nil
}
