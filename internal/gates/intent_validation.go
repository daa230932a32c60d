package gates

import (
	"context"
	"fmt"
)

// minIntentConfidence is the confidence floor below which an intent is too
// uncertain to act on.
const minIntentConfidence = 0.6

// IntentValidationGate checks that the action carries a usable intent with
// sufficient extraction confidence.
type IntentValidationGate struct{}

func NewIntentValidationGate() *IntentValidationGate {
	return &IntentValidationGate{}
}

func (g *IntentValidationGate) Name() string {
	return "intent_validation"
}

func (g *IntentValidationGate) Evaluate(_ context.Context, req *Request) (*Result, error) {
	a := req.Action
	if a.Intent == "" {
		return fail(g.Name(), "intent text is empty"), nil
	}
	if a.Confidence < minIntentConfidence {
		return fail(g.Name(), fmt.Sprintf("intent confidence %.2f below %.2f", a.Confidence, minIntentConfidence)), nil
	}
	return pass(g.Name()), nil
}
