package gates

import (
	"context"

	"go.uber.org/zap"
)

// PipelineResult is the outcome of one full pipeline evaluation. All gate
// results are recorded for audit completeness; BlockedBy names the first
// failing gate in pipeline order.
type PipelineResult struct {
	Passed    bool      `json:"passed"`
	BlockedBy string    `json:"blocked_by,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Results   []*Result `json:"results"`
}

// Pipeline runs gates strictly in order, awaiting each before the next.
type Pipeline struct {
	gates  []Gate
	logger *zap.Logger
}

// NewPipeline creates a pipeline over the given gates. Order matters: the
// first failing gate becomes the blocking reason.
func NewPipeline(gates []Gate, logger *zap.Logger) *Pipeline {
	return &Pipeline{gates: gates, logger: logger}
}

// DefaultGates returns the five authority gates in their canonical order:
// source verification, intent validation, risk assessment, approval,
// execution safety.
func DefaultGates() []Gate {
	return []Gate{
		NewSourceVerificationGate(),
		NewIntentValidationGate(),
		NewRiskAssessmentGate(),
		NewApprovalGate(),
		NewExecutionSafetyGate(),
	}
}

// Evaluate runs every gate in order and collects all results. The pipeline
// never stops early: later gate results are still recorded for the audit
// trail, but the reported block is always the first failure. A gate error
// fails closed.
func (p *Pipeline) Evaluate(ctx context.Context, req *Request) *PipelineResult {
	out := &PipelineResult{Passed: true}

	for _, g := range p.gates {
		result, err := g.Evaluate(ctx, req)
		if err != nil {
			p.logger.Warn("gate error, failing closed",
				zap.String("gate", g.Name()),
				zap.String("action_id", req.Action.ID),
				zap.Error(err),
			)
			result = fail(g.Name(), "gate error: "+err.Error())
		}
		out.Results = append(out.Results, result)

		if !result.Passed && out.Passed {
			out.Passed = false
			out.BlockedBy = result.Gate
			out.Reason = result.Reason
		}
	}
	return out
}
