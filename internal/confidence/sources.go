// Package confidence computes and aggregates confidence scores from
// heterogeneous evidence sources. Pure computation, no side effects.
package confidence

// SourceType identifies an epistemic tier of evidence.
type SourceType string

const (
	SourceStaticAnalysis SourceType = "static_analysis"
	SourceRuntimeData    SourceType = "runtime_data"
	SourcePatternMatch   SourceType = "pattern_match"
	SourceHistorical     SourceType = "historical"
	SourceLLMInference   SourceType = "llm_inference"
	SourceHeuristicGuess SourceType = "heuristic_guess"
	SourceUserFeedback   SourceType = "user_feedback"
)

// sourceRange bounds the confidence an evidence source may claim.
type sourceRange struct {
	Min, Max, Typical float64
}

var sourceRanges = map[SourceType]sourceRange{
	SourceStaticAnalysis: {0.90, 1.00, 0.95},
	SourceRuntimeData:    {0.85, 0.98, 0.92},
	SourcePatternMatch:   {0.70, 0.90, 0.80},
	SourceHistorical:     {0.65, 0.85, 0.75},
	SourceLLMInference:   {0.40, 0.70, 0.55},
	SourceHeuristicGuess: {0.20, 0.40, 0.30},
	SourceUserFeedback:   {0.80, 1.00, 0.90},
}

// sourceReliability weights each tier's contribution to an aggregate score.
var sourceReliability = map[SourceType]float64{
	SourceStaticAnalysis: 1.0,
	SourceRuntimeData:    0.95,
	SourceUserFeedback:   0.9,
	SourcePatternMatch:   0.8,
	SourceHistorical:     0.75,
	SourceLLMInference:   0.6,
	SourceHeuristicGuess: 0.4,
}

// Known reports whether the source type is a recognized tier.
func Known(s SourceType) bool {
	_, ok := sourceRanges[s]
	return ok
}

// Reliability returns the reliability weight for a source, 0 if unknown.
func Reliability(s SourceType) float64 {
	return sourceReliability[s]
}

// clampToRange forces a value into the source's closed range. Unknown
// sources clamp to [0,1].
func clampToRange(s SourceType, v float64) float64 {
	r, ok := sourceRanges[s]
	if !ok {
		r = sourceRange{Min: 0, Max: 1}
	}
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// unverifiedSource reports whether evidence from this tier always demands
// human verification regardless of its numeric weight.
func unverifiedSource(s SourceType) bool {
	return s == SourceLLMInference || s == SourceHeuristicGuess
}
