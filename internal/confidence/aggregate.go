package confidence

import (
	"math"
	"time"
)

// Strategy selects how multiple scores combine into one.
type Strategy string

const (
	// StrategyMean is the arithmetic mean of adjusted scores.
	StrategyMean Strategy = "mean"
	// StrategyMinimum takes the lowest adjusted score: most conservative.
	StrategyMinimum Strategy = "minimum"
	// StrategyWeighted weights each score by its dominant source's
	// reliability.
	StrategyWeighted Strategy = "weighted"
	// StrategyBayesian takes the geometric mean of the adjusted scores.
	StrategyBayesian Strategy = "bayesian"
)

// Aggregate combines scores under the chosen strategy. RequiresVerification
// propagates as a logical OR and flags are unioned, so a verification demand
// or a warning from any input survives aggregation.
func Aggregate(scores []*Score, strategy Strategy) *Score {
	out := &Score{ComputedAt: time.Now().UTC()}
	if len(scores) == 0 {
		out.addFlag(FlagLowConfidence)
		return out
	}

	switch strategy {
	case StrategyMinimum:
		out.Adjusted = math.Inf(1)
		for _, s := range scores {
			if s.Adjusted < out.Adjusted {
				out.Adjusted = s.Adjusted
				out.DominantSource = s.DominantSource
			}
		}
	case StrategyWeighted:
		var sum, weightSum float64
		var dominantMass float64
		for _, s := range scores {
			w := Reliability(s.DominantSource)
			if w == 0 {
				w = 0.5
			}
			sum += s.Adjusted * w
			weightSum += w
			if mass := s.Adjusted * w; mass > dominantMass {
				dominantMass = mass
				out.DominantSource = s.DominantSource
			}
		}
		out.Adjusted = sum / weightSum
	case StrategyBayesian:
		product := 1.0
		for _, s := range scores {
			product *= s.Adjusted
		}
		out.Adjusted = math.Pow(product, 1/float64(len(scores)))
		out.DominantSource = scores[0].DominantSource
	default: // StrategyMean
		var sum float64
		for _, s := range scores {
			sum += s.Adjusted
		}
		out.Adjusted = sum / float64(len(scores))
		out.DominantSource = scores[0].DominantSource
	}

	out.Raw = out.Adjusted
	for _, s := range scores {
		if s.RequiresVerification {
			out.RequiresVerification = true
		}
		for _, f := range s.Flags {
			out.addFlag(f)
		}
		out.Factors = append(out.Factors, s.Factors...)
	}
	if out.RequiresVerification {
		out.addFlag(FlagNeedsVerification)
	}
	return out
}
