package confidence

import (
	"math"
	"time"
)

// Flag annotates a score with a qualitative condition.
type Flag string

const (
	FlagLowConfidence     Flag = "low_confidence"
	FlagNeedsVerification Flag = "needs_verification"
	FlagHighUncertainty   Flag = "high_uncertainty"
	FlagStaleData         Flag = "stale_data"
)

// Evidence is a typed, weighted observation supplied by a collaborator.
type Evidence struct {
	Type   string
	Source SourceType
	Data   map[string]any
	Weight float64
}

// Claim is a statement backed by evidence, with methodology metadata that
// modulates its score.
type Claim struct {
	Statement         string
	Confidence        float64
	Evidence          []Evidence
	Methodology       string
	Falsifiable       bool
	VerificationSteps []string
}

// Factor records one evidence item's contribution to a score.
type Factor struct {
	Name   string
	Value  float64
	Weight float64
}

// Score is a derived confidence value. Never stored long-term; recomputed
// or decayed on read.
type Score struct {
	Raw                  float64
	Adjusted             float64
	DominantSource       SourceType
	Factors              []Factor
	RequiresVerification bool
	Flags                []Flag
	ComputedAt           time.Time
}

// HasFlag reports whether the score carries the given flag.
func (s *Score) HasFlag(f Flag) bool {
	for _, have := range s.Flags {
		if have == f {
			return true
		}
	}
	return false
}

func (s *Score) addFlag(f Flag) {
	if !s.HasFlag(f) {
		s.Flags = append(s.Flags, f)
	}
}

// Thresholds hold the confidence cut-offs for downstream behavior. These
// are defaults, not invariants.
type Thresholds struct {
	AutoApply float64 // act without asking
	Suggest   float64 // worth surfacing as a suggestion
	Show      float64 // minimally displayable
}

// DefaultThresholds returns the standard cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{AutoApply: 0.80, Suggest: 0.50, Show: 0.30}
}

// uncertaintySpread is the clamped-weight spread beyond which a score is
// flagged as high uncertainty.
const uncertaintySpread = 0.4

// Engine scores evidence sets and claims. Category modifiers scale base
// confidence before source-range clamping.
type Engine struct {
	modifiers  map[string]float64
	thresholds Thresholds
	decayRate  float64 // per day
}

// EngineConfig configures an Engine; zero values fall back to defaults.
type EngineConfig struct {
	CategoryModifiers map[string]float64
	Thresholds        *Thresholds
	DecayRate         float64
}

// DefaultCategoryModifiers amplifies scrutiny for security findings and
// damps documentation-staleness findings.
func DefaultCategoryModifiers() map[string]float64 {
	return map[string]float64{
		"security":      1.2,
		"documentation": 0.8,
	}
}

// NewEngine creates a scoring engine.
func NewEngine(cfg EngineConfig) *Engine {
	mods := cfg.CategoryModifiers
	if mods == nil {
		mods = DefaultCategoryModifiers()
	}
	th := DefaultThresholds()
	if cfg.Thresholds != nil {
		th = *cfg.Thresholds
	}
	rate := cfg.DecayRate
	if rate == 0 {
		rate = 0.02
	}
	return &Engine{modifiers: mods, thresholds: th, decayRate: rate}
}

// Thresholds returns the engine's configured cut-offs.
func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Score computes a confidence score for an evidence set in the given
// category. Each evidence weight is scaled by the category modifier, clamped
// into its source's range, then averaged weighted by source reliability.
// Any llm_inference or heuristic_guess evidence forces verification,
// unconditionally.
func (e *Engine) Score(evidence []Evidence, category string) *Score {
	now := time.Now().UTC()
	s := &Score{ComputedAt: now}
	if len(evidence) == 0 {
		s.addFlag(FlagLowConfidence)
		return s
	}

	modifier := 1.0
	if m, ok := e.modifiers[category]; ok {
		modifier = m
	}

	var weightedSum, reliabilitySum float64
	minClamped, maxClamped := math.Inf(1), math.Inf(-1)
	var dominantMass float64

	for _, ev := range evidence {
		clamped := clampToRange(ev.Source, ev.Weight*modifier)
		rel := Reliability(ev.Source)

		weightedSum += clamped * rel
		reliabilitySum += rel

		if clamped < minClamped {
			minClamped = clamped
		}
		if clamped > maxClamped {
			maxClamped = clamped
		}
		if mass := clamped * rel; mass > dominantMass {
			dominantMass = mass
			s.DominantSource = ev.Source
		}

		s.Factors = append(s.Factors, Factor{
			Name:   string(ev.Source) + ":" + ev.Type,
			Value:  clamped,
			Weight: rel,
		})

		if unverifiedSource(ev.Source) {
			s.RequiresVerification = true
		}
	}

	if reliabilitySum > 0 {
		s.Raw = weightedSum / reliabilitySum
	}
	s.Adjusted = s.Raw

	if s.RequiresVerification {
		s.addFlag(FlagNeedsVerification)
	}
	if s.Adjusted < e.thresholds.Suggest {
		s.addFlag(FlagLowConfidence)
	}
	if len(evidence) >= 2 && maxClamped-minClamped > uncertaintySpread {
		s.addFlag(FlagHighUncertainty)
	}
	return s
}

// ScoreClaim scores a claim's evidence, then applies the claim-level
// adjustments: +0.05 when falsifiable with nonempty verification steps,
// -0.1 when the methodology text is under 10 characters.
func (e *Engine) ScoreClaim(c *Claim, category string) *Score {
	s := e.Score(c.Evidence, category)
	adjusted := s.Adjusted
	if c.Falsifiable && len(c.VerificationSteps) > 0 {
		adjusted += 0.05
	}
	if len(c.Methodology) < 10 {
		adjusted -= 0.1
	}
	s.Adjusted = clamp01(adjusted)
	return s
}

// Decay applies time decay to a score: adjusted *= (1-rate)^daysElapsed.
// Past seven days the score is flagged stale; the flag is informational and
// never blocks anything on its own.
func (e *Engine) Decay(s *Score, elapsed time.Duration) *Score {
	days := elapsed.Hours() / 24
	if days <= 0 {
		return s
	}
	s.Adjusted *= math.Pow(1-e.decayRate, days)
	if days > 7 {
		s.addFlag(FlagStaleData)
	}
	if s.Adjusted < e.thresholds.Suggest {
		s.addFlag(FlagLowConfidence)
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
