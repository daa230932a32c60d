package confidence

import (
	"math"
	"testing"
	"time"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClampToRange(t *testing.T) {
	tests := []struct {
		name   string
		source SourceType
		value  float64
		want   float64
	}{
		{"static below floor", SourceStaticAnalysis, 0.5, 0.90},
		{"static inside", SourceStaticAnalysis, 0.95, 0.95},
		{"llm above ceiling", SourceLLMInference, 0.95, 0.70},
		{"llm inside", SourceLLMInference, 0.55, 0.55},
		{"heuristic below floor", SourceHeuristicGuess, 0.05, 0.20},
		{"heuristic above ceiling", SourceHeuristicGuess, 0.9, 0.40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clampToRange(tt.source, tt.value)
			if !approxEqual(got, tt.want) {
				t.Errorf("clampToRange(%s, %v) = %v, want %v", tt.source, tt.value, got, tt.want)
			}
		})
	}
}

func TestScoreSingleEvidence(t *testing.T) {
	e := NewEngine(EngineConfig{})

	s := e.Score([]Evidence{
		{Type: "lint", Source: SourceStaticAnalysis, Weight: 0.95},
	}, "general")

	if !approxEqual(s.Adjusted, 0.95) {
		t.Errorf("Adjusted = %v, want 0.95", s.Adjusted)
	}
	if s.DominantSource != SourceStaticAnalysis {
		t.Errorf("DominantSource = %s, want static_analysis", s.DominantSource)
	}
	if s.RequiresVerification {
		t.Error("static analysis alone should not require verification")
	}
}

func TestScoreCategoryModifier(t *testing.T) {
	e := NewEngine(EngineConfig{})

	// security modifier 1.2 pushes 0.6 llm evidence to 0.72, clamped to
	// the llm ceiling 0.70.
	s := e.Score([]Evidence{
		{Type: "finding", Source: SourceLLMInference, Weight: 0.6},
	}, "security")
	if !approxEqual(s.Adjusted, 0.70) {
		t.Errorf("security Adjusted = %v, want 0.70", s.Adjusted)
	}

	// documentation modifier 0.8 pulls 0.6 down to 0.48, clamped up to
	// the llm floor 0.40... 0.48 is inside the range, so it stays.
	s = e.Score([]Evidence{
		{Type: "finding", Source: SourceLLMInference, Weight: 0.6},
	}, "documentation")
	if !approxEqual(s.Adjusted, 0.48) {
		t.Errorf("documentation Adjusted = %v, want 0.48", s.Adjusted)
	}
}

func TestScoreReliabilityWeighting(t *testing.T) {
	e := NewEngine(EngineConfig{})

	s := e.Score([]Evidence{
		{Type: "lint", Source: SourceStaticAnalysis, Weight: 0.95},   // rel 1.0
		{Type: "guess", Source: SourceHeuristicGuess, Weight: 0.30}, // rel 0.4
	}, "general")

	want := (0.95*1.0 + 0.30*0.4) / (1.0 + 0.4)
	if !approxEqual(s.Adjusted, want) {
		t.Errorf("Adjusted = %v, want %v", s.Adjusted, want)
	}
	if s.DominantSource != SourceStaticAnalysis {
		t.Errorf("DominantSource = %s, want static_analysis", s.DominantSource)
	}
}

func TestScoreUnverifiedSourcesForceVerification(t *testing.T) {
	e := NewEngine(EngineConfig{})

	for _, src := range []SourceType{SourceLLMInference, SourceHeuristicGuess} {
		for _, weight := range []float64{0.0, 0.3, 0.65, 1.0} {
			s := e.Score([]Evidence{{Type: "x", Source: src, Weight: weight}}, "general")
			if !s.RequiresVerification {
				t.Errorf("source %s weight %v: RequiresVerification = false, want true", src, weight)
			}
			if !s.HasFlag(FlagNeedsVerification) {
				t.Errorf("source %s weight %v: missing needs_verification flag", src, weight)
			}
		}
	}
}

func TestScoreFlags(t *testing.T) {
	e := NewEngine(EngineConfig{})

	s := e.Score(nil, "general")
	if !s.HasFlag(FlagLowConfidence) {
		t.Error("empty evidence should flag low_confidence")
	}

	// clamped spread: static 0.95 vs heuristic 0.30 = 0.65 > 0.4
	s = e.Score([]Evidence{
		{Type: "a", Source: SourceStaticAnalysis, Weight: 0.95},
		{Type: "b", Source: SourceHeuristicGuess, Weight: 0.30},
	}, "general")
	if !s.HasFlag(FlagHighUncertainty) {
		t.Error("wide evidence spread should flag high_uncertainty")
	}

	// single low evidence: below suggest threshold
	s = e.Score([]Evidence{
		{Type: "b", Source: SourceHeuristicGuess, Weight: 0.30},
	}, "general")
	if !s.HasFlag(FlagLowConfidence) {
		t.Error("score below suggest threshold should flag low_confidence")
	}
	if s.HasFlag(FlagHighUncertainty) {
		t.Error("single evidence item can never flag high_uncertainty")
	}
}

func TestScoreClaim(t *testing.T) {
	e := NewEngine(EngineConfig{})
	ev := []Evidence{{Type: "lint", Source: SourceStaticAnalysis, Weight: 0.92}}

	base := e.Score(ev, "general").Adjusted

	tests := []struct {
		name  string
		claim Claim
		want  float64
	}{
		{
			"falsifiable with steps",
			Claim{Evidence: ev, Methodology: "ran staticcheck over the package", Falsifiable: true, VerificationSteps: []string{"rerun staticcheck"}},
			base + 0.05,
		},
		{
			"falsifiable without steps",
			Claim{Evidence: ev, Methodology: "ran staticcheck over the package", Falsifiable: true},
			base,
		},
		{
			"thin methodology",
			Claim{Evidence: ev, Methodology: "vibes"},
			base - 0.1,
		},
		{
			"both adjustments",
			Claim{Evidence: ev, Methodology: "vibes", Falsifiable: true, VerificationSteps: []string{"check"}},
			base + 0.05 - 0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := e.ScoreClaim(&tt.claim, "general")
			if !approxEqual(s.Adjusted, tt.want) {
				t.Errorf("Adjusted = %v, want %v", s.Adjusted, tt.want)
			}
		})
	}
}

func TestScoreClaimClamped(t *testing.T) {
	e := NewEngine(EngineConfig{})

	c := &Claim{
		Evidence:          []Evidence{{Type: "lint", Source: SourceStaticAnalysis, Weight: 1.0}},
		Methodology:       "full static pass plus manual review",
		Falsifiable:       true,
		VerificationSteps: []string{"rerun"},
	}
	s := e.ScoreClaim(c, "general")
	if s.Adjusted > 1.0 {
		t.Errorf("Adjusted = %v, must not exceed 1.0", s.Adjusted)
	}
}

func TestDecay(t *testing.T) {
	e := NewEngine(EngineConfig{})

	s := &Score{Adjusted: 0.9}
	e.Decay(s, 24*time.Hour)
	want := 0.9 * math.Pow(0.98, 1)
	if !approxEqual(s.Adjusted, want) {
		t.Errorf("after 1 day: Adjusted = %v, want %v", s.Adjusted, want)
	}
	if s.HasFlag(FlagStaleData) {
		t.Error("1-day-old score must not be stale")
	}

	s = &Score{Adjusted: 0.9}
	e.Decay(s, 8*24*time.Hour)
	if !s.HasFlag(FlagStaleData) {
		t.Error("8-day-old score must be flagged stale")
	}

	s = &Score{Adjusted: 0.9}
	e.Decay(s, 0)
	if !approxEqual(s.Adjusted, 0.9) {
		t.Errorf("zero elapsed must not decay, got %v", s.Adjusted)
	}
}
