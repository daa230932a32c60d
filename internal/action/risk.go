package action

// Deterministic risk scoring. The score is a sum of fixed weights for
// authority, scope, and environment, plus penalties for voice sourcing and
// irreversibility, clamped to [0,1].

var authorityRisk = map[AuthorityLevel]float64{
	AuthorityRead:        0,
	AuthorityWrite:       0.2,
	AuthorityStructural:  0.5,
	AuthorityDestructive: 0.9,
}

var scopeRisk = map[Scope]float64{
	ScopeCode:   0.10,
	ScopeTasks:  0.15,
	ScopeConfig: 0.20,
	ScopeDB:     0.30,
	ScopeDeploy: 0.40,
	ScopeSystem: 0.60,
}

var environmentRisk = map[Environment]float64{
	EnvDevelopment: 0,
	EnvStaging:     0.1,
	EnvProduction:  0.3,
}

const (
	voicePenalty        = 0.1
	irreversiblePenalty = 0.3
)

// ComputeRisk returns the deterministic risk score for the given action
// attributes.
func ComputeRisk(authority AuthorityLevel, scope Scope, env Environment, source Source, reversible bool) float64 {
	score := authorityRisk[authority] + scopeRisk[scope] + environmentRisk[env]
	if source == SourceVoice {
		score += voicePenalty
	}
	if !reversible {
		score += irreversiblePenalty
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// NeedsApproval derives the approval requirement from authority, source,
// environment, and risk. Destructive authority always requires approval.
func NeedsApproval(authority AuthorityLevel, source Source, env Environment, risk float64) bool {
	if authority == AuthorityDestructive {
		return true
	}
	if authority == AuthorityStructural && env == EnvProduction {
		return true
	}
	if source == SourceVoice && authority == AuthorityStructural {
		return true
	}
	return risk >= 0.7
}
