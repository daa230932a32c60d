// Package trust maintains per-user adaptive confidence thresholds. The more
// a user accepts suggestions, the more autonomy the system grants; any
// disagreement makes it more conservative.
package trust

import "time"

// Level buckets a user's calibration maturity.
type Level string

const (
	LevelNew        Level = "new"
	LevelLearning   Level = "learning"
	LevelCalibrated Level = "calibrated"
)

// Interaction is a user's response to a surfaced suggestion.
type Interaction string

const (
	InteractionAccepted  Interaction = "accepted"
	InteractionDismissed Interaction = "dismissed"
	InteractionDisagreed Interaction = "disagreed"
)

// Threshold bounds. Calibration never moves thresholds past these.
const (
	autoFloor    = 0.80
	autoCeil     = 0.95
	suggestFloor = 0.60
	suggestCeil  = 0.85

	// adjustmentBound caps per-category confidence adjustments either way.
	adjustmentBound = 0.3

	// adjustmentEpsilon is the magnitude below which a decayed adjustment
	// is dropped entirely.
	adjustmentEpsilon = 0.01
)

// Profile is one user's adaptive trust state. Created lazily with defaults,
// mutated only through recalibration, never deleted (only reset).
type Profile struct {
	UserID string `json:"user_id"`
	Level  Level  `json:"trust_level"`

	AutoThreshold    float64 `json:"auto_threshold"`
	SuggestThreshold float64 `json:"suggest_threshold"`
	ShowThreshold    float64 `json:"show_threshold"`

	// Adjustments are per-category deltas added to future base confidence,
	// bounded and decayed over time.
	Adjustments map[string]float64 `json:"adjustments,omitempty"`

	Shown     int `json:"shown"`
	Accepted  int `json:"accepted"`
	Dismissed int `json:"dismissed"`
	Disagreed int `json:"disagreed"`

	AutoApplyEnabled    bool     `json:"auto_apply_enabled"`
	AutoApplyCategories []string `json:"auto_apply_categories,omitempty"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProfile returns the default profile for a user: new trust level, the
// standard thresholds, zero counters.
func NewProfile(userID string) *Profile {
	return &Profile{
		UserID:           userID,
		Level:            LevelNew,
		AutoThreshold:    0.90,
		SuggestThreshold: 0.70,
		ShowThreshold:    0.40,
		Adjustments:      make(map[string]float64),
		UpdatedAt:        time.Now().UTC(),
	}
}

// Reset returns the profile to defaults in place, keeping only the user id.
func (p *Profile) Reset() {
	fresh := NewProfile(p.UserID)
	fresh.Version = p.Version
	*p = *fresh
}

// Interactions is the total count of responded-to suggestions.
func (p *Profile) Interactions() int {
	return p.Accepted + p.Dismissed + p.Disagreed
}

// AcceptanceRate is accepted over total interactions, 0 when empty.
func (p *Profile) AcceptanceRate() float64 {
	total := p.Interactions()
	if total == 0 {
		return 0
	}
	return float64(p.Accepted) / float64(total)
}

// Adjustment returns the bounded confidence delta for a category.
func (p *Profile) Adjustment(category string) float64 {
	return p.Adjustments[category]
}

// RecordInteraction applies one suggestion interaction: counter bump,
// category adjustment on disagreement, conservative threshold raise while
// learning, then trust level recomputation. The disagree-raise and the
// calibrate-lower are independent and may both fire on the same event.
func (p *Profile) RecordInteraction(kind Interaction, category string) {
	switch kind {
	case InteractionAccepted:
		p.Accepted++
	case InteractionDismissed:
		p.Dismissed++
	case InteractionDisagreed:
		p.Disagreed++
		p.nudgeAdjustment(category, -0.05)
		if p.Level == LevelLearning {
			p.AutoThreshold = min(p.AutoThreshold+0.02, autoCeil)
			p.SuggestThreshold = min(p.SuggestThreshold+0.02, suggestCeil)
		}
	}
	p.recalibrate()
	p.UpdatedAt = time.Now().UTC()
}

// RecordShown bumps the shown counter without recalibrating; showing a
// suggestion is not yet an interaction.
func (p *Profile) RecordShown() {
	p.Shown++
	p.UpdatedAt = time.Now().UTC()
}

// DismissCategory suppresses a whole category for this user by forcing its
// adjustment to the negative bound.
func (p *Profile) DismissCategory(category string) {
	if p.Adjustments == nil {
		p.Adjustments = make(map[string]float64)
	}
	p.Adjustments[category] = -adjustmentBound
	p.UpdatedAt = time.Now().UTC()
}

// DecayAdjustments pulls every nonzero category adjustment 0.01 toward
// zero, dropping entries once their magnitude falls below the epsilon.
func (p *Profile) DecayAdjustments() {
	for category, adj := range p.Adjustments {
		switch {
		case adj > 0:
			adj -= adjustmentEpsilon
		case adj < 0:
			adj += adjustmentEpsilon
		}
		if adj > -adjustmentEpsilon && adj < adjustmentEpsilon {
			delete(p.Adjustments, category)
			continue
		}
		p.Adjustments[category] = adj
	}
	p.UpdatedAt = time.Now().UTC()
}

func (p *Profile) nudgeAdjustment(category string, delta float64) {
	if category == "" {
		return
	}
	if p.Adjustments == nil {
		p.Adjustments = make(map[string]float64)
	}
	adj := p.Adjustments[category] + delta
	if adj > adjustmentBound {
		adj = adjustmentBound
	}
	if adj < -adjustmentBound {
		adj = -adjustmentBound
	}
	p.Adjustments[category] = adj
}

// recalibrate recomputes the trust level from the counters. Crossing into
// calibrated lowers the auto and suggest thresholds once, floored; levels
// never regress below learning once earned.
func (p *Profile) recalibrate() {
	total := p.Interactions()
	switch {
	case total >= 20 && p.AcceptanceRate() >= 0.70:
		if p.Level != LevelCalibrated {
			p.Level = LevelCalibrated
			p.AutoThreshold = max(p.AutoThreshold-0.02, autoFloor)
			p.SuggestThreshold = max(p.SuggestThreshold-0.02, suggestFloor)
		}
	case total >= 5:
		if p.Level == LevelNew {
			p.Level = LevelLearning
		}
	}
}
