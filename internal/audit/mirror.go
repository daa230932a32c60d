package audit

import "time"

// DecisionEvent is the analytics projection of one governance decision,
// mirrored to ClickHouse. The authoritative record is the checksummed audit
// entry; this mirror is best-effort and may drop events under pressure.
type DecisionEvent struct {
	ActionID    string
	UserID      string
	SessionID   string
	Timestamp   time.Time
	Source      string
	Environment string
	Authority   string
	Scope       string
	RiskScore   float64
	Confidence  float64
	Outcome     string // "completed", "failed", "rolled_back", "blocked", "cancelled"
	BlockedBy   string // blocking gate name, empty unless blocked
	GateNames   []string
	GatePassed  []bool
	GateReasons []string
	StepsTotal  int32
	StepsDone   int32
	LatencyMs   float32
}

// MirrorWriter mirrors decision events to an analytics sink.
// Write must never block the caller.
type MirrorWriter interface {
	Write(event *DecisionEvent)
	Close()
}

// NopMirror discards every event. Used when no analytics sink is configured
// and the structured log already captures decisions.
type NopMirror struct{}

func (NopMirror) Write(*DecisionEvent) {}
func (NopMirror) Close()               {}
