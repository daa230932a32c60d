// Package safety holds the hard safety invariants of the governance core.
// Invariants are frozen at process start and can be queried but never
// disabled at runtime.
package safety

// Invariant identifies a single non-negotiable safety rule.
type Invariant string

const (
	// AlwaysAllowCancel: cancellation of a pending or approved action must
	// always succeed, regardless of any other policy.
	AlwaysAllowCancel Invariant = "always_allow_cancel"

	// NoAuditModification: audit entries are append-only; nothing in this
	// process may update or delete one after it is written.
	NoAuditModification Invariant = "no_audit_modification"

	// DestructiveRequiresApproval: an action with destructive authority
	// always requires explicit approval before execution.
	DestructiveRequiresApproval Invariant = "destructive_requires_approval"

	// StructuralStagingFirst: structural changes never land directly in
	// production; they are blocked by the execution safety gate.
	StructuralStagingFirst Invariant = "structural_staging_first"
)

// enforced is the frozen invariant set. Package-level and unexported so no
// caller can reach in and flip an entry.
var enforced = map[Invariant]bool{
	AlwaysAllowCancel:           true,
	NoAuditModification:         true,
	DestructiveRequiresApproval: true,
	StructuralStagingFirst:      true,
}

// Enforced reports whether the given invariant is active. Unknown invariants
// report false. This is a pure read; there is no corresponding setter.
func Enforced(inv Invariant) bool {
	return enforced[inv]
}

// All returns the active invariants in a fresh slice.
func All() []Invariant {
	out := make([]Invariant, 0, len(enforced))
	for inv, on := range enforced {
		if on {
			out = append(out, inv)
		}
	}
	return out
}
