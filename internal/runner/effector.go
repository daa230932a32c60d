package runner

import (
	"context"
	"fmt"

	"github.com/wardenlabs/warden/internal/action"
)

// Effector performs the side effect a step describes. The runner knows
// nothing about effector internals; it hands over type, target, and payload
// and gets back a result or an error. Retry policy is passed through on the
// step, never interpreted here.
type Effector interface {
	Execute(ctx context.Context, step action.Step) (any, error)
}

// EffectorRegistry maps step types to effectors. Constructed explicitly and
// injected into the runner; there is no process-wide registry.
type EffectorRegistry struct {
	byType map[action.StepType]Effector
}

// NewEffectorRegistry creates an empty registry.
func NewEffectorRegistry() *EffectorRegistry {
	return &EffectorRegistry{byType: make(map[action.StepType]Effector)}
}

// Register binds an effector to a step type, replacing any previous one.
func (r *EffectorRegistry) Register(t action.StepType, e Effector) {
	r.byType[t] = e
}

// Lookup returns the effector for a step type.
func (r *EffectorRegistry) Lookup(t action.StepType) (Effector, error) {
	e, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("no effector registered for step type %q", t)
	}
	return e, nil
}

// EffectorFunc adapts a function to the Effector interface.
type EffectorFunc func(ctx context.Context, step action.Step) (any, error)

func (f EffectorFunc) Execute(ctx context.Context, step action.Step) (any, error) {
	return f(ctx, step)
}
