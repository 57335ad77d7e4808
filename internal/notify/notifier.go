package notify

import (
	"context"

	"github.com/pvoronin/claimroute/internal/model"
)

// Hook receives the refresh signal raised after a successful commit.
// Invoked exactly once per committed assignment, never on failure.
// Implementations must not assume the commit can be rolled back: by the
// time the hook fires, the assignment is durable.
type Hook interface {
	AssignmentCommitted(ctx context.Context, rec model.AssignmentRecord) error
}

// HookFunc adapts a function to the Hook interface
type HookFunc func(ctx context.Context, rec model.AssignmentRecord) error

// AssignmentCommitted calls the wrapped function
func (f HookFunc) AssignmentCommitted(ctx context.Context, rec model.AssignmentRecord) error {
	return f(ctx, rec)
}

// Nop is a hook that does nothing, for callers with no queue view to
// refresh.
func Nop() Hook {
	return HookFunc(func(context.Context, model.AssignmentRecord) error { return nil })
}
