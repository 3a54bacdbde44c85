package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// ActionExecutor performs the browser interaction described by an action step.
// The engine forwards the step untouched.
type ActionExecutor interface {
	ExecuteAction(ctx context.Context, step *domain.ActionStep, ec *domain.ExecutionContext) error
}

// ActionFunc adapts a function to the ActionExecutor interface.
type ActionFunc func(ctx context.Context, step *domain.ActionStep, ec *domain.ExecutionContext) error

// ExecuteAction calls f.
func (f ActionFunc) ExecuteAction(ctx context.Context, step *domain.ActionStep, ec *domain.ExecutionContext) error {
	return f(ctx, step, ec)
}
