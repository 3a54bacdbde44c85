// Package registry dispatches action steps to named handlers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/tendril/internal/variables"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// ErrUnknownAction is returned when no handler is registered for an action.
var ErrUnknownAction = errors.New("unknown action")

// Request is an action step with its ${name} references resolved.
type Request struct {
	StepID string
	Action string
	Target string
	Value  string
	Params map[string]any
	// Variables is a copy of the run variables at dispatch time.
	Variables map[string]any
}

// Handler performs one kind of action.
type Handler func(ctx context.Context, req Request) error

// Registry implements ports.ActionExecutor by looking up a handler per action name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback ports.ActionExecutor
}

var _ ports.ActionExecutor = (*Registry)(nil)

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler. An existing handler with the same name is replaced.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Fallback receives actions that have no handler, uninterpolated.
func (r *Registry) Fallback(a ports.ActionExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = a
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.handlers))
}

// ExecuteAction resolves the step and runs its handler.
func (r *Registry) ExecuteAction(ctx context.Context, step *domain.ActionStep, ec *domain.ExecutionContext) error {
	r.mu.RLock()
	h, ok := r.handlers[step.Action]
	fallback := r.fallback
	r.mu.RUnlock()

	if !ok {
		if fallback != nil {
			return fallback.ExecuteAction(ctx, step, ec)
		}
		return fmt.Errorf("%w: %s", ErrUnknownAction, step.Action)
	}
	return h(ctx, Resolve(step, ec))
}

// Resolve interpolates ${name} references in the target, the value and every
// string parameter of step.
func Resolve(step *domain.ActionStep, ec *domain.ExecutionContext) Request {
	var vars map[string]any
	if ec != nil {
		vars = maps.Clone(ec.Variables)
	}
	req := Request{
		StepID:    step.ID,
		Action:    step.Action,
		Target:    variables.Replace(step.Target, vars),
		Value:     variables.Replace(step.Value, vars),
		Variables: vars,
	}
	if step.Params != nil {
		req.Params = make(map[string]any, len(step.Params))
		for k, v := range step.Params {
			if s, ok := v.(string); ok {
				v = variables.Resolve(s, vars)
			}
			req.Params[k] = v
		}
	}
	return req
}
