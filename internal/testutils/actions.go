package testutils

import (
	"context"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// ActionRecorder is a ports.ActionExecutor that records every step it receives.
type ActionRecorder struct {
	mu     sync.Mutex
	steps  []*domain.ActionStep
	errs   map[string]error
	blocks map[string]bool
	hook   func(*domain.ActionStep, *domain.ExecutionContext)
}

// NewActionRecorder creates a recorder where every action succeeds.
func NewActionRecorder() *ActionRecorder {
	return &ActionRecorder{errs: make(map[string]error), blocks: make(map[string]bool)}
}

// FailOn makes the step with id fail with err.
func (r *ActionRecorder) FailOn(id string, err error) *ActionRecorder {
	r.errs[id] = err
	return r
}

// BlockOn makes the step with id wait for its context to end.
func (r *ActionRecorder) BlockOn(id string) *ActionRecorder {
	r.blocks[id] = true
	return r
}

// Do runs fn for every action before it is recorded.
func (r *ActionRecorder) Do(fn func(*domain.ActionStep, *domain.ExecutionContext)) *ActionRecorder {
	r.hook = fn
	return r
}

// ExecuteAction records step.
func (r *ActionRecorder) ExecuteAction(ctx context.Context, step *domain.ActionStep, ec *domain.ExecutionContext) error {
	if r.blocks[step.ID] {
		<-ctx.Done()
		return ctx.Err()
	}
	if r.hook != nil {
		r.hook(step, ec)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, step)
	return r.errs[step.ID]
}

// IDs returns the ids of the recorded steps in order.
func (r *ActionRecorder) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.steps))
	for i, s := range r.steps {
		ids[i] = s.ID
	}
	return ids
}

// Steps returns the recorded steps.
func (r *ActionRecorder) Steps() []*domain.ActionStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.ActionStep(nil), r.steps...)
}
