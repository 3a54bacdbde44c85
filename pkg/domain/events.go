package domain

import (
	"context"
	"time"
)

// StepEvent describes a step entering or leaving the executor.
// Result is set only on completion.
type StepEvent struct {
	Timestamp time.Time   `json:"timestamp"`
	StepID    string      `json:"step_id"`
	Kind      StepKind    `json:"kind"`
	Depth     int         `json:"depth"`
	Result    *StepResult `json:"result,omitempty"`
}

// ExecutionHooks defines callbacks for executor observability. Hooks run
// synchronously on the executor goroutine.
type ExecutionHooks struct {
	OnStepStart    func(context.Context, *StepEvent)
	OnStepComplete func(context.Context, *StepEvent)
	OnVariable     func(context.Context, *VariableChangeEvent)
}

// MergeHooks returns hooks calling every non-nil callback of hs in order.
func MergeHooks(hs ...ExecutionHooks) ExecutionHooks {
	var merged ExecutionHooks
	for _, h := range hs {
		if h.OnStepStart != nil {
			prev := merged.OnStepStart
			merged.OnStepStart = func(ctx context.Context, e *StepEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnStepStart(ctx, e)
			}
		}
		if h.OnStepComplete != nil {
			prev := merged.OnStepComplete
			merged.OnStepComplete = func(ctx context.Context, e *StepEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnStepComplete(ctx, e)
			}
		}
		if h.OnVariable != nil {
			prev := merged.OnVariable
			merged.OnVariable = func(ctx context.Context, e *VariableChangeEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnVariable(ctx, e)
			}
		}
	}
	return merged
}
