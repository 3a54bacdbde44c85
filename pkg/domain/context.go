package domain

import (
	"maps"
	"time"
)

// Branch records which way a decision went.
type Branch string

const (
	BranchThen Branch = "then"
	BranchElse Branch = "else"
	BranchLoop Branch = "loop"
)

// PathEntry is an append-only record of a branch or loop decision.
type PathEntry struct {
	StepID     string    `json:"step_id"`
	Branch     Branch    `json:"branch"`
	Timestamp  time.Time `json:"timestamp"`
	Expression string    `json:"expression,omitempty"`
	Iteration  int       `json:"iteration,omitempty"`
	Depth      int       `json:"depth"`
}

// ExecutionContext is the mutable state of a single run. It is owned by one
// executor and must not be shared across concurrent runs.
type ExecutionContext struct {
	Variables    map[string]any `json:"variables"`
	LoopStack    []*LoopContext `json:"loop_stack"`
	PathHistory  []PathEntry    `json:"path_history"`
	ErrorStack   []error        `json:"-"`
	CurrentDepth int            `json:"current_depth"`
}

// NewExecutionContext creates a context seeded with a copy of vars.
func NewExecutionContext(vars map[string]any) *ExecutionContext {
	v := maps.Clone(vars)
	if v == nil {
		v = make(map[string]any)
	}
	return &ExecutionContext{Variables: v}
}

// CurrentLoop returns the innermost open loop frame, or nil.
func (ec *ExecutionContext) CurrentLoop() *LoopContext {
	if len(ec.LoopStack) == 0 {
		return nil
	}
	return ec.LoopStack[len(ec.LoopStack)-1]
}

// RecordPath appends a decision to the path history at the current depth.
func (ec *ExecutionContext) RecordPath(entry PathEntry) {
	entry.Depth = ec.CurrentDepth
	ec.PathHistory = append(ec.PathHistory, entry)
}

// RecordError appends err to the error stack.
func (ec *ExecutionContext) RecordError(err error) {
	if err != nil {
		ec.ErrorStack = append(ec.ErrorStack, err)
	}
}

// Descend increments the nesting depth and returns a func restoring the parent depth.
//
//	defer ec.Descend()()
func (ec *ExecutionContext) Descend() func() {
	parent := ec.CurrentDepth
	ec.CurrentDepth = parent + 1
	return func() { ec.CurrentDepth = parent }
}
