package domain

import "time"

// LoopType selects the iteration strategy of a loop.
type LoopType string

const (
	LoopCount   LoopType = "count"
	LoopWhile   LoopType = "while"
	LoopForEach LoopType = "forEach"
)

// LoopConfig describes a loop. Count applies to count loops, Condition (or its
// textual form ConditionText) to while loops, and Collection/ItemVariable to
// forEach loops. Zero MaxIterations and Timeout mean the manager defaults.
type LoopConfig struct {
	Type          LoopType      `json:"type"`
	Count         int           `json:"count,omitempty"`
	Condition     Expression    `json:"condition,omitempty"`
	ConditionText string        `json:"condition_text,omitempty"`
	Collection    string        `json:"collection,omitempty"`
	ItemVariable  string        `json:"item_variable,omitempty"`
	MaxIterations int           `json:"max_iterations,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
}

// LoopContext is the frame of an open loop on the ExecutionContext loop stack.
type LoopContext struct {
	LoopID        string        `json:"loop_id"`
	Type          LoopType      `json:"type"`
	Iteration     int           `json:"iteration"`
	MaxIterations int           `json:"max_iterations"`
	StartTime     time.Time     `json:"start_time"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	Collection    []any         `json:"collection,omitempty"`
	CurrentItem   any           `json:"current_item,omitempty"`
}

// LoopReason explains why a loop stopped.
type LoopReason string

const (
	ReasonMaxIterations  LoopReason = "max_iterations"
	ReasonConditionFalse LoopReason = "condition_false"
	ReasonCollectionEnd  LoopReason = "collection_end"
	ReasonTimeout        LoopReason = "timeout"
	ReasonCanceled       LoopReason = "canceled"
	ReasonError          LoopReason = "error"
)

// LoopResult is the outcome of a loop execution.
type LoopResult struct {
	Completed  bool          `json:"completed"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration"`
	Reason     LoopReason    `json:"reason"`
	Error      string        `json:"error,omitempty"`
}
