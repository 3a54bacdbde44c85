package domain

import "time"

// EvaluationResult is the outcome of evaluating a condition. When Success is
// false, Value holds the configured fallback and Error describes the failure.
type EvaluationResult struct {
	Success  bool          `json:"success"`
	Value    bool          `json:"value"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// StepResult is the outcome of executing one step.
type StepResult struct {
	StepID   string        `json:"step_id"`
	Kind     StepKind      `json:"kind"`
	Success  bool          `json:"success"`
	Skipped  bool          `json:"skipped,omitempty"`
	Branch   Branch        `json:"branch,omitempty"`
	Loop     *LoopResult   `json:"loop,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ExecutionStats summarises a path history.
type ExecutionStats struct {
	TotalEntries   int `json:"total_entries"`
	Branches       int `json:"branches"`
	ThenBranches   int `json:"then_branches"`
	ElseBranches   int `json:"else_branches"`
	LoopIterations int `json:"loop_iterations"`
	MaxDepth       int `json:"max_depth"`
}

// RunStatus is the final status of a run.
type RunStatus string

const (
	RunPassed  RunStatus = "passed"
	RunFailed  RunStatus = "failed"
	RunStopped RunStatus = "stopped"
)

// RunReport is the record of one test case run.
type RunReport struct {
	RunID       string             `json:"run_id"`
	TestCaseID  string             `json:"test_case_id"`
	TestCase    string             `json:"test_case"`
	Status      RunStatus          `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Results     []StepResult       `json:"results"`
	PathHistory []PathEntry        `json:"path_history"`
	Stats       ExecutionStats     `json:"stats"`
	Variables   map[string]any     `json:"variables"`
	Snapshots   []VariableSnapshot `json:"snapshots,omitempty"`
	Errors      []string           `json:"errors,omitempty"`
}

// Duration is the wall-clock time of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Passed reports whether the run finished without failures.
func (r *RunReport) Passed() bool {
	return r.Status == RunPassed
}
