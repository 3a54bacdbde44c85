package domain

// StepKind identifies the variant of a test case step.
type StepKind string

const (
	StepAction    StepKind = "action"
	StepCondition StepKind = "condition"
	StepLoop      StepKind = "loop"
	StepVariable  StepKind = "variable"
)

// Step is a node of the test case tree. The set of implementations is closed:
// ActionStep, ConditionStep, LoopStep and VariableStep. A tree is built once and
// walked many times without mutation.
type Step interface {
	StepID() string
	Kind() StepKind
	step()
}

// ActionStep is an opaque browser interaction forwarded to the action executor.
type ActionStep struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	Target      string         `json:"target,omitempty"`
	Value       string         `json:"value,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
	Description string         `json:"description,omitempty"`
}

// ConditionStep runs Then when its condition holds and Else otherwise.
// Condition takes precedence; Expression is parsed when Condition is nil.
type ConditionStep struct {
	ID         string     `json:"id"`
	Expression string     `json:"expression,omitempty"`
	Condition  Expression `json:"condition,omitempty"`
	Then       []Step     `json:"then,omitempty"`
	Else       []Step     `json:"else,omitempty"`
}

// LoopStep repeats Body. Loop takes precedence; Expression is parsed when
// Loop.Type is empty.
type LoopStep struct {
	ID         string     `json:"id"`
	Expression string     `json:"expression,omitempty"`
	Loop       LoopConfig `json:"loop"`
	Body       []Step     `json:"body,omitempty"`
}

// VariableStep mutates the variable store.
type VariableStep struct {
	ID        string            `json:"id"`
	Operation VariableOperation `json:"operation"`
}

func (s *ActionStep) StepID() string    { return s.ID }
func (s *ConditionStep) StepID() string { return s.ID }
func (s *LoopStep) StepID() string      { return s.ID }
func (s *VariableStep) StepID() string  { return s.ID }

func (*ActionStep) Kind() StepKind    { return StepAction }
func (*ConditionStep) Kind() StepKind { return StepCondition }
func (*LoopStep) Kind() StepKind      { return StepLoop }
func (*VariableStep) Kind() StepKind  { return StepVariable }

func (*ActionStep) step()    {}
func (*ConditionStep) step() {}
func (*LoopStep) step()      {}
func (*VariableStep) step()  {}

// Walk visits steps depth-first in document order, descending into branches
// and loop bodies. Returning false from fn skips the children of that step.
func Walk(steps []Step, fn func(s Step, depth int) bool) {
	walk(steps, 0, fn)
}

func walk(steps []Step, depth int, fn func(Step, int) bool) {
	for _, s := range steps {
		if !fn(s, depth) {
			continue
		}
		switch v := s.(type) {
		case *ConditionStep:
			walk(v.Then, depth+1, fn)
			walk(v.Else, depth+1, fn)
		case *LoopStep:
			walk(v.Body, depth+1, fn)
		}
	}
}

// TestCase is a named step tree with its initial variables.
// Schema optionally declares variable types ("string", "int", "float", "bool", "list").
type TestCase struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Variables   map[string]any    `json:"variables,omitempty"`
	Schema      map[string]string `json:"schema,omitempty"`
	Steps       []Step            `json:"steps"`
}
