package dsl

import (
	"time"

	"github.com/aretw0/tendril/pkg/domain"
)

// Steps is a step sequence under construction.
type Steps struct {
	list []domain.Step
}

// List returns the steps added so far.
func (s *Steps) List() []domain.Step {
	return s.list
}

func nested(fn func(*Steps)) []domain.Step {
	if fn == nil {
		return nil
	}
	var s Steps
	fn(&s)
	return s.list
}

// ActionBuilder configures an action step.
type ActionBuilder struct{ step *domain.ActionStep }

// Action appends an action step.
func (s *Steps) Action(id, action, target string) *ActionBuilder {
	step := &domain.ActionStep{ID: id, Action: action, Target: target}
	s.list = append(s.list, step)
	return &ActionBuilder{step: step}
}

// Value sets the value typed or selected by the action.
func (a *ActionBuilder) Value(v string) *ActionBuilder {
	a.step.Value = v
	return a
}

// Param sets a driver-specific parameter.
func (a *ActionBuilder) Param(key string, v any) *ActionBuilder {
	if a.step.Params == nil {
		a.step.Params = make(map[string]any)
	}
	a.step.Params[key] = v
	return a
}

// Describe sets the step description.
func (a *ActionBuilder) Describe(text string) *ActionBuilder {
	a.step.Description = text
	return a
}

// ConditionBuilder configures a condition step.
type ConditionBuilder struct{ step *domain.ConditionStep }

// If appends a condition written in the condition grammar.
func (s *Steps) If(id, expression string, then func(*Steps)) *ConditionBuilder {
	step := &domain.ConditionStep{ID: id, Expression: expression, Then: nested(then)}
	s.list = append(s.list, step)
	return &ConditionBuilder{step: step}
}

// When appends a condition from an already built expression.
func (s *Steps) When(id string, x domain.Expression, then func(*Steps)) *ConditionBuilder {
	step := &domain.ConditionStep{ID: id, Condition: x, Then: nested(then)}
	s.list = append(s.list, step)
	return &ConditionBuilder{step: step}
}

// Else sets the steps run when the condition does not hold.
func (c *ConditionBuilder) Else(fn func(*Steps)) *ConditionBuilder {
	c.step.Else = nested(fn)
	return c
}

// LoopBuilder configures a loop step.
type LoopBuilder struct{ step *domain.LoopStep }

func (s *Steps) loop(id string, cfg domain.LoopConfig, body func(*Steps)) *LoopBuilder {
	step := &domain.LoopStep{ID: id, Loop: cfg, Body: nested(body)}
	s.list = append(s.list, step)
	return &LoopBuilder{step: step}
}

// Repeat appends a count loop.
func (s *Steps) Repeat(id string, times int, body func(*Steps)) *LoopBuilder {
	return s.loop(id, domain.LoopConfig{Type: domain.LoopCount, Count: times}, body)
}

// While appends a loop running as long as condition holds.
func (s *Steps) While(id, condition string, body func(*Steps)) *LoopBuilder {
	return s.loop(id, domain.LoopConfig{Type: domain.LoopWhile, ConditionText: condition}, body)
}

// ForEach appends a loop over a variable or a page selector, binding each item to item.
func (s *Steps) ForEach(id, collection, item string, body func(*Steps)) *LoopBuilder {
	return s.loop(id, domain.LoopConfig{Type: domain.LoopForEach, Collection: collection, ItemVariable: item}, body)
}

// Loop appends a loop described by a header such as "repeat 3 times".
func (s *Steps) Loop(id, header string, body func(*Steps)) *LoopBuilder {
	step := &domain.LoopStep{ID: id, Expression: header, Body: nested(body)}
	s.list = append(s.list, step)
	return &LoopBuilder{step: step}
}

// Max caps the number of iterations.
func (l *LoopBuilder) Max(n int) *LoopBuilder {
	l.step.Loop.MaxIterations = n
	return l
}

// Timeout bounds the loop's wall-clock time.
func (l *LoopBuilder) Timeout(d time.Duration) *LoopBuilder {
	l.step.Loop.Timeout = d
	return l
}

func (s *Steps) variable(id string, op domain.VariableOperation) *Steps {
	s.list = append(s.list, &domain.VariableStep{ID: id, Operation: op})
	return s
}

// Set appends a variable assignment. String values may reference other
// variables with ${name}.
func (s *Steps) Set(id, name string, value any) *Steps {
	return s.variable(id, domain.VariableOperation{Type: domain.VarSet, Name: name, Value: value})
}

// Increment appends a numeric increment.
func (s *Steps) Increment(id, name string, by float64) *Steps {
	return s.variable(id, domain.VariableOperation{Type: domain.VarIncrement, Name: name, By: by})
}

// Extract stores the text of the element matched by from, or its attribute when set.
func (s *Steps) Extract(id, name, from, attribute string) *Steps {
	return s.variable(id, domain.VariableOperation{Type: domain.VarExtract, Name: name, Source: from, Attribute: attribute})
}

// Delete removes a variable.
func (s *Steps) Delete(id, name string) *Steps {
	return s.variable(id, domain.VariableOperation{Type: domain.VarDelete, Name: name})
}

// Clear removes every variable.
func (s *Steps) Clear(id string) *Steps {
	return s.variable(id, domain.VariableOperation{Type: domain.VarClear})
}
