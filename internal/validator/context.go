package validator

import (
	"fmt"
	"maps"

	"github.com/aretw0/tendril/internal/expr"
	"github.com/aretw0/tendril/pkg/domain"
)

// Context is the walk state a rule sees. Step is nil for test-case rules.
type Context struct {
	TestCase  *domain.TestCase
	Step      domain.Step
	Depth     int
	LoopDepth int
	// Declared holds the variables set before the current step.
	Declared map[string]bool
	Limits   Limits

	parser  *expr.Parser
	natural bool
	seen    map[string]int
	detail  string

	cond     domain.Expression
	condErr  error
	condDone bool
	loop     domain.LoopConfig
	loopErr  error
	loopDone bool
}

func newContext(tc *domain.TestCase, p *expr.Parser, natural bool, limits Limits) *Context {
	declared := make(map[string]bool, len(tc.Variables)+len(tc.Schema))
	for name := range maps.Keys(tc.Variables) {
		declared[name] = true
	}
	for name := range maps.Keys(tc.Schema) {
		declared[name] = true
	}
	return &Context{
		TestCase: tc,
		Declared: declared,
		Limits:   limits,
		parser:   p,
		natural:  natural,
		seen:     make(map[string]int),
	}
}

func (c *Context) enter(s domain.Step) {
	c.Step = s
	c.condDone, c.loopDone = false, false
	c.cond, c.condErr = nil, nil
	c.loop, c.loopErr = domain.LoopConfig{}, nil
}

// Detail attaches a formatted explanation to the issue of the running rule.
func (c *Context) Detail(format string, args ...any) {
	c.detail = fmt.Sprintf(format, args...)
}

// Seen reports how many earlier steps used id.
func (c *Context) Seen(id string) int {
	return c.seen[id]
}

// Condition resolves the current condition step's expression.
func (c *Context) Condition() (domain.Expression, error) {
	s, ok := c.Step.(*domain.ConditionStep)
	if !ok {
		return nil, nil
	}
	if !c.condDone {
		c.cond, c.condErr = c.parser.ResolveCondition(s, c.natural)
		c.condDone = true
	}
	return c.cond, c.condErr
}

// Loop resolves the current loop step's configuration.
func (c *Context) Loop() (domain.LoopConfig, error) {
	s, ok := c.Step.(*domain.LoopStep)
	if !ok {
		return domain.LoopConfig{}, nil
	}
	if !c.loopDone {
		c.loop, c.loopErr = c.parser.ResolveLoop(s)
		c.loopDone = true
	}
	return c.loop, c.loopErr
}

func (c *Context) declareFrom(op domain.VariableOperation) {
	switch op.Type {
	case domain.VarSet, domain.VarIncrement, domain.VarExtract:
		if op.Name != "" {
			c.Declared[op.Name] = true
		}
	case domain.VarDelete:
		delete(c.Declared, op.Name)
	}
}
