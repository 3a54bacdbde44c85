package validator

import (
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/tendril/internal/variables"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/schema"
)

// BuiltinRules returns a fresh copy of the default rule table.
func BuiltinRules() []Rule {
	return []Rule{
		{
			Name: "test-case-name", Severity: SeverityError, Scope: ScopeTestCase,
			Message:    "test case has no name",
			Suggestion: "add a descriptive name",
			Check: func(c *Context) bool {
				return strings.TrimSpace(c.TestCase.Name) != ""
			},
		},
		{
			Name: "steps-present", Severity: SeverityError, Scope: ScopeTestCase,
			Message:    "test case has no steps",
			Suggestion: "add at least one step",
			Check: func(c *Context) bool {
				return len(c.TestCase.Steps) > 0
			},
		},
		{
			Name: "variable-schema", Severity: SeverityError, Scope: ScopeTestCase,
			Message:    "initial variables do not match the schema",
			Suggestion: "fix the variable values or the declared types",
			Check:      checkSchema,
		},
		{
			Name: "step-id", Severity: SeverityError,
			Message:    "step has no id",
			Suggestion: "give every step a unique id",
			Check: func(c *Context) bool {
				return strings.TrimSpace(c.Step.StepID()) != ""
			},
		},
		{
			Name: "duplicate-step-id", Severity: SeverityError,
			Message:    "step id is used more than once",
			Suggestion: "rename one of the steps",
			Check: func(c *Context) bool {
				return c.Step.StepID() == "" || c.Seen(c.Step.StepID()) == 0
			},
		},
		{
			Name: "action-name", Severity: SeverityError,
			Message:    "action step has no action",
			Suggestion: "set action, e.g. click or fill",
			Check: func(c *Context) bool {
				s, ok := c.Step.(*domain.ActionStep)
				return !ok || strings.TrimSpace(s.Action) != ""
			},
		},
		{
			Name: "condition-expression", Severity: SeverityError,
			Message:    "condition step has no expression",
			Suggestion: `add an expression such as element "#login" exists`,
			Check: func(c *Context) bool {
				s, ok := c.Step.(*domain.ConditionStep)
				return !ok || s.Condition != nil || strings.TrimSpace(s.Expression) != ""
			},
		},
		{
			Name: "condition-syntax", Severity: SeverityError,
			Message:    "condition expression does not parse",
			Suggestion: "check quoting and operators",
			Check: func(c *Context) bool {
				s, ok := c.Step.(*domain.ConditionStep)
				if !ok || (s.Condition == nil && strings.TrimSpace(s.Expression) == "") {
					return true
				}
				if _, err := c.Condition(); err != nil {
					c.Detail("%v", err)
					return false
				}
				return true
			},
		},
		{
			Name: "condition-then", Severity: SeverityError,
			Message:    "condition step has no then branch",
			Suggestion: "add at least one step under then",
			Check: func(c *Context) bool {
				s, ok := c.Step.(*domain.ConditionStep)
				return !ok || len(s.Then) > 0
			},
		},
		{
			Name: "loop-body", Severity: SeverityError,
			Message:    "loop body is empty",
			Suggestion: "add steps to repeat or remove the loop",
			Check: func(c *Context) bool {
				s, ok := c.Step.(*domain.LoopStep)
				return !ok || len(s.Body) > 0
			},
		},
		{
			Name: "loop-syntax", Severity: SeverityError,
			Message:    "loop definition is invalid",
			Suggestion: `use "repeat N times", "while <condition>" or "for each item in items"`,
			Check: func(c *Context) bool {
				if _, ok := c.Step.(*domain.LoopStep); !ok {
					return true
				}
				cfg, err := c.Loop()
				if err != nil {
					c.Detail("%v", err)
					return false
				}
				switch cfg.Type {
				case domain.LoopCount, domain.LoopWhile, domain.LoopForEach:
					return true
				}
				c.Detail("unknown loop type %q", cfg.Type)
				return false
			},
		},
		{
			Name: "loop-count", Severity: SeverityError,
			Message:    "count must be positive",
			Suggestion: "repeat at least once",
			Check: func(c *Context) bool {
				cfg, err := c.Loop()
				return err != nil || cfg.Type != domain.LoopCount || cfg.Count > 0
			},
		},
		{
			Name: "while-condition", Severity: SeverityError,
			Message:    "while loop has no condition",
			Suggestion: "add the condition that keeps the loop running",
			Check: func(c *Context) bool {
				cfg, err := c.Loop()
				if err != nil || cfg.Type != domain.LoopWhile {
					return true
				}
				return cfg.Condition != nil || strings.TrimSpace(cfg.ConditionText) != ""
			},
		},
		{
			Name: "foreach-collection", Severity: SeverityError,
			Message:    "forEach loop has no collection",
			Suggestion: "name a list variable or a selector",
			Check: func(c *Context) bool {
				cfg, err := c.Loop()
				return err != nil || cfg.Type != domain.LoopForEach || strings.TrimSpace(cfg.Collection) != ""
			},
		},
		{
			Name: "variable-name", Severity: SeverityError,
			Message:    "variable step has no valid name",
			Suggestion: "use letters, digits, '_' or '.'",
			Check: func(c *Context) bool {
				s, ok := c.Step.(*domain.VariableStep)
				if !ok || s.Operation.Type == domain.VarClear {
					return true
				}
				name := s.Operation.Name
				return name != "" && !strings.ContainsAny(name, " \t${}")
			},
		},
		{
			Name: "variable-operation", Severity: SeverityError,
			Message:    "variable operation is incomplete",
			Suggestion: "set needs a value and extract needs a source",
			Check:      checkOperation,
		},
		{
			Name: "undeclared-variable", Severity: SeverityWarning,
			Message:    "references variables that are not declared earlier",
			Suggestion: "set them in a previous variable step or in the initial variables",
			Check:      checkReferences,
		},
		{
			Name: "nesting-depth", Severity: SeverityWarning,
			Message:    "step is nested too deeply",
			Suggestion: "flatten the branches or split the test case",
			Check: func(c *Context) bool {
				if c.Depth > c.Limits.MaxDepth {
					c.Detail("depth %d exceeds %d", c.Depth, c.Limits.MaxDepth)
					return false
				}
				return true
			},
		},
		{
			Name: "loop-nesting", Severity: SeverityWarning,
			Message:    "loops are nested too deeply",
			Suggestion: "nested loops multiply iterations; consider a flatter structure",
			Check: func(c *Context) bool {
				_, ok := c.Step.(*domain.LoopStep)
				return !ok || c.LoopDepth < c.Limits.MaxLoopNesting
			},
		},
		{
			Name: "iteration-ceiling", Severity: SeverityWarning,
			Message:    "loop may run more iterations than the ceiling",
			Suggestion: "lower the count or set max_iterations",
			Check: func(c *Context) bool {
				cfg, err := c.Loop()
				if err != nil {
					return true
				}
				limit := c.Limits.IterationCeiling
				if cfg.MaxIterations > limit {
					c.Detail("max_iterations %d exceeds %d", cfg.MaxIterations, limit)
					return false
				}
				if cfg.Type == domain.LoopCount && cfg.Count > limit {
					c.Detail("count %d exceeds %d", cfg.Count, limit)
					return false
				}
				return true
			},
		},
	}
}

func checkSchema(c *Context) bool {
	if len(c.TestCase.Schema) == 0 {
		return true
	}
	s, err := schema.ParseTypeMap(c.TestCase.Schema)
	if err != nil {
		c.Detail("%v", err)
		return false
	}
	if err := schema.Validate(s, c.TestCase.Variables); err != nil {
		var msgs []string
		for _, ve := range schema.ValidationErrors(err) {
			msgs = append(msgs, ve.Error())
		}
		c.Detail("%s", strings.Join(msgs, "; "))
		return false
	}
	return true
}

func checkOperation(c *Context) bool {
	s, ok := c.Step.(*domain.VariableStep)
	if !ok {
		return true
	}
	op := s.Operation
	switch op.Type {
	case domain.VarSet:
		if op.Value == nil {
			c.Detail("set %s has no value", op.Name)
			return false
		}
	case domain.VarExtract:
		if strings.TrimSpace(op.Source) == "" {
			c.Detail("extract %s has no source", op.Name)
			return false
		}
	case domain.VarIncrement, domain.VarDelete, domain.VarClear:
	default:
		c.Detail("unknown operation %q", op.Type)
		return false
	}
	return true
}

func checkReferences(c *Context) bool {
	var missing []string
	for _, text := range stepTexts(c.Step) {
		for _, name := range variables.References(text) {
			if !c.Declared[name] && !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		c.Detail("%s", strings.Join(missing, ", "))
		return false
	}
	return true
}

// stepTexts lists the strings of s that may carry ${name} references.
func stepTexts(s domain.Step) []string {
	switch st := s.(type) {
	case *domain.ActionStep:
		out := []string{st.Target, st.Value}
		for _, k := range slices.Sorted(maps.Keys(st.Params)) {
			if v, ok := st.Params[k].(string); ok {
				out = append(out, v)
			}
		}
		return out
	case *domain.ConditionStep:
		return []string{st.Expression}
	case *domain.LoopStep:
		return []string{st.Expression, st.Loop.ConditionText, st.Loop.Collection}
	case *domain.VariableStep:
		out := []string{st.Operation.Source}
		if v, ok := st.Operation.Value.(string); ok {
			out = append(out, v)
		}
		return out
	}
	return nil
}
