// Package validator statically checks a test case before it runs.
package validator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/tendril/internal/expr"
	"github.com/aretw0/tendril/pkg/domain"
)

const (
	DefaultMaxDepth         = 5
	DefaultMaxLoopNesting   = 3
	DefaultIterationCeiling = 100
)

// Severity separates blocking errors from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Scope says whether a rule runs once per test case or once per step.
type Scope int

const (
	ScopeStep Scope = iota
	ScopeTestCase
)

// Rule is one named check. Check returns false when the rule is violated and
// may attach a detail to the context.
type Rule struct {
	Name       string
	Severity   Severity
	Scope      Scope
	Check      func(c *Context) bool
	Message    string
	Suggestion string
}

// Issue is a violated rule.
type Issue struct {
	Rule       string   `json:"rule"`
	Severity   Severity `json:"severity"`
	StepID     string   `json:"step_id,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func (i Issue) String() string {
	var b strings.Builder
	if i.StepID != "" {
		fmt.Fprintf(&b, "step %q: ", i.StepID)
	}
	b.WriteString(i.Message)
	if i.Suggestion != "" {
		fmt.Fprintf(&b, " (%s)", i.Suggestion)
	}
	return b.String()
}

// Result is the outcome of a validation. Warnings never make it invalid.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Err returns nil for a valid result and otherwise an error listing every
// blocking issue.
func (r *Result) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, len(r.Errors))
	for i, issue := range r.Errors {
		msgs[i] = issue.String()
	}
	return fmt.Errorf("%w: found %d errors:\n- %s", ErrInvalid, len(r.Errors), strings.Join(msgs, "\n- "))
}

// ErrInvalid is wrapped by Result.Err.
var ErrInvalid = errors.New("invalid test case")

// Validator runs a rule table over test cases. It is safe for concurrent use.
type Validator struct {
	mu      sync.RWMutex
	rules   []Rule
	parser  *expr.Parser
	natural bool
	limits  Limits
	logger  *slog.Logger
}

// Limits are the thresholds of the advisory rules.
type Limits struct {
	MaxDepth         int
	MaxLoopNesting   int
	IterationCeiling int
}

// Option configures a Validator.
type Option func(*Validator)

// WithParser sets the expression parser, e.g. one with extra keywords.
func WithParser(p *expr.Parser) Option {
	return func(v *Validator) {
		v.parser = p
	}
}

// WithNaturalLanguage accepts condition texts the strict grammar rejects,
// matching an engine that infers them at run time.
func WithNaturalLanguage(enabled bool) Option {
	return func(v *Validator) {
		v.natural = enabled
	}
}

// WithLimits overrides the advisory thresholds. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(v *Validator) {
		if l.MaxDepth > 0 {
			v.limits.MaxDepth = l.MaxDepth
		}
		if l.MaxLoopNesting > 0 {
			v.limits.MaxLoopNesting = l.MaxLoopNesting
		}
		if l.IterationCeiling > 0 {
			v.limits.IterationCeiling = l.IterationCeiling
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

// New creates a validator loaded with the built-in rules.
func New(opts ...Option) *Validator {
	v := &Validator{
		rules:  BuiltinRules(),
		parser: expr.NewParser(),
		limits: Limits{
			MaxDepth:         DefaultMaxDepth,
			MaxLoopNesting:   DefaultMaxLoopNesting,
			IterationCeiling: DefaultIterationCeiling,
		},
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// AddRule registers r, replacing any rule with the same name.
func (v *Validator) AddRule(r Rule) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.rules {
		if v.rules[i].Name == r.Name {
			v.rules[i] = r
			return
		}
	}
	v.rules = append(v.rules, r)
}

// RemoveRule drops the named rule and reports whether it existed.
func (v *Validator) RemoveRule(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.rules {
		if v.rules[i].Name == name {
			v.rules = append(v.rules[:i], v.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns the names of the registered rules in evaluation order.
func (v *Validator) Rules() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, len(v.rules))
	for i, r := range v.rules {
		names[i] = r.Name
	}
	return names
}

// Validate walks tc once, evaluating test-case rules first and step rules on
// every step in document order.
func (v *Validator) Validate(tc *domain.TestCase) Result {
	v.mu.RLock()
	rules := append([]Rule(nil), v.rules...)
	v.mu.RUnlock()

	res := Result{Valid: true, Errors: []Issue{}, Warnings: []Issue{}}
	if tc == nil {
		res.Valid = false
		res.Errors = append(res.Errors, Issue{Rule: "test-case", Severity: SeverityError, Message: "test case is nil"})
		return res
	}

	c := newContext(tc, v.parser, v.natural, v.limits)
	w := walker{rules: rules, res: &res, c: c}
	w.apply(ScopeTestCase)
	w.steps(tc.Steps)

	res.Valid = len(res.Errors) == 0
	v.logger.Debug("test case validated",
		"test_case_id", tc.ID,
		"valid", res.Valid,
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
	)
	return res
}

type walker struct {
	rules []Rule
	res   *Result
	c     *Context
}

func (w *walker) apply(scope Scope) {
	for _, r := range w.rules {
		if r.Scope != scope || r.Check == nil {
			continue
		}
		w.c.detail = ""
		if r.Check(w.c) {
			continue
		}
		issue := Issue{Rule: r.Name, Severity: r.Severity, Message: r.Message, Suggestion: r.Suggestion}
		if w.c.detail != "" {
			issue.Message += ": " + w.c.detail
		}
		if scope == ScopeStep && w.c.Step != nil {
			issue.StepID = w.c.Step.StepID()
		}
		if r.Severity == SeverityWarning {
			w.res.Warnings = append(w.res.Warnings, issue)
		} else {
			w.res.Errors = append(w.res.Errors, issue)
		}
	}
}

func (w *walker) steps(steps []domain.Step) {
	c := w.c
	for _, s := range steps {
		if s == nil {
			continue
		}
		c.enter(s)
		w.apply(ScopeStep)
		c.seen[s.StepID()]++

		switch st := s.(type) {
		case *domain.VariableStep:
			c.declareFrom(st.Operation)
		case *domain.ConditionStep:
			c.Depth++
			w.steps(st.Then)
			w.steps(st.Else)
			c.Depth--
		case *domain.LoopStep:
			cfg, err := c.Loop()
			var bound []string
			if err == nil && cfg.Type == domain.LoopForEach {
				item := cfg.ItemVariable
				if item == "" {
					item = "item"
				}
				for _, name := range []string{item, item + ".selector"} {
					if !c.Declared[name] {
						c.Declared[name] = true
						bound = append(bound, name)
					}
				}
			}
			c.Depth++
			c.LoopDepth++
			w.steps(st.Body)
			c.LoopDepth--
			c.Depth--
			for _, name := range bound {
				delete(c.Declared, name)
			}
		}
	}
}
