// Package condition evaluates parsed condition expressions against the
// execution context, the element locator and the page-state detector.
//
// Evaluation never fails: timeouts, a missing locator, invalid expressions and
// panics all yield Success=false with the configured fallback value. An and/or
// compound folds failed children into their fallback values and succeeds, with
// the child errors kept in Error.
package condition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/tendril/internal/expr"
	"github.com/aretw0/tendril/internal/locate"
	"github.com/aretw0/tendril/internal/pagestate"
	"github.com/aretw0/tendril/internal/variables"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// DefaultTimeout bounds each evaluation when no timeout is given.
const DefaultTimeout = 5 * time.Second

// Options tunes a single evaluation.
type Options struct {
	// Timeout bounds locator and detector calls. Zero uses the engine default.
	Timeout time.Duration
	// Fallback overrides the engine fallback value.
	Fallback *bool
	// Natural routes raw text through inference instead of the strict grammar.
	Natural bool
}

// Fallback returns a pointer to v for Options.Fallback.
func Fallback(v bool) *bool { return &v }

// Engine evaluates conditions.
type Engine struct {
	locator  ports.Locator
	detector *pagestate.Detector
	parser   *expr.Parser
	logger   *slog.Logger
	timeout  time.Duration
	fallback bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocator sets the element locator.
func WithLocator(l ports.Locator) Option {
	return func(e *Engine) {
		e.locator = l
	}
}

// WithDetector sets the page-state detector. By default one is built over the locator.
func WithDetector(d *pagestate.Detector) Option {
	return func(e *Engine) {
		e.detector = d
	}
}

// WithParser sets the parser used for raw text.
func WithParser(p *expr.Parser) Option {
	return func(e *Engine) {
		e.parser = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTimeout sets the default evaluation timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithDefaultFallback sets the value returned when evaluation fails.
func WithDefaultFallback(v bool) Option {
	return func(e *Engine) {
		e.fallback = v
	}
}

// NewEngine creates a condition engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parser == nil {
		e.parser = expr.NewParser()
	}
	if e.detector == nil {
		e.detector = pagestate.NewDetector(e.locator, pagestate.WithLogger(e.logger))
	}
	return e
}

// Parser returns the parser used for raw text.
func (e *Engine) Parser() *expr.Parser {
	return e.parser
}

// Detector returns the page-state detector.
func (e *Engine) Detector() *pagestate.Detector {
	return e.detector
}

type evaluation struct {
	timeout  time.Duration
	fallback bool
}

func (e *Engine) resolve(opts Options) evaluation {
	ev := evaluation{timeout: opts.Timeout, fallback: e.fallback}
	if ev.timeout <= 0 {
		ev.timeout = e.timeout
	}
	if opts.Fallback != nil {
		ev.fallback = *opts.Fallback
	}
	return ev
}

// EvaluateText parses text and evaluates the result. Parse failures yield the fallback.
func (e *Engine) EvaluateText(ctx context.Context, text string, ec *domain.ExecutionContext, opts Options) domain.EvaluationResult {
	if opts.Natural {
		return e.Evaluate(ctx, e.parser.Infer(text), ec, opts)
	}
	start := time.Now()
	parsed, err := e.parser.Parse(text)
	if err != nil {
		ev := e.resolve(opts)
		return ev.fail(start, err)
	}
	return e.Evaluate(ctx, parsed, ec, opts)
}

// Evaluate evaluates x. It never panics.
func (e *Engine) Evaluate(ctx context.Context, x domain.Expression, ec *domain.ExecutionContext, opts Options) domain.EvaluationResult {
	ev := e.resolve(opts)
	if ec == nil {
		ec = domain.NewExecutionContext(nil)
	}
	start := time.Now()
	res := e.evaluate(ctx, x, ec, ev)
	res.Duration = time.Since(start)
	if !res.Success {
		e.logger.Debug("condition evaluation failed", "kind", kindOf(x), "error", res.Error)
	}
	return res
}

// EvaluateBatch evaluates every expression concurrently. Results keep input order.
func (e *Engine) EvaluateBatch(ctx context.Context, xs []domain.Expression, ec *domain.ExecutionContext, opts Options) []domain.EvaluationResult {
	out := make([]domain.EvaluationResult, len(xs))
	var g errgroup.Group
	for i, x := range xs {
		g.Go(func() error {
			out[i] = e.Evaluate(ctx, x, ec, opts)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (ev evaluation) fail(start time.Time, err error) domain.EvaluationResult {
	return domain.EvaluationResult{
		Success:  false,
		Value:    ev.fallback,
		Error:    err.Error(),
		Duration: time.Since(start),
	}
}

func ok(v bool) domain.EvaluationResult {
	return domain.EvaluationResult{Success: true, Value: v}
}

func (e *Engine) evaluate(ctx context.Context, x domain.Expression, ec *domain.ExecutionContext, ev evaluation) (res domain.EvaluationResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = ev.fail(start, fmt.Errorf("evaluation panic: %v", r))
		}
	}()

	switch c := x.(type) {
	case *domain.ElementCondition:
		return e.element(ctx, c, ec, ev)
	case *domain.TextCondition:
		return e.text(ctx, c, ec, ev)
	case *domain.StateCondition:
		return e.state(ctx, c, ev)
	case *domain.VariableCondition:
		return ok(compare(ec.Variables, c))
	case *domain.CompoundCondition:
		return e.compound(ctx, c, ec, ev)
	case nil:
		return ev.fail(start, errors.New("nil expression"))
	default:
		return ev.fail(start, fmt.Errorf("%w: %T", domain.ErrUnknownExpression, x))
	}
}

func (e *Engine) element(ctx context.Context, c *domain.ElementCondition, ec *domain.ExecutionContext, ev evaluation) domain.EvaluationResult {
	start := time.Now()
	target := variables.Replace(c.Target, ec.Variables)
	el, err := locate.Within(ctx, e.locator, target, ports.LocateOptions{Timeout: ev.timeout})
	if errors.Is(err, domain.ErrElementNotFound) {
		return ok(false)
	}
	if err != nil {
		return ev.fail(start, err)
	}
	switch c.Check {
	case domain.CheckExists:
		return ok(true)
	case domain.CheckVisible:
		return ok(el.Visible())
	case domain.CheckEnabled:
		return ok(el.Enabled())
	case domain.CheckSelected:
		return ok(el.Selected())
	default:
		return ev.fail(start, fmt.Errorf("unknown element check %q", c.Check))
	}
}

func (e *Engine) text(ctx context.Context, c *domain.TextCondition, ec *domain.ExecutionContext, ev evaluation) domain.EvaluationResult {
	start := time.Now()
	target := variables.Replace(c.Target, ec.Variables)
	want := variables.Replace(c.Value, ec.Variables)

	var actual string
	if cached, found := ec.Variables[variables.TextCachePrefix+target]; found {
		actual = variables.Stringify(cached)
	} else {
		el, err := locate.Within(ctx, e.locator, target, ports.LocateOptions{Timeout: ev.timeout})
		if errors.Is(err, domain.ErrElementNotFound) {
			return ok(false)
		}
		if err != nil {
			return ev.fail(start, err)
		}
		actual = el.Text
	}

	switch c.Operator {
	case domain.TextEquals:
		return ok(actual == want)
	case domain.TextContains:
		return ok(strings.Contains(actual, want))
	case domain.TextMatches:
		re, err := pagestate.CompilePattern(want)
		if err != nil {
			return ok(false)
		}
		matched, err := re.MatchString(actual)
		return ok(err == nil && matched)
	default:
		return ev.fail(start, fmt.Errorf("unknown text operator %q", c.Operator))
	}
}

func (e *Engine) state(ctx context.Context, c *domain.StateCondition, ev evaluation) domain.EvaluationResult {
	start := time.Now()
	if e.locator == nil {
		return ev.fail(start, domain.ErrNoLocator)
	}
	return ok(e.detector.Detect(ctx, c.State, ev.timeout))
}

func (e *Engine) compound(ctx context.Context, c *domain.CompoundCondition, ec *domain.ExecutionContext, ev evaluation) domain.EvaluationResult {
	start := time.Now()
	switch c.Operator {
	case domain.LogicalNot:
		if len(c.Children) != 1 {
			return ev.fail(start, fmt.Errorf("not requires exactly one child, got %d", len(c.Children)))
		}
		child := e.evaluate(ctx, c.Children[0], ec, ev)
		if !child.Success {
			return ev.fail(start, errors.New(child.Error))
		}
		res := ok(!child.Value)
		res.Error = child.Error
		return res
	case domain.LogicalAnd, domain.LogicalOr:
		if len(c.Children) == 0 {
			return ev.fail(start, fmt.Errorf("%s requires at least one child", c.Operator))
		}
	default:
		return ev.fail(start, fmt.Errorf("unknown logical operator %q", c.Operator))
	}

	results := make([]domain.EvaluationResult, len(c.Children))
	var g errgroup.Group
	for i, child := range c.Children {
		g.Go(func() error {
			results[i] = e.evaluate(ctx, child, ec, ev)
			return nil
		})
	}
	_ = g.Wait()

	// A failed child contributes its fallback value; the compound still
	// decides, and the child errors are carried in Error.
	value := c.Operator == domain.LogicalAnd
	var errs []string
	for _, r := range results {
		if r.Error != "" {
			errs = append(errs, r.Error)
		}
		if c.Operator == domain.LogicalAnd {
			value = value && r.Value
		} else {
			value = value || r.Value
		}
	}
	res := ok(value)
	res.Error = strings.Join(errs, "; ")
	return res
}

func kindOf(x domain.Expression) string {
	if x == nil {
		return "nil"
	}
	return string(x.Kind())
}
