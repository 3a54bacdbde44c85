// Package runtime interprets test case step trees.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/condition"
	"github.com/aretw0/tendril/internal/expr"
	"github.com/aretw0/tendril/internal/loop"
	"github.com/aretw0/tendril/internal/variables"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

const (
	DefaultActionTimeout = 30 * time.Second
	DefaultMaxDepth      = 10
	DefaultMaxErrors     = 5
)

// Executor runs steps against one ExecutionContext at a time. It keeps the
// variable store of the context it last ran, so a run should use a single
// executor and context.
type Executor struct {
	actions       ports.ActionExecutor
	locator       ports.Locator
	parser        *expr.Parser
	evaluator     loop.Evaluator
	loops         *loop.Manager
	hooks         domain.ExecutionHooks
	logger        *slog.Logger
	actionTimeout time.Duration
	evalOpts      condition.Options
	natural       bool
	maxDepth      int
	maxErrors     int
	storeOpts     []variables.Option
	now           func() time.Time

	store   *variables.Store
	pending []domain.VariableChangeEvent
}

// Option configures an Executor.
type Option func(*Executor)

// WithActionExecutor sets the executor of action steps.
func WithActionExecutor(a ports.ActionExecutor) Option {
	return func(e *Executor) {
		e.actions = a
	}
}

// WithLocator sets the locator used by conditions, extractions and selector loops.
func WithLocator(l ports.Locator) Option {
	return func(e *Executor) {
		e.locator = l
	}
}

// WithParser sets the expression parser.
func WithParser(p *expr.Parser) Option {
	return func(e *Executor) {
		e.parser = p
	}
}

// WithEvaluator replaces the condition engine.
func WithEvaluator(ev loop.Evaluator) Option {
	return func(e *Executor) {
		e.evaluator = ev
	}
}

// WithLoopManager replaces the loop manager.
func WithLoopManager(m *loop.Manager) Option {
	return func(e *Executor) {
		e.loops = m
	}
}

// WithHooks registers execution observers.
func WithHooks(h domain.ExecutionHooks) Option {
	return func(e *Executor) {
		e.hooks = domain.MergeHooks(e.hooks, h)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithActionTimeout bounds each action step.
func WithActionTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.actionTimeout = d
	}
}

// WithEvaluationOptions sets the options of every condition evaluation.
func WithEvaluationOptions(opts condition.Options) Option {
	return func(e *Executor) {
		e.evalOpts = opts
	}
}

// WithNaturalLanguage infers condition texts the strict grammar rejects.
func WithNaturalLanguage(enabled bool) Option {
	return func(e *Executor) {
		e.natural = enabled
	}
}

// WithCircuitBreaker sets the depth and error-count limits of ShouldStop.
func WithCircuitBreaker(maxDepth, maxErrors int) Option {
	return func(e *Executor) {
		e.maxDepth = maxDepth
		e.maxErrors = maxErrors
	}
}

// WithStoreOptions configures the variable store built for each context.
func WithStoreOptions(opts ...variables.Option) Option {
	return func(e *Executor) {
		e.storeOpts = append(e.storeOpts, opts...)
	}
}

// WithClock overrides the time source of results and path entries.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates an executor. Without WithEvaluator or WithLoopManager it
// builds a condition engine and a loop manager over the configured locator.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		actionTimeout: DefaultActionTimeout,
		maxDepth:      DefaultMaxDepth,
		maxErrors:     DefaultMaxErrors,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parser == nil {
		e.parser = expr.NewParser()
	}
	if e.evaluator == nil {
		e.evaluator = condition.NewEngine(
			condition.WithLocator(e.locator),
			condition.WithParser(e.parser),
			condition.WithLogger(e.logger),
		)
	}
	if e.loops == nil {
		e.loops = loop.NewManager(e.evaluator,
			loop.WithLocator(e.locator),
			loop.WithEvaluationOptions(e.evalOpts),
			loop.WithLogger(e.logger),
			loop.WithClock(e.now),
		)
	}
	return e
}

// Store returns the variable store bound to ec, creating it on first use.
func (e *Executor) Store(ec *domain.ExecutionContext) *variables.Store {
	if e.store != nil && e.store.Shares(ec) {
		return e.store
	}
	opts := append([]variables.Option{
		variables.WithLogger(e.logger),
		variables.WithClock(e.now),
		variables.WithListener(func(ev domain.VariableChangeEvent) {
			e.pending = append(e.pending, ev)
		}),
	}, e.storeOpts...)
	e.store = variables.FromContext(ec, opts...)
	return e.store
}

// ShouldStop reports whether the run exceeded its nesting or error limits.
// The executor never consults it; callers poll it between steps.
func (e *Executor) ShouldStop(ec *domain.ExecutionContext) bool {
	return ec.CurrentDepth > e.maxDepth || len(ec.ErrorStack) > e.maxErrors
}

// Stop records that the caller cut the run short before step and returns
// the failed result standing in for it.
func (e *Executor) Stop(ec *domain.ExecutionContext, step domain.Step) domain.StepResult {
	return e.fail(ec, step, fmt.Errorf("%w: depth %d, %d errors", domain.ErrCircuitOpen, ec.CurrentDepth, len(ec.ErrorStack)))
}

// ExecuteSteps runs steps in order and stops after the first failure or when
// ctx is done.
func (e *Executor) ExecuteSteps(ctx context.Context, steps []domain.Step, ec *domain.ExecutionContext) []domain.StepResult {
	results := make([]domain.StepResult, 0, len(steps))
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			results = append(results, e.fail(ec, s, err))
			break
		}
		res := e.ExecuteStep(ctx, s, ec)
		results = append(results, res)
		if !res.Success {
			break
		}
	}
	return results
}

// ExecuteStep dispatches one step by kind. Failures, including panics in
// callbacks, are reported in the result; the originating failure is also
// pushed on ec.ErrorStack.
func (e *Executor) ExecuteStep(ctx context.Context, step domain.Step, ec *domain.ExecutionContext) (res domain.StepResult) {
	start := e.now()
	id, kind := describe(step)
	e.emit(ctx, e.hooks.OnStepStart, &domain.StepEvent{Timestamp: start, StepID: id, Kind: kind, Depth: ec.CurrentDepth})

	defer func() {
		if p := recover(); p != nil {
			res = e.fail(ec, step, fmt.Errorf("panic: %v", p))
		}
		res.Duration = e.now().Sub(start)
		e.logger.Debug("step finished",
			"step_id", id,
			"kind", kind,
			"success", res.Success,
			"duration", res.Duration,
		)
		e.emit(ctx, e.hooks.OnStepComplete, &domain.StepEvent{
			Timestamp: e.now(),
			StepID:    id,
			Kind:      kind,
			Depth:     ec.CurrentDepth,
			Result:    &res,
		})
	}()

	switch s := step.(type) {
	case *domain.ActionStep:
		return e.action(ctx, s, ec)
	case *domain.ConditionStep:
		return e.condition(ctx, s, ec)
	case *domain.LoopStep:
		return e.loop(ctx, s, ec)
	case *domain.VariableStep:
		return e.variable(ctx, s, ec)
	default:
		return e.fail(ec, step, fmt.Errorf("%w: %T", domain.ErrUnknownStep, step))
	}
}

func (e *Executor) emit(ctx context.Context, hook func(context.Context, *domain.StepEvent), ev *domain.StepEvent) {
	if hook != nil {
		hook(ctx, ev)
	}
}

func describe(step domain.Step) (string, domain.StepKind) {
	if step == nil {
		return "", ""
	}
	return step.StepID(), step.Kind()
}

// fail builds the result of an originating failure and records it.
func (e *Executor) fail(ec *domain.ExecutionContext, step domain.Step, err error) domain.StepResult {
	id, kind := describe(step)
	serr := &StepError{StepID: id, Kind: kind, Err: err}
	ec.RecordError(serr)
	e.logger.Warn("step failed", "step_id", id, "kind", kind, "err", err)
	return domain.StepResult{StepID: id, Kind: kind, Success: false, Error: serr.Error()}
}

// propagate builds the result of a step whose nested step failed. The nested
// failure is already on the error stack.
func propagate(step domain.Step, nested []domain.StepResult) domain.StepResult {
	id, kind := describe(step)
	res := domain.StepResult{StepID: id, Kind: kind, Success: true}
	if n := len(nested); n > 0 && !nested[n-1].Success {
		res.Success = false
		res.Error = nested[n-1].Error
	}
	return res
}

// Stats summarises the path history of ec.
func Stats(ec *domain.ExecutionContext) domain.ExecutionStats {
	st := domain.ExecutionStats{TotalEntries: len(ec.PathHistory)}
	for _, entry := range ec.PathHistory {
		switch entry.Branch {
		case domain.BranchThen:
			st.ThenBranches++
			st.Branches++
		case domain.BranchElse:
			st.ElseBranches++
			st.Branches++
		case domain.BranchLoop:
			st.LoopIterations++
		}
		st.MaxDepth = max(st.MaxDepth, entry.Depth)
	}
	return st
}
