package tendril

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/tendril/internal/condition"
	"github.com/aretw0/tendril/internal/expr"
	"github.com/aretw0/tendril/internal/loop"
	"github.com/aretw0/tendril/internal/runtime"
	"github.com/aretw0/tendril/internal/validator"
	"github.com/aretw0/tendril/internal/variables"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// ValidationResult is the outcome of Engine.Validate.
type ValidationResult = validator.Result

// ValidationIssue is a single finding of Engine.Validate.
type ValidationIssue = validator.Issue

// ErrNoLoader is returned by RunTestCase when the engine has no loader.
var ErrNoLoader = errors.New("no test case loader configured")

// Engine is the high-level entry point for the tendril library.
// It is safe for concurrent use: every run gets its own executor and context.
type Engine struct {
	locator ports.Locator
	actions ports.ActionExecutor
	loader  ports.TestCaseLoader
	reports ports.ReportStore
	hooks   domain.ExecutionHooks
	logger  *slog.Logger

	keywords       expr.Keywords
	evalTimeout    time.Duration
	fallback       bool
	natural        bool
	actionTimeout  time.Duration
	loopMax        int
	loopTimeout    time.Duration
	maxDepth       int
	maxErrors      int
	snapshots      int
	skipValidation bool
	newID          func() string
	now            func() time.Time

	parser     *expr.Parser
	conditions *condition.Engine
	validator  *validator.Validator
}

// New creates an engine. Without a locator, element and text conditions take
// their fallback value; without an action executor, action steps fail.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		keywords:      expr.DefaultKeywords(),
		evalTimeout:   condition.DefaultTimeout,
		actionTimeout: runtime.DefaultActionTimeout,
		maxDepth:      runtime.DefaultMaxDepth,
		maxErrors:     runtime.DefaultMaxErrors,
		newID:         uuid.NewString,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loopMax <= 0 {
		e.loopMax = loop.DefaultMaxIterations
	}
	if e.loopTimeout <= 0 {
		e.loopTimeout = loop.DefaultTimeout
	}

	e.parser = expr.NewParser(expr.WithKeywords(e.keywords))
	e.conditions = condition.NewEngine(
		condition.WithLocator(e.locator),
		condition.WithParser(e.parser),
		condition.WithLogger(e.logger),
		condition.WithTimeout(e.evalTimeout),
		condition.WithDefaultFallback(e.fallback),
	)
	e.validator = validator.New(
		validator.WithParser(e.parser),
		validator.WithNaturalLanguage(e.natural),
		validator.WithLimits(validator.Limits{
			MaxDepth:         validator.DefaultMaxDepth,
			MaxLoopNesting:   validator.DefaultMaxLoopNesting,
			IterationCeiling: e.loopMax,
		}),
		validator.WithLogger(e.logger),
	)
	return e
}

// Parse parses a condition. With natural language enabled, text that is not
// valid grammar is inferred instead of rejected.
func (e *Engine) Parse(text string) (domain.Expression, error) {
	x, err := e.parser.Parse(text)
	if err != nil && e.natural {
		return e.parser.Infer(text), nil
	}
	return x, err
}

// Format renders x in the canonical grammar.
func (e *Engine) Format(x domain.Expression) string {
	return e.parser.Format(x)
}

// Evaluate evaluates a condition against the live page and vars.
func (e *Engine) Evaluate(ctx context.Context, text string, vars map[string]any) domain.EvaluationResult {
	ec := domain.NewExecutionContext(vars)
	return e.conditions.EvaluateText(ctx, text, ec, e.evalOptions())
}

// Validate checks tc without running it.
func (e *Engine) Validate(tc *domain.TestCase) ValidationResult {
	return e.validator.Validate(tc)
}

// AddRule registers a custom validation rule.
func (e *Engine) AddRule(r validator.Rule) {
	e.validator.AddRule(r)
}

// RunTestCase loads the test case id from the configured loader and runs it.
func (e *Engine) RunTestCase(ctx context.Context, id string) (*domain.RunReport, error) {
	if e.loader == nil {
		return nil, ErrNoLoader
	}
	tc, err := e.loader.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load test case %q: %w", id, err)
	}
	return e.Run(ctx, tc)
}

// Run validates and executes tc. Step failures are reported in the returned
// report; the error is reserved for an invalid test case or a report store
// failure, in which case the report is still returned when the run happened.
func (e *Engine) Run(ctx context.Context, tc *domain.TestCase) (*domain.RunReport, error) {
	if !e.skipValidation {
		res := e.validator.Validate(tc)
		if err := res.Err(); err != nil {
			return nil, err
		}
		for _, w := range res.Warnings {
			e.logger.Warn("validation warning", "test_case_id", tc.ID, "rule", w.Rule, "issue", w.String())
		}
	} else if tc == nil {
		return nil, errors.New("test case is nil")
	}

	report := &domain.RunReport{
		RunID:      e.newID(),
		TestCaseID: tc.ID,
		TestCase:   tc.Name,
		StartedAt:  e.now(),
	}
	logger := e.logger.With("run_id", report.RunID, "test_case_id", tc.ID)
	logger.Info("run started", "steps", len(tc.Steps))

	ec := domain.NewExecutionContext(tc.Variables)
	exec := e.executor(logger)
	report.Results = execute(ctx, exec, tc.Steps, ec)
	report.FinishedAt = e.now()

	report.Status = status(report.Results, ec)
	report.PathHistory = ec.PathHistory
	report.Stats = runtime.Stats(ec)
	report.Variables = maps.Clone(ec.Variables)
	if e.snapshots > 0 {
		report.Snapshots = exec.Store(ec).Snapshots()
	}
	for _, err := range ec.ErrorStack {
		report.Errors = append(report.Errors, err.Error())
	}

	logger.Info("run finished",
		"status", report.Status,
		"duration", report.Duration(),
		"errors", len(report.Errors),
	)

	if e.reports != nil {
		if err := e.reports.Save(ctx, report); err != nil {
			return report, fmt.Errorf("save report %s: %w", report.RunID, err)
		}
	}
	return report, nil
}

func (e *Engine) evalOptions() condition.Options {
	return condition.Options{Timeout: e.evalTimeout, Natural: e.natural}
}

func (e *Engine) executor(logger *slog.Logger) *runtime.Executor {
	evalOpts := e.evalOptions()
	loops := loop.NewManager(e.conditions,
		loop.WithLocator(e.locator),
		loop.WithMaxIterations(e.loopMax),
		loop.WithTimeout(e.loopTimeout),
		loop.WithEvaluationOptions(evalOpts),
		loop.WithLogger(logger),
		loop.WithClock(e.now),
	)
	opts := []runtime.Option{
		runtime.WithLocator(e.locator),
		runtime.WithParser(e.parser),
		runtime.WithEvaluator(e.conditions),
		runtime.WithLoopManager(loops),
		runtime.WithHooks(e.hooks),
		runtime.WithLogger(logger),
		runtime.WithActionTimeout(e.actionTimeout),
		runtime.WithEvaluationOptions(evalOpts),
		runtime.WithNaturalLanguage(e.natural),
		runtime.WithCircuitBreaker(e.maxDepth, e.maxErrors),
		runtime.WithClock(e.now),
	}
	if e.actions != nil {
		opts = append(opts, runtime.WithActionExecutor(e.actions))
	}
	if e.snapshots > 0 {
		opts = append(opts, runtime.WithStoreOptions(variables.WithSnapshots(e.snapshots)))
	}
	return runtime.NewExecutor(opts...)
}

// execute runs the top-level steps in order, polling the circuit breaker
// before each one.
func execute(ctx context.Context, exec *runtime.Executor, steps []domain.Step, ec *domain.ExecutionContext) []domain.StepResult {
	results := make([]domain.StepResult, 0, len(steps))
	for _, s := range steps {
		if exec.ShouldStop(ec) {
			return append(results, exec.Stop(ec, s))
		}
		res := exec.ExecuteSteps(ctx, []domain.Step{s}, ec)
		results = append(results, res...)
		if len(res) == 0 || !res[len(res)-1].Success {
			break
		}
	}
	return results
}

func status(results []domain.StepResult, ec *domain.ExecutionContext) domain.RunStatus {
	if n := len(results); n == 0 || results[n-1].Success {
		return domain.RunPassed
	}
	for _, err := range ec.ErrorStack {
		if errors.Is(err, domain.ErrCircuitOpen) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.RunStopped
		}
	}
	return domain.RunFailed
}
