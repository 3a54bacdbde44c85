package tendril

import (
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/expr"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLocator sets the element locator used by conditions, forEach selectors
// and extract operations.
func WithLocator(l ports.Locator) Option {
	return func(e *Engine) {
		e.locator = l
	}
}

// WithActionExecutor sets the driver for action steps.
func WithActionExecutor(a ports.ActionExecutor) Option {
	return func(e *Engine) {
		e.actions = a
	}
}

// WithLoader sets the source used by RunTestCase.
func WithLoader(l ports.TestCaseLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithReportStore persists every finished run.
func WithReportStore(s ports.ReportStore) Option {
	return func(e *Engine) {
		e.reports = s
	}
}

// WithHooks registers execution observers. Repeated calls accumulate.
func WithHooks(h domain.ExecutionHooks) Option {
	return func(e *Engine) {
		e.hooks = domain.MergeHooks(e.hooks, h)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithEvaluationTimeout bounds each locator or page-state probe of a condition.
func WithEvaluationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.evalTimeout = d
	}
}

// WithFallback sets the value conditions take when they cannot be evaluated.
func WithFallback(v bool) Option {
	return func(e *Engine) {
		e.fallback = v
	}
}

// WithNaturalLanguage makes raw condition text go through inference instead of
// the strict grammar.
func WithNaturalLanguage(enabled bool) Option {
	return func(e *Engine) {
		e.natural = enabled
	}
}

// WithEnglishOnly disables the Portuguese keywords.
func WithEnglishOnly() Option {
	return func(e *Engine) {
		e.keywords = expr.English
	}
}

// WithActionTimeout bounds each action step.
func WithActionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.actionTimeout = d
	}
}

// WithLoopLimits sets the default iteration cap and wall-clock budget of loops.
// Zero keeps the built-in default.
func WithLoopLimits(maxIterations int, timeout time.Duration) Option {
	return func(e *Engine) {
		e.loopMax = maxIterations
		e.loopTimeout = timeout
	}
}

// WithCircuitBreaker sets the limits polled between top-level steps: a run
// is stopped once it nests deeper than maxDepth or has recorded more than
// maxErrors errors, degraded conditions included.
func WithCircuitBreaker(maxDepth, maxErrors int) Option {
	return func(e *Engine) {
		e.maxDepth = maxDepth
		e.maxErrors = maxErrors
	}
}

// WithSnapshots sets how many variable snapshots a run keeps.
func WithSnapshots(n int) Option {
	return func(e *Engine) {
		e.snapshots = n
	}
}

// WithoutValidation skips static validation before a run.
func WithoutValidation() Option {
	return func(e *Engine) {
		e.skipValidation = true
	}
}

// WithIDGenerator replaces the uuid run id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}
