// Package loop executes count, while and forEach loops with iteration caps,
// wall-clock timeouts and loop-stack bookkeeping.
package loop

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/tendril/internal/condition"
	"github.com/aretw0/tendril/internal/locate"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

const (
	DefaultMaxIterations = 100
	DefaultTimeout       = 5 * time.Minute
	DefaultItemVariable  = "item"
)

// Evaluator evaluates while-loop conditions. *condition.Engine implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, x domain.Expression, ec *domain.ExecutionContext, opts condition.Options) domain.EvaluationResult
	EvaluateText(ctx context.Context, text string, ec *domain.ExecutionContext, opts condition.Options) domain.EvaluationResult
}

// Body runs one iteration. A non-nil error aborts the loop.
type Body func(ctx context.Context, iteration int) error

// Manager executes loops.
type Manager struct {
	evaluator     Evaluator
	locator       ports.Locator
	logger        *slog.Logger
	maxIterations int
	timeout       time.Duration
	evalOpts      condition.Options
	now           func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLocator sets the locator used to resolve selector collections.
func WithLocator(l ports.Locator) Option {
	return func(m *Manager) {
		m.locator = l
	}
}

// WithMaxIterations sets the default iteration cap.
func WithMaxIterations(n int) Option {
	return func(m *Manager) {
		m.maxIterations = n
	}
}

// WithTimeout sets the default wall-clock budget of a loop.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithEvaluationOptions sets the options of while-condition evaluations.
func WithEvaluationOptions(opts condition.Options) Option {
	return func(m *Manager) {
		m.evalOpts = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides the time source used for timeouts.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a loop manager evaluating while conditions with evaluator.
func NewManager(evaluator Evaluator, opts ...Option) *Manager {
	m := &Manager{
		evaluator:     evaluator,
		logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		maxIterations: DefaultMaxIterations,
		timeout:       DefaultTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Depth reports the number of open loops.
func Depth(ec *domain.ExecutionContext) int {
	return len(ec.LoopStack)
}

// Execute runs the loop described by cfg, calling body once per iteration.
// The loop frame is pushed on ec.LoopStack for the duration of the call and
// popped on every exit path.
func (m *Manager) Execute(ctx context.Context, loopID string, cfg domain.LoopConfig, ec *domain.ExecutionContext, body Body) domain.LoopResult {
	r := &run{
		m:       m,
		ec:      ec,
		body:    body,
		start:   m.now(),
		max:     cfg.MaxIterations,
		timeout: cfg.Timeout,
	}
	if r.max <= 0 {
		r.max = m.maxIterations
	}
	if r.timeout <= 0 {
		r.timeout = m.timeout
	}
	r.frame = &domain.LoopContext{
		LoopID:        loopID,
		Type:          cfg.Type,
		MaxIterations: r.max,
		StartTime:     r.start,
		Timeout:       r.timeout,
	}
	defer push(ec, r.frame)()

	var res domain.LoopResult
	switch cfg.Type {
	case domain.LoopCount:
		res = r.count(ctx, cfg)
	case domain.LoopWhile:
		res = r.while(ctx, cfg)
	case domain.LoopForEach:
		res = r.forEach(ctx, cfg)
	default:
		res = r.failed(0, fmt.Errorf("%w: unknown loop type %q", domain.ErrInvalidLoop, cfg.Type))
	}
	res.Duration = m.now().Sub(r.start)

	m.logger.Debug("loop finished",
		"loop_id", loopID,
		"type", cfg.Type,
		"iterations", res.Iterations,
		"reason", res.Reason,
		"duration", res.Duration,
	)
	return res
}

// push appends frame and returns the func removing it.
func push(ec *domain.ExecutionContext, frame *domain.LoopContext) func() {
	ec.LoopStack = append(ec.LoopStack, frame)
	return func() {
		for i := len(ec.LoopStack) - 1; i >= 0; i-- {
			if ec.LoopStack[i] == frame {
				ec.LoopStack = append(ec.LoopStack[:i], ec.LoopStack[i+1:]...)
				return
			}
		}
	}
}

type run struct {
	m       *Manager
	ec      *domain.ExecutionContext
	body    Body
	frame   *domain.LoopContext
	start   time.Time
	max     int
	timeout time.Duration
}

// interrupted reports a timeout or cancellation before the next iteration.
func (r *run) interrupted(ctx context.Context) (domain.LoopReason, bool) {
	if ctx.Err() != nil {
		return domain.ReasonCanceled, true
	}
	if r.timeout > 0 && r.m.now().Sub(r.start) > r.timeout {
		return domain.ReasonTimeout, true
	}
	return "", false
}

func (r *run) iterate(ctx context.Context, i int) (err error) {
	r.frame.Iteration = i
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("loop body panic: %v", p)
		}
	}()
	return r.body(ctx, i)
}

func (r *run) failed(iterations int, err error) domain.LoopResult {
	return domain.LoopResult{Completed: false, Iterations: iterations, Reason: domain.ReasonError, Error: err.Error()}
}

func (r *run) stopped(iterations int, reason domain.LoopReason) domain.LoopResult {
	res := domain.LoopResult{Completed: false, Iterations: iterations, Reason: reason}
	if reason == domain.ReasonTimeout {
		res.Error = fmt.Sprintf("loop timed out after %d iterations", iterations)
	} else {
		res.Error = "loop canceled"
	}
	return res
}

func (r *run) count(ctx context.Context, cfg domain.LoopConfig) domain.LoopResult {
	if cfg.Count <= 0 {
		return r.failed(0, fmt.Errorf("%w: count must be positive, got %d", domain.ErrInvalidLoop, cfg.Count))
	}
	n := min(cfg.Count, r.max)
	for i := range n {
		if reason, stop := r.interrupted(ctx); stop {
			return r.stopped(i, reason)
		}
		if err := r.iterate(ctx, i); err != nil {
			return r.failed(i, err)
		}
	}
	return domain.LoopResult{Completed: true, Iterations: n, Reason: domain.ReasonMaxIterations}
}

func (r *run) while(ctx context.Context, cfg domain.LoopConfig) domain.LoopResult {
	if cfg.Condition == nil && strings.TrimSpace(cfg.ConditionText) == "" {
		return r.failed(0, fmt.Errorf("%w: while loop requires a condition", domain.ErrInvalidLoop))
	}
	if r.m.evaluator == nil {
		return r.failed(0, fmt.Errorf("%w: no condition evaluator", domain.ErrInvalidLoop))
	}
	for i := 0; ; i++ {
		if reason, stop := r.interrupted(ctx); stop {
			return r.stopped(i, reason)
		}
		if i >= r.max {
			return domain.LoopResult{
				Completed:  false,
				Iterations: i,
				Reason:     domain.ReasonMaxIterations,
				Error:      fmt.Sprintf("while loop exceeded %d iterations", r.max),
			}
		}
		var res domain.EvaluationResult
		if cfg.Condition != nil {
			res = r.m.evaluator.Evaluate(ctx, cfg.Condition, r.ec, r.m.evalOpts)
		} else {
			res = r.m.evaluator.EvaluateText(ctx, cfg.ConditionText, r.ec, r.m.evalOpts)
		}
		if !res.Success || !res.Value {
			return domain.LoopResult{Completed: true, Iterations: i, Reason: domain.ReasonConditionFalse}
		}
		if err := r.iterate(ctx, i); err != nil {
			return r.failed(i, err)
		}
	}
}

func (r *run) forEach(ctx context.Context, cfg domain.LoopConfig) domain.LoopResult {
	items, selectors, err := r.m.collection(ctx, cfg.Collection, r.ec)
	if err != nil {
		return r.failed(0, err)
	}
	item := cfg.ItemVariable
	if item == "" {
		item = DefaultItemVariable
	}
	selectorVar := item + ".selector"
	defer func() {
		delete(r.ec.Variables, item)
		delete(r.ec.Variables, selectorVar)
	}()

	r.frame.Collection = items
	n := min(len(items), r.max)
	for i := range n {
		if reason, stop := r.interrupted(ctx); stop {
			return r.stopped(i, reason)
		}
		r.frame.CurrentItem = items[i]
		r.ec.Variables[item] = items[i]
		if selectors != nil {
			r.ec.Variables[selectorVar] = selectors[i]
		}
		if err := r.iterate(ctx, i); err != nil {
			return r.failed(i, err)
		}
	}
	reason := domain.ReasonCollectionEnd
	if len(items) > r.max {
		reason = domain.ReasonMaxIterations
	}
	return domain.LoopResult{Completed: true, Iterations: n, Reason: reason}
}

// collection resolves a forEach source. Context variables win; selector-looking
// references are enumerated through a CollectionLocator. For selector
// collections the items are element texts and selectors holds each element's
// selector.
func (m *Manager) collection(ctx context.Context, ref string, ec *domain.ExecutionContext) (items []any, selectors []string, err error) {
	name := strings.TrimSpace(ref)
	if strings.HasPrefix(name, "${") && strings.HasSuffix(name, "}") {
		name = strings.TrimSpace(name[2 : len(name)-1])
	}
	if name == "" {
		return nil, nil, fmt.Errorf("%w: forEach requires a collection", domain.ErrInvalidLoop)
	}
	if v, ok := ec.Variables[name]; ok {
		return toSlice(v), nil, nil
	}
	if !LooksLikeSelector(name) {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrCollectionNotFound, name)
	}

	cl, ok := m.locator.(ports.CollectionLocator)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", domain.ErrSelectorCollection, name)
	}
	timeout := m.evalOpts.Timeout
	if timeout <= 0 {
		timeout = condition.DefaultTimeout
	}
	els, err := locate.AllWithin(ctx, cl, name, ports.LocateOptions{Timeout: timeout})
	if err != nil {
		return nil, nil, fmt.Errorf("resolve collection %q: %w", name, err)
	}
	items = make([]any, len(els))
	selectors = make([]string, len(els))
	for i, el := range els {
		if el == nil {
			continue
		}
		items[i] = el.Text
		selectors[i] = el.Selector
	}
	return items, selectors, nil
}

// LooksLikeSelector reports whether ref reads as a CSS, XPath or Playwright selector
// rather than a variable name.
func LooksLikeSelector(ref string) bool {
	if ref == "" {
		return false
	}
	if strings.ContainsAny(ref[:1], ".#[/*") {
		return true
	}
	for _, prefix := range []string{"css=", "xpath=", "text=", "id="} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return strings.ContainsAny(ref, " >[:=")
}

func toSlice(v any) []any {
	if v == nil {
		return nil
	}
	if items, ok := v.([]any); ok {
		return items
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	default:
		return []any{v}
	}
}
