package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Engine runs one test case. *tendril.Engine implements it.
type Engine interface {
	Run(ctx context.Context, tc *domain.TestCase) (*domain.RunReport, error)
}

// Outcome is the result of one test case in a batch. Err is set when the test
// case could not be loaded, locked or run; Report may still be set alongside
// it for report store failures.
type Outcome struct {
	ID     string
	Report *domain.RunReport
	Err    error
}

// Passed reports whether the test case ran and passed.
func (o Outcome) Passed() bool {
	return o.Err == nil && o.Report != nil && o.Report.Passed()
}

// Summary aggregates a batch.
type Summary struct {
	Outcomes []Outcome
	Passed   int
	Failed   int
	Stopped  int
	Errored  int
	Duration time.Duration
}

// OK reports whether every test case passed.
func (s *Summary) OK() bool {
	return s.Passed == len(s.Outcomes)
}

func (s *Summary) add(o Outcome) {
	switch {
	case o.Err != nil:
		s.Errored++
	case o.Report.Status == domain.RunPassed:
		s.Passed++
	case o.Report.Status == domain.RunStopped:
		s.Stopped++
	default:
		s.Failed++
	}
}

// Runner executes test cases from a loader.
type Runner struct {
	engine      Engine
	loader      ports.TestCaseLoader
	concurrency int
	locker      ports.Locker
	lockTTL     time.Duration
	failFast    bool
	filter      func(string) bool
	onReport    func(*domain.RunReport)
	logger      *slog.Logger
	now         func() time.Time
}

// errNotPassed cancels a fail-fast batch.
var errNotPassed = errors.New("test case did not pass")

// New creates a runner.
func New(engine Engine, loader ports.TestCaseLoader, opts ...Option) *Runner {
	r := &Runner{
		engine:      engine,
		loader:      loader,
		concurrency: DefaultConcurrency,
		lockTTL:     DefaultLockTTL,
		logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll runs every test case the loader lists.
func (r *Runner) RunAll(ctx context.Context) (*Summary, error) {
	ids, err := r.loader.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	if r.filter != nil {
		kept := ids[:0:0]
		for _, id := range ids {
			if r.filter(id) {
				kept = append(kept, id)
			}
		}
		ids = kept
	}
	return r.Run(ctx, ids...)
}

// Run runs the given test cases. Outcomes keep the order of ids. The error is
// only set when ctx ends before every test case was attempted.
func (r *Runner) Run(ctx context.Context, ids ...string) (*Summary, error) {
	start := r.now()
	outcomes := make([]Outcome, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		if gctx.Err() != nil {
			outcomes[i] = Outcome{ID: id, Err: context.Cause(gctx)}
			continue
		}
		g.Go(func() error {
			outcomes[i] = r.runOne(gctx, id)
			if r.failFast && !outcomes[i].Passed() {
				return errNotPassed
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{Outcomes: outcomes, Duration: r.now().Sub(start)}
	for _, o := range outcomes {
		summary.add(o)
	}
	r.logger.Info("batch finished",
		"total", len(ids),
		"passed", summary.Passed,
		"failed", summary.Failed,
		"stopped", summary.Stopped,
		"errored", summary.Errored,
		"duration", summary.Duration,
	)
	return summary, ctx.Err()
}

func (r *Runner) runOne(ctx context.Context, id string) Outcome {
	out := Outcome{ID: id}
	if ctx.Err() != nil {
		out.Err = context.Cause(ctx)
		return out
	}
	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, id, r.lockTTL)
		if err != nil {
			out.Err = fmt.Errorf("lock %s: %w", id, err)
			return out
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("failed to release lock", "test_case_id", id, "err", err)
			}
		}()
	}

	tc, err := r.loader.Load(ctx, id)
	if err != nil {
		out.Err = err
		return out
	}

	out.Report, out.Err = r.engine.Run(ctx, tc)
	if out.Report != nil && r.onReport != nil {
		r.onReport(out.Report)
	}
	if out.Err != nil {
		r.logger.Warn("test case errored", "test_case_id", id, "err", out.Err)
	}
	return out
}
