package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/tendril/internal/condition"
	"github.com/aretw0/tendril/pkg/domain"
)

func (e *Executor) action(ctx context.Context, s *domain.ActionStep, ec *domain.ExecutionContext) domain.StepResult {
	if e.actions == nil {
		return e.fail(ec, s, domain.ErrNoActionExecutor)
	}
	if e.actionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.actionTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("action panic: %v", p)
			}
		}()
		done <- e.actions.ExecuteAction(ctx, s, ec)
	}()

	select {
	case err := <-done:
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("action %q: %w", s.Action, domain.ErrTimeout)
			}
			return e.fail(ec, s, err)
		}
	case <-ctx.Done():
		return e.fail(ec, s, fmt.Errorf("action %q: %w", s.Action, domain.ErrTimeout))
	}
	return domain.StepResult{StepID: s.ID, Kind: domain.StepAction, Success: true}
}

func (e *Executor) condition(ctx context.Context, s *domain.ConditionStep, ec *domain.ExecutionContext) domain.StepResult {
	x, err := e.parser.ResolveCondition(s, e.natural)
	if err != nil {
		return e.fail(ec, s, err)
	}
	eval := e.evaluator.Evaluate(ctx, x, ec, e.evalOpts)
	if eval.Error != "" {
		// The branch still runs on the fallback; the error counts toward ShouldStop.
		ec.RecordError(&StepError{StepID: s.ID, Kind: domain.StepCondition, Err: fmt.Errorf("%w: %s", domain.ErrDegraded, eval.Error)})
		e.logger.Warn("condition evaluation degraded",
			"step_id", s.ID,
			"value", eval.Value,
			"err", eval.Error,
		)
	}

	branch, steps := domain.BranchElse, s.Else
	if eval.Value {
		branch, steps = domain.BranchThen, s.Then
	}
	text := s.Expression
	if text == "" {
		text = e.parser.Format(x)
	}
	ec.RecordPath(domain.PathEntry{StepID: s.ID, Branch: branch, Timestamp: e.now(), Expression: text})

	if len(steps) == 0 {
		return domain.StepResult{StepID: s.ID, Kind: domain.StepCondition, Success: true, Skipped: true, Branch: branch}
	}

	restore := ec.Descend()
	nested := e.ExecuteSteps(ctx, steps, ec)
	restore()

	res := propagate(s, nested)
	res.Branch = branch
	return res
}

// errBody marks a loop aborted by a failed body step already on the error stack.
var errBody = errors.New("loop body failed")

func (e *Executor) loop(ctx context.Context, s *domain.LoopStep, ec *domain.ExecutionContext) domain.StepResult {
	cfg, err := e.parser.ResolveLoop(s)
	if err != nil {
		return e.fail(ec, s, fmt.Errorf("%w: %v", domain.ErrInvalidLoop, err))
	}

	var bodyFailure string
	lr := e.loops.Execute(ctx, s.ID, cfg, ec, func(ctx context.Context, i int) error {
		ec.RecordPath(domain.PathEntry{
			StepID:     s.ID,
			Branch:     domain.BranchLoop,
			Timestamp:  e.now(),
			Expression: s.Expression,
			Iteration:  i,
		})
		restore := ec.Descend()
		defer restore()
		nested := e.ExecuteSteps(ctx, s.Body, ec)
		if n := len(nested); n > 0 && !nested[n-1].Success {
			bodyFailure = nested[n-1].Error
			return errBody
		}
		return nil
	})

	res := domain.StepResult{StepID: s.ID, Kind: domain.StepLoop, Success: lr.Completed, Loop: &lr}
	if lr.Completed {
		return res
	}
	if bodyFailure != "" {
		res.Error = bodyFailure
		lr.Error = bodyFailure
		return res
	}
	failed := e.fail(ec, s, loopError(lr))
	res.Error = failed.Error
	return res
}

func loopError(lr domain.LoopResult) error {
	switch lr.Reason {
	case domain.ReasonTimeout:
		return fmt.Errorf("%w: %s", domain.ErrTimeout, lr.Error)
	case domain.ReasonCanceled:
		return context.Canceled
	}
	return errors.New(lr.Error)
}

func (e *Executor) variable(ctx context.Context, s *domain.VariableStep, ec *domain.ExecutionContext) domain.StepResult {
	store := e.Store(ec)
	defer e.flush(ctx)

	op := s.Operation
	switch op.Type {
	case domain.VarSet:
		value := op.Value
		if text, ok := value.(string); ok {
			value = store.Resolve(text)
		}
		store.Set(op.Name, value)
	case domain.VarIncrement:
		by := op.By
		if by == 0 {
			by = 1
		}
		store.Increment(op.Name, by)
	case domain.VarExtract:
		timeout := e.evalOpts.Timeout
		if timeout <= 0 {
			timeout = condition.DefaultTimeout
		}
		if _, err := store.Extract(ctx, e.locator, op.Name, store.Replace(op.Source), op.Attribute, timeout); err != nil {
			return e.fail(ec, s, err)
		}
	case domain.VarDelete:
		store.Delete(op.Name)
	case domain.VarClear:
		store.Clear()
	default:
		return e.fail(ec, s, fmt.Errorf("unknown variable operation %q", op.Type))
	}
	return domain.StepResult{StepID: s.ID, Kind: domain.StepVariable, Success: true}
}

// flush hands buffered variable events to the OnVariable hook.
func (e *Executor) flush(ctx context.Context) {
	events := e.pending
	e.pending = nil
	if e.hooks.OnVariable == nil {
		return
	}
	for i := range events {
		e.hooks.OnVariable(ctx, &events[i])
	}
}
