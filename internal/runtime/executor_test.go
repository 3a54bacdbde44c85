package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/tendril/internal/condition"
	"github.com/aretw0/tendril/internal/runtime"
	"github.com/aretw0/tendril/internal/testutils"
	"github.com/aretw0/tendril/internal/variables"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func act(id string) *domain.ActionStep {
	return &domain.ActionStep{ID: id, Action: "click", Target: "#" + id}
}

func TestExecutor_ConditionTakesThenBranch(t *testing.T) {
	actions := testutils.NewActionRecorder()
	ex := runtime.NewExecutor(runtime.WithActionExecutor(actions))
	ec := domain.NewExecutionContext(map[string]any{"x": 5})

	res := ex.ExecuteStep(context.Background(), &domain.ConditionStep{
		ID:         "check",
		Expression: "x > 3",
		Then:       []domain.Step{act("yes")},
		Else:       []domain.Step{act("no")},
	}, ec)

	require.True(t, res.Success)
	assert.Equal(t, domain.BranchThen, res.Branch)
	assert.Equal(t, []string{"yes"}, actions.IDs())
	require.Len(t, ec.PathHistory, 1)
	assert.Equal(t, domain.BranchThen, ec.PathHistory[0].Branch)
	assert.Equal(t, "x > 3", ec.PathHistory[0].Expression)
	assert.Zero(t, ec.CurrentDepth)

	st := runtime.Stats(ec)
	assert.Equal(t, 1, st.ThenBranches)
	assert.Zero(t, st.ElseBranches)
}

func TestExecutor_EmptyBranchIsSkipped(t *testing.T) {
	ex := runtime.NewExecutor()
	ec := domain.NewExecutionContext(map[string]any{"x": 1})

	res := ex.ExecuteStep(context.Background(), &domain.ConditionStep{
		ID:        "check",
		Condition: &domain.VariableCondition{Name: "x", Operator: domain.CompareGreater, Value: int64(3)},
		Then:      []domain.Step{act("never")},
	}, ec)

	assert.True(t, res.Success)
	assert.True(t, res.Skipped)
	assert.Equal(t, domain.BranchElse, res.Branch)
	require.Len(t, ec.PathHistory, 1)
	assert.Equal(t, "x > 3", ec.PathHistory[0].Expression)
}

func TestExecutor_CountLoopCappedByMaxIterations(t *testing.T) {
	actions := testutils.NewActionRecorder()
	ex := runtime.NewExecutor(runtime.WithActionExecutor(actions))
	ec := domain.NewExecutionContext(nil)

	res := ex.ExecuteStep(context.Background(), &domain.LoopStep{
		ID:   "l",
		Loop: domain.LoopConfig{Type: domain.LoopCount, Count: 5, MaxIterations: 3},
		Body: []domain.Step{act("tick")},
	}, ec)

	require.True(t, res.Success)
	require.NotNil(t, res.Loop)
	assert.Equal(t, 3, res.Loop.Iterations)
	assert.Equal(t, domain.ReasonMaxIterations, res.Loop.Reason)
	assert.Len(t, actions.IDs(), 3)
	assert.Equal(t, 3, runtime.Stats(ec).LoopIterations)
	assert.Empty(t, ec.LoopStack)
}

func TestExecutor_WhileFalseRunsNothing(t *testing.T) {
	actions := testutils.NewActionRecorder()
	ex := runtime.NewExecutor(runtime.WithActionExecutor(actions))
	ec := domain.NewExecutionContext(map[string]any{"x": 0})

	res := ex.ExecuteStep(context.Background(), &domain.LoopStep{
		ID:         "w",
		Expression: "while x > 0",
		Body:       []domain.Step{act("tick")},
	}, ec)

	require.True(t, res.Success)
	assert.Equal(t, 0, res.Loop.Iterations)
	assert.Equal(t, domain.ReasonConditionFalse, res.Loop.Reason)
	assert.Empty(t, actions.IDs())
}

func TestExecutor_WhileWithCounter(t *testing.T) {
	ex := runtime.NewExecutor()
	ec := domain.NewExecutionContext(map[string]any{"n": 0})

	res := ex.ExecuteStep(context.Background(), &domain.LoopStep{
		ID:         "w",
		Expression: "while n < 4",
		Body: []domain.Step{
			&domain.VariableStep{ID: "inc", Operation: domain.VariableOperation{Type: domain.VarIncrement, Name: "n"}},
		},
	}, ec)

	require.True(t, res.Success)
	assert.Equal(t, 4, res.Loop.Iterations)
	assert.Equal(t, 4, ec.Variables["n"])
}

func TestExecutor_ForEachBindsAndRemovesItem(t *testing.T) {
	var seen []any
	actions := testutils.NewActionRecorder().Do(func(_ *domain.ActionStep, ec *domain.ExecutionContext) {
		seen = append(seen, ec.Variables["user"])
	})
	ex := runtime.NewExecutor(runtime.WithActionExecutor(actions))
	ec := domain.NewExecutionContext(map[string]any{"users": []any{"ana", "bia"}})

	res := ex.ExecuteStep(context.Background(), &domain.LoopStep{
		ID:         "each",
		Expression: "for each user in users",
		Body:       []domain.Step{act("greet")},
	}, ec)

	require.True(t, res.Success)
	assert.Equal(t, domain.ReasonCollectionEnd, res.Loop.Reason)
	assert.Equal(t, []any{"ana", "bia"}, seen)
	assert.NotContains(t, ec.Variables, "user")
}

func TestExecutor_VariableOperations(t *testing.T) {
	var events []domain.VariableChangeEvent
	ex := runtime.NewExecutor(runtime.WithHooks(domain.ExecutionHooks{
		OnVariable: func(_ context.Context, ev *domain.VariableChangeEvent) {
			events = append(events, *ev)
		},
	}))
	ec := domain.NewExecutionContext(map[string]any{"name": "ana", "limit": 3})

	results := ex.ExecuteSteps(context.Background(), []domain.Step{
		&domain.VariableStep{ID: "greet", Operation: domain.VariableOperation{Type: domain.VarSet, Name: "greeting", Value: "hi ${name}"}},
		&domain.VariableStep{ID: "copy", Operation: domain.VariableOperation{Type: domain.VarSet, Name: "max", Value: "${limit}"}},
		&domain.VariableStep{ID: "inc", Operation: domain.VariableOperation{Type: domain.VarIncrement, Name: "max", By: 2}},
		&domain.VariableStep{ID: "drop", Operation: domain.VariableOperation{Type: domain.VarDelete, Name: "name"}},
	}, ec)

	require.Len(t, results, 4)
	for _, r := range results {
		assert.True(t, r.Success, r.StepID)
	}
	assert.Equal(t, "hi ana", ec.Variables["greeting"])
	assert.Equal(t, 5, ec.Variables["max"])
	assert.NotContains(t, ec.Variables, "name")

	require.Len(t, events, 4)
	assert.Equal(t, domain.VarDelete, events[3].Operation)
	assert.Equal(t, "ana", events[3].OldValue)
}

func TestExecutor_Extract(t *testing.T) {
	l := testutils.NewFakeLocator().WithElement("#price", &domain.Element{Text: "42"})
	ex := runtime.NewExecutor(runtime.WithLocator(l))
	ec := domain.NewExecutionContext(nil)

	res := ex.ExecuteStep(context.Background(), &domain.VariableStep{
		ID:        "price",
		Operation: domain.VariableOperation{Type: domain.VarExtract, Name: "price", Source: "#price"},
	}, ec)

	require.True(t, res.Success)
	assert.Equal(t, "42", ec.Variables["price"])
	assert.Equal(t, "42", ec.Variables[variables.TextCachePrefix+"#price"])

	res = ex.ExecuteStep(context.Background(), &domain.VariableStep{
		ID:        "missing",
		Operation: domain.VariableOperation{Type: domain.VarExtract, Name: "x", Source: "#nope"},
	}, ec)
	assert.False(t, res.Success)
	require.Len(t, ec.ErrorStack, 1)
	assert.ErrorIs(t, ec.ErrorStack[0], domain.ErrElementNotFound)
}

func TestExecutor_FailFastRecordsOriginOnce(t *testing.T) {
	boom := errors.New("button detached")
	actions := testutils.NewActionRecorder().FailOn("second", boom)
	ex := runtime.NewExecutor(runtime.WithActionExecutor(actions))
	ec := domain.NewExecutionContext(map[string]any{"go": 1})

	results := ex.ExecuteSteps(context.Background(), []domain.Step{
		&domain.LoopStep{ID: "loop", Loop: domain.LoopConfig{Type: domain.LoopCount, Count: 3}, Body: []domain.Step{
			&domain.ConditionStep{ID: "cond", Expression: "go == 1", Then: []domain.Step{act("first"), act("second"), act("third")}},
		}},
		act("after"),
	}, ec)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "button detached")
	assert.Equal(t, domain.ReasonError, results[0].Loop.Reason)
	assert.Equal(t, 0, results[0].Loop.Iterations)
	assert.Equal(t, []string{"first", "second"}, actions.IDs())

	require.Len(t, ec.ErrorStack, 1)
	var serr *runtime.StepError
	require.ErrorAs(t, ec.ErrorStack[0], &serr)
	assert.Equal(t, "second", serr.StepID)
	assert.ErrorIs(t, ec.ErrorStack[0], boom)
	assert.Zero(t, ec.CurrentDepth)
}

func TestExecutor_MissingActionExecutor(t *testing.T) {
	ex := runtime.NewExecutor()
	ec := domain.NewExecutionContext(nil)

	res := ex.ExecuteStep(context.Background(), act("a"), ec)

	assert.False(t, res.Success)
	assert.ErrorIs(t, ec.ErrorStack[0], domain.ErrNoActionExecutor)
}

func TestExecutor_ActionTimeout(t *testing.T) {
	actions := testutils.NewActionRecorder().BlockOn("slow")
	ex := runtime.NewExecutor(runtime.WithActionExecutor(actions), runtime.WithActionTimeout(20*time.Millisecond))
	ec := domain.NewExecutionContext(nil)

	res := ex.ExecuteStep(context.Background(), act("slow"), ec)

	assert.False(t, res.Success)
	assert.ErrorIs(t, ec.ErrorStack[0], domain.ErrTimeout)
}

func TestExecutor_ActionPanic(t *testing.T) {
	actions := testutils.NewActionRecorder().Do(func(*domain.ActionStep, *domain.ExecutionContext) {
		panic("driver crashed")
	})
	ex := runtime.NewExecutor(runtime.WithActionExecutor(actions))

	res := ex.ExecuteStep(context.Background(), act("a"), domain.NewExecutionContext(nil))

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "driver crashed")
}

type panicEvaluator struct{}

func (panicEvaluator) Evaluate(context.Context, domain.Expression, *domain.ExecutionContext, condition.Options) domain.EvaluationResult {
	panic("evaluator bug")
}

func (panicEvaluator) EvaluateText(context.Context, string, *domain.ExecutionContext, condition.Options) domain.EvaluationResult {
	panic("evaluator bug")
}

func TestExecutor_RecoversPanics(t *testing.T) {
	var completed *domain.StepResult
	ex := runtime.NewExecutor(
		runtime.WithEvaluator(panicEvaluator{}),
		runtime.WithHooks(domain.ExecutionHooks{
			OnStepComplete: func(_ context.Context, ev *domain.StepEvent) { completed = ev.Result },
		}),
	)
	ec := domain.NewExecutionContext(nil)

	res := ex.ExecuteStep(context.Background(), &domain.ConditionStep{ID: "c", Expression: "x == 1", Then: []domain.Step{act("a")}}, ec)

	assert.False(t, res.Success)
	assert.Equal(t, "c", res.StepID)
	assert.Contains(t, res.Error, "evaluator bug")
	require.NotNil(t, completed)
	assert.False(t, completed.Success)
	assert.Len(t, ec.ErrorStack, 1)
}

func TestExecutor_InvalidStructures(t *testing.T) {
	ex := runtime.NewExecutor()

	tests := []struct {
		name string
		step domain.Step
		want error
	}{
		{"Nil Step", nil, domain.ErrUnknownStep},
		{"Bad Loop", &domain.LoopStep{ID: "l", Expression: "repeat 0 times", Body: []domain.Step{act("a")}}, domain.ErrInvalidLoop},
		{"Missing Collection", &domain.LoopStep{ID: "l", Expression: "for each x in nothing", Body: []domain.Step{act("a")}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := domain.NewExecutionContext(nil)
			res := ex.ExecuteStep(context.Background(), tt.step, ec)
			assert.False(t, res.Success)
			require.Len(t, ec.ErrorStack, 1)
			if tt.want != nil {
				assert.ErrorIs(t, ec.ErrorStack[0], tt.want)
			}
		})
	}
}

func TestExecutor_ShouldStop(t *testing.T) {
	ex := runtime.NewExecutor(runtime.WithCircuitBreaker(2, 1))

	ec := domain.NewExecutionContext(nil)
	assert.False(t, ex.ShouldStop(ec))

	ec.CurrentDepth = 3
	assert.True(t, ex.ShouldStop(ec))

	ec = domain.NewExecutionContext(nil)
	ec.RecordError(errors.New("a"))
	ec.RecordError(errors.New("b"))
	assert.True(t, ex.ShouldStop(ec))

	res := ex.Stop(ec, act("a"))
	assert.False(t, res.Success)
	assert.Equal(t, "a", res.StepID)
	assert.ErrorIs(t, ec.ErrorStack[len(ec.ErrorStack)-1], domain.ErrCircuitOpen)
}

func TestExecutor_DeepNestingIsNotEnforced(t *testing.T) {
	actions := testutils.NewActionRecorder()
	ex := runtime.NewExecutor(runtime.WithActionExecutor(actions))

	var step domain.Step = act("leaf")
	for range runtime.DefaultMaxDepth + 1 {
		step = &domain.ConditionStep{ID: "c", Expression: "x == 1", Then: []domain.Step{step}}
	}
	ec := domain.NewExecutionContext(map[string]any{"x": 1})

	res := ex.ExecuteStep(context.Background(), step, ec)

	assert.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"leaf"}, actions.IDs())
	assert.Empty(t, ec.ErrorStack)
	assert.Equal(t, runtime.DefaultMaxDepth, runtime.Stats(ec).MaxDepth)
	assert.False(t, ex.ShouldStop(ec))
}

func TestExecutor_DegradedConditionIsRecorded(t *testing.T) {
	actions := testutils.NewActionRecorder()
	ex := runtime.NewExecutor(runtime.WithActionExecutor(actions))
	ec := domain.NewExecutionContext(nil)

	res := ex.ExecuteStep(context.Background(), &domain.ConditionStep{
		ID:         "spinner",
		Expression: `element "#spinner" exists`,
		Else:       []domain.Step{act("go")},
	}, ec)

	assert.True(t, res.Success)
	assert.Equal(t, domain.BranchElse, res.Branch)
	assert.Equal(t, []string{"go"}, actions.IDs())
	require.Len(t, ec.ErrorStack, 1)
	assert.ErrorIs(t, ec.ErrorStack[0], domain.ErrDegraded)
	assert.Contains(t, ec.ErrorStack[0].Error(), domain.ErrNoLocator.Error())
}

func TestExecutor_CanceledContext(t *testing.T) {
	ex := runtime.NewExecutor(runtime.WithActionExecutor(testutils.NewActionRecorder()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ec := domain.NewExecutionContext(nil)

	results := ex.ExecuteSteps(ctx, []domain.Step{act("a"), act("b")}, ec)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, ec.ErrorStack[0], context.Canceled)
}

func TestExecutor_HooksAndStats(t *testing.T) {
	var started, completed []string
	ex := runtime.NewExecutor(
		runtime.WithActionExecutor(testutils.NewActionRecorder()),
		runtime.WithHooks(domain.ExecutionHooks{
			OnStepStart:    func(_ context.Context, ev *domain.StepEvent) { started = append(started, ev.StepID) },
			OnStepComplete: func(_ context.Context, ev *domain.StepEvent) { completed = append(completed, ev.StepID) },
		}),
	)
	ec := domain.NewExecutionContext(map[string]any{"x": 1})

	results := ex.ExecuteSteps(context.Background(), []domain.Step{
		&domain.LoopStep{ID: "loop", Loop: domain.LoopConfig{Type: domain.LoopCount, Count: 2}, Body: []domain.Step{
			&domain.ConditionStep{ID: "cond", Expression: "x == 1", Then: []domain.Step{act("a")}},
		}},
	}, ec)

	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	assert.Equal(t, []string{"loop", "cond", "a", "cond", "a"}, started)
	assert.Equal(t, []string{"a", "cond", "a", "cond", "loop"}, completed)

	st := runtime.Stats(ec)
	assert.Equal(t, domain.ExecutionStats{
		TotalEntries:   4,
		Branches:       2,
		ThenBranches:   2,
		LoopIterations: 2,
		MaxDepth:       1,
	}, st)
}
