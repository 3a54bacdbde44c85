package tendril_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/runtime"
	"github.com/aretw0/tendril/internal/testutils"
	"github.com/aretw0/tendril/internal/validator"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visible() *domain.Element {
	return &domain.Element{Bounds: domain.Bounds{Width: 10, Height: 10}}
}

func fixedID() tendril.Option {
	return tendril.WithIDGenerator(func() string { return "run-1" })
}

func TestEngine_RunPasses(t *testing.T) {
	locator := testutils.NewFakeLocator().
		WithElement("#banner", visible()).
		WithCollection(".item", &domain.Element{Text: "a", Selector: ".item:nth-child(1)"}, &domain.Element{Text: "b", Selector: ".item:nth-child(2)"})
	actions := testutils.NewActionRecorder()
	store := memory.NewStore()
	eng := tendril.New(
		tendril.WithLocator(locator),
		tendril.WithActionExecutor(actions),
		tendril.WithReportStore(store),
		tendril.WithSnapshots(10),
		fixedID(),
	)

	b := dsl.New("shop").Name("Shop").Var("seen", 0)
	b.Action("open", "navigate", "/")
	b.If("banner", `element "#banner" is visible`, func(then *dsl.Steps) {
		then.Action("close", "click", "#banner .close")
	}).Else(func(els *dsl.Steps) {
		els.Action("skip", "click", "#skip")
	})
	b.ForEach("items", ".item", "item", func(body *dsl.Steps) {
		body.Action("open-item", "click", "${item.selector}")
		body.Increment("count", "seen", 1)
	})

	report, err := eng.Run(context.Background(), b.Build())

	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, domain.RunPassed, report.Status)
	assert.Equal(t, []string{"open", "close", "open-item", "count", "open-item", "count"}, actions.IDs())
	assert.EqualValues(t, 2, report.Variables["seen"])
	assert.NotContains(t, report.Variables, "item")
	assert.Equal(t, 1, report.Stats.ThenBranches)
	assert.Equal(t, 2, report.Stats.LoopIterations)
	assert.Len(t, report.Snapshots, 2)
	assert.Empty(t, report.Errors)

	saved, err := store.Load(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunPassed, saved.Status)
}

func TestEngine_RunFailsOnStep(t *testing.T) {
	actions := testutils.NewActionRecorder().FailOn("pay", errors.New("card declined"))
	eng := tendril.New(tendril.WithActionExecutor(actions))

	b := dsl.New("checkout")
	b.Action("pay", "click", "#pay")
	b.Action("confirm", "click", "#confirm")

	report, err := eng.Run(context.Background(), b.Build())

	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, report.Status)
	assert.Equal(t, []string{"pay"}, actions.IDs())
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "card declined")
}

func TestEngine_RunStoppedByCancel(t *testing.T) {
	eng := tendril.New(tendril.WithActionExecutor(testutils.NewActionRecorder()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := dsl.New("c")
	b.Action("a", "click", "#a")
	report, err := eng.Run(ctx, b.Build())

	require.NoError(t, err)
	assert.Equal(t, domain.RunStopped, report.Status)
}

func TestEngine_RunStoppedByCircuitBreaker(t *testing.T) {
	actions := testutils.NewActionRecorder()
	eng := tendril.New(
		tendril.WithActionExecutor(actions),
		tendril.WithCircuitBreaker(runtime.DefaultMaxDepth, 1),
	)

	b := dsl.New("spinner")
	b.If("first", `element "#spinner" exists`, func(then *dsl.Steps) {
		then.Action("wait-1", "click", "#wait")
	})
	b.If("second", `element "#spinner" exists`, func(then *dsl.Steps) {
		then.Action("wait-2", "click", "#wait")
	})
	b.Action("after", "click", "#after")

	report, err := eng.Run(context.Background(), b.Build())

	require.NoError(t, err)
	assert.Equal(t, domain.RunStopped, report.Status)
	assert.Empty(t, actions.IDs())
	require.Len(t, report.Results, 3)
	assert.True(t, report.Results[1].Success)
	assert.Equal(t, "after", report.Results[2].StepID)
	assert.Contains(t, report.Results[2].Error, domain.ErrCircuitOpen.Error())
	require.Len(t, report.Errors, 3)
}

func TestEngine_DeepNestingRuns(t *testing.T) {
	actions := testutils.NewActionRecorder()
	eng := tendril.New(tendril.WithActionExecutor(actions))

	var step domain.Step = &domain.ActionStep{ID: "leaf", Action: "click", Target: "#leaf"}
	for i := range runtime.DefaultMaxDepth + 1 {
		step = &domain.ConditionStep{ID: fmt.Sprintf("c%d", i), Expression: "x == 1", Then: []domain.Step{step}}
	}
	tc := &domain.TestCase{ID: "deep", Name: "Deep", Variables: map[string]any{"x": 1}, Steps: []domain.Step{step}}

	report, err := eng.Run(context.Background(), tc)

	require.NoError(t, err)
	assert.Equal(t, domain.RunPassed, report.Status)
	assert.Equal(t, []string{"leaf"}, actions.IDs())
}

func TestEngine_RunRejectsInvalid(t *testing.T) {
	eng := tendril.New()

	b := dsl.New("bad")
	b.Repeat("empty", 3, nil)
	_, err := eng.Run(context.Background(), b.Build())
	assert.ErrorIs(t, err, validator.ErrInvalid)

	_, err = tendril.New(tendril.WithoutValidation()).Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestEngine_RunTestCase(t *testing.T) {
	b := dsl.New("one")
	b.Set("s", "greeting", "hi")
	loader, err := dsl.Loader(b)
	require.NoError(t, err)

	_, err = tendril.New().RunTestCase(context.Background(), "one")
	assert.ErrorIs(t, err, tendril.ErrNoLoader)

	eng := tendril.New(tendril.WithLoader(loader))
	report, err := eng.RunTestCase(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, "hi", report.Variables["greeting"])

	_, err = eng.RunTestCase(context.Background(), "two")
	assert.ErrorIs(t, err, domain.ErrTestCaseNotFound)
}

func TestEngine_ParseAndEvaluate(t *testing.T) {
	eng := tendril.New(tendril.WithLocator(testutils.NewFakeLocator()), tendril.WithEvaluationTimeout(50*time.Millisecond))

	x, err := eng.Parse("while x > 3 and (state is loading)")
	require.NoError(t, err)
	assert.Equal(t, domain.And(
		&domain.VariableCondition{Name: "x", Operator: domain.CompareGreater, Value: int64(3)},
		&domain.StateCondition{State: domain.StateLoading},
	), x)
	assert.Equal(t, `x > 3 and state is loading`, eng.Format(x))

	res := eng.Evaluate(context.Background(), "x > 3 and state is loading", map[string]any{"x": 5})
	assert.False(t, res.Value)

	res = eng.Evaluate(context.Background(), "x > 3", map[string]any{"x": 5})
	assert.True(t, res.Success)
	assert.True(t, res.Value)
}

func TestEngine_NaturalLanguage(t *testing.T) {
	strict := tendril.New()
	_, err := strict.Parse("the login button is visible")
	assert.Error(t, err)

	natural := tendril.New(tendril.WithNaturalLanguage(true))
	x, err := natural.Parse("the login button is visible")
	require.NoError(t, err)
	assert.IsType(t, &domain.ElementCondition{}, x)
}

func TestEngine_EnglishOnly(t *testing.T) {
	_, err := tendril.New().Parse(`elemento "#menu" está visível`)
	require.NoError(t, err)

	_, err = tendril.New(tendril.WithEnglishOnly()).Parse(`elemento "#menu" está visível`)
	assert.Error(t, err)
}

func TestEngine_Validate(t *testing.T) {
	eng := tendril.New()
	b := dsl.New("v")
	b.While("w", "", func(body *dsl.Steps) {
		body.Action("a", "click", "#a")
	})

	res := eng.Validate(b.Build())

	assert.False(t, res.Valid)
	var rules []string
	for _, issue := range res.Errors {
		rules = append(rules, issue.Rule)
	}
	assert.Contains(t, rules, "while-condition")
}

func TestEngine_LoopLimits(t *testing.T) {
	actions := testutils.NewActionRecorder()
	eng := tendril.New(tendril.WithActionExecutor(actions), tendril.WithLoopLimits(2, 0))

	b := dsl.New("l")
	b.Repeat("r", 5, func(body *dsl.Steps) {
		body.Action("a", "click", "#a")
	})
	report, err := eng.Run(context.Background(), b.Build())

	require.NoError(t, err)
	assert.Equal(t, domain.RunPassed, report.Status)
	assert.Len(t, actions.IDs(), 2)
	require.NotNil(t, report.Results[0].Loop)
	assert.Equal(t, domain.ReasonMaxIterations, report.Results[0].Loop.Reason)
}
