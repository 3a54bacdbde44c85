package condition_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tendril/internal/condition"
	"github.com/aretw0/tendril/internal/testutils"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func varCond(name string, op domain.CompareOperator, v any) *domain.VariableCondition {
	return &domain.VariableCondition{Name: name, Operator: op, Value: v}
}

func TestEngine_VariableComparisons(t *testing.T) {
	ec := domain.NewExecutionContext(map[string]any{
		"count":  5,
		"ratio":  0.5,
		"status": "ok",
		"digits": "10",
	})
	e := condition.NewEngine()

	tests := []struct {
		name string
		cond *domain.VariableCondition
		want bool
	}{
		{"Greater", varCond("count", ">", int64(3)), true},
		{"Less Equal", varCond("count", "<=", int64(5)), true},
		{"Less", varCond("ratio", "<", int64(1)), true},
		{"Equal Int Types", varCond("count", "==", int64(5)), true},
		{"Equal String", varCond("status", "==", "ok"), true},
		{"Not Equal String", varCond("status", "!=", "ok"), false},
		{"String Equal Number Text", varCond("digits", "==", int64(10)), true},
		{"Ordering Needs Numeric Stored Value", varCond("digits", ">", int64(1)), false},
		{"Ordering Against String Literal", varCond("count", ">", "1"), false},
		{"Missing Equal", varCond("nope", "==", int64(0)), false},
		{"Missing Not Equal", varCond("nope", "!=", int64(0)), true},
		{"Missing Ordering", varCond("nope", ">=", int64(0)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Evaluate(context.Background(), tt.cond, ec, condition.Options{})
			assert.True(t, res.Success)
			assert.Equal(t, tt.want, res.Value)
		})
	}
}

func TestEngine_Elements(t *testing.T) {
	l := testutils.NewFakeLocator().
		WithElement("#shown", &domain.Element{Bounds: domain.Bounds{Width: 100, Height: 20}}).
		WithElement("#hidden", &domain.Element{}).
		WithElement("#off", &domain.Element{Attributes: map[string]string{"disabled": "true"}}).
		WithElement("#box", &domain.Element{Attributes: map[string]string{"checked": ""}}).
		WithElement("#item-2", &domain.Element{})
	e := condition.NewEngine(condition.WithLocator(l))
	ec := domain.NewExecutionContext(map[string]any{"n": 2})

	tests := []struct {
		target string
		check  domain.ElementCheck
		want   bool
	}{
		{"#shown", domain.CheckExists, true},
		{"#missing", domain.CheckExists, false},
		{"#shown", domain.CheckVisible, true},
		{"#hidden", domain.CheckVisible, false},
		{"#shown", domain.CheckEnabled, true},
		{"#off", domain.CheckEnabled, false},
		{"#box", domain.CheckSelected, true},
		{"#shown", domain.CheckSelected, false},
		{"#item-${n}", domain.CheckExists, true},
	}
	for _, tt := range tests {
		t.Run(tt.target+" "+string(tt.check), func(t *testing.T) {
			res := e.Evaluate(context.Background(), &domain.ElementCondition{Target: tt.target, Check: tt.check}, ec, condition.Options{})
			assert.True(t, res.Success, res.Error)
			assert.Equal(t, tt.want, res.Value)
		})
	}
}

func TestEngine_Text(t *testing.T) {
	l := testutils.NewFakeLocator().WithElement("#title", &domain.Element{Text: "Welcome back, Ana"})
	e := condition.NewEngine(condition.WithLocator(l))
	ctx := context.Background()
	ec := domain.NewExecutionContext(map[string]any{"user": "Ana"})

	tests := []struct {
		name string
		cond *domain.TextCondition
		want bool
	}{
		{"Equals", &domain.TextCondition{Target: "#title", Operator: domain.TextEquals, Value: "Welcome back, Ana"}, true},
		{"Contains Interpolated", &domain.TextCondition{Target: "#title", Operator: domain.TextContains, Value: "${user}"}, true},
		{"Matches Case Insensitive", &domain.TextCondition{Target: "#title", Operator: domain.TextMatches, Value: `^welcome\s+BACK`}, true},
		{"Invalid Regex Is False", &domain.TextCondition{Target: "#title", Operator: domain.TextMatches, Value: `([`}, false},
		{"Missing Element Is False", &domain.TextCondition{Target: "#nope", Operator: domain.TextContains, Value: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Evaluate(ctx, tt.cond, ec, condition.Options{})
			assert.True(t, res.Success, res.Error)
			assert.Equal(t, tt.want, res.Value)
		})
	}

	t.Run("Cached Text Skips Locator", func(t *testing.T) {
		empty := testutils.NewFakeLocator()
		e := condition.NewEngine(condition.WithLocator(empty))
		ec := domain.NewExecutionContext(map[string]any{"__text_#price": "$10"})
		res := e.Evaluate(ctx, &domain.TextCondition{Target: "#price", Operator: domain.TextEquals, Value: "$10"}, ec, condition.Options{})
		assert.True(t, res.Success)
		assert.True(t, res.Value)
		assert.Empty(t, empty.Calls())
	})
}

func TestEngine_State(t *testing.T) {
	l := testutils.NewFakeLocator().WithElement(".spinner", &domain.Element{})
	e := condition.NewEngine(condition.WithLocator(l))

	res := e.Evaluate(context.Background(), &domain.StateCondition{State: domain.StateLoading}, nil, condition.Options{})
	assert.True(t, res.Success)
	assert.True(t, res.Value)

	res = e.Evaluate(context.Background(), &domain.StateCondition{State: domain.StateEmpty}, nil, condition.Options{})
	assert.True(t, res.Success)
	assert.False(t, res.Value)
}

func TestEngine_FallbackWithoutLocator(t *testing.T) {
	exprs := []domain.Expression{
		&domain.ElementCondition{Target: "#a", Check: domain.CheckExists},
		&domain.TextCondition{Target: "#a", Operator: domain.TextContains, Value: "x"},
		&domain.StateCondition{State: domain.StateLoading},
	}
	for _, fallback := range []bool{true, false} {
		e := condition.NewEngine(condition.WithDefaultFallback(fallback))
		for _, x := range exprs {
			res := e.Evaluate(context.Background(), x, nil, condition.Options{})
			assert.False(t, res.Success)
			assert.Equal(t, fallback, res.Value, "%s with fallback %v", x.Kind(), fallback)
			assert.NotEmpty(t, res.Error)
		}
	}

	t.Run("Per Call Override", func(t *testing.T) {
		e := condition.NewEngine()
		res := e.Evaluate(context.Background(), exprs[0], nil, condition.Options{Fallback: condition.Fallback(true)})
		assert.False(t, res.Success)
		assert.True(t, res.Value)
	})
}

func TestEngine_TimeoutReturnsFallback(t *testing.T) {
	l := testutils.NewFakeLocator().
		WithElement("#slow", &domain.Element{}).
		WithDelay("#slow", time.Second).
		IgnoringContext()
	e := condition.NewEngine(condition.WithLocator(l))

	start := time.Now()
	res := e.Evaluate(context.Background(), &domain.ElementCondition{Target: "#slow", Check: domain.CheckExists}, nil,
		condition.Options{Timeout: 20 * time.Millisecond, Fallback: condition.Fallback(true)})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, res.Success)
	assert.True(t, res.Value)
	assert.Contains(t, res.Error, "timed out")
}

func TestEngine_CompoundTruthTable(t *testing.T) {
	T := varCond("t", "==", int64(1))
	F := varCond("t", "==", int64(0))
	ec := domain.NewExecutionContext(map[string]any{"t": 1})
	e := condition.NewEngine()

	tests := []struct {
		name string
		x    domain.Expression
		want bool
	}{
		{"and TT", domain.And(T, T), true},
		{"and TF", domain.And(T, F), false},
		{"and FF", domain.And(F, F), false},
		{"or TF", domain.Or(T, F), true},
		{"or FF", domain.Or(F, F), false},
		{"not T", domain.Not(T), false},
		{"not F", domain.Not(F), true},
		{"nested", domain.Or(domain.And(T, F), domain.Not(F)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Evaluate(context.Background(), tt.x, ec, condition.Options{})
			require.True(t, res.Success)
			assert.Equal(t, tt.want, res.Value)
		})
	}

	t.Run("Not With Two Children Uses Fallback", func(t *testing.T) {
		bad := &domain.CompoundCondition{Operator: domain.LogicalNot, Children: []domain.Expression{T, F}}
		for _, fb := range []bool{true, false} {
			res := e.Evaluate(context.Background(), bad, ec, condition.Options{Fallback: condition.Fallback(fb)})
			assert.False(t, res.Success)
			assert.Equal(t, fb, res.Value)
		}
	})

	t.Run("Empty And Uses Fallback", func(t *testing.T) {
		res := e.Evaluate(context.Background(), domain.And(), ec, condition.Options{})
		assert.False(t, res.Success)
	})
}

func TestEngine_CompoundFoldsFailedChildren(t *testing.T) {
	ec := domain.NewExecutionContext(map[string]any{"x": 1})
	missing := &domain.ElementCondition{Target: "#spinner", Check: domain.CheckExists}
	e := condition.NewEngine()

	tests := []struct {
		name     string
		x        domain.Expression
		fallback bool
		want     bool
	}{
		{"or decided by healthy child", domain.Or(varCond("x", "<", int64(3)), missing), false, true},
		{"or decided by fallback", domain.Or(varCond("x", ">", int64(3)), missing), true, true},
		{"and with false fallback", domain.And(varCond("x", "<", int64(3)), missing), false, false},
		{"and with true fallback", domain.And(varCond("x", "<", int64(3)), missing), true, true},
		{"not over folded compound", domain.Not(domain.Or(varCond("x", ">", int64(3)), missing)), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Evaluate(context.Background(), tt.x, ec, condition.Options{Fallback: condition.Fallback(tt.fallback)})
			assert.True(t, res.Success)
			assert.Equal(t, tt.want, res.Value)
			assert.Contains(t, res.Error, domain.ErrNoLocator.Error())
		})
	}
}

func TestEngine_CompoundChildrenRunConcurrently(t *testing.T) {
	l := testutils.NewFakeLocator().
		WithElement("#a", &domain.Element{}).WithDelay("#a", 100*time.Millisecond).
		WithElement("#b", &domain.Element{}).WithDelay("#b", 100*time.Millisecond).
		WithElement("#c", &domain.Element{}).WithDelay("#c", 100*time.Millisecond)
	e := condition.NewEngine(condition.WithLocator(l))

	x := domain.And(
		&domain.ElementCondition{Target: "#a", Check: domain.CheckExists},
		&domain.ElementCondition{Target: "#b", Check: domain.CheckExists},
		&domain.ElementCondition{Target: "#c", Check: domain.CheckExists},
	)
	start := time.Now()
	res := e.Evaluate(context.Background(), x, nil, condition.Options{Timeout: time.Second})
	assert.True(t, res.Value)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestEngine_EvaluateText(t *testing.T) {
	e := condition.NewEngine()
	ctx := context.Background()

	t.Run("Scenario While Condition", func(t *testing.T) {
		ec := domain.NewExecutionContext(map[string]any{"x": 5})
		e := condition.NewEngine(condition.WithLocator(testutils.NewFakeLocator()))
		res := e.EvaluateText(ctx, "while x > 3 and (state is loading)", ec, condition.Options{Timeout: 100 * time.Millisecond})
		assert.True(t, res.Success)
		assert.False(t, res.Value)
	})

	t.Run("Parse Failure Uses Fallback", func(t *testing.T) {
		res := e.EvaluateText(ctx, `element "#unterminated`, nil, condition.Options{Fallback: condition.Fallback(true)})
		assert.False(t, res.Success)
		assert.True(t, res.Value)
		assert.Contains(t, res.Error, "unterminated string")
	})

	t.Run("Natural", func(t *testing.T) {
		ec := domain.NewExecutionContext(map[string]any{"retries": 3})
		res := e.EvaluateText(ctx, "retries = 3", ec, condition.Options{Natural: true})
		assert.True(t, res.Success)
		assert.True(t, res.Value)
	})
}

func TestEngine_EvaluateBatchKeepsOrder(t *testing.T) {
	l := testutils.NewFakeLocator().
		WithElement("#slow", &domain.Element{}).WithDelay("#slow", 50*time.Millisecond)
	e := condition.NewEngine(condition.WithLocator(l))
	ec := domain.NewExecutionContext(map[string]any{"x": 1})

	results := e.EvaluateBatch(context.Background(), []domain.Expression{
		&domain.ElementCondition{Target: "#slow", Check: domain.CheckExists},
		varCond("x", "==", int64(2)),
		&domain.ElementCondition{Target: "#missing", Check: domain.CheckExists},
		varCond("x", "==", int64(1)),
	}, ec, condition.Options{})

	require.Len(t, results, 4)
	assert.Equal(t, []bool{true, false, false, true},
		[]bool{results[0].Value, results[1].Value, results[2].Value, results[3].Value})
}

func TestEngine_RecoversPanics(t *testing.T) {
	var broken *domain.ElementCondition
	e := condition.NewEngine(condition.WithLocator(testutils.NewFakeLocator()))

	res := e.Evaluate(context.Background(), broken, nil, condition.Options{Fallback: condition.Fallback(true)})
	assert.False(t, res.Success)
	assert.True(t, res.Value)
	assert.Contains(t, res.Error, "panic")
}
