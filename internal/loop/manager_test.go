package loop_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/tendril/internal/condition"
	"github.com/aretw0/tendril/internal/loop"
	"github.com/aretw0/tendril/internal/testutils"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(n *int) loop.Body {
	return func(context.Context, int) error {
		*n++
		return nil
	}
}

func TestManager_Count(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ec := domain.NewExecutionContext(nil)

	var calls int
	res := m.Execute(context.Background(), "l1", domain.LoopConfig{Type: domain.LoopCount, Count: 3}, ec, counter(&calls))

	assert.True(t, res.Completed)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, domain.ReasonMaxIterations, res.Reason)
	assert.Equal(t, 3, calls)
	assert.Empty(t, ec.LoopStack)
}

func TestManager_CountRejectsNonPositive(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	var calls int
	res := m.Execute(context.Background(), "l1", domain.LoopConfig{Type: domain.LoopCount, Count: 0}, domain.NewExecutionContext(nil), counter(&calls))

	assert.False(t, res.Completed)
	assert.Equal(t, domain.ReasonError, res.Reason)
	assert.Contains(t, res.Error, "count must be positive")
	assert.Zero(t, calls)
}

func TestManager_CountCappedByMaxIterations(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	var calls int
	res := m.Execute(context.Background(), "l1",
		domain.LoopConfig{Type: domain.LoopCount, Count: 10, MaxIterations: 4},
		domain.NewExecutionContext(nil), counter(&calls))

	assert.True(t, res.Completed)
	assert.Equal(t, 4, res.Iterations)
	assert.Equal(t, 4, calls)
}

func TestManager_WhileCounter(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ec := domain.NewExecutionContext(map[string]any{"i": 0})

	res := m.Execute(context.Background(), "w", domain.LoopConfig{
		Type:      domain.LoopWhile,
		Condition: &domain.VariableCondition{Name: "i", Operator: domain.CompareLess, Value: int64(3)},
	}, ec, func(context.Context, int) error {
		ec.Variables["i"] = ec.Variables["i"].(int) + 1
		return nil
	})

	assert.True(t, res.Completed)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, domain.ReasonConditionFalse, res.Reason)
	assert.Equal(t, 3, ec.Variables["i"])
}

func TestManager_WhileConditionText(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ec := domain.NewExecutionContext(map[string]any{"done": "no"})

	res := m.Execute(context.Background(), "w", domain.LoopConfig{
		Type:          domain.LoopWhile,
		ConditionText: `done != "yes"`,
	}, ec, func(_ context.Context, i int) error {
		if i == 1 {
			ec.Variables["done"] = "yes"
		}
		return nil
	})

	assert.True(t, res.Completed)
	assert.Equal(t, 2, res.Iterations)
}

func TestManager_WhileOverPartiallyFailingOr(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ec := domain.NewExecutionContext(map[string]any{"x": 1})

	res := m.Execute(context.Background(), "w", domain.LoopConfig{
		Type:          domain.LoopWhile,
		ConditionText: `x < 3 or element "#spinner" exists`,
	}, ec, func(context.Context, int) error {
		ec.Variables["x"] = ec.Variables["x"].(int) + 1
		return nil
	})

	assert.True(t, res.Completed)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, domain.ReasonConditionFalse, res.Reason)
	assert.Equal(t, 3, ec.Variables["x"])
}

func TestManager_WhileHitsCap(t *testing.T) {
	m := loop.NewManager(condition.NewEngine(), loop.WithMaxIterations(5))
	ec := domain.NewExecutionContext(map[string]any{"x": 1})

	var calls int
	res := m.Execute(context.Background(), "w", domain.LoopConfig{
		Type:      domain.LoopWhile,
		Condition: &domain.VariableCondition{Name: "x", Operator: domain.CompareEqual, Value: int64(1)},
	}, ec, counter(&calls))

	assert.False(t, res.Completed)
	assert.Equal(t, 5, res.Iterations)
	assert.Equal(t, domain.ReasonMaxIterations, res.Reason)
	assert.Equal(t, 5, calls)
}

func TestManager_WhileWithoutCondition(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	res := m.Execute(context.Background(), "w", domain.LoopConfig{Type: domain.LoopWhile}, domain.NewExecutionContext(nil), nil)

	assert.False(t, res.Completed)
	assert.Equal(t, domain.ReasonError, res.Reason)
}

func TestManager_ForEachVariable(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ec := domain.NewExecutionContext(map[string]any{"names": []string{"ana", "bia", "caio"}})

	var seen []any
	var depths []int
	res := m.Execute(context.Background(), "f", domain.LoopConfig{
		Type:         domain.LoopForEach,
		Collection:   "names",
		ItemVariable: "name",
	}, ec, func(context.Context, int) error {
		seen = append(seen, ec.Variables["name"])
		depths = append(depths, loop.Depth(ec))
		return nil
	})

	assert.True(t, res.Completed)
	assert.Equal(t, domain.ReasonCollectionEnd, res.Reason)
	assert.Equal(t, []any{"ana", "bia", "caio"}, seen)
	assert.Equal(t, []int{1, 1, 1}, depths)
	assert.NotContains(t, ec.Variables, "name")
}

func TestManager_ForEachReferenceSyntax(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ec := domain.NewExecutionContext(map[string]any{"ids": []any{1, 2}})

	var calls int
	res := m.Execute(context.Background(), "f", domain.LoopConfig{Type: domain.LoopForEach, Collection: "${ids}"}, ec, counter(&calls))

	assert.True(t, res.Completed)
	assert.Equal(t, 2, calls)
	assert.NotContains(t, ec.Variables, loop.DefaultItemVariable)
}

func TestManager_ForEachTruncated(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ec := domain.NewExecutionContext(map[string]any{"xs": []int{1, 2, 3, 4}})

	var calls int
	res := m.Execute(context.Background(), "f", domain.LoopConfig{Type: domain.LoopForEach, Collection: "xs", MaxIterations: 2}, ec, counter(&calls))

	assert.True(t, res.Completed)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, domain.ReasonMaxIterations, res.Reason)
}

func TestManager_ForEachMissingCollection(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	res := m.Execute(context.Background(), "f", domain.LoopConfig{Type: domain.LoopForEach, Collection: "rows"}, domain.NewExecutionContext(nil), nil)

	assert.False(t, res.Completed)
	assert.Equal(t, domain.ReasonError, res.Reason)
	assert.Contains(t, res.Error, domain.ErrCollectionNotFound.Error())
}

func TestManager_ForEachSelector(t *testing.T) {
	l := testutils.NewFakeLocator().WithCollection(".row",
		&domain.Element{Text: "first", Selector: ".row >> nth=0"},
		&domain.Element{Text: "second", Selector: ".row >> nth=1"},
	)

	t.Run("Collection Locator", func(t *testing.T) {
		m := loop.NewManager(condition.NewEngine(), loop.WithLocator(l))
		ec := domain.NewExecutionContext(nil)

		var texts, selectors []any
		res := m.Execute(context.Background(), "f", domain.LoopConfig{Type: domain.LoopForEach, Collection: ".row", ItemVariable: "row"}, ec,
			func(context.Context, int) error {
				texts = append(texts, ec.Variables["row"])
				selectors = append(selectors, ec.Variables["row.selector"])
				return nil
			})

		require.True(t, res.Completed)
		assert.Equal(t, []any{"first", "second"}, texts)
		assert.Equal(t, []any{".row >> nth=0", ".row >> nth=1"}, selectors)
		assert.NotContains(t, ec.Variables, "row.selector")
	})

	t.Run("Plain Locator", func(t *testing.T) {
		m := loop.NewManager(condition.NewEngine(), loop.WithLocator(testutils.LocatorOnly(l)))
		res := m.Execute(context.Background(), "f", domain.LoopConfig{Type: domain.LoopForEach, Collection: ".row"}, domain.NewExecutionContext(nil), nil)

		assert.False(t, res.Completed)
		assert.Contains(t, res.Error, domain.ErrSelectorCollection.Error())
	})
}

func TestManager_BodyError(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ec := domain.NewExecutionContext(nil)

	res := m.Execute(context.Background(), "l", domain.LoopConfig{Type: domain.LoopCount, Count: 5}, ec, func(_ context.Context, i int) error {
		if i == 2 {
			return errors.New("click failed")
		}
		return nil
	})

	assert.False(t, res.Completed)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, domain.ReasonError, res.Reason)
	assert.Equal(t, "click failed", res.Error)
	assert.Empty(t, ec.LoopStack)
}

func TestManager_BodyPanic(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ec := domain.NewExecutionContext(nil)

	res := m.Execute(context.Background(), "l", domain.LoopConfig{Type: domain.LoopCount, Count: 2}, ec, func(context.Context, int) error {
		panic("boom")
	})

	assert.False(t, res.Completed)
	assert.Contains(t, res.Error, "boom")
	assert.Empty(t, ec.LoopStack)
}

func TestManager_Timeout(t *testing.T) {
	var ticks atomic.Int64
	base := time.Unix(0, 0)
	clock := func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
	m := loop.NewManager(condition.NewEngine(), loop.WithClock(clock))

	var calls int
	res := m.Execute(context.Background(), "l",
		domain.LoopConfig{Type: domain.LoopCount, Count: 50, Timeout: 3 * time.Second},
		domain.NewExecutionContext(nil), counter(&calls))

	assert.False(t, res.Completed)
	assert.Equal(t, domain.ReasonTimeout, res.Reason)
	assert.Less(t, calls, 50)
}

func TestManager_Canceled(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ctx, cancel := context.WithCancel(context.Background())

	res := m.Execute(ctx, "l", domain.LoopConfig{Type: domain.LoopCount, Count: 10}, domain.NewExecutionContext(nil), func(_ context.Context, i int) error {
		if i == 1 {
			cancel()
		}
		return nil
	})

	assert.False(t, res.Completed)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, domain.ReasonCanceled, res.Reason)
}

func TestManager_NestedStack(t *testing.T) {
	m := loop.NewManager(condition.NewEngine())
	ec := domain.NewExecutionContext(nil)

	var inner []int
	res := m.Execute(context.Background(), "outer", domain.LoopConfig{Type: domain.LoopCount, Count: 2}, ec, func(ctx context.Context, _ int) error {
		r := m.Execute(ctx, "inner", domain.LoopConfig{Type: domain.LoopCount, Count: 2}, ec, func(context.Context, int) error {
			inner = append(inner, loop.Depth(ec))
			assert.Equal(t, "inner", ec.CurrentLoop().LoopID)
			return nil
		})
		assert.Equal(t, "outer", ec.CurrentLoop().LoopID)
		if !r.Completed {
			return errors.New(r.Error)
		}
		return nil
	})

	require.True(t, res.Completed)
	assert.Equal(t, []int{2, 2, 2, 2}, inner)
	assert.Empty(t, ec.LoopStack)
}

func TestLooksLikeSelector(t *testing.T) {
	tests := []struct {
		ref  string
		want bool
	}{
		{".row", true},
		{"#list li", true},
		{"//tr", true},
		{"ul > li", true},
		{"css=div", true},
		{"[data-id]", true},
		{"items", false},
		{"user.items", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, loop.LooksLikeSelector(tt.ref))
		})
	}
}
