package domain_test

import (
	"errors"
	"testing"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionContext_DescendRestoresDepth(t *testing.T) {
	ec := domain.NewExecutionContext(nil)
	require.NotNil(t, ec.Variables)

	func() {
		defer ec.Descend()()
		assert.Equal(t, 1, ec.CurrentDepth)
		func() {
			defer ec.Descend()()
			ec.RecordPath(domain.PathEntry{StepID: "inner", Branch: domain.BranchThen})
		}()
		assert.Equal(t, 1, ec.CurrentDepth)
	}()

	assert.Equal(t, 0, ec.CurrentDepth)
	require.Len(t, ec.PathHistory, 1)
	assert.Equal(t, 2, ec.PathHistory[0].Depth)
}

func TestExecutionContext_CopiesInitialVariables(t *testing.T) {
	initial := map[string]any{"x": 1}
	ec := domain.NewExecutionContext(initial)
	ec.Variables["x"] = 2

	assert.Equal(t, 1, initial["x"])
	ec.RecordError(nil)
	ec.RecordError(errors.New("boom"))
	assert.Len(t, ec.ErrorStack, 1)
	assert.Nil(t, ec.CurrentLoop())
}

func TestElementChecks(t *testing.T) {
	tests := []struct {
		name     string
		el       *domain.Element
		visible  bool
		enabled  bool
		selected bool
	}{
		{"Nil", nil, false, false, false},
		{"Plain", &domain.Element{Bounds: domain.Bounds{Width: 10, Height: 5}}, true, true, false},
		{"ZeroSize", &domain.Element{}, false, true, false},
		{"Disabled", &domain.Element{Attributes: map[string]string{"disabled": ""}}, false, false, false},
		{"DisabledFalse", &domain.Element{Attributes: map[string]string{"aria-disabled": "false"}}, false, true, false},
		{"Checked", &domain.Element{Attributes: map[string]string{"checked": "true"}}, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.visible, tt.el.Visible())
			assert.Equal(t, tt.enabled, tt.el.Enabled())
			assert.Equal(t, tt.selected, tt.el.Selected())
		})
	}
}

func TestWalk_SkipsChildrenWhenFalse(t *testing.T) {
	steps := []domain.Step{
		&domain.ConditionStep{ID: "c", Then: []domain.Step{&domain.ActionStep{ID: "a"}}},
		&domain.LoopStep{ID: "l", Body: []domain.Step{&domain.ActionStep{ID: "b"}}},
	}
	var seen []string
	domain.Walk(steps, func(s domain.Step, depth int) bool {
		seen = append(seen, s.StepID())
		return s.StepID() != "l"
	})
	assert.Equal(t, []string{"c", "a", "l"}, seen)
}
