package validator_test

import (
	"testing"

	"github.com/aretw0/tendril/internal/validator"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func click(id string) *domain.ActionStep {
	return &domain.ActionStep{ID: id, Action: "click", Target: "#go"}
}

func testCase(steps ...domain.Step) *domain.TestCase {
	return &domain.TestCase{ID: "tc", Name: "checkout", Steps: steps}
}

func rules(issues []validator.Issue) []string {
	names := make([]string, len(issues))
	for i, issue := range issues {
		names[i] = issue.Rule
	}
	return names
}

func TestValidate_Valid(t *testing.T) {
	tc := testCase(
		&domain.VariableStep{ID: "init", Operation: domain.VariableOperation{Type: domain.VarSet, Name: "tries", Value: 0}},
		&domain.LoopStep{ID: "retry", Expression: "repeat 3 times", Body: []domain.Step{
			&domain.ConditionStep{ID: "check", Expression: `element "#ok" is visible`, Then: []domain.Step{click("done")}},
			&domain.VariableStep{ID: "inc", Operation: domain.VariableOperation{Type: domain.VarIncrement, Name: "tries"}},
		}},
		&domain.ActionStep{ID: "report", Action: "fill", Target: "#out", Value: "${tries}"},
	)

	res := validator.New().Validate(tc)

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.NoError(t, res.Err())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		tc   *domain.TestCase
		want string
	}{
		{"Missing Name", &domain.TestCase{Steps: []domain.Step{click("a")}}, "test-case-name"},
		{"No Steps", &domain.TestCase{Name: "x"}, "steps-present"},
		{"Missing Step ID", testCase(click("")), "step-id"},
		{"Duplicate Step ID", testCase(click("a"), click("a")), "duplicate-step-id"},
		{"Missing Action", testCase(&domain.ActionStep{ID: "a"}), "action-name"},
		{"Condition Without Expression", testCase(&domain.ConditionStep{ID: "c", Then: []domain.Step{click("a")}}), "condition-expression"},
		{"Condition Bad Syntax", testCase(&domain.ConditionStep{ID: "c", Expression: `element "#x`, Then: []domain.Step{click("a")}}), "condition-syntax"},
		{"Condition Without Then", testCase(&domain.ConditionStep{ID: "c", Expression: "x == 1", Else: []domain.Step{click("a")}}), "condition-then"},
		{"Empty Loop Body", testCase(&domain.LoopStep{ID: "l", Loop: domain.LoopConfig{Type: domain.LoopCount, Count: 2}}), "loop-body"},
		{"Repeat Zero Times", testCase(&domain.LoopStep{ID: "l", Expression: "repeat 0 times", Body: []domain.Step{click("a")}}), "loop-syntax"},
		{"Structured Zero Count", testCase(&domain.LoopStep{ID: "l", Loop: domain.LoopConfig{Type: domain.LoopCount}, Body: []domain.Step{click("a")}}), "loop-count"},
		{"While Without Condition", testCase(&domain.LoopStep{ID: "l", Loop: domain.LoopConfig{Type: domain.LoopWhile}, Body: []domain.Step{click("a")}}), "while-condition"},
		{"ForEach Without Collection", testCase(&domain.LoopStep{ID: "l", Loop: domain.LoopConfig{Type: domain.LoopForEach}, Body: []domain.Step{click("a")}}), "foreach-collection"},
		{"Unknown Loop Type", testCase(&domain.LoopStep{ID: "l", Loop: domain.LoopConfig{Type: "until"}, Body: []domain.Step{click("a")}}), "loop-syntax"},
		{"Variable Without Name", testCase(&domain.VariableStep{ID: "v", Operation: domain.VariableOperation{Type: domain.VarSet, Value: 1}}), "variable-name"},
		{"Set Without Value", testCase(&domain.VariableStep{ID: "v", Operation: domain.VariableOperation{Type: domain.VarSet, Name: "x"}}), "variable-operation"},
		{"Extract Without Source", testCase(&domain.VariableStep{ID: "v", Operation: domain.VariableOperation{Type: domain.VarExtract, Name: "x"}}), "variable-operation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validator.New().Validate(tt.tc)
			assert.False(t, res.Valid)
			assert.Contains(t, rules(res.Errors), tt.want)
			assert.ErrorIs(t, res.Err(), validator.ErrInvalid)
		})
	}
}

func TestValidate_Schema(t *testing.T) {
	tc := testCase(click("a"))
	tc.Schema = map[string]string{"attempts": "int"}
	tc.Variables = map[string]any{"attempts": "three"}

	res := validator.New().Validate(tc)
	require.False(t, res.Valid)
	assert.Equal(t, []string{"variable-schema"}, rules(res.Errors))
	assert.Contains(t, res.Errors[0].Message, "attempts")

	tc.Variables["attempts"] = 3
	assert.True(t, validator.New().Validate(tc).Valid)
}

func TestValidate_UndeclaredVariables(t *testing.T) {
	tc := testCase(
		&domain.ActionStep{ID: "early", Action: "fill", Target: "#q", Value: "${query}"},
		&domain.VariableStep{ID: "set", Operation: domain.VariableOperation{Type: domain.VarSet, Name: "query", Value: "shoes"}},
		&domain.ActionStep{ID: "late", Action: "fill", Target: "#q", Value: "${query}"},
		&domain.LoopStep{ID: "each", Expression: "for each row in rows", Body: []domain.Step{
			&domain.ActionStep{ID: "use-row", Action: "click", Target: "${row.selector}"},
		}},
		&domain.ActionStep{ID: "after", Action: "fill", Target: "#q", Value: "${row}"},
	)
	tc.Variables = map[string]any{"rows": []any{"a"}}

	res := validator.New().Validate(tc)

	assert.True(t, res.Valid, "warnings never invalidate")
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "early", res.Warnings[0].StepID)
	assert.Contains(t, res.Warnings[0].Message, "query")
	assert.Equal(t, "after", res.Warnings[1].StepID)
}

func TestValidate_DepthAndIterationWarnings(t *testing.T) {
	var nested domain.Step = click("leaf")
	for i := range 7 {
		nested = &domain.ConditionStep{ID: "c" + string(rune('0'+i)), Expression: "x == 1", Then: []domain.Step{nested}}
	}
	tc := testCase(nested, &domain.LoopStep{ID: "big", Expression: "repeat 500 times", Body: []domain.Step{click("b")}})
	tc.Variables = map[string]any{"x": 1}

	res := validator.New().Validate(tc)

	assert.True(t, res.Valid)
	warned := rules(res.Warnings)
	assert.Contains(t, warned, "nesting-depth")
	assert.Contains(t, warned, "iteration-ceiling")
	for _, w := range res.Warnings {
		assert.NotEmpty(t, w.Suggestion)
	}
}

func TestValidate_NaturalLanguage(t *testing.T) {
	tc := testCase(&domain.ConditionStep{ID: "c", Expression: "the cart is empty", Then: []domain.Step{click("a")}})

	assert.False(t, validator.New().Validate(tc).Valid)
	assert.True(t, validator.New(validator.WithNaturalLanguage(true)).Validate(tc).Valid)
}

func TestValidator_CustomRules(t *testing.T) {
	v := validator.New()
	v.AddRule(validator.Rule{
		Name:     "no-navigate",
		Severity: validator.SeverityError,
		Message:  "navigate is not allowed",
		Check: func(c *validator.Context) bool {
			s, ok := c.Step.(*domain.ActionStep)
			return !ok || s.Action != "navigate"
		},
	})
	tc := testCase(&domain.ActionStep{ID: "go", Action: "navigate", Target: "https://example.com"})

	res := v.Validate(tc)
	require.False(t, res.Valid)
	assert.Equal(t, "go", res.Errors[0].StepID)

	assert.True(t, v.RemoveRule("no-navigate"))
	assert.False(t, v.RemoveRule("no-navigate"))
	assert.True(t, v.Validate(tc).Valid)
	assert.NotContains(t, v.Rules(), "no-navigate")
}

func TestValidate_Nil(t *testing.T) {
	res := validator.New().Validate(nil)
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 1)
}
