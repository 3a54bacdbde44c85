package condition

import (
	"github.com/aretw0/tendril/internal/variables"
	"github.com/aretw0/tendril/pkg/domain"
)

// compare applies c to the stored value. Equality compares numerically when
// both sides are numeric and textually otherwise. Ordering requires a numeric
// stored value. A missing variable equals nothing.
func compare(vars map[string]any, c *domain.VariableCondition) bool {
	stored, exists := vars[c.Name]

	switch c.Operator {
	case domain.CompareEqual:
		return exists && equal(stored, c.Value)
	case domain.CompareNotEqual:
		return !exists || !equal(stored, c.Value)
	}

	if !exists {
		return false
	}
	left, ok := variables.ToFloat(stored)
	if !ok {
		return false
	}
	right, ok := variables.ToFloat(c.Value)
	if !ok {
		return false
	}
	switch c.Operator {
	case domain.CompareGreater:
		return left > right
	case domain.CompareLess:
		return left < right
	case domain.CompareGreaterEqual:
		return left >= right
	case domain.CompareLessEqual:
		return left <= right
	default:
		return false
	}
}

func equal(stored, literal any) bool {
	l, lok := variables.ToFloat(stored)
	r, rok := variables.ToFloat(literal)
	if lok && rok {
		return l == r
	}
	return variables.Stringify(stored) == variables.Stringify(literal)
}
