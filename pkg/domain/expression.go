package domain

import "encoding/json"

// ExpressionKind identifies the variant of a parsed condition.
type ExpressionKind string

const (
	ExpressionElement  ExpressionKind = "element"
	ExpressionText     ExpressionKind = "text"
	ExpressionState    ExpressionKind = "state"
	ExpressionVariable ExpressionKind = "variable"
	ExpressionCompound ExpressionKind = "compound"
)

// Expression is a parsed condition. The set of implementations is closed:
// ElementCondition, TextCondition, StateCondition, VariableCondition and
// CompoundCondition. Expressions are immutable once parsed.
type Expression interface {
	Kind() ExpressionKind
	expression()
}

// ElementCheck is the property probed on a located element.
type ElementCheck string

const (
	CheckExists   ElementCheck = "exists"
	CheckVisible  ElementCheck = "visible"
	CheckEnabled  ElementCheck = "enabled"
	CheckSelected ElementCheck = "selected"
)

// TextOperator compares the text of an element with a literal.
type TextOperator string

const (
	TextEquals   TextOperator = "equals"
	TextContains TextOperator = "contains"
	TextMatches  TextOperator = "matches"
)

// CompareOperator compares a variable with a literal.
type CompareOperator string

const (
	CompareEqual        CompareOperator = "=="
	CompareNotEqual     CompareOperator = "!="
	CompareGreater      CompareOperator = ">"
	CompareLess         CompareOperator = "<"
	CompareGreaterEqual CompareOperator = ">="
	CompareLessEqual    CompareOperator = "<="
)

// LogicalOperator joins the children of a CompoundCondition.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
	LogicalNot LogicalOperator = "not"
)

// ElementCondition checks a property of the element described by Target.
type ElementCondition struct {
	Target string       `json:"target"`
	Check  ElementCheck `json:"check"`
}

// TextCondition compares the text content of Target with Value.
type TextCondition struct {
	Target   string       `json:"target"`
	Operator TextOperator `json:"operator"`
	Value    string       `json:"value"`
}

// StateCondition asks whether the page is in a semantic state.
type StateCondition struct {
	State PageState `json:"state"`
}

// VariableCondition compares a context variable with a literal.
// Value holds an int64 or a string.
type VariableCondition struct {
	Name     string          `json:"name"`
	Operator CompareOperator `json:"operator"`
	Value    any             `json:"value"`
}

// CompoundCondition combines child conditions. A "not" compound has exactly one child.
type CompoundCondition struct {
	Operator LogicalOperator `json:"operator"`
	Children []Expression    `json:"children"`
}

func (*ElementCondition) Kind() ExpressionKind  { return ExpressionElement }
func (*TextCondition) Kind() ExpressionKind     { return ExpressionText }
func (*StateCondition) Kind() ExpressionKind    { return ExpressionState }
func (*VariableCondition) Kind() ExpressionKind { return ExpressionVariable }
func (*CompoundCondition) Kind() ExpressionKind { return ExpressionCompound }

func (*ElementCondition) expression()  {}
func (*TextCondition) expression()     {}
func (*StateCondition) expression()    {}
func (*VariableCondition) expression() {}
func (*CompoundCondition) expression() {}

// Not wraps a single expression in a negation.
func Not(child Expression) *CompoundCondition {
	return &CompoundCondition{Operator: LogicalNot, Children: []Expression{child}}
}

// And joins expressions with a conjunction.
func And(children ...Expression) *CompoundCondition {
	return &CompoundCondition{Operator: LogicalAnd, Children: children}
}

// Or joins expressions with a disjunction.
func Or(children ...Expression) *CompoundCondition {
	return &CompoundCondition{Operator: LogicalOr, Children: children}
}

// The JSON form of every expression carries its kind so clients can dispatch on it.

func (c *ElementCondition) MarshalJSON() ([]byte, error) {
	type alias ElementCondition
	return json.Marshal(struct {
		Kind ExpressionKind `json:"kind"`
		*alias
	}{c.Kind(), (*alias)(c)})
}

func (c *TextCondition) MarshalJSON() ([]byte, error) {
	type alias TextCondition
	return json.Marshal(struct {
		Kind ExpressionKind `json:"kind"`
		*alias
	}{c.Kind(), (*alias)(c)})
}

func (c *StateCondition) MarshalJSON() ([]byte, error) {
	type alias StateCondition
	return json.Marshal(struct {
		Kind ExpressionKind `json:"kind"`
		*alias
	}{c.Kind(), (*alias)(c)})
}

func (c *VariableCondition) MarshalJSON() ([]byte, error) {
	type alias VariableCondition
	return json.Marshal(struct {
		Kind ExpressionKind `json:"kind"`
		*alias
	}{c.Kind(), (*alias)(c)})
}

func (c *CompoundCondition) MarshalJSON() ([]byte, error) {
	type alias CompoundCondition
	return json.Marshal(struct {
		Kind ExpressionKind `json:"kind"`
		*alias
	}{c.Kind(), (*alias)(c)})
}
