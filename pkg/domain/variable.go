package domain

import (
	"maps"
	"time"
)

// VariableOpType selects a variable store mutation.
type VariableOpType string

const (
	VarSet       VariableOpType = "set"
	VarIncrement VariableOpType = "increment"
	VarExtract   VariableOpType = "extract"
	VarDelete    VariableOpType = "delete"
	VarClear     VariableOpType = "clear"
)

// VariableOperation describes a mutation of the variable store.
// Source is the extraction target; Attribute optionally selects an attribute
// instead of the text content. By defaults to 1 for increments.
type VariableOperation struct {
	Type      VariableOpType `json:"type"`
	Name      string         `json:"name"`
	Value     any            `json:"value,omitempty"`
	By        float64        `json:"by,omitempty"`
	Source    string         `json:"source,omitempty"`
	Attribute string         `json:"attribute,omitempty"`
}

// VariableChangeEvent is emitted after every mutation of the variable store.
type VariableChangeEvent struct {
	Name      string         `json:"name"`
	OldValue  any            `json:"old_value,omitempty"`
	NewValue  any            `json:"new_value,omitempty"`
	Operation VariableOpType `json:"operation"`
	Timestamp time.Time      `json:"timestamp"`
}

// VariableSnapshot is an immutable copy of all variables taken after a mutation.
type VariableSnapshot struct {
	Timestamp time.Time      `json:"timestamp"`
	Operation VariableOpType `json:"operation"`
	Name      string         `json:"name,omitempty"`
	Variables map[string]any `json:"variables"`
}

// NewVariableSnapshot copies vars into a new snapshot.
func NewVariableSnapshot(op VariableOpType, name string, vars map[string]any, at time.Time) VariableSnapshot {
	return VariableSnapshot{
		Timestamp: at,
		Operation: op,
		Name:      name,
		Variables: maps.Clone(vars),
	}
}
