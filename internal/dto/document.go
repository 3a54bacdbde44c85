// Package dto decodes test-case documents (YAML, JSON or already-decoded maps)
// into domain test cases.
package dto

// TestCaseDocument is the on-disk shape of a test case.
type TestCaseDocument struct {
	ID          string            `json:"id" yaml:"id" mapstructure:"id"`
	Name        string            `json:"name" yaml:"name" mapstructure:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Variables   map[string]any    `json:"variables,omitempty" yaml:"variables,omitempty" mapstructure:"variables"`
	Schema      map[string]string `json:"schema,omitempty" yaml:"schema,omitempty" mapstructure:"schema"`
	Steps       []StepDocument    `json:"steps" yaml:"steps" mapstructure:"steps"`
}

// StepDocument is one step. The kind is Type when set, otherwise inferred from
// the populated keys: action, if/condition, loop, variable.
type StepDocument struct {
	ID          string         `json:"id" yaml:"id" mapstructure:"id"`
	Type        string         `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Action      string         `json:"action,omitempty" yaml:"action,omitempty" mapstructure:"action"`
	Target      string         `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	Value       string         `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
	Params      map[string]any `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
	If          string         `json:"if,omitempty" yaml:"if,omitempty" mapstructure:"if"`
	Condition   string         `json:"condition,omitempty" yaml:"condition,omitempty" mapstructure:"condition"`
	Then        []StepDocument `json:"then,omitempty" yaml:"then,omitempty" mapstructure:"then"`
	Else        []StepDocument `json:"else,omitempty" yaml:"else,omitempty" mapstructure:"else"`
	// Loop is a header string ("repeat 3 times") or a LoopDocument map.
	Loop any            `json:"loop,omitempty" yaml:"loop,omitempty" mapstructure:"loop"`
	Body []StepDocument `json:"body,omitempty" yaml:"body,omitempty" mapstructure:"body"`
	// Variable is an operation string ("increment tries by 2") or a VariableDocument map.
	Variable any `json:"variable,omitempty" yaml:"variable,omitempty" mapstructure:"variable"`
}

// LoopDocument is the structured form of a loop.
type LoopDocument struct {
	Type          string `mapstructure:"type"`
	Count         int    `mapstructure:"count"`
	While         string `mapstructure:"while"`
	Collection    string `mapstructure:"collection"`
	Item          string `mapstructure:"item"`
	MaxIterations int    `mapstructure:"max_iterations"`
	Timeout       string `mapstructure:"timeout"`
}

// VariableDocument is the structured form of a variable operation.
type VariableDocument struct {
	Op        string  `mapstructure:"op"`
	Name      string  `mapstructure:"name"`
	Value     any     `mapstructure:"value"`
	By        float64 `mapstructure:"by"`
	From      string  `mapstructure:"from"`
	Attribute string  `mapstructure:"attribute"`
}
