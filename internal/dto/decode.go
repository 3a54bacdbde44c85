package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/tendril/internal/expr"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrAmbiguousStep is returned when a step populates keys of several kinds.
var ErrAmbiguousStep = errors.New("step mixes keys of different kinds")

// Decoder turns documents into test cases. Loop and variable strings are
// parsed with its parser.
type Decoder struct {
	parser *expr.Parser
}

// NewDecoder creates a decoder. A nil parser uses the default keywords.
func NewDecoder(p *expr.Parser) *Decoder {
	if p == nil {
		p = expr.NewParser()
	}
	return &Decoder{parser: p}
}

// DecodeYAML decodes a YAML test-case document.
func (d *Decoder) DecodeYAML(data []byte) (*domain.TestCase, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return d.DecodeMap(raw)
}

// DecodeJSON decodes a JSON test-case document.
func (d *Decoder) DecodeJSON(data []byte) (*domain.TestCase, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return d.DecodeMap(raw)
}

// DecodeMap decodes an already-parsed document. Unknown keys are rejected.
func (d *Decoder) DecodeMap(raw map[string]any) (*domain.TestCase, error) {
	var doc TestCaseDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode test case: %w", err)
	}
	return d.TestCase(&doc)
}

func decodeStrict(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// TestCase converts a document.
func (d *Decoder) TestCase(doc *TestCaseDocument) (*domain.TestCase, error) {
	steps, err := d.steps(doc.Steps)
	if err != nil {
		return nil, err
	}
	return &domain.TestCase{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Variables:   normalize(doc.Variables),
		Schema:      doc.Schema,
		Steps:       steps,
	}, nil
}

func (d *Decoder) steps(docs []StepDocument) ([]domain.Step, error) {
	out := make([]domain.Step, 0, len(docs))
	for i := range docs {
		s, err := d.step(&docs[i])
		if err != nil {
			id := docs[i].ID
			if id == "" {
				id = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("step %s: %w", id, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func kindOf(doc *StepDocument) (domain.StepKind, error) {
	if doc.Type != "" {
		k := domain.StepKind(strings.ToLower(doc.Type))
		switch k {
		case domain.StepAction, domain.StepCondition, domain.StepLoop, domain.StepVariable:
			return k, nil
		}
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownStep, doc.Type)
	}

	var kinds []domain.StepKind
	if doc.Action != "" {
		kinds = append(kinds, domain.StepAction)
	}
	if doc.If != "" || doc.Condition != "" || len(doc.Then) > 0 || len(doc.Else) > 0 {
		kinds = append(kinds, domain.StepCondition)
	}
	if doc.Loop != nil || len(doc.Body) > 0 {
		kinds = append(kinds, domain.StepLoop)
	}
	if doc.Variable != nil {
		kinds = append(kinds, domain.StepVariable)
	}
	switch len(kinds) {
	case 0:
		return "", fmt.Errorf("%w: no action, condition, loop or variable", domain.ErrUnknownStep)
	case 1:
		return kinds[0], nil
	}
	return "", fmt.Errorf("%w: %v", ErrAmbiguousStep, kinds)
}

func (d *Decoder) step(doc *StepDocument) (domain.Step, error) {
	kind, err := kindOf(doc)
	if err != nil {
		return nil, err
	}

	switch kind {
	case domain.StepAction:
		return &domain.ActionStep{
			ID:          doc.ID,
			Action:      doc.Action,
			Target:      doc.Target,
			Value:       doc.Value,
			Params:      normalize(doc.Params),
			Description: doc.Description,
		}, nil

	case domain.StepCondition:
		then, err := d.steps(doc.Then)
		if err != nil {
			return nil, err
		}
		els, err := d.steps(doc.Else)
		if err != nil {
			return nil, err
		}
		text := doc.If
		if text == "" {
			text = doc.Condition
		}
		return &domain.ConditionStep{ID: doc.ID, Expression: text, Then: then, Else: els}, nil

	case domain.StepLoop:
		body, err := d.steps(doc.Body)
		if err != nil {
			return nil, err
		}
		s := &domain.LoopStep{ID: doc.ID, Body: body}
		switch v := doc.Loop.(type) {
		case nil:
		case string:
			s.Expression = v
		default:
			cfg, err := d.loop(v)
			if err != nil {
				return nil, err
			}
			s.Loop = cfg
		}
		return s, nil

	default:
		op, err := d.variable(doc.Variable)
		if err != nil {
			return nil, err
		}
		return &domain.VariableStep{ID: doc.ID, Operation: op}, nil
	}
}

func (d *Decoder) loop(raw any) (domain.LoopConfig, error) {
	var doc LoopDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return domain.LoopConfig{}, fmt.Errorf("loop: %w", err)
	}
	cfg := domain.LoopConfig{
		Type:          domain.LoopType(doc.Type),
		Count:         doc.Count,
		ConditionText: doc.While,
		Collection:    doc.Collection,
		ItemVariable:  doc.Item,
		MaxIterations: doc.MaxIterations,
	}
	if cfg.Type == "" {
		switch {
		case doc.While != "":
			cfg.Type = domain.LoopWhile
		case doc.Collection != "":
			cfg.Type = domain.LoopForEach
		case doc.Count != 0:
			cfg.Type = domain.LoopCount
		}
	}
	if doc.While != "" {
		cond, err := d.parser.Parse(doc.While)
		if err != nil {
			return domain.LoopConfig{}, fmt.Errorf("loop condition: %w", err)
		}
		cfg.Condition = cond
	}
	if doc.Timeout != "" {
		timeout, err := time.ParseDuration(doc.Timeout)
		if err != nil {
			return domain.LoopConfig{}, fmt.Errorf("loop timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	return cfg, nil
}

func (d *Decoder) variable(raw any) (domain.VariableOperation, error) {
	if text, ok := raw.(string); ok {
		op, err := d.parser.ParseVariable(text)
		if err != nil {
			return domain.VariableOperation{}, err
		}
		return *op, nil
	}

	var doc VariableDocument
	if err := decodeStrict(raw, &doc); err != nil {
		return domain.VariableOperation{}, fmt.Errorf("variable: %w", err)
	}
	op := domain.VariableOperation{
		Type:      domain.VariableOpType(strings.ToLower(doc.Op)),
		Name:      doc.Name,
		Value:     normalizeValue(doc.Value),
		By:        doc.By,
		Source:    doc.From,
		Attribute: doc.Attribute,
	}
	if op.Type == domain.VarIncrement && op.By == 0 {
		op.By = 1
	}
	return op, nil
}

// normalize rewrites decoder-specific shapes: YAML maps with interface keys
// become map[string]any, recursively.
func normalize(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalize(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	}
	return v
}
