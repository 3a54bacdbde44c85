package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type validates a single variable value.
type Type interface {
	Name() string
	Validate(value any) error
}

type scalar struct {
	name  string
	check func(any) bool
}

func (t scalar) Name() string { return t.name }

func (t scalar) Validate(value any) error {
	if !t.check(value) {
		return fmt.Errorf("expected %s, got %T", t.name, value)
	}
	return nil
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func isInt(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		// whole floats come from JSON and YAML decoders
		return n == float64(int64(n))
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return isInt(v)
}

func isAny(any) bool { return true }

type list struct {
	elem Type
}

func (t list) Name() string {
	if t.elem == nil {
		return "list"
	}
	return "[" + t.elem.Name() + "]"
}

func (t list) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected %s, got %T", t.Name(), value)
	}
	if t.elem == nil {
		return nil
	}
	for i := range rv.Len() {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

type custom struct {
	name     string
	validate func(any) error
}

func (t custom) Name() string { return t.name }

func (t custom) Validate(value any) error { return t.validate(value) }

func String() Type { return scalar{"string", isString} }
func Int() Type    { return scalar{"int", isInt} }
func Float() Type  { return scalar{"float", isNumber} }
func Bool() Type   { return scalar{"bool", isBool} }
func Any() Type    { return scalar{"any", isAny} }

// Slice returns a list type whose items must satisfy elem. A nil elem accepts
// any items.
func Slice(elem Type) Type { return list{elem: elem} }

// Custom wraps a validation func as a named Type.
func Custom(name string, validate func(any) error) Type {
	return custom{name: name, validate: validate}
}

var aliases = map[string]func() Type{
	"string":  String,
	"text":    String,
	"int":     Int,
	"integer": Int,
	"float":   Float,
	"number":  Float,
	"bool":    Bool,
	"boolean": Bool,
	"any":     Any,
	"list":    func() Type { return Slice(nil) },
}

// ParseType converts a type string such as "int", "number" or "[string]".
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) > 2 && strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		elem, err := ParseType(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	if mk, ok := aliases[s]; ok {
		return mk(), nil
	}
	return nil, fmt.Errorf("unsupported type: %q", s)
}

// ParseTypeMap converts a name-to-type-string map into a Schema.
func ParseTypeMap(m map[string]string) (Schema, error) {
	out := make(Schema, len(m))
	for _, name := range sortedKeys(m) {
		t, err := ParseType(m[name])
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}
