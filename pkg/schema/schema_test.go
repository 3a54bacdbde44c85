package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/tendril/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		name string
	}{
		{"string", "string"},
		{"Text", "string"},
		{"integer", "int"},
		{"number", "float"},
		{"boolean", "bool"},
		{"[int]", "[int]"},
		{"[[string]]", "[[string]]"},
		{"list", "list"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typ, err := schema.ParseType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.name, typ.Name())
		})
	}

	_, err := schema.ParseType("date")
	assert.Error(t, err)
}

func TestTypes(t *testing.T) {
	tests := []struct {
		name  string
		typ   schema.Type
		value any
		ok    bool
	}{
		{"String", schema.String(), "x", true},
		{"String Rejects Int", schema.String(), 1, false},
		{"Int", schema.Int(), int64(3), true},
		{"Int Whole Float", schema.Int(), 3.0, true},
		{"Int Fraction", schema.Int(), 3.5, false},
		{"Float Accepts Int", schema.Float(), 2, true},
		{"Bool", schema.Bool(), false, true},
		{"Bool Rejects String", schema.Bool(), "true", false},
		{"Slice", schema.Slice(schema.String()), []any{"a", "b"}, true},
		{"Slice Bad Item", schema.Slice(schema.String()), []any{"a", 2}, false},
		{"Slice Rejects Nil", schema.Slice(nil), nil, false},
		{"Any", schema.Any(), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.typ.Validate(tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	s, err := schema.ParseTypeMap(map[string]string{"attempts": "int", "user": "string", "later": "bool"})
	require.NoError(t, err)

	assert.NoError(t, schema.Validate(s, map[string]any{"attempts": 2, "user": "ana"}))

	err = schema.Validate(s, map[string]any{"attempts": "two", "user": 7})
	require.Error(t, err)
	errs := schema.ValidationErrors(err)
	require.Len(t, errs, 2)
	assert.Equal(t, "attempts", errs[0].Key)
	assert.Equal(t, "user", errs[1].Key)
}

func TestRequire(t *testing.T) {
	s := schema.Schema{"token": schema.String()}

	err := schema.Require(s, map[string]any{}, "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")

	assert.NoError(t, schema.Require(s, map[string]any{"token": "abc"}, "token"))
}

func TestSchema_Decoding(t *testing.T) {
	var fromJSON schema.Schema
	require.NoError(t, json.Unmarshal([]byte(`{"n":"int","tags":"[string]"}`), &fromJSON))
	assert.Equal(t, map[string]string{"n": "int", "tags": "[string]"}, fromJSON.TypeMap())

	var fromYAML schema.Schema
	require.NoError(t, yaml.Unmarshal([]byte("n: number\nok: boolean\n"), &fromYAML))
	assert.Equal(t, map[string]string{"n": "float", "ok": "bool"}, fromYAML.TypeMap())

	var bad schema.Schema
	assert.Error(t, yaml.Unmarshal([]byte("n: date\n"), &bad))
}
