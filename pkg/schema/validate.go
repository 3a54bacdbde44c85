package schema

import (
	"maps"
	"slices"
)

// Schema maps variable names to their expected types.
type Schema map[string]Type

// TypeMap returns the schema as name-to-type-string pairs.
func (s Schema) TypeMap() map[string]string {
	out := make(map[string]string, len(s))
	for k, t := range s {
		if t != nil {
			out[k] = t.Name()
		}
	}
	return out
}

// Validate checks every variable of data that the schema declares. Declared
// variables absent from data are not reported.
func Validate(s Schema, data map[string]any) error {
	var errs []error
	for _, key := range sortedKeys(s) {
		value, ok := data[key]
		if !ok || s[key] == nil {
			continue
		}
		if err := s[key].Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: key, Reason: err.Error(), Value: value})
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// Require reports every named variable that is missing from data or does not
// match its declared type.
func Require(s Schema, data map[string]any, names ...string) error {
	var errs []error
	for _, key := range names {
		value, ok := data[key]
		if !ok {
			errs = append(errs, &ValidationError{Key: key, Reason: "required"})
			continue
		}
		if t := s[key]; t != nil {
			if err := t.Validate(value); err != nil {
				errs = append(errs, &ValidationError{Key: key, Reason: err.Error(), Value: value})
			}
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
