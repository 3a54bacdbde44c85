package domain

import (
	"reflect"
	"sort"
)

// VariableDiff represents the changes between two variable snapshots.
type VariableDiff struct {
	// Added holds names present only in the newer snapshot.
	Added map[string]any `json:"added,omitempty"`

	// Changed holds names whose value differs, with the newer value.
	Changed map[string]any `json:"changed,omitempty"`

	// Removed lists names present only in the older snapshot, sorted.
	Removed []string `json:"removed,omitempty"`
}

// Diff calculates the difference between an older and a newer snapshot.
// A nil old snapshot yields every variable of newer as added.
func Diff(old, newer *VariableSnapshot) *VariableDiff {
	if newer == nil {
		return nil
	}

	var before map[string]any
	if old != nil {
		before = old.Variables
	}

	diff := &VariableDiff{}
	for k, v := range newer.Variables {
		prev, exists := before[k]
		switch {
		case !exists:
			if diff.Added == nil {
				diff.Added = make(map[string]any)
			}
			diff.Added[k] = v
		case !reflect.DeepEqual(prev, v):
			if diff.Changed == nil {
				diff.Changed = make(map[string]any)
			}
			diff.Changed[k] = v
		}
	}
	for k := range before {
		if _, exists := newer.Variables[k]; !exists {
			diff.Removed = append(diff.Removed, k)
		}
	}
	sort.Strings(diff.Removed)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any changes.
func (d *VariableDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}
