package runtime

import (
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
)

// StepError is the originating failure of a step.
type StepError struct {
	StepID string
	Kind   domain.StepKind
	Err    error
}

func (e *StepError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("%s step: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s step %q: %v", e.Kind, e.StepID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
