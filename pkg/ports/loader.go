package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// TestCaseLoader defines how the engine retrieves test cases.
type TestCaseLoader interface {
	// Load returns the test case with the given id.
	// Returns domain.ErrTestCaseNotFound if it does not exist.
	Load(ctx context.Context, id string) (*domain.TestCase, error)

	// List returns the ids of every available test case, sorted.
	List(ctx context.Context) ([]string, error)
}
