package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// TestCaseLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.TestCaseLoader.
// expected maps test case ids to the name each one must carry.
func TestCaseLoaderContractTest(t *testing.T, loader ports.TestCaseLoader, expected map[string]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("Load_Success", func(t *testing.T) {
		for id, name := range expected {
			tc, err := loader.Load(ctx, id)
			if err != nil {
				t.Fatalf("unexpected error loading %s: %v", id, err)
			}
			if tc.Name != name {
				t.Errorf("name mismatch for %s. got %q, want %q", id, tc.Name, name)
			}
			if len(tc.Steps) == 0 {
				t.Errorf("test case %s has no steps", id)
			}
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := loader.Load(ctx, "non-existent-case")
		if !errors.Is(err, domain.ErrTestCaseNotFound) {
			t.Errorf("expected ErrTestCaseNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		ids, err := loader.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing: %v", err)
		}
		if len(ids) != len(expected) {
			t.Errorf("expected %d test cases, got %d", len(expected), len(ids))
		}
		lookup := make(map[string]bool)
		for _, id := range ids {
			lookup[id] = true
		}
		for id := range expected {
			if !lookup[id] {
				t.Errorf("test case %s missing from list", id)
			}
		}
	})
}
