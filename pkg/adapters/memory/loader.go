package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/tendril/internal/dto"
	"github.com/aretw0/tendril/internal/expr"
	"github.com/aretw0/tendril/pkg/domain"
)

// Loader implements ports.TestCaseLoader over test cases held in memory.
type Loader struct {
	cases map[string]*domain.TestCase
}

// NewLoader indexes test cases by id.
func NewLoader(cases ...*domain.TestCase) (*Loader, error) {
	l := &Loader{cases: make(map[string]*domain.TestCase, len(cases))}
	for _, tc := range cases {
		if tc == nil || tc.ID == "" {
			return nil, errors.New("test case missing ID")
		}
		l.cases[tc.ID] = tc
	}
	return l, nil
}

// NewFromDocuments decodes YAML (or JSON) documents keyed by id. A document
// without its own id takes the key.
func NewFromDocuments(docs map[string]string) (*Loader, error) {
	dec := dto.NewDecoder(expr.NewParser())
	l := &Loader{cases: make(map[string]*domain.TestCase, len(docs))}
	for id, doc := range docs {
		tc, err := dec.DecodeYAML([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("failed to decode test case %s: %w", id, err)
		}
		if tc.ID == "" {
			tc.ID = id
		}
		l.cases[tc.ID] = tc
	}
	return l, nil
}

// Load returns the test case with the given id.
func (l *Loader) Load(ctx context.Context, id string) (*domain.TestCase, error) {
	tc, ok := l.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTestCaseNotFound, id)
	}
	return tc, nil
}

// List returns every id, sorted.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(l.cases))
	for id := range l.cases {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
