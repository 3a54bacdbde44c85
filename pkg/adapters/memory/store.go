package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

// Store implements ports.ReportStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.RunReport
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.RunReport),
	}
}

// Save keeps a copy of the report.
func (s *Store) Save(ctx context.Context, report *domain.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[report.RunID] = clone(report)
	return nil
}

// Load returns a copy so callers can't mutate the stored report.
func (s *Store) Load(ctx context.Context, runID string) (*domain.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrReportNotFound
	}
	return clone(report), nil
}

// Delete removes the report.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// List returns the stored run ids, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func clone(r *domain.RunReport) *domain.RunReport {
	c := *r
	c.Results = slices.Clone(r.Results)
	c.PathHistory = slices.Clone(r.PathHistory)
	c.Variables = maps.Clone(r.Variables)
	c.Snapshots = slices.Clone(r.Snapshots)
	c.Errors = slices.Clone(r.Errors)
	return &c
}
