package middleware

import (
	"context"
	"fmt"

	"github.com/dlclark/regexp2"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Mask replaces the values of matching variables.
const Mask = "***"

type piiMiddleware struct {
	next     ports.ReportStore
	patterns []*regexp2.Regexp
}

// NewPIIMiddleware creates a middleware that masks the values of variables
// whose names match any of the patterns, case-insensitively. Final variables
// and snapshots are masked; the report passed to Save is left untouched.
func NewPIIMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp2.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.IgnoreCase)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.ReportStore) ports.ReportStore {
		return &piiMiddleware{next: next, patterns: compiled}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, report *domain.RunReport) error {
	cloned := *report
	cloned.Variables = m.mask(report.Variables)
	if report.Snapshots != nil {
		cloned.Snapshots = make([]domain.VariableSnapshot, len(report.Snapshots))
		for i, s := range report.Snapshots {
			s.Variables = m.mask(s.Variables)
			cloned.Snapshots[i] = s
		}
	}
	return m.next.Save(ctx, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, runID string) (*domain.RunReport, error) {
	return m.next.Load(ctx, runID)
}

func (m *piiMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// mask returns a masked deep copy of vars.
func (m *piiMiddleware) mask(vars map[string]any) map[string]any {
	if vars == nil {
		return nil
	}
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		switch {
		case m.sensitive(k):
			out[k] = Mask
		default:
			if sub, ok := v.(map[string]any); ok {
				out[k] = m.mask(sub)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func (m *piiMiddleware) sensitive(name string) bool {
	for _, p := range m.patterns {
		if ok, err := p.MatchString(name); err == nil && ok {
			return true
		}
	}
	return false
}
