package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// ReportStore defines the interface for persisting run reports.
type ReportStore interface {
	// Save persists the report under its RunID.
	Save(ctx context.Context, report *domain.RunReport) error

	// Load retrieves a report by run id.
	// Returns domain.ErrReportNotFound if it does not exist.
	Load(ctx context.Context, runID string) (*domain.RunReport, error)

	// Delete removes a report.
	Delete(ctx context.Context, runID string) error

	// List returns the run ids of every stored report.
	List(ctx context.Context) ([]string, error)
}
