package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunReportStoreContract runs a suite of tests to verify that a ReportStore implementation
// adheres to the defined interface contract.
func RunReportStoreContract(t *testing.T, store ReportStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")

	newReport := func(id string) *domain.RunReport {
		return &domain.RunReport{
			RunID:     id,
			TestCase:  "contract",
			Status:    domain.RunPassed,
			StartedAt: time.Now().UTC().Truncate(time.Second),
			Results: []domain.StepResult{
				{StepID: "s1", Kind: domain.StepAction, Success: true},
			},
			Variables: map[string]any{"foo": "bar", "count": 42},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		report := newReport(runID)
		require.NoError(t, store.Save(ctx, report), "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, report.RunID, loaded.RunID)
		assert.Equal(t, report.Status, loaded.Status)
		assert.Equal(t, "bar", loaded.Variables["foo"])
		// JSON backed stores may decode numbers as float64.
		assert.NotNil(t, loaded.Variables["count"])
		require.Len(t, loaded.Results, 1)
		assert.Equal(t, "s1", loaded.Results[0].StepID)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrReportNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newReport(runID)))
		require.NoError(t, store.Delete(ctx, runID), "Delete should not return error")

		_, err := store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrReportNotFound, "Load after Delete should return ErrReportNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, store.Save(ctx, newReport(id1)))
		require.NoError(t, store.Save(ctx, newReport(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
