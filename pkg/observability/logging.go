package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/tendril/pkg/domain"
)

// LoggingHooks logs step starts at debug level, completions at info (warn on
// failure) and variable changes at debug.
func LoggingHooks(logger *slog.Logger) domain.ExecutionHooks {
	return domain.ExecutionHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_start", "step_id", e.StepID, "kind", e.Kind, "depth", e.Depth)
		},
		OnStepComplete: func(ctx context.Context, e *domain.StepEvent) {
			if e.Result == nil {
				return
			}
			level := slog.LevelInfo
			attrs := []any{
				"step_id", e.StepID,
				"kind", e.Kind,
				"outcome", Outcome(*e.Result),
				"duration", e.Result.Duration,
			}
			if !e.Result.Success {
				level = slog.LevelWarn
				attrs = append(attrs, "err", e.Result.Error)
			}
			logger.Log(ctx, level, "step_complete", attrs...)
		},
		OnVariable: func(ctx context.Context, e *domain.VariableChangeEvent) {
			logger.DebugContext(ctx, "variable_change", "name", e.Name, "operation", e.Operation)
		},
	}
}
