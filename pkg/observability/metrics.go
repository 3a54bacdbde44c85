package observability

import (
	"context"
	"errors"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the tendril collectors.
type Metrics struct {
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	variables    *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tendril_steps_total",
			Help: "Executed steps by kind and outcome.",
		}, []string{"kind", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tendril_step_duration_seconds",
			Help:    "Step execution time, nested steps included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		variables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tendril_variable_changes_total",
			Help: "Variable store mutations by operation.",
		}, []string{"operation"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tendril_runs_total",
			Help: "Finished runs by status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tendril_run_duration_seconds",
			Help:    "Wall-clock time of finished runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.steps, err = register(reg, m.steps); err != nil {
		return nil, err
	}
	if m.stepDuration, err = register(reg, m.stepDuration); err != nil {
		return nil, err
	}
	if m.variables, err = register(reg, m.variables); err != nil {
		return nil, err
	}
	if m.runs, err = register(reg, m.runs); err != nil {
		return nil, err
	}
	if m.runDuration, err = register(reg, m.runDuration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Hooks returns execution hooks feeding the step and variable collectors.
func (m *Metrics) Hooks() domain.ExecutionHooks {
	return domain.ExecutionHooks{
		OnStepComplete: func(_ context.Context, e *domain.StepEvent) {
			if e.Result == nil {
				return
			}
			m.steps.WithLabelValues(string(e.Kind), Outcome(*e.Result)).Inc()
			m.stepDuration.WithLabelValues(string(e.Kind)).Observe(e.Result.Duration.Seconds())
		},
		OnVariable: func(_ context.Context, e *domain.VariableChangeEvent) {
			m.variables.WithLabelValues(string(e.Operation)).Inc()
		},
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(r *domain.RunReport) {
	m.runs.WithLabelValues(string(r.Status)).Inc()
	m.runDuration.Observe(r.Duration().Seconds())
}

// Outcome labels a step result: passed, skipped or failed.
func Outcome(r domain.StepResult) string {
	switch {
	case !r.Success:
		return "failed"
	case r.Skipped:
		return "skipped"
	}
	return "passed"
}
