/*
Package observability turns executor hooks into Prometheus metrics and
structured log lines.

	metrics, err := observability.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	eng := tendril.New(
		tendril.WithHooks(metrics.Hooks()),
		tendril.WithHooks(observability.LoggingHooks(logger)),
	)
*/
package observability
