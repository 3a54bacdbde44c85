package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/cli"
	httpAdapter "github.com/aretw0/tendril/pkg/adapters/http"
	"github.com/aretw0/tendril/pkg/domain"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes the engine as a JSON API over HTTP: parse, evaluate and validate
conditions and test cases, start runs, read stored reports and follow run
events over SSE at /events. Prometheus metrics are served at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		streams := httpAdapter.NewStreamManager()
		engine, err := a.engine(true, tendril.WithHooks(streams.Hooks()))
		if err != nil {
			return err
		}

		handler := httpAdapter.NewHandler(observedEngine{engine, a},
			httpAdapter.WithReportStore(a.reports),
			httpAdapter.WithStreams(streams),
			httpAdapter.WithMetrics(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
			httpAdapter.WithLogger(a.logger),
		)
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			a.logger.Info("tendril server listening", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Stop()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			a.logger.Info("shutting down", "signal", fmt.Sprint(ctx.Signal()))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("graceful shutdown did not complete", "err", err)
				return errors.Join(err, srv.Close())
			}
			a.logger.Info("tendril server stopped gracefully")
			return nil
		}
	},
}

// observedEngine records run metrics for runs started outside the runner and
// serialises runs of the same stored test case.
type observedEngine struct {
	*tendril.Engine
	app *app
}

func (e observedEngine) Run(ctx context.Context, tc *domain.TestCase) (*domain.RunReport, error) {
	report, err := e.Engine.Run(ctx, tc)
	e.app.observe(report)
	return report, err
}

func (e observedEngine) RunTestCase(ctx context.Context, id string) (*domain.RunReport, error) {
	var report *domain.RunReport
	err := e.app.locks.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		report, err = e.Engine.RunTestCase(ctx, id)
		return err
	})
	e.app.observe(report)
	return report, err
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	if err := v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
}
