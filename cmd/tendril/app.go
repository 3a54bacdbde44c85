package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/aretw0/tendril"
	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/pkg/adapters/file"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/adapters/openai"
	"github.com/aretw0/tendril/pkg/adapters/playwright"
	"github.com/aretw0/tendril/pkg/adapters/process"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/registry"
	"github.com/aretw0/tendril/pkg/session"
)

// app holds the adapters a command needs, built from the loaded configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	dir      string
	loader   *file.Loader
	reports  ports.ReportStore
	locks    *session.Manager
	registry *prometheus.Registry
	metrics  *observability.Metrics
	closers  []func() error
}

// newApp opens the test case directory and the report store. The browser is
// only launched by engine.
func newApp(cmd *cobra.Command) (*app, error) {
	dir, _ := cmd.Flags().GetString("dir")
	a := &app{
		cfg:      cfg,
		logger:   logger,
		dir:      dir,
		loader:   file.NewLoader(dir, file.WithIgnore(ignored(cfg)...)),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics, err := observability.NewMetrics(a.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	a.metrics = metrics

	var distributed ports.Locker
	switch cfg.Store.Backend {
	case "file":
		a.reports = file.NewStore(cfg.Store.Dir)
	case "redis":
		rc := cfg.Store.Redis
		prefix := strings.TrimSuffix(rc.Prefix, ":") + ":"
		store := redis.New(rc.Addr, rc.Password, rc.DB,
			redis.WithPrefix(prefix+"report:"),
			redis.WithTTL(rc.TTL),
		)
		a.reports = store
		distributed = redis.NewLocker(store.Client(), prefix)
		a.closers = append(a.closers, store.Close)
	default:
		a.reports = memory.NewStore()
	}

	lockOpts := []session.Option{session.WithLogger(logger)}
	if distributed != nil {
		lockOpts = append(lockOpts, session.WithLocker(distributed))
	}
	a.locks = session.NewManager(lockOpts...)

	mws, err := storeMiddleware(cfg.Store)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.reports = middleware.Chain(a.reports, mws...)
	return a, nil
}

// ignored lists the files in --dir that are configuration, not test cases.
func ignored(c *config.Config) []string {
	paths := []string{"tendril.yaml", "tendril.yml"}
	if c.Action.Tools != "" && !filepath.IsAbs(c.Action.Tools) {
		paths = append(paths, c.Action.Tools)
	}
	return paths
}

// storeMiddleware masks sensitive variables before they are encrypted.
func storeMiddleware(c config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(c.Mask) > 0 {
		mask, err := middleware.NewPIIMiddleware(c.Mask)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mask)
	}
	if c.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key is not base64: %w", err)
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, fmt.Errorf("store.encryption_key: %w", err)
		}
		mws = append(mws, enc)
	}
	return mws, nil
}

// engine builds the tendril engine. needBrowser launches the configured
// browser; commands that only parse or validate pass false.
func (a *app) engine(needBrowser bool, extra ...tendril.Option) (*tendril.Engine, error) {
	c := a.cfg
	opts := []tendril.Option{
		tendril.WithLogger(a.logger),
		tendril.WithLoader(a.loader),
		tendril.WithReportStore(a.reports),
		tendril.WithEvaluationTimeout(c.Evaluation.Timeout),
		tendril.WithFallback(c.Evaluation.Fallback),
		tendril.WithNaturalLanguage(c.Evaluation.Natural),
		tendril.WithActionTimeout(c.Action.Timeout),
		tendril.WithLoopLimits(c.Loop.MaxIterations, c.Loop.Timeout),
		tendril.WithCircuitBreaker(c.Breaker.MaxDepth, c.Breaker.MaxErrors),
		tendril.WithSnapshots(c.Variables.Snapshots),
		tendril.WithHooks(a.metrics.Hooks()),
		tendril.WithHooks(observability.LoggingHooks(a.logger)),
	}

	if needBrowser {
		actions := registry.NewRegistry()
		if c.Browser.Enabled {
			locator, page, err := a.launch()
			if err != nil {
				return nil, err
			}
			actions = playwright.Actions(page)
			opts = append(opts, tendril.WithLocator(locator))
		} else {
			a.logger.Warn("browser disabled: page conditions take their fallback", "hint", "set browser.enabled")
		}
		if err := a.bindTools(actions); err != nil {
			return nil, err
		}
		opts = append(opts, tendril.WithActionExecutor(actions))
	}
	return tendril.New(append(opts, extra...)...), nil
}

func (a *app) launch() (ports.Locator, playwright.Page, error) {
	b := a.cfg.Browser
	bs, err := playwright.Launch(
		playwright.WithBrowser(b.Name),
		playwright.WithHeadless(b.Headless),
		playwright.WithViewport(b.Width, b.Height),
		playwright.WithTimeout(a.cfg.Action.Timeout),
		playwright.WithInstall(b.Install),
		playwright.WithLogger(a.logger),
	)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, bs.Close)

	page := bs.Page()
	if b.URL != "" {
		if err := page.Goto(b.URL, a.cfg.Action.Timeout); err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", b.URL, err)
		}
	}

	var locator ports.Locator = playwright.NewLocator(page,
		playwright.WithLocateTimeout(a.cfg.Evaluation.Timeout),
		playwright.WithLocatorLogger(a.logger),
	)
	if key := a.cfg.OpenAI.APIKey; key != "" {
		client, err := openai.NewClient(key,
			openai.WithModel(a.cfg.OpenAI.Model),
			openai.WithBaseURL(a.cfg.OpenAI.BaseURL),
		)
		if err != nil {
			return nil, nil, err
		}
		locator = openai.NewLocator(locator, client, openai.WithLogger(a.logger))
		a.logger.Info("deep element location enabled", "model", client.Model())
	}
	return locator, page, nil
}

// bindTools adds the allow-listed commands of the tools file to actions.
func (a *app) bindTools(actions *registry.Registry) error {
	path := a.cfg.Action.Tools
	if path == "" {
		return nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.dir, path)
	}
	tools, err := process.LoadTools(path)
	if err != nil {
		return err
	}
	if len(tools) == 0 {
		return nil
	}
	runner := process.NewRunner(
		process.WithRegistry(tools),
		process.WithBaseDir(a.dir),
		process.WithLogger(a.logger),
	)
	runner.Bind(actions)
	a.logger.Debug("process tools registered", "tools", runner.Names())
	return nil
}

// observe records run metrics for reports that did not come through the runner.
func (a *app) observe(report *domain.RunReport) {
	if report != nil {
		a.metrics.ObserveRun(report)
	}
}

// Close releases the browser and store connections.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
