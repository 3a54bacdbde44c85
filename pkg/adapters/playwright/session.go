package playwright

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	pw "github.com/playwright-community/playwright-go"
)

// Defaults for Launch.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultTimeout        = 30 * time.Second
)

// Browser engines accepted by WithBrowser.
const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"
)

type config struct {
	browser  string
	headless bool
	width    int
	height   int
	timeout  time.Duration
	install  bool
	logger   *slog.Logger
}

// Option configures Launch.
type Option func(*config)

// WithBrowser selects the browser engine: chromium (default), firefox or webkit.
func WithBrowser(name string) Option {
	return func(c *config) { c.browser = name }
}

// WithHeadless toggles the visible browser window. Headless is the default.
func WithHeadless(headless bool) Option {
	return func(c *config) { c.headless = headless }
}

// WithViewport sets the page size in pixels.
func WithViewport(width, height int) Option {
	return func(c *config) {
		c.width = width
		c.height = height
	}
}

// WithTimeout sets the page default timeout for Playwright operations.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithInstall downloads the driver and browsers before launching.
func WithInstall(install bool) Option {
	return func(c *config) { c.install = install }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Session owns a running browser with a single page.
type Session struct {
	pw      *pw.Playwright
	browser pw.Browser
	context pw.BrowserContext
	page    pw.Page
	wrapped Page
	logger  *slog.Logger
}

// Launch starts Playwright, opens a browser and creates a page.
func Launch(opts ...Option) (*Session, error) {
	cfg := config{
		browser:  Chromium,
		headless: true,
		width:    DefaultViewportWidth,
		height:   DefaultViewportHeight,
		timeout:  DefaultTimeout,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	runOpts := &pw.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if cfg.install {
		cfg.logger.Info("installing playwright driver")
		if err := pw.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	runtime, err := pw.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	var engine pw.BrowserType
	switch cfg.browser {
	case Chromium, "":
		engine = runtime.Chromium
	case Firefox:
		engine = runtime.Firefox
	case WebKit:
		engine = runtime.WebKit
	default:
		_ = runtime.Stop()
		return nil, fmt.Errorf("unknown browser %q", cfg.browser)
	}

	browser, err := engine.Launch(pw.BrowserTypeLaunchOptions{Headless: pw.Bool(cfg.headless)})
	if err != nil {
		_ = runtime.Stop()
		return nil, fmt.Errorf("launch %s: %w", cfg.browser, err)
	}
	bctx, err := browser.NewContext(pw.BrowserNewContextOptions{
		Viewport: &pw.Size{Width: cfg.width, Height: cfg.height},
	})
	if err != nil {
		_ = browser.Close()
		_ = runtime.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = runtime.Stop()
		return nil, fmt.Errorf("create page: %w", err)
	}
	page.SetDefaultTimeout(float64(cfg.timeout.Milliseconds()))

	cfg.logger.Info("browser session started", "browser", cfg.browser, "headless", cfg.headless)
	return &Session{
		pw:      runtime,
		browser: browser,
		context: bctx,
		page:    page,
		wrapped: NewPage(page),
		logger:  cfg.logger,
	}, nil
}

// Page returns the session page.
func (s *Session) Page() Page {
	return s.wrapped
}

// Close tears down the page, the context, the browser and Playwright itself,
// continuing past individual failures.
func (s *Session) Close() error {
	errs := []error{
		s.page.Close(),
		s.context.Close(),
		s.browser.Close(),
		s.pw.Stop(),
	}
	s.logger.Info("browser session closed")
	return errors.Join(errs...)
}
