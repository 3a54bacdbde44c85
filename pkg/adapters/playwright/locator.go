package playwright

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Locator defaults.
const (
	DefaultLocateTimeout = 5 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond
)

var (
	_ ports.CollectionLocator = (*Locator)(nil)
	_ ports.PageSource        = (*Locator)(nil)
	_ ports.PointDescriber    = (*Locator)(nil)
)

// selectorEngines are the Playwright prefixes that already name an engine.
var selectorEngines = []string{"css=", "xpath=", "text=", "id=", "role=", "data-testid=", "internal:"}

// Locator resolves prompts against a live page. Selectors are queried as-is;
// anything else is also tried as visible text. The page is polled until a
// match appears or the timeout elapses.
type Locator struct {
	page    Page
	timeout time.Duration
	poll    time.Duration
	logger  *slog.Logger
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithLocateTimeout sets the timeout used when LocateOptions carries none.
func WithLocateTimeout(d time.Duration) LocatorOption {
	return func(l *Locator) { l.timeout = d }
}

// WithPollInterval sets the delay between page queries.
func WithPollInterval(d time.Duration) LocatorOption {
	return func(l *Locator) {
		if d > 0 {
			l.poll = d
		}
	}
}

// WithLocatorLogger sets the locator logger.
func WithLocatorLogger(logger *slog.Logger) LocatorOption {
	return func(l *Locator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocator creates a locator over page.
func NewLocator(page Page, opts ...LocatorOption) *Locator {
	l := &Locator{
		page:    page,
		timeout: DefaultLocateTimeout,
		poll:    DefaultPollInterval,
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate returns the first element matching prompt. Deep is ignored here;
// the openai adapter layers reasoning on top of this locator.
func (l *Locator) Locate(ctx context.Context, prompt string, opts ports.LocateOptions) (*domain.Element, error) {
	candidates := Candidates(prompt)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: empty prompt", domain.ErrElementNotFound)
	}

	var el *domain.Element
	err := l.waitUntil(ctx, opts.Timeout, func() (bool, error) {
		for _, sel := range candidates {
			found, err := l.page.Query(sel)
			if err != nil {
				// Invalid selectors are expected for natural-language prompts.
				l.logger.Debug("query failed", "selector", sel, "err", err)
				continue
			}
			if found != nil {
				el = found
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrElementNotFound, prompt)
	}
	return el, nil
}

// LocateAll returns every element matching selector, in document order.
// An empty result is not an error.
func (l *Locator) LocateAll(ctx context.Context, selector string, opts ports.LocateOptions) ([]*domain.Element, error) {
	var els []*domain.Element
	var lastErr error
	err := l.waitUntil(ctx, opts.Timeout, func() (bool, error) {
		found, err := l.page.QueryAll(selector)
		if err != nil {
			lastErr = err
			return false, nil
		}
		els, lastErr = found, nil
		return len(found) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("query %q: %w", selector, lastErr)
	}
	return els, nil
}

// PageContent returns the current page markup.
func (l *Locator) PageContent(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.page.Content()
}

// DescribeAt returns the text of the element at the given page coordinate.
func (l *Locator) DescribeAt(ctx context.Context, x, y float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.page.Describe(x, y)
}

// waitUntil calls try until it reports done, the timeout elapses or ctx ends.
// Elapsing the timeout is not an error; the caller inspects what try stored.
func (l *Locator) waitUntil(ctx context.Context, timeout time.Duration, try func() (bool, error)) error {
	if timeout <= 0 {
		timeout = l.timeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := try()
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
		}
	}
}

// Candidates lists the selectors tried for prompt, most specific first.
// Prompts with an engine prefix are used verbatim; CSS-looking prompts are
// tried as CSS and then as text; plain phrases are tried as text first.
func Candidates(prompt string) []string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}
	for _, prefix := range selectorEngines {
		if strings.HasPrefix(prompt, prefix) {
			return []string{prompt}
		}
	}
	if strings.HasPrefix(prompt, "//") {
		return []string{"xpath=" + prompt}
	}

	text := "text=" + strings.Trim(prompt, `"'`)
	if strings.ContainsAny(prompt[:1], ".#[*") || strings.ContainsAny(prompt, ">[=:") {
		return []string{prompt, text}
	}
	phrase := strings.TrimSpace(trimRole(prompt))
	out := []string{text}
	if phrase != "" && phrase != prompt {
		out = append(out, "text="+phrase)
	}
	if !strings.Contains(prompt, " ") {
		out = append(out, prompt)
	}
	return out
}

// trimRole drops a trailing widget noun: "login button" becomes "login".
func trimRole(prompt string) string {
	for _, role := range []string{"button", "link", "field", "input", "checkbox", "menu", "tab", "botão", "campo"} {
		if rest, ok := strings.CutSuffix(strings.ToLower(prompt), " "+role); ok {
			return prompt[:len(rest)]
		}
	}
	return prompt
}
