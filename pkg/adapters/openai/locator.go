package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// Defaults for the reasoning locator.
const (
	DefaultMarkupLimit      = 24000
	DefaultReasoningTimeout = 20 * time.Second
)

// ErrNoPageSource is returned when neither an explicit page source nor the
// wrapped locator can provide page markup.
var ErrNoPageSource = errors.New("no page source for reasoning")

const systemPrompt = `You map descriptions of elements on a web page to selectors.
Reply with exactly one Playwright selector (CSS, or text="..." for visible text) and nothing else.
Reply NONE when no element on the page matches the description.`

var (
	_ ports.Locator           = (*Locator)(nil)
	_ ports.CollectionLocator = (*Locator)(nil)
)

// Locator wraps another locator. Plain lookups go to the wrapped locator
// first; Deep lookups and prompts it cannot resolve are sent to the model,
// whose selector is resolved by the wrapped locator. Selectors proposed by
// the model are cached per prompt until they stop matching.
type Locator struct {
	inner   ports.Locator
	source  ports.PageSource
	ai      Completer
	limit   int
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// LocatorOption configures a Locator.
type LocatorOption func(*Locator)

// WithPageSource sets where page markup comes from. By default the wrapped
// locator is used when it implements ports.PageSource.
func WithPageSource(src ports.PageSource) LocatorOption {
	return func(l *Locator) { l.source = src }
}

// WithMarkupLimit caps the markup sent to the model, in bytes.
func WithMarkupLimit(n int) LocatorOption {
	return func(l *Locator) { l.limit = n }
}

// WithReasoningTimeout bounds one model call.
func WithReasoningTimeout(d time.Duration) LocatorOption {
	return func(l *Locator) { l.timeout = d }
}

// WithLogger sets the locator logger.
func WithLogger(logger *slog.Logger) LocatorOption {
	return func(l *Locator) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocator decorates inner with model reasoning.
func NewLocator(inner ports.Locator, ai Completer, opts ...LocatorOption) *Locator {
	l := &Locator{
		inner:   inner,
		ai:      ai,
		limit:   DefaultMarkupLimit,
		timeout: DefaultReasoningTimeout,
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		cache:   make(map[string]string),
	}
	if src, ok := inner.(ports.PageSource); ok {
		l.source = src
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate resolves prompt, asking the model when opts.Deep is set or the wrapped
// locator finds nothing.
func (l *Locator) Locate(ctx context.Context, prompt string, opts ports.LocateOptions) (*domain.Element, error) {
	if !opts.Deep {
		el, err := l.inner.Locate(ctx, prompt, opts)
		if err == nil || !errors.Is(err, domain.ErrElementNotFound) {
			return el, err
		}
	}

	selector, err := l.selectorFor(ctx, prompt)
	if err != nil {
		return nil, err
	}
	el, err := l.inner.Locate(ctx, selector, ports.LocateOptions{Timeout: opts.Timeout})
	if errors.Is(err, domain.ErrElementNotFound) {
		l.forget(prompt)
	}
	if err != nil {
		return nil, err
	}
	if el.Selector == "" {
		found := *el
		found.Selector = selector
		el = &found
	}
	return el, nil
}

// LocateAll delegates to the wrapped locator when it can enumerate elements.
func (l *Locator) LocateAll(ctx context.Context, selector string, opts ports.LocateOptions) ([]*domain.Element, error) {
	cl, ok := l.inner.(ports.CollectionLocator)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrSelectorCollection, selector)
	}
	return cl.LocateAll(ctx, selector, opts)
}

// PageContent delegates to the configured page source.
func (l *Locator) PageContent(ctx context.Context) (string, error) {
	if l.source == nil {
		return "", ErrNoPageSource
	}
	return l.source.PageContent(ctx)
}

func (l *Locator) selectorFor(ctx context.Context, prompt string) (string, error) {
	l.mu.Lock()
	cached, ok := l.cache[prompt]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	if l.source == nil {
		return "", ErrNoPageSource
	}
	raw, err := l.source.PageContent(ctx)
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	markup, truncated, err := Compact(raw, l.limit)
	if err != nil {
		return "", err
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := l.ai.Complete(ctx, systemPrompt, userPrompt(prompt, markup))
	if err != nil {
		return "", fmt.Errorf("reason about %q: %w", prompt, err)
	}
	selector, ok := ParseSelector(reply)
	l.logger.Debug("model proposed selector",
		"prompt", prompt,
		"selector", selector,
		"truncated", truncated,
		"duration", time.Since(start),
	)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrElementNotFound, prompt)
	}

	l.mu.Lock()
	l.cache[prompt] = selector
	l.mu.Unlock()
	return selector, nil
}

func (l *Locator) forget(prompt string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, prompt)
}

func userPrompt(prompt, markup string) string {
	var b strings.Builder
	b.WriteString("Element: ")
	b.WriteString(prompt)
	b.WriteString("\n\nPage:\n")
	b.WriteString(markup)
	return b.String()
}

// ParseSelector extracts the selector from a model reply. It accepts a bare
// selector, one wrapped in backticks or a code fence, and reports false for
// NONE or an empty reply.
func ParseSelector(reply string) (string, bool) {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " #.[>=") {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if line, _, ok := strings.Cut(strings.TrimSpace(s), "\n"); ok {
		s = line
	}
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "`"))
	if s == "" || strings.EqualFold(s, "none") {
		return "", false
	}
	return s, true
}
