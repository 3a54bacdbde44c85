package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// FakeLocator is an in-memory ports.CollectionLocator keyed by prompt.
// It is safe for concurrent use.
type FakeLocator struct {
	mu          sync.Mutex
	elements    map[string]*domain.Element
	deep        map[string]*domain.Element
	collections map[string][]*domain.Element
	errs        map[string]error
	delays      map[string]time.Duration
	ignoreCtx   bool
	calls       []Call
}

// Call records one Locate invocation.
type Call struct {
	Prompt string
	Opts   ports.LocateOptions
}

// NewFakeLocator creates an empty locator: every prompt is not found.
func NewFakeLocator() *FakeLocator {
	return &FakeLocator{
		elements:    make(map[string]*domain.Element),
		deep:        make(map[string]*domain.Element),
		collections: make(map[string][]*domain.Element),
		errs:        make(map[string]error),
		delays:      make(map[string]time.Duration),
	}
}

// WithElement resolves prompt to el in both modes.
func (f *FakeLocator) WithElement(prompt string, el *domain.Element) *FakeLocator {
	f.elements[prompt] = el
	return f
}

// WithDeepElement resolves prompt to el only when Deep is requested.
func (f *FakeLocator) WithDeepElement(prompt string, el *domain.Element) *FakeLocator {
	f.deep[prompt] = el
	return f
}

// WithCollection makes LocateAll return els for selector.
func (f *FakeLocator) WithCollection(selector string, els ...*domain.Element) *FakeLocator {
	f.collections[selector] = els
	return f
}

// WithError makes prompt fail with err.
func (f *FakeLocator) WithError(prompt string, err error) *FakeLocator {
	f.errs[prompt] = err
	return f
}

// WithDelay delays answers for prompt.
func (f *FakeLocator) WithDelay(prompt string, d time.Duration) *FakeLocator {
	f.delays[prompt] = d
	return f
}

// IgnoringContext makes delays ignore context cancellation, like a misbehaving agent.
func (f *FakeLocator) IgnoringContext() *FakeLocator {
	f.ignoreCtx = true
	return f
}

// Locate implements ports.Locator.
func (f *FakeLocator) Locate(ctx context.Context, prompt string, opts ports.LocateOptions) (*domain.Element, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Prompt: prompt, Opts: opts})
	delay := f.delays[prompt]
	err := f.errs[prompt]
	el, ok := f.elements[prompt]
	if !ok && opts.Deep {
		el, ok = f.deep[prompt]
	}
	f.mu.Unlock()

	if delay > 0 {
		if f.ignoreCtx {
			time.Sleep(delay)
		} else {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrElementNotFound
	}
	return el, nil
}

// LocateAll implements ports.CollectionLocator.
func (f *FakeLocator) LocateAll(ctx context.Context, selector string, opts ports.LocateOptions) ([]*domain.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Prompt: selector, Opts: opts})
	if err := f.errs[selector]; err != nil {
		return nil, err
	}
	return f.collections[selector], nil
}

// Calls returns the recorded invocations.
func (f *FakeLocator) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Prompts returns the prompts of the recorded invocations.
func (f *FakeLocator) Prompts() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Prompt)
	}
	return out
}

// LocatorOnly hides every optional interface of l.
func LocatorOnly(l ports.Locator) ports.Locator {
	return struct{ ports.Locator }{l}
}
