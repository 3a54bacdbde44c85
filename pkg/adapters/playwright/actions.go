package playwright

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/tendril/pkg/registry"
)

// ErrMissingTarget is returned when an action needs a selector or URL and got none.
var ErrMissingTarget = errors.New("action target is required")

// Actions returns a registry with the browser actions bound to page:
// navigate (alias goto), reload, click, hover, fill (alias type), select,
// check, uncheck, press and wait.
func Actions(page Page) *registry.Registry {
	r := registry.NewRegistry()
	b := &binder{page: page}

	r.Register("navigate", b.navigate)
	r.Register("goto", b.navigate)
	r.Register("reload", b.reload)
	r.Register("click", b.targeted(page.Click))
	r.Register("hover", b.targeted(page.Hover))
	r.Register("fill", b.fill)
	r.Register("type", b.fill)
	r.Register("select", b.selectOption)
	r.Register("check", b.check(true))
	r.Register("uncheck", b.check(false))
	r.Register("press", b.press)
	r.Register("wait", b.wait)
	return r
}

type binder struct {
	page Page
}

func (b *binder) navigate(ctx context.Context, req registry.Request) error {
	url := firstNonEmpty(req.Target, req.Value)
	if url == "" {
		return fmt.Errorf("navigate: %w", ErrMissingTarget)
	}
	return b.page.Goto(url, remaining(ctx))
}

func (b *binder) reload(ctx context.Context, _ registry.Request) error {
	return b.page.Reload(remaining(ctx))
}

func (b *binder) targeted(do func(string, time.Duration) error) registry.Handler {
	return func(ctx context.Context, req registry.Request) error {
		if req.Target == "" {
			return fmt.Errorf("%s: %w", req.Action, ErrMissingTarget)
		}
		return do(req.Target, remaining(ctx))
	}
}

func (b *binder) fill(ctx context.Context, req registry.Request) error {
	if req.Target == "" {
		return fmt.Errorf("%s: %w", req.Action, ErrMissingTarget)
	}
	return b.page.Fill(req.Target, req.Value, remaining(ctx))
}

func (b *binder) selectOption(ctx context.Context, req registry.Request) error {
	if req.Target == "" {
		return fmt.Errorf("select: %w", ErrMissingTarget)
	}
	return b.page.Select(req.Target, req.Value, remaining(ctx))
}

func (b *binder) check(checked bool) registry.Handler {
	return func(ctx context.Context, req registry.Request) error {
		if req.Target == "" {
			return fmt.Errorf("%s: %w", req.Action, ErrMissingTarget)
		}
		return b.page.Check(req.Target, checked, remaining(ctx))
	}
}

// press sends Value as a key to Target, or to the page body when Target is empty.
func (b *binder) press(ctx context.Context, req registry.Request) error {
	if req.Value == "" {
		return errors.New("press: key is required")
	}
	return b.page.Press(firstNonEmpty(req.Target, "body"), req.Value, remaining(ctx))
}

// wait waits for Target to become visible, or sleeps for the duration in Value
// ("2s", "500ms" or a bare number of milliseconds).
func (b *binder) wait(ctx context.Context, req registry.Request) error {
	if req.Target != "" {
		return b.page.WaitFor(req.Target, remaining(ctx))
	}
	d, err := parseWait(req.Value)
	if err != nil {
		return fmt.Errorf("wait: %w", err)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parseWait(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("selector or duration is required")
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// remaining turns the context deadline into a Playwright timeout. Zero leaves
// the page default in place.
func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	if d := time.Until(deadline); d > time.Millisecond {
		return d
	}
	return time.Millisecond
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
