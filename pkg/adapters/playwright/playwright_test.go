package playwright

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/registry"
)

// fakePage records calls and serves canned elements keyed by selector.
type fakePage struct {
	mu       sync.Mutex
	elements map[string]*domain.Element
	lists    map[string][]*domain.Element
	invalid  map[string]bool
	content  string
	calls    []string
}

func newFakePage() *fakePage {
	return &fakePage{
		elements: make(map[string]*domain.Element),
		lists:    make(map[string][]*domain.Element),
		invalid:  make(map[string]bool),
	}
}

func (f *fakePage) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return nil
}

func (f *fakePage) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePage) Goto(url string, _ time.Duration) error  { return f.record("goto %s", url) }
func (f *fakePage) Reload(time.Duration) error              { return f.record("reload") }
func (f *fakePage) Click(sel string, _ time.Duration) error { return f.record("click %s", sel) }
func (f *fakePage) Hover(sel string, _ time.Duration) error { return f.record("hover %s", sel) }
func (f *fakePage) Fill(sel, v string, _ time.Duration) error {
	return f.record("fill %s=%s", sel, v)
}
func (f *fakePage) Select(sel, v string, _ time.Duration) error {
	return f.record("select %s=%s", sel, v)
}
func (f *fakePage) Check(sel string, on bool, _ time.Duration) error {
	return f.record("check %s=%t", sel, on)
}
func (f *fakePage) Press(sel, key string, _ time.Duration) error {
	return f.record("press %s %s", sel, key)
}
func (f *fakePage) WaitFor(sel string, _ time.Duration) error { return f.record("wait %s", sel) }

func (f *fakePage) Query(sel string) (*domain.Element, error) {
	_ = f.record("query %s", sel)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalid[sel] {
		return nil, errors.New("invalid selector")
	}
	return f.elements[sel], nil
}

func (f *fakePage) QueryAll(sel string) ([]*domain.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.invalid[sel] {
		return nil, errors.New("invalid selector")
	}
	return f.lists[sel], nil
}

func (f *fakePage) Describe(x, y float64) (string, error) { return fmt.Sprintf("at %g,%g", x, y), nil }
func (f *fakePage) Content() (string, error)             { return f.content, nil }
func (f *fakePage) URL() string                          { return "about:blank" }

func TestCandidates(t *testing.T) {
	tests := []struct {
		prompt string
		want   []string
	}{
		{"", nil},
		{"#login", []string{"#login", "text=#login"}},
		{"form > button[type=submit]", []string{"form > button[type=submit]", "text=form > button[type=submit]"}},
		{"css=.menu", []string{"css=.menu"}},
		{"//div[@id='x']", []string{"xpath=//div[@id='x']"}},
		{"login button", []string{"text=login button", "text=login"}},
		{"Submit", []string{"text=Submit", "Submit"}},
		{`"Sign in"`, []string{`text=Sign in`}},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			assert.Equal(t, tt.want, Candidates(tt.prompt))
		})
	}
}

func TestLocator_Locate(t *testing.T) {
	login := &domain.Element{Text: "Log in", Bounds: domain.Bounds{Width: 80, Height: 20}}
	page := newFakePage()
	page.elements["#login"] = login
	page.elements["text=Log in"] = login
	page.invalid["text=#broken"] = true
	loc := NewLocator(page, WithLocateTimeout(30*time.Millisecond), WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	t.Run("selector", func(t *testing.T) {
		el, err := loc.Locate(ctx, "#login", ports.LocateOptions{})
		require.NoError(t, err)
		assert.Same(t, login, el)
	})

	t.Run("text fallback after role noun", func(t *testing.T) {
		el, err := loc.Locate(ctx, "Log in button", ports.LocateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Log in", el.Text)
	})

	t.Run("not found after timeout", func(t *testing.T) {
		_, err := loc.Locate(ctx, "#broken", ports.LocateOptions{Timeout: 20 * time.Millisecond})
		assert.ErrorIs(t, err, domain.ErrElementNotFound)
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := loc.Locate(cctx, "#login", ports.LocateOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("appears while polling", func(t *testing.T) {
		late := newFakePage()
		loc := NewLocator(late, WithLocateTimeout(time.Second), WithPollInterval(5*time.Millisecond))
		go func() {
			time.Sleep(20 * time.Millisecond)
			late.mu.Lock()
			late.elements["#late"] = login
			late.mu.Unlock()
		}()
		el, err := loc.Locate(ctx, "#late", ports.LocateOptions{})
		require.NoError(t, err)
		assert.Same(t, login, el)
	})
}

func TestLocator_LocateAll(t *testing.T) {
	page := newFakePage()
	page.lists[".item"] = []*domain.Element{{Text: "a"}, {Text: "b"}}
	page.invalid["!!"] = true
	loc := NewLocator(page, WithLocateTimeout(20*time.Millisecond), WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	els, err := loc.LocateAll(ctx, ".item", ports.LocateOptions{})
	require.NoError(t, err)
	assert.Len(t, els, 2)

	els, err = loc.LocateAll(ctx, ".none", ports.LocateOptions{})
	require.NoError(t, err)
	assert.Empty(t, els)

	_, err = loc.LocateAll(ctx, "!!", ports.LocateOptions{})
	assert.Error(t, err)
}

func TestLocator_PageSource(t *testing.T) {
	page := newFakePage()
	page.content = "<html></html>"
	loc := NewLocator(page)

	html, err := loc.PageContent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", html)

	desc, err := loc.DescribeAt(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "at 10,20", desc)
}

func TestActions(t *testing.T) {
	ec := domain.NewExecutionContext(map[string]any{"user": "ana", "base": "https://example.test"})
	tests := []struct {
		name string
		step domain.ActionStep
		want string
		err  error
	}{
		{"navigate", domain.ActionStep{Action: "navigate", Target: "${base}/login"}, "goto https://example.test/login", nil},
		{"goto value", domain.ActionStep{Action: "goto", Value: "https://x.test"}, "goto https://x.test", nil},
		{"click", domain.ActionStep{Action: "click", Target: "#go"}, "click #go", nil},
		{"fill", domain.ActionStep{Action: "fill", Target: "#user", Value: "${user}"}, "fill #user=ana", nil},
		{"type", domain.ActionStep{Action: "type", Target: "#q", Value: "x"}, "fill #q=x", nil},
		{"select", domain.ActionStep{Action: "select", Target: "#lang", Value: "pt"}, "select #lang=pt", nil},
		{"uncheck", domain.ActionStep{Action: "uncheck", Target: "#tos"}, "check #tos=false", nil},
		{"press body", domain.ActionStep{Action: "press", Value: "Enter"}, "press body Enter", nil},
		{"wait selector", domain.ActionStep{Action: "wait", Target: ".ready"}, "wait .ready", nil},
		{"click without target", domain.ActionStep{Action: "click"}, "", ErrMissingTarget},
		{"unknown", domain.ActionStep{Action: "teleport"}, "", registry.ErrUnknownAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage()
			err := Actions(page).ExecuteAction(context.Background(), &tt.step, ec)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Empty(t, page.Calls())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, page.Calls())
		})
	}
}

func TestActions_WaitDuration(t *testing.T) {
	r := Actions(newFakePage())
	ec := domain.NewExecutionContext(nil)

	require.NoError(t, r.ExecuteAction(context.Background(), &domain.ActionStep{Action: "wait", Value: "5"}, ec))
	require.NoError(t, r.ExecuteAction(context.Background(), &domain.ActionStep{Action: "wait", Value: "5ms"}, ec))
	assert.Error(t, r.ExecuteAction(context.Background(), &domain.ActionStep{Action: "wait"}, ec))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := r.ExecuteAction(ctx, &domain.ActionStep{Action: "wait", Value: "1m"}, ec)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestElementFrom(t *testing.T) {
	el := elementFrom(map[string]any{
		"text":   "Save",
		"x":      10,
		"y":      20.5,
		"width":  100.0,
		"height": 0,
		"attrs":  map[string]any{"disabled": "true", "id": "save"},
	})
	assert.Equal(t, "Save", el.Text)
	assert.Equal(t, domain.Bounds{X: 10, Y: 20.5, Width: 100}, el.Bounds)
	assert.False(t, el.Visible())
	assert.False(t, el.Enabled())
	assert.Equal(t, "save", el.Attributes["id"])

	assert.NotNil(t, elementFrom(nil))
}
