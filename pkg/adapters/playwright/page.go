// Package playwright drives a real browser page for tendril: it locates elements,
// enumerates collections, exposes the page markup and performs action steps.
//
// Everything goes through the Page interface so the locator and actions can be
// tested without a browser. Launch returns a Session whose Page talks to
// Playwright.
package playwright

import (
	"fmt"
	"strings"
	"sync"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/aretw0/tendril/pkg/domain"
)

// Page is the subset of browser operations tendril needs.
// Query returns nil without error when nothing matches.
type Page interface {
	Goto(url string, timeout time.Duration) error
	Reload(timeout time.Duration) error
	Click(selector string, timeout time.Duration) error
	Hover(selector string, timeout time.Duration) error
	Fill(selector, value string, timeout time.Duration) error
	Select(selector, value string, timeout time.Duration) error
	Check(selector string, checked bool, timeout time.Duration) error
	Press(selector, key string, timeout time.Duration) error
	WaitFor(selector string, timeout time.Duration) error
	Query(selector string) (*domain.Element, error)
	QueryAll(selector string) ([]*domain.Element, error)
	Describe(x, y float64) (string, error)
	Content() (string, error)
	URL() string
}

// snapshotJS reads everything domain.Element carries in one round trip.
// Hidden elements report an empty box so Element.Visible is false.
const snapshotJS = `e => {
  const r = e.getBoundingClientRect();
  const style = window.getComputedStyle(e);
  const hidden = style.visibility === 'hidden' || style.display === 'none';
  const attrs = {};
  for (const a of e.attributes) attrs[a.name] = a.value;
  delete attrs.checked;
  delete attrs.selected;
  if (e.disabled === true) attrs.disabled = 'true';
  if (e.checked === true) attrs.checked = 'true';
  if (e.selected === true) attrs.selected = 'true';
  if (typeof e.value === 'string') attrs.value = e.value;
  return {
    text: (e.innerText || e.textContent || '').trim(),
    x: r.x, y: r.y,
    width: hidden ? 0 : r.width,
    height: hidden ? 0 : r.height,
    attrs: attrs,
  };
}`

const describeJS = `([x, y]) => {
  const e = document.elementFromPoint(x, y);
  if (!e) return '';
  return (e.innerText || e.getAttribute('aria-label') || e.getAttribute('title') || e.tagName.toLowerCase()).trim();
}`

// livePage adapts a Playwright page. Playwright pages are not safe for
// concurrent use, so every call holds mu.
type livePage struct {
	mu   sync.Mutex
	page pw.Page
}

// NewPage wraps a Playwright page.
func NewPage(page pw.Page) Page {
	return &livePage{page: page}
}

func (p *livePage) Goto(url string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.page.Goto(url, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateDomcontentloaded,
		Timeout:   millis(timeout),
	})
	return err
}

func (p *livePage) Reload(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.page.Reload(pw.PageReloadOptions{Timeout: millis(timeout)})
	return err
}

func (p *livePage) Click(selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page.Click(selector, pw.PageClickOptions{Timeout: millis(timeout)})
}

func (p *livePage) Hover(selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page.Hover(selector, pw.PageHoverOptions{Timeout: millis(timeout)})
}

func (p *livePage) Fill(selector, value string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page.Fill(selector, value, pw.PageFillOptions{Timeout: millis(timeout)})
}

func (p *livePage) Select(selector, value string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.page.SelectOption(selector, pw.SelectOptionValues{Values: &[]string{value}},
		pw.PageSelectOptionOptions{Timeout: millis(timeout)})
	return err
}

func (p *livePage) Check(selector string, checked bool, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if checked {
		return p.page.Check(selector, pw.PageCheckOptions{Timeout: millis(timeout)})
	}
	return p.page.Uncheck(selector, pw.PageUncheckOptions{Timeout: millis(timeout)})
}

func (p *livePage) Press(selector, key string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page.Press(selector, key, pw.PagePressOptions{Timeout: millis(timeout)})
}

func (p *livePage) WaitFor(selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.page.WaitForSelector(selector, pw.PageWaitForSelectorOptions{
		State:   pw.WaitForSelectorStateVisible,
		Timeout: millis(timeout),
	})
	return err
}

func (p *livePage) Query(selector string) (*domain.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, err := p.page.QuerySelector(selector)
	if err != nil || h == nil {
		return nil, err
	}
	return snapshot(h, selector)
}

func (p *livePage) QueryAll(selector string) ([]*domain.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Element, 0, len(handles))
	for i, h := range handles {
		el, err := snapshot(h, nth(selector, i))
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func (p *livePage) Describe(x, y float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, err := p.page.Evaluate(describeJS, []float64{x, y})
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (p *livePage) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page.Content()
}

func (p *livePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page.URL()
}

func snapshot(h pw.ElementHandle, selector string) (*domain.Element, error) {
	v, err := h.Evaluate(snapshotJS)
	if err != nil {
		return nil, fmt.Errorf("snapshot %q: %w", selector, err)
	}
	el := elementFrom(v)
	el.Selector = selector
	return el, nil
}

// elementFrom converts the object produced by snapshotJS.
func elementFrom(v any) *domain.Element {
	m, _ := v.(map[string]any)
	el := &domain.Element{
		Bounds: domain.Bounds{
			X:      number(m["x"]),
			Y:      number(m["y"]),
			Width:  number(m["width"]),
			Height: number(m["height"]),
		},
	}
	el.Text, _ = m["text"].(string)
	if attrs, ok := m["attrs"].(map[string]any); ok && len(attrs) > 0 {
		el.Attributes = make(map[string]string, len(attrs))
		for k, a := range attrs {
			el.Attributes[k] = fmt.Sprint(a)
		}
	}
	return el
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// nth addresses the i-th match of selector.
func nth(selector string, i int) string {
	return fmt.Sprintf("%s >> nth=%d", strings.TrimSpace(selector), i)
}

func millis(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return pw.Float(float64(d.Milliseconds()))
}
