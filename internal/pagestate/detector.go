// Package pagestate classifies the semantic state of the page under test.
//
// Detection runs three tiers in order and stops at the first success: DOM
// selector probes, text pattern probes and AI prompts. Each tier reports its
// own confidence.
package pagestate

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/aretw0/tendril/internal/locate"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

const (
	ConfidenceDOM  = 0.9
	ConfidenceText = 0.8
	ConfidenceAI   = 0.7

	// CurrentStateThreshold is the confidence a probe must exceed to be reported
	// by CurrentPageState.
	CurrentStateThreshold = 0.7

	DefaultTimeout = 5 * time.Second
)

// CurrentStateOrder is the probe order of CurrentPageState.
var CurrentStateOrder = []domain.PageState{
	domain.StateLoading,
	domain.StateError,
	domain.StateEmpty,
	domain.StateLoggedIn,
	domain.StateLoggedOut,
}

// Detector answers "is the page in state X?" through a locator.
type Detector struct {
	locator ports.Locator
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.RWMutex
	rules    map[domain.PageState]Rule
	compiled map[string]*regexp2.Regexp
}

// Option configures a Detector.
type Option func(*Detector)

// WithTimeout sets the default probe budget.
func WithTimeout(d time.Duration) Option {
	return func(det *Detector) {
		det.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(det *Detector) {
		det.logger = logger
	}
}

// WithRule adds or replaces the rule of state.
func WithRule(state domain.PageState, rule Rule) Option {
	return func(det *Detector) {
		det.rules[state] = rule
	}
}

// WithRules replaces every rule.
func WithRules(rules map[domain.PageState]Rule) Option {
	return func(det *Detector) {
		det.rules = maps.Clone(rules)
	}
}

// NewDetector creates a detector with the built-in rules. A nil locator
// detects nothing.
func NewDetector(locator ports.Locator, opts ...Option) *Detector {
	d := &Detector{
		locator:  locator,
		timeout:  DefaultTimeout,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		rules:    DefaultRules(),
		compiled: make(map[string]*regexp2.Regexp),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterRule adds or replaces the rule of state at runtime.
func (d *Detector) RegisterRule(state domain.PageState, rule Rule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rules[state] = rule
}

// Rule returns the rule of state.
func (d *Detector) Rule(state domain.PageState) (Rule, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.rules[state]
	return r, ok
}

// Detect reports whether the page is in state. A zero timeout uses the default.
func (d *Detector) Detect(ctx context.Context, state domain.PageState, timeout time.Duration) bool {
	return d.DetectWithDetails(ctx, state, timeout).Detected
}

// DetectWithDetails runs the tiers in order and returns the first success.
func (d *Detector) DetectWithDetails(ctx context.Context, state domain.PageState, timeout time.Duration) domain.Detection {
	miss := domain.Detection{State: state}
	if d.locator == nil {
		return miss
	}
	rule, ok := d.Rule(state)
	if !ok {
		d.logger.Debug("no detection rule", "state", state)
		return miss
	}
	if timeout <= 0 {
		timeout = d.timeout
	}
	half := timeout / 2

	for _, sel := range rule.Selectors {
		if ctx.Err() != nil {
			return miss
		}
		if _, err := locate.Within(ctx, d.locator, sel, ports.LocateOptions{Timeout: half}); err == nil {
			return d.hit(state, domain.TierDOM, ConfidenceDOM, "matched selector "+sel)
		}
	}

	for _, pattern := range rule.Patterns {
		if ctx.Err() != nil {
			return miss
		}
		re, err := d.compile(pattern)
		if err != nil {
			d.logger.Debug("invalid state pattern", "state", state, "pattern", pattern, "error", err)
			continue
		}
		el, err := locate.Within(ctx, d.locator, TextPrompt(pattern), ports.LocateOptions{Timeout: half})
		if err != nil {
			continue
		}
		if ok, err := re.MatchString(el.Text); err == nil && ok {
			return d.hit(state, domain.TierText, ConfidenceText, "matched text pattern "+pattern)
		}
	}

	for _, prompt := range rule.Prompts {
		if ctx.Err() != nil {
			return miss
		}
		el, err := locate.Within(ctx, d.locator, prompt, ports.LocateOptions{Deep: true, Timeout: timeout})
		if err != nil {
			continue
		}
		desc := prompt
		if el.Text != "" {
			desc = el.Text
		}
		return d.hit(state, domain.TierAI, ConfidenceAI, desc)
	}

	return miss
}

// CurrentPageState probes CurrentStateOrder and returns the first state whose
// confidence exceeds CurrentStateThreshold.
func (d *Detector) CurrentPageState(ctx context.Context, timeout time.Duration) (domain.Detection, bool) {
	for _, state := range CurrentStateOrder {
		det := d.DetectWithDetails(ctx, state, timeout)
		if det.Detected && det.Confidence > CurrentStateThreshold {
			return det, true
		}
	}
	return domain.Detection{}, false
}

func (d *Detector) hit(state domain.PageState, tier domain.DetectionTier, confidence float64, desc string) domain.Detection {
	d.logger.Debug("page state detected", "state", state, "tier", tier, "confidence", confidence)
	return domain.Detection{State: state, Detected: true, Confidence: confidence, Description: desc, Tier: tier}
}

func (d *Detector) compile(pattern string) (*regexp2.Regexp, error) {
	d.mu.RLock()
	re, ok := d.compiled[pattern]
	d.mu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.compiled[pattern] = re
	d.mu.Unlock()
	return re, nil
}

// CompilePattern compiles a case-insensitive ECMAScript-style pattern with a match timeout.
func CompilePattern(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase|regexp2.ECMAScript)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = time.Second
	return re, nil
}

// TextPrompt is the locator prompt probing for text matching pattern.
func TextPrompt(pattern string) string {
	return "/" + pattern + "/i"
}
