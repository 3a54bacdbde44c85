// Package variables implements the scoped variable store of a test run.
package variables

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"time"

	"github.com/aretw0/tendril/internal/locate"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// DefaultMaxSnapshots bounds the snapshot ring when snapshotting is enabled.
const DefaultMaxSnapshots = 50

// TextCachePrefix prefixes the variables caching the text of extracted targets.
const TextCachePrefix = "__text_"

// Listener receives change events after every mutation.
type Listener func(domain.VariableChangeEvent)

// Store is the mutable variable state of a single run. It shares its map with
// the ExecutionContext it was created from and is not safe for concurrent
// mutation; a run owns exactly one store.
type Store struct {
	vars         map[string]any
	listeners    []Listener
	notify       bool
	snapshotting bool
	maxSnapshots int
	snapshots    []domain.VariableSnapshot
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithSnapshots enables snapshotting with a ring of at most max entries.
// A non-positive max uses DefaultMaxSnapshots.
func WithSnapshots(max int) Option {
	return func(s *Store) {
		if max <= 0 {
			max = DefaultMaxSnapshots
		}
		s.snapshotting = true
		s.maxSnapshots = max
	}
}

// WithListener registers a change listener and enables notifications.
func WithListener(l Listener) Option {
	return func(s *Store) {
		s.listeners = append(s.listeners, l)
		s.notify = true
	}
}

// WithNotifications toggles change notifications.
func WithNotifications(enabled bool) Option {
	return func(s *Store) {
		s.notify = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the time source of events and snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	return newStore(make(map[string]any), opts...)
}

// FromContext creates a store operating directly on ec.Variables.
func FromContext(ec *domain.ExecutionContext, opts ...Option) *Store {
	if ec.Variables == nil {
		ec.Variables = make(map[string]any)
	}
	return newStore(ec.Variables, opts...)
}

func newStore(vars map[string]any, opts ...Option) *Store {
	s := &Store{
		vars:   vars,
		notify: true,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind hands the variable map to ec by reference.
func (s *Store) Bind(ec *domain.ExecutionContext) {
	ec.Variables = s.vars
}

// Shares reports whether the store operates on the variables of ec.
func (s *Store) Shares(ec *domain.ExecutionContext) bool {
	if ec == nil || ec.Variables == nil || s.vars == nil {
		return false
	}
	return reflect.ValueOf(s.vars).Pointer() == reflect.ValueOf(ec.Variables).Pointer()
}

// OnChange registers a listener and returns a func removing it.
func (s *Store) OnChange(l Listener) func() {
	s.listeners = append(s.listeners, l)
	idx := len(s.listeners) - 1
	return func() {
		if idx < len(s.listeners) {
			s.listeners[idx] = nil
		}
	}
}

// Get returns the value of name.
func (s *Store) Get(name string) (any, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Has reports whether name is set.
func (s *Store) Has(name string) bool {
	_, ok := s.vars[name]
	return ok
}

// GetAll returns a copy of every variable.
func (s *Store) GetAll() map[string]any {
	return maps.Clone(s.vars)
}

// Set assigns value to name.
func (s *Store) Set(name string, value any) {
	old := s.vars[name]
	s.vars[name] = value
	s.changed(domain.VarSet, name, old, value)
}

// Increment adds by to name and returns the new value. Absent or non-numeric
// values count as 0. Integral results are stored as int, others as float64.
func (s *Store) Increment(name string, by float64) any {
	old := s.vars[name]
	current, _ := ToFloat(old)
	sum := current + by

	var next any = sum
	if sum == math.Trunc(sum) && math.Abs(sum) < 1<<53 {
		next = int(sum)
	}
	s.vars[name] = next
	s.changed(domain.VarIncrement, name, old, next)
	return next
}

// Delete removes name. It reports whether the variable existed.
func (s *Store) Delete(name string) bool {
	old, ok := s.vars[name]
	if !ok {
		return false
	}
	delete(s.vars, name)
	s.changed(domain.VarDelete, name, old, nil)
	return true
}

// Clear removes every variable.
func (s *Store) Clear() {
	clear(s.vars)
	s.changed(domain.VarClear, "", nil, nil)
}

// Extract reads the text (or attribute) of target through the locator, stores it
// under name and caches it as the text of target for later text conditions.
func (s *Store) Extract(ctx context.Context, locator ports.Locator, name, target, attribute string, timeout time.Duration) (string, error) {
	el, err := locate.Within(ctx, locator, target, ports.LocateOptions{Timeout: timeout})
	if err != nil {
		return "", fmt.Errorf("extract %q from %q: %w", name, target, err)
	}

	value := el.Text
	if attribute != "" {
		value = el.Attributes[attribute]
	} else {
		s.vars[TextCachePrefix+target] = el.Text
	}

	old := s.vars[name]
	s.vars[name] = value
	s.changed(domain.VarExtract, name, old, value)
	return value, nil
}

// Snapshots returns copies of the retained snapshots, oldest first.
func (s *Store) Snapshots() []domain.VariableSnapshot {
	out := make([]domain.VariableSnapshot, len(s.snapshots))
	for i, snap := range s.snapshots {
		snap.Variables = maps.Clone(snap.Variables)
		out[i] = snap
	}
	return out
}

// Latest returns the most recent snapshot.
func (s *Store) Latest() (domain.VariableSnapshot, bool) {
	if len(s.snapshots) == 0 {
		return domain.VariableSnapshot{}, false
	}
	snap := s.snapshots[len(s.snapshots)-1]
	snap.Variables = maps.Clone(snap.Variables)
	return snap, true
}

func (s *Store) changed(op domain.VariableOpType, name string, old, value any) {
	now := s.now()
	if s.snapshotting {
		s.snapshots = append(s.snapshots, domain.NewVariableSnapshot(op, name, s.vars, now))
		if over := len(s.snapshots) - s.maxSnapshots; over > 0 {
			s.snapshots = append(s.snapshots[:0:0], s.snapshots[over:]...)
		}
	}
	if !s.notify {
		return
	}
	event := domain.VariableChangeEvent{Name: name, OldValue: old, NewValue: value, Operation: op, Timestamp: now}
	for _, l := range s.listeners {
		if l != nil {
			l(event)
		}
	}
	s.logger.Debug("variable changed", "name", name, "operation", op)
}

var referencePattern = regexp.MustCompile(`\$\{\s*([^}\s]+)\s*\}`)

// Replace substitutes ${name} references in text. Unknown references are left untouched.
func (s *Store) Replace(text string) string {
	return Replace(text, s.vars)
}

// Replace substitutes ${name} references in text with values from vars.
func Replace(text string, vars map[string]any) string {
	return referencePattern.ReplaceAllStringFunc(text, func(ref string) string {
		name := referencePattern.FindStringSubmatch(ref)[1]
		if v, ok := vars[name]; ok {
			return Stringify(v)
		}
		return ref
	})
}

// Resolve is Replace, except that a text made of a single known reference
// yields the referenced value with its type intact.
func Resolve(text string, vars map[string]any) any {
	if m := referencePattern.FindStringSubmatchIndex(text); m != nil && m[0] == 0 && m[1] == len(text) {
		if v, ok := vars[text[m[2]:m[3]]]; ok {
			return v
		}
	}
	return Replace(text, vars)
}

// Resolve resolves text against the store's variables.
func (s *Store) Resolve(text string) any {
	return Resolve(text, s.vars)
}

// References returns the names referenced with ${name} in text, in order.
func References(text string) []string {
	var names []string
	for _, m := range referencePattern.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}
	return names
}

// Stringify renders a variable value for interpolation.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// ToFloat converts numeric values to float64. Strings are not numeric.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
