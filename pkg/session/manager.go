package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/ports"
)

// DefaultTTL is the distributed lock lifetime used by WithLock.
const DefaultTTL = 10 * time.Minute

// lockEntry holds the lock and the reference count.
type lockEntry struct {
	held chan struct{} // buffered(1): a send acquires, a receive releases
	refs int
}

// Manager serialises work per key. It implements ports.Locker.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker ports.Locker // Optional distributed locker
	logger *slog.Logger
}

var _ ports.Locker = (*Manager)(nil)

// Option configures the Manager.
type Option func(*Manager)

// WithLocker also takes a distributed lock once the local one is held.
func WithLocker(locker ports.Locker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a lock manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// Every acquire must be paired with a release.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{held: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Active returns the number of keys currently held or waited on.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Lock blocks until key is free in this process and, with a distributed
// locker, across processes. ttl bounds the distributed lock only.
func (m *Manager) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	entry := m.acquire(key)
	select {
	case entry.held <- struct{}{}:
	case <-ctx.Done():
		m.release(key)
		return nil, ctx.Err()
	}

	local := func() {
		<-entry.held
		m.release(key)
	}

	if m.locker == nil {
		var once sync.Once
		return func(context.Context) error {
			once.Do(local)
			return nil
		}, nil
	}

	unlock, err := m.locker.Lock(ctx, key, ttl)
	if err != nil {
		local()
		return nil, fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			defer local()
			err = unlock(ctx)
		})
		return err
	}, nil
}

// WithLock executes fn while holding the lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	unlock, err := m.Lock(ctx, key, DefaultTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"key", key,
				"err", err,
			)
		}
	}()
	return fn(ctx)
}
