package runner

import (
	"log/slog"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

// DefaultConcurrency is the number of test cases run at once.
const DefaultConcurrency = 4

// DefaultLockTTL bounds how long a crashed runner can hold a test case lock.
const DefaultLockTTL = 10 * time.Minute

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithConcurrency sets how many test cases run at once. Values below 1 mean 1.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		r.concurrency = max(n, 1)
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLocker serialises runs of the same test case through l.
func WithLocker(l ports.Locker, ttl time.Duration) Option {
	return func(r *Runner) {
		r.locker = l
		r.lockTTL = ttl
	}
}

// WithFailFast cancels the remaining test cases after the first one that does not pass.
func WithFailFast(enabled bool) Option {
	return func(r *Runner) {
		r.failFast = enabled
	}
}

// WithFilter restricts RunAll to the ids keep accepts.
func WithFilter(keep func(id string) bool) Option {
	return func(r *Runner) {
		r.filter = keep
	}
}

// OnReport is called with every finished report, from the goroutine that ran it.
func OnReport(fn func(*domain.RunReport)) Option {
	return func(r *Runner) {
		r.onReport = fn
	}
}
