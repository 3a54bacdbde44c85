// Package locate bounds locator calls with a timeout race.
package locate

import (
	"context"
	"fmt"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

type outcome struct {
	el  *domain.Element
	err error
}

// Within calls l.Locate and waits at most opts.Timeout for the answer, even if
// the locator ignores its context. A nil element without error is reported as
// domain.ErrElementNotFound; a lost race as domain.ErrTimeout.
func Within(ctx context.Context, l ports.Locator, prompt string, opts ports.LocateOptions) (*domain.Element, error) {
	if l == nil {
		return nil, domain.ErrNoLocator
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("locator panic: %v", r)}
			}
		}()
		el, err := l.Locate(ctx, prompt, opts)
		done <- outcome{el, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if res.el == nil {
			return nil, domain.ErrElementNotFound
		}
		return res.el, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("locate %q: %w", prompt, domain.ErrTimeout)
	}
}

// AllWithin is Within for CollectionLocator.LocateAll.
func AllWithin(ctx context.Context, l ports.CollectionLocator, selector string, opts ports.LocateOptions) ([]*domain.Element, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	type all struct {
		els []*domain.Element
		err error
	}
	done := make(chan all, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- all{err: fmt.Errorf("locator panic: %v", r)}
			}
		}()
		els, err := l.LocateAll(ctx, selector, opts)
		done <- all{els, err}
	}()

	select {
	case res := <-done:
		return res.els, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("locate all %q: %w", selector, domain.ErrTimeout)
	}
}
