package ports

import (
	"context"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
)

// LocateOptions tunes a single locate call.
type LocateOptions struct {
	// Deep requests the slower AI reasoning mode.
	Deep bool
	// Timeout bounds the call. Zero means the locator default.
	Timeout time.Duration
}

// Locator resolves a prompt (a selector or a natural-language description) to an element.
// Implementations return domain.ErrElementNotFound when nothing matches.
type Locator interface {
	Locate(ctx context.Context, prompt string, opts LocateOptions) (*domain.Element, error)
}

// CollectionLocator is implemented by locators that can enumerate every element
// matching a selector. forEach loops over selectors require it.
type CollectionLocator interface {
	Locator
	LocateAll(ctx context.Context, selector string, opts LocateOptions) ([]*domain.Element, error)
}

// PointDescriber is implemented by locators that can describe what sits at a page coordinate.
type PointDescriber interface {
	DescribeAt(ctx context.Context, x, y float64) (string, error)
}

// PageSource is implemented by backends that can return the current page markup.
type PageSource interface {
	PageContent(ctx context.Context) (string, error)
}
