// Package browser abstracts the automation engine the scrapers drive.
// Scrapers depend only on the Engine/Page capability surface so tests can
// substitute a fake and static portals can skip a real browser entirely.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrNotSupported is returned by engines that cannot perform an operation,
// such as clicking or evaluating script on a plain-HTTP page.
var ErrNotSupported = errors.New("browser: operation not supported by this engine")

// Page is a single navigable page (a browser tab, or a virtual page for
// static engines). Implementations must make Close idempotent.
type Page interface {
	// Navigate loads the given URL and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// URL reports the page's current location after redirects.
	URL(ctx context.Context) (string, error)
	// Content returns the page's current markup.
	Content(ctx context.Context) (string, error)
	// Fill types value into the first element matching selector.
	Fill(ctx context.Context, selector, value string) error
	// Click clicks the first visible element matching selector.
	Click(ctx context.Context, selector string) error
	// WaitVisible blocks until selector matches a visible element.
	WaitVisible(ctx context.Context, selector string) error
	// Evaluate runs a script in the page and unmarshals its result into out.
	// Pass a nil out to discard the result.
	Evaluate(ctx context.Context, script string, out any) error
	// Screenshot writes a full-page capture to path.
	Screenshot(ctx context.Context, path string) error
	// Close releases the page. Closing an already-closed page is a no-op.
	Close() error
}

// Engine owns the automation runtime and hands out pages.
type Engine interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Options configures engine construction.
type Options struct {
	Headless  bool
	UserAgent string
	// OpTimeout bounds every individual page operation. Zero disables the bound.
	OpTimeout time.Duration
}
