// Package driver defines the controllable browser-session capability the
// scraping engine depends on. The engine only ever talks to these interfaces;
// the Playwright-backed implementation lives in internal/browser, and tests
// substitute in-memory fakes.
package driver

import (
	"context"
	"errors"
	"time"
)

// ErrSessionClosed marks failures caused by the underlying browser or page
// being gone. Errors wrapping it are fatal to the run that sees them.
var ErrSessionClosed = errors.New("browser session closed")

// NavResult reports the outcome of a navigation.
type NavResult struct {
	// Status is the HTTP status of the main document response, or 0 when the
	// driver observed no response (e.g. an about: page or a cache hit the
	// driver does not surface).
	Status int
	// FinalURL is the page URL after redirects.
	FinalURL string
}

// Session is one isolated browser session: its own page, cookie jar and
// storage. Implementations are not safe for concurrent use; the engine issues
// at most one operation at a time against a session.
type Session interface {
	// Navigate loads url and waits for the DOM to be ready, honoring timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) (NavResult, error)

	// QueryAll returns every node currently matching selector. No match is an
	// empty slice, not an error.
	QueryAll(selector string) ([]Node, error)

	// Count reports how many nodes match selector without materializing them.
	Count(selector string) (int, error)

	// Body returns the visible text of the document body.
	Body() (string, error)

	// HTML returns the full current page markup.
	HTML() (string, error)

	// Screenshot writes a full-page capture to path.
	Screenshot(path string) error

	// LoadCookies imports cookies from the store at path into the session.
	// A missing cookie file is not an error.
	LoadCookies(path string) error

	// SaveCookies exports the session's current cookies to the store at path.
	SaveCookies(path string) error

	Close() error
}

// Node is an opaque handle to one matched element.
type Node interface {
	// Text returns the element's visible text.
	Text() (string, error)

	// HTML returns the element's inner markup, for structured extraction.
	HTML() (string, error)
}
