// Package browser defines the browser-automation capability the simulator
// drives sessions through, and provides a chromedp-backed implementation.
// The scenario layer depends only on the interfaces here; every operation
// can fail and callers downgrade failures to phase outcomes.
package browser

import (
	"context"
	"errors"
	"time"
)

// Errors returned by browser implementations.
var (
	// ErrDriverClosed is returned when a page is requested from a closed driver.
	ErrDriverClosed = errors.New("browser: driver is closed")
	// ErrPageClosed is returned when an operation is attempted on a closed page.
	ErrPageClosed = errors.New("browser: page is closed")
	// ErrNavigation is returned when a navigation fails.
	ErrNavigation = errors.New("browser: navigation failed")
	// ErrElementNotFound is returned when a selector matches nothing.
	ErrElementNotFound = errors.New("browser: element not found")
)

// Backspace is the key sequence that deletes the character before the caret.
// Implementations translate it to the platform key event.
const Backspace = "\b"

// Enter is the key string that submits the focused form field.
const Enter = "\r"

// Driver creates and tears down browser pages. Implementations own the
// underlying browser process.
type Driver interface {
	// OpenPage creates a fresh page (tab) bound to ctx. The page stays
	// usable until Close is called on it or ctx is cancelled.
	OpenPage(ctx context.Context) (Page, error)

	// Close shuts down the browser and releases all resources.
	Close() error
}

// Page is one browser tab. Methods block until the interaction completes,
// the per-operation timeout elapses, or ctx is cancelled.
type Page interface {
	// Navigate loads url and waits for the DOM to be ready.
	Navigate(ctx context.Context, url string) error

	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error

	// SendKeys appends keys to the first element matching selector.
	// Pass Backspace to delete the previous character.
	SendKeys(ctx context.Context, selector, keys string) error

	// Clear empties the value of the first element matching selector.
	Clear(ctx context.Context, selector string) error

	// WaitFor waits until an element matching selector is visible or
	// timeout elapses. It reports whether the element appeared.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) bool

	// ReadText returns the text content of the first element matching
	// selector.
	ReadText(ctx context.Context, selector string) (string, error)

	// Exists reports whether any element matches selector right now.
	Exists(ctx context.Context, selector string) (bool, error)

	// Hover moves the pointer over the first element matching selector.
	Hover(ctx context.Context, selector string) error

	// ScrollBy scrolls the page vertically by deltaY pixels.
	ScrollBy(ctx context.Context, deltaY int) error

	// GoBack navigates one step back in the page history.
	GoBack(ctx context.Context) error

	// Close releases the page. Safe to call more than once.
	Close() error
}
