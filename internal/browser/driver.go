// Package browser owns the Chrome session lifecycle and exposes a small
// selector-addressed driver interface over it.
package browser

import "context"

// By selects the query engine used to interpret a selector value.
type By int

const (
	// ByCSS interprets the selector as a CSS query.
	ByCSS By = iota
	// ByXPath interprets the selector as an XPath expression.
	ByXPath
)

// String returns the query-engine name.
func (b By) String() string {
	switch b {
	case ByCSS:
		return "css"
	case ByXPath:
		return "xpath"
	default:
		return "unknown"
	}
}

// Selector addresses elements on the live page.
type Selector struct {
	By    By
	Value string
}

// CSS builds a CSS selector.
func CSS(value string) Selector { return Selector{By: ByCSS, Value: value} }

// XPath builds an XPath selector.
func XPath(value string) Selector { return Selector{By: ByXPath, Value: value} }

// Driver is the minimal browser surface the flow engine drives. Blocking
// calls (WaitVisible, Text, Click, ...) wait for a matching element and are
// bounded by the caller's context deadline.
//
// The chromedp implementation lives in session.go; tests use the fake in the
// browsertest package.
type Driver interface {
	// Navigate loads the given URL in the session's page.
	Navigate(ctx context.Context, url string) error

	// WaitReady blocks until the document has settled after a transition.
	WaitReady(ctx context.Context) error

	// WaitVisible blocks until at least one element matching sel is visible.
	WaitVisible(ctx context.Context, sel Selector) error

	// Click clicks the first element matching sel.
	Click(ctx context.Context, sel Selector) error

	// SendKeys types text into the first element matching sel.
	SendKeys(ctx context.Context, sel Selector, text string) error

	// Text returns the text content of the first element matching sel.
	Text(ctx context.Context, sel Selector) (string, error)

	// TextAll returns the text content of every element matching sel, in
	// document order. No matches yields an empty slice, not an error.
	TextAll(ctx context.Context, sel Selector) ([]string, error)

	// AttrAll returns the named attribute of every element matching sel, in
	// document order, skipping elements without the attribute.
	AttrAll(ctx context.Context, sel Selector, attr string) ([]string, error)

	// Location returns the page's current URL.
	Location(ctx context.Context) (string, error)
}
