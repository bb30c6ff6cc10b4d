// Package browsertest provides an in-memory browser.Driver for unit tests.
// Pages are keyed by URL; element content is keyed by selector value.
package browsertest

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/browser"
)

// Page models the elements visible on one fixture page.
type Page struct {
	// Texts maps a selector value to the text content of each matching
	// element, in document order.
	Texts map[string][]string
	// Attrs maps a selector value to attribute name to values.
	Attrs map[string]map[string][]string
}

// Driver is a fake browser.Driver. Lookups match on the selector value only.
// A selector absent from the current page blocks until the context is done,
// mirroring how a real wait behaves against a page without the element.
type Driver struct {
	mu      sync.Mutex
	Pages   map[string]*Page
	NavErrs map[string]error

	current string
	navLog  []string
	clicks  []string
	typed   map[string]string
}

// New creates a fake driver serving the given pages.
func New(pages map[string]*Page) *Driver {
	return &Driver{
		Pages: pages,
		typed: make(map[string]string),
	}
}

// NavLog returns the navigation history.
func (d *Driver) NavLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navLog...)
}

// Clicks returns the selectors clicked so far.
func (d *Driver) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicks...)
}

// Typed returns the text typed into the given selector.
func (d *Driver) Typed(sel string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typed[sel]
}

func (d *Driver) page() *Page {
	if p, ok := d.Pages[d.current]; ok {
		return p
	}
	return &Page{}
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navLog = append(d.navLog, url)
	if err := d.NavErrs[url]; err != nil {
		return err
	}
	d.current = url
	return nil
}

func (d *Driver) WaitReady(_ context.Context) error { return nil }

func (d *Driver) WaitVisible(ctx context.Context, sel browser.Selector) error {
	d.mu.Lock()
	present := len(d.page().Texts[sel.Value]) > 0 || len(d.page().Attrs[sel.Value]) > 0
	d.mu.Unlock()
	if present {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (d *Driver) Click(ctx context.Context, sel browser.Selector) error {
	if err := d.WaitVisible(ctx, sel); err != nil {
		return err
	}
	d.mu.Lock()
	d.clicks = append(d.clicks, sel.Value)
	d.mu.Unlock()
	return nil
}

func (d *Driver) SendKeys(ctx context.Context, sel browser.Selector, text string) error {
	if err := d.WaitVisible(ctx, sel); err != nil {
		return err
	}
	d.mu.Lock()
	d.typed[sel.Value] += text
	d.mu.Unlock()
	return nil
}

func (d *Driver) Text(ctx context.Context, sel browser.Selector) (string, error) {
	d.mu.Lock()
	texts := d.page().Texts[sel.Value]
	d.mu.Unlock()
	if len(texts) == 0 {
		<-ctx.Done()
		return "", eris.Wrapf(ctx.Err(), "browsertest: no element for %q", sel.Value)
	}
	return texts[0], nil
}

func (d *Driver) TextAll(_ context.Context, sel browser.Selector) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.page().Texts[sel.Value]...), nil
}

func (d *Driver) AttrAll(_ context.Context, sel browser.Selector, attr string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	attrs := d.page().Attrs[sel.Value]
	if attrs == nil {
		return []string{}, nil
	}
	return append([]string{}, attrs[attr]...), nil
}

func (d *Driver) Location(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, nil
}
