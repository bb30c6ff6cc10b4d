// Package locator implements ranked fallback element lookup. A chain holds
// alternative selectors for one logical UI target, ordered from the most
// specific to the most generic structural fallback; resolution returns the
// first selector with a live, visible match.
package locator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/browser"
)

// Chain is a non-empty ordered list of selection strategies for one logical
// target. Ordering expresses confidence: the site's current class names come
// first, structural fallbacks last.
type Chain struct {
	// Target names the logical element ("submit button", "entry card") for
	// logging; it never reaches the page.
	Target     string
	Strategies []browser.Selector
}

// NewChain builds a chain for the named target.
func NewChain(target string, strategies ...browser.Selector) Chain {
	return Chain{Target: target, Strategies: strategies}
}

// CSS builds a CSS selection strategy.
func CSS(value string) browser.Selector { return browser.CSS(value) }

// XPath builds an XPath selection strategy.
func XPath(value string) browser.Selector { return browser.XPath(value) }

// minStrategyWait keeps the per-strategy budget meaningful when a chain is
// long and the overall timeout short.
const minStrategyWait = 50 * time.Millisecond

// Resolve tries each strategy in order, waiting up to an equal share of
// timeout for a visible match, and returns the first strategy that matched.
// ok is false when every strategy is exhausted without a match; that is an
// expected outcome, not an error, and callers decide whether absence is fatal.
// err is non-nil only when the caller's context ended the search.
func (c Chain) Resolve(ctx context.Context, d browser.Driver, timeout time.Duration) (browser.Selector, bool, error) {
	if len(c.Strategies) == 0 {
		return browser.Selector{}, false, nil
	}

	per := timeout / time.Duration(len(c.Strategies))
	if per < minStrategyWait {
		per = minStrategyWait
	}

	for _, s := range c.Strategies {
		sctx, cancel := context.WithTimeout(ctx, per)
		err := d.WaitVisible(sctx, s)
		cancel()

		if err == nil {
			return s, true, nil
		}
		if ctx.Err() != nil {
			return browser.Selector{}, false, ctx.Err()
		}
		zap.L().Debug("locator: strategy missed",
			zap.String("target", c.Target),
			zap.String("by", s.By.String()),
			zap.String("selector", s.Value),
		)
	}

	return browser.Selector{}, false, nil
}
