package flow

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/browser"
	"github.com/sells-group/leadgen-cli/internal/locator"
)

// Navigate loads a URL. Pair with Transition: true.
func Navigate(url string) Action {
	return func(ctx context.Context, d browser.Driver, _ time.Duration) error {
		return d.Navigate(ctx, url)
	}
}

// WaitFor resolves a chain and discards the match; it exists for steps whose
// only purpose is confirming a page region rendered.
func WaitFor(chain locator.Chain) Action {
	return func(ctx context.Context, d browser.Driver, timeout time.Duration) error {
		_, err := resolve(ctx, d, chain, timeout)
		return err
	}
}

// Click resolves a chain and clicks the winning element.
func Click(chain locator.Chain) Action {
	return func(ctx context.Context, d browser.Driver, timeout time.Duration) error {
		sel, err := resolve(ctx, d, chain, timeout)
		if err != nil {
			return err
		}
		return d.Click(ctx, sel)
	}
}

// Type resolves a chain and types text into the winning element.
func Type(chain locator.Chain, text string) Action {
	return func(ctx context.Context, d browser.Driver, timeout time.Duration) error {
		sel, err := resolve(ctx, d, chain, timeout)
		if err != nil {
			return err
		}
		return d.SendKeys(ctx, sel, text)
	}
}

// ReadText resolves a chain, reads the first match's text and hands the
// trimmed value to assign. assign runs only on success.
func ReadText(chain locator.Chain, assign func(string)) Action {
	return func(ctx context.Context, d browser.Driver, timeout time.Duration) error {
		sel, err := resolve(ctx, d, chain, timeout)
		if err != nil {
			return err
		}
		text, err := d.Text(ctx, sel)
		if err != nil {
			return err
		}
		assign(strings.TrimSpace(text))
		return nil
	}
}

// ReadAll resolves a chain and hands the trimmed text of every match, in
// document order, to assign. assign runs only on success.
func ReadAll(chain locator.Chain, assign func([]string)) Action {
	return func(ctx context.Context, d browser.Driver, timeout time.Duration) error {
		sel, err := resolve(ctx, d, chain, timeout)
		if err != nil {
			return err
		}
		texts, err := d.TextAll(ctx, sel)
		if err != nil {
			return err
		}
		out := make([]string, 0, len(texts))
		for _, t := range texts {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
		assign(out)
		return nil
	}
}

func resolve(ctx context.Context, d browser.Driver, chain locator.Chain, timeout time.Duration) (browser.Selector, error) {
	sel, ok, err := chain.Resolve(ctx, d, timeout)
	if err != nil {
		return browser.Selector{}, err
	}
	if !ok {
		return browser.Selector{}, eris.Wrapf(ErrTargetNotFound, "target %q", chain.Target)
	}
	return sel, nil
}
