package browser

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
)

// chromeDriver implements Driver over a chromedp page context. Calls derive a
// run context from the page so the caller's deadline and cancellation bound
// each CDP round trip without tearing down the session.
type chromeDriver struct {
	page context.Context
}

func (d *chromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.page)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, deadline)
		defer cancelDL()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		// Report the caller's cancellation, not the derived context's.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func queryOpt(sel Selector) chromedp.QueryOption {
	if sel.By == ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func queryAllOpt(sel Selector) chromedp.QueryOption {
	if sel.By == ByXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

func (d *chromeDriver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	return nil
}

func (d *chromeDriver) WaitReady(ctx context.Context) error {
	if err := d.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return eris.Wrap(err, "browser: wait ready")
	}
	return nil
}

func (d *chromeDriver) WaitVisible(ctx context.Context, sel Selector) error {
	if err := d.run(ctx, chromedp.WaitVisible(sel.Value, queryOpt(sel))); err != nil {
		return eris.Wrapf(err, "browser: wait visible %s %q", sel.By, sel.Value)
	}
	return nil
}

func (d *chromeDriver) Click(ctx context.Context, sel Selector) error {
	if err := d.run(ctx, chromedp.Click(sel.Value, queryOpt(sel))); err != nil {
		return eris.Wrapf(err, "browser: click %s %q", sel.By, sel.Value)
	}
	return nil
}

func (d *chromeDriver) SendKeys(ctx context.Context, sel Selector, text string) error {
	if err := d.run(ctx, chromedp.SendKeys(sel.Value, text, queryOpt(sel))); err != nil {
		return eris.Wrapf(err, "browser: send keys %s %q", sel.By, sel.Value)
	}
	return nil
}

func (d *chromeDriver) Text(ctx context.Context, sel Selector) (string, error) {
	var out string
	if err := d.run(ctx, chromedp.Text(sel.Value, &out, queryOpt(sel))); err != nil {
		return "", eris.Wrapf(err, "browser: text %s %q", sel.By, sel.Value)
	}
	return out, nil
}

func (d *chromeDriver) TextAll(ctx context.Context, sel Selector) ([]string, error) {
	var out []string
	if err := d.run(ctx, chromedp.Evaluate(textAllJS(sel), &out)); err != nil {
		return nil, eris.Wrapf(err, "browser: text all %s %q", sel.By, sel.Value)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func (d *chromeDriver) AttrAll(ctx context.Context, sel Selector, attr string) ([]string, error) {
	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(sel.Value, &nodes, queryAllOpt(sel))); err != nil {
		return nil, eris.Wrapf(err, "browser: attr all %s %q", sel.By, sel.Value)
	}

	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if v := n.AttributeValue(attr); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func (d *chromeDriver) Location(ctx context.Context) (string, error) {
	var out string
	if err := d.run(ctx, chromedp.Location(&out)); err != nil {
		return "", eris.Wrap(err, "browser: location")
	}
	return out, nil
}

// textAllJS builds the evaluation script collecting the text content of every
// matching element in document order.
func textAllJS(sel Selector) string {
	q := strconv.Quote(sel.Value)
	if sel.By == ByXPath {
		return fmt.Sprintf(`(() => {
	const out = [];
	const r = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	for (let i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i).textContent);
	return out;
})()`, q)
	}
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => e.textContent)`, q)
}
