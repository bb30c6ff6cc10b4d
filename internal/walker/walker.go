// Package walker paginates a directory result listing and collects the
// profile links of every entry card into a deduplicated, sorted set.
package walker

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/flow"
	"github.com/sells-group/leadgen-cli/internal/locator"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
)

// Chains holds the locator chains for the listing page regions.
type Chains struct {
	// Cards matches the entry-card collection; at least one visible card
	// means the page has results.
	Cards locator.Chain
	// Links matches the profile anchor inside each card.
	Links locator.Chain
}

// DefaultChains returns the ranked selectors for the contractor directory's
// listing markup, most specific first.
func DefaultChains() Chains {
	return Chains{
		Cards: locator.NewChain("entry card",
			locator.CSS(".certification-card"),
			locator.CSS("[class*='contractor-card']"),
			locator.CSS(".search-results article"),
		),
		Links: locator.NewChain("profile link",
			locator.CSS(".certification-card a[href]"),
			locator.CSS("[class*='contractor-card'] a[href]"),
			locator.CSS(".search-results article a[href]"),
		),
	}
}

// Config controls one walk.
type Config struct {
	// BaseURL is the search endpoint without paging parameters.
	BaseURL string
	// Query holds the base query parameters merged into every page URL.
	Query url.Values
	// PageParam is the query key carrying the page number. Default "page".
	PageParam string
	// LinkFilter keeps only hrefs containing this substring. Empty keeps all.
	LinkFilter string
	// ResolveTimeout bounds the card-chain wait per page. Default 15s.
	ResolveTimeout time.Duration
}

// Walker collects entry references across listing pages.
type Walker struct {
	eng     *flow.Engine
	chains  Chains
	cfg     Config
	limiter *rate.Limiter
}

// Option configures a Walker.
type Option func(*Walker)

// WithLimiter paces page navigations.
func WithLimiter(l *rate.Limiter) Option {
	return func(w *Walker) { w.limiter = l }
}

// WithChains overrides the default listing chains.
func WithChains(c Chains) Option {
	return func(w *Walker) { w.chains = c }
}

// New creates a Walker bound to a flow engine.
func New(eng *flow.Engine, cfg Config, opts ...Option) *Walker {
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 15 * time.Second
	}
	w := &Walker{eng: eng, chains: DefaultChains(), cfg: cfg}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk visits pages 1..maxPages, accumulating unique profile links. A page
// with no entry cards ends the walk early without discarding earlier pages;
// a page that fails to load (after one retry) does the same. The result is
// sorted for reproducibility. The returned error is non-nil only when the
// context ended the walk.
func (w *Walker) Walk(ctx context.Context, maxPages int) ([]model.EntryReference, error) {
	log := zap.L().With(zap.String("component", "walker"))
	seen := make(map[string]struct{})

	for page := 1; page <= maxPages; page++ {
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return collect(seen), eris.Wrap(err, "walker: pacing wait")
			}
		}

		pageURL, err := w.pageURL(page)
		if err != nil {
			return collect(seen), err
		}

		err = resilience.Do(ctx, resilience.PageRetryConfig(), func(ctx context.Context) error {
			res := w.eng.Run(ctx, []flow.Step{{
				Name:       "navigate listing",
				Policy:     flow.Required,
				Transition: true,
				Action:     flow.Navigate(pageURL),
			}})
			return res.Err
		})
		if err != nil {
			if ctx.Err() != nil {
				return collect(seen), eris.Wrap(ctx.Err(), "walker: canceled")
			}
			log.Warn("page load failed, ending walk",
				zap.String("url", pageURL),
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}

		_, ok, err := w.chains.Cards.Resolve(ctx, w.eng.Driver(), w.cfg.ResolveTimeout)
		if err != nil {
			return collect(seen), eris.Wrap(err, "walker: resolve cards")
		}
		if !ok {
			log.Info("no entry cards on page, treating as end of results",
				zap.Int("page", page),
			)
			break
		}

		added := w.collectLinks(ctx, pageURL, seen)
		log.Debug("page walked",
			zap.Int("page", page),
			zap.Int("new_links", added),
			zap.Int("total", len(seen)),
		)
	}

	refs := collect(seen)
	log.Info("walk complete", zap.Int("entries", len(refs)))
	return refs, nil
}

// collectLinks reads every card's profile href on the current page into seen
// and returns the number of new entries.
func (w *Walker) collectLinks(ctx context.Context, pageURL string, seen map[string]struct{}) int {
	linkSel, ok, err := w.chains.Links.Resolve(ctx, w.eng.Driver(), w.cfg.ResolveTimeout)
	if err != nil || !ok {
		zap.L().Debug("walker: no profile links resolvable on page",
			zap.String("url", pageURL),
		)
		return 0
	}

	hrefs, err := w.eng.Driver().AttrAll(ctx, linkSel, "href")
	if err != nil {
		zap.L().Warn("walker: reading profile links failed",
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return 0
	}

	base, _ := url.Parse(pageURL)
	added := 0
	for _, href := range hrefs {
		abs := absolutize(base, href)
		if abs == "" {
			continue
		}
		if w.cfg.LinkFilter != "" && !strings.Contains(strings.ToLower(abs), strings.ToLower(w.cfg.LinkFilter)) {
			continue
		}
		if _, dup := seen[abs]; !dup {
			seen[abs] = struct{}{}
			added++
		}
	}
	return added
}

func (w *Walker) pageURL(page int) (string, error) {
	u, err := url.Parse(w.cfg.BaseURL)
	if err != nil {
		return "", eris.Wrapf(err, "walker: parse base url %q", w.cfg.BaseURL)
	}

	q := u.Query()
	for k, vs := range w.cfg.Query {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	q.Set(w.cfg.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func absolutize(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || ref.String() == "" {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func collect(seen map[string]struct{}) []model.EntryReference {
	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	refs := make([]model.EntryReference, len(urls))
	for i, u := range urls {
		refs[i] = model.EntryReference{URL: u}
	}
	return refs
}
