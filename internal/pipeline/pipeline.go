// Package pipeline orchestrates a full scrape run: walk the directory
// listing, extract every discovered profile, and assemble output records
// with generated insights. Browser sessions are released on every exit path.
package pipeline

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/assemble"
	"github.com/sells-group/leadgen-cli/internal/browser"
	"github.com/sells-group/leadgen-cli/internal/extract"
	"github.com/sells-group/leadgen-cli/internal/flow"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/walker"
)

// Session is one exclusive browser page the pipeline can drive and must
// release. *browser.Session satisfies it.
type Session interface {
	Driver() browser.Driver
	Close()
}

// SessionFactory acquires a fresh session. Acquisition failure for the first
// session is the only fatal infrastructure error in a run.
type SessionFactory func(ctx context.Context) (Session, error)

// BrowserSessions returns a factory launching real Chrome sessions.
func BrowserSessions(cfg browser.Config) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		return browser.NewSession(ctx, cfg)
	}
}

// PoolSessions returns a factory handing out a pre-acquired pool's sessions in
// order. Exhaustion is an error; the caller treats it as a skipped worker. The
// pool owns session cleanup.
func PoolSessions(p *browser.Pool) SessionFactory {
	var mu sync.Mutex
	next := 0
	return func(context.Context) (Session, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= p.Size() {
			return nil, eris.New("pipeline: session pool exhausted")
		}
		s := p.Sessions()[next]
		next++
		return s, nil
	}
}

// Config controls one pipeline run.
type Config struct {
	// BaseURL is the directory search endpoint.
	BaseURL string
	// Query holds the fixed search parameters (e.g. distance).
	Query url.Values
	// LinkFilter keeps only profile hrefs containing this substring.
	LinkFilter string
	// MaxPages bounds the listing walk. Default 3.
	MaxPages int
	// Concurrency is the number of parallel extraction workers, each with its
	// own browser session. Default 1.
	Concurrency int
	// PageInterval paces listing page loads. Zero disables pacing.
	PageInterval time.Duration
}

// Result is the outcome of a run.
type Result struct {
	// Records holds one assembled record per successfully extracted profile,
	// ordered by source URL.
	Records []model.OutputRecord
	// Attempted counts discovered profile links.
	Attempted int
	// Succeeded counts profiles that loaded and were extracted.
	Succeeded int
}

// Pipeline wires the walker, extractor and assembler over browser sessions.
type Pipeline struct {
	newSession SessionFactory
	summarizer assemble.Summarizer
	cfg        Config

	flowOpts   []flow.Option
	walkChains *walker.Chains
	fieldChain *extract.Chains
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFlowOptions forwards engine options to every flow engine the pipeline
// creates.
func WithFlowOptions(opts ...flow.Option) Option {
	return func(p *Pipeline) { p.flowOpts = opts }
}

// WithWalkerChains overrides the listing locator chains.
func WithWalkerChains(c walker.Chains) Option {
	return func(p *Pipeline) { p.walkChains = &c }
}

// WithExtractChains overrides the profile field locator chains.
func WithExtractChains(c extract.Chains) Option {
	return func(p *Pipeline) { p.fieldChain = &c }
}

// New creates a Pipeline.
func New(newSession SessionFactory, summarizer assemble.Summarizer, cfg Config, opts ...Option) *Pipeline {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	p := &Pipeline{newSession: newSession, summarizer: summarizer, cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the full scrape. It returns an error only for infrastructure
// failures (no browser available) or cancellation; individual profile
// failures degrade the result instead.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	sess, err := p.newSession(ctx)
	if err != nil {
		return Result{}, eris.Wrap(err, "pipeline: acquire session")
	}
	defer sess.Close()

	refs, err := p.walk(ctx, sess)
	if err != nil {
		return Result{}, err
	}
	if len(refs) == 0 {
		log.Info("no profiles discovered")
		return Result{}, nil
	}
	log.Info("profiles discovered", zap.Int("count", len(refs)))

	profiles, err := p.extractAll(ctx, sess, refs)
	if err != nil {
		return Result{}, err
	}

	records := assemble.New(p.summarizer).AssembleAll(ctx, profiles)
	log.Info("run complete",
		zap.Int("attempted", len(refs)),
		zap.Int("succeeded", len(profiles)),
	)

	return Result{
		Records:   records,
		Attempted: len(refs),
		Succeeded: len(profiles),
	}, nil
}

func (p *Pipeline) walk(ctx context.Context, sess Session) ([]model.EntryReference, error) {
	eng := flow.New(sess.Driver(), p.flowOpts...)

	var walkOpts []walker.Option
	if p.walkChains != nil {
		walkOpts = append(walkOpts, walker.WithChains(*p.walkChains))
	}
	if p.cfg.PageInterval > 0 {
		walkOpts = append(walkOpts, walker.WithLimiter(rate.NewLimiter(rate.Every(p.cfg.PageInterval), 1)))
	}

	w := walker.New(eng, walker.Config{
		BaseURL:    p.cfg.BaseURL,
		Query:      p.cfg.Query,
		LinkFilter: p.cfg.LinkFilter,
	}, walkOpts...)

	refs, err := w.Walk(ctx, p.cfg.MaxPages)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: walk listing")
	}
	return refs, nil
}

// extractAll visits every reference. With concurrency 1 the walk session is
// reused; otherwise each worker acquires its own session, and a worker that
// cannot get one simply does not start.
func (p *Pipeline) extractAll(ctx context.Context, walkSess Session, refs []model.EntryReference) ([]model.ProfileRecord, error) {
	results := make([]*model.ProfileRecord, len(refs))

	if p.cfg.Concurrency == 1 {
		if err := p.extractWorker(ctx, walkSess, refs, sequence(len(refs)), results); err != nil {
			return nil, err
		}
		return compact(results), nil
	}

	indices := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(indices)
		for i := range refs {
			select {
			case indices <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	workers := p.cfg.Concurrency
	if workers > len(refs) {
		workers = len(refs)
	}

	for i := 0; i < workers; i++ {
		first := i == 0
		g.Go(func() error {
			sess := walkSess
			if !first {
				var err error
				sess, err = p.newSession(gctx)
				if err != nil {
					zap.L().Warn("pipeline: extra session unavailable, worker skipped",
						zap.Error(err),
					)
					return nil
				}
				defer sess.Close()
			}
			return p.extractWorker(gctx, sess, refs, indices, results)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: extract")
	}
	return compact(results), nil
}

func (p *Pipeline) extractWorker(ctx context.Context, sess Session, refs []model.EntryReference, indices <-chan int, results []*model.ProfileRecord) error {
	ex := p.newExtractor(sess)

	for i := range indices {
		rec, err := ex.Extract(ctx, refs[i])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			zap.L().Warn("pipeline: profile extraction failed",
				zap.String("url", refs[i].URL),
				zap.Error(err),
			)
			continue
		}
		results[i] = &rec
	}
	return nil
}

func (p *Pipeline) newExtractor(sess Session) *extract.Extractor {
	eng := flow.New(sess.Driver(), p.flowOpts...)
	if p.fieldChain != nil {
		return extract.New(eng, extract.WithChains(*p.fieldChain))
	}
	return extract.New(eng)
}

func sequence(n int) <-chan int {
	ch := make(chan int, n)
	for i := 0; i < n; i++ {
		ch <- i
	}
	close(ch)
	return ch
}

// compact drops failed slots, preserving reference order.
func compact(results []*model.ProfileRecord) []model.ProfileRecord {
	out := make([]model.ProfileRecord, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
