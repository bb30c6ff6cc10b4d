package browser

import (
	"context"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Config holds the fixed launch configuration for a browser session.
type Config struct {
	Headless      bool   `yaml:"headless" mapstructure:"headless"`
	NoSandbox     bool   `yaml:"no_sandbox" mapstructure:"no_sandbox"`
	DisableDevShm bool   `yaml:"disable_dev_shm" mapstructure:"disable_dev_shm"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	WindowWidth   int    `yaml:"window_width" mapstructure:"window_width"`
	WindowHeight  int    `yaml:"window_height" mapstructure:"window_height"`
	UserDataDir   string `yaml:"user_data_dir" mapstructure:"user_data_dir"`
}

// DefaultConfig returns the baseline fingerprint-softening configuration:
// a realistic desktop viewport and user agent, automation detection disabled.
func DefaultConfig() Config {
	return Config{
		Headless:      true,
		NoSandbox:     true,
		DisableDevShm: true,
		UserAgent:     "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		WindowWidth:   1920,
		WindowHeight:  1080,
	}
}

// Session is one exclusive browser page. It is not safe for concurrent
// navigation; concurrent extraction uses a Pool of independent sessions.
type Session struct {
	page        context.Context
	cancelPage  context.CancelFunc
	cancelAlloc context.CancelFunc

	closeOnce sync.Once
}

// NewSession launches a Chrome instance and opens a page. The returned
// session must be released with Close on every exit path. An error here means
// no browser is available and the run cannot proceed.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", cfg.DisableDevShm),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	pageCtx, cancelPage := chromedp.NewContext(allocCtx)

	s := &Session{
		page:        pageCtx,
		cancelPage:  cancelPage,
		cancelAlloc: cancelAlloc,
	}

	// Start the browser now so acquisition failure surfaces here rather than
	// on the first navigation.
	if err := chromedp.Run(pageCtx); err != nil {
		s.Close()
		return nil, eris.Wrap(err, "browser: acquire session")
	}

	return s, nil
}

// Driver returns the selector-addressed driver bound to this session's page.
func (s *Session) Driver() Driver {
	return &chromeDriver{page: s.page}
}

// Close releases the page and the browser process. Safe to call more than
// once and on partially-initialized sessions.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancelPage()
		s.cancelAlloc()
	})
}

// Pool holds independent sessions for parallel extraction workers.
type Pool struct {
	sessions []*Session
}

// NewPool acquires up to size sessions. Acquisition failures after the first
// session degrade the pool rather than failing the run; zero sessions is an
// error.
func NewPool(ctx context.Context, cfg Config, size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}

	p := &Pool{}
	for i := 0; i < size; i++ {
		s, err := NewSession(ctx, cfg)
		if err != nil {
			if len(p.sessions) == 0 {
				return nil, err
			}
			zap.L().Warn("browser: pool degraded, continuing with fewer sessions",
				zap.Int("acquired", len(p.sessions)),
				zap.Int("requested", size),
				zap.Error(err),
			)
			break
		}
		p.sessions = append(p.sessions, s)
	}
	return p, nil
}

// Sessions returns the acquired sessions.
func (p *Pool) Sessions() []*Session { return p.sessions }

// Size returns the number of acquired sessions.
func (p *Pool) Size() int { return len(p.sessions) }

// Close releases every session in the pool.
func (p *Pool) Close() {
	for _, s := range p.sessions {
		s.Close()
	}
}
