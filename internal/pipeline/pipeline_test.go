package pipeline

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/browser"
	"github.com/sells-group/leadgen-cli/internal/browser/browsertest"
	"github.com/sells-group/leadgen-cli/internal/flow"
	"github.com/sells-group/leadgen-cli/internal/model"
)

type fakeSession struct {
	d      browser.Driver
	closed bool
	mu     sync.Mutex
}

func (s *fakeSession) Driver() browser.Driver { return s.d }

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type staticSummarizer struct{ text string }

func (s staticSummarizer) Summarize(context.Context, model.ProfileRecord) (string, error) {
	return s.text, nil
}

func fixturePages() map[string]*browsertest.Page {
	return map[string]*browsertest.Page{
		"https://directory.test/search?distance=25&page=1": {
			Texts: map[string][]string{
				".certification-card": {"", ""},
			},
			Attrs: map[string]map[string][]string{
				".certification-card a[href]": {
					"href": {"/contractor/alpha", "/contractor/bravo"},
				},
			},
		},
		"https://directory.test/contractor/alpha": {
			Texts: map[string][]string{
				".contractor-name": {"Alpha Roofing"},
				".rating-value":    {"4.8"},
			},
		},
		"https://directory.test/contractor/bravo": {
			Texts: map[string][]string{
				".contractor-name": {"Bravo Roofing"},
			},
		},
	}
}

func fastFlow() Option {
	return WithFlowOptions(
		flow.WithStepTimeout(200*time.Millisecond),
		flow.WithSettleTimeout(50*time.Millisecond),
		flow.WithSettleFallback(10*time.Millisecond),
	)
}

func testConfig() Config {
	return Config{
		BaseURL:    "https://directory.test/search",
		Query:      url.Values{"distance": []string{"25"}},
		LinkFilter: "contractor",
		MaxPages:   1,
	}
}

func TestRunEndToEnd(t *testing.T) {
	sess := &fakeSession{d: browsertest.New(fixturePages())}
	factory := func(context.Context) (Session, error) { return sess, nil }

	p := New(factory, staticSummarizer{text: "Looks promising."}, testConfig(), fastFlow())

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Records, 2)

	// Ordered by source URL.
	assert.Equal(t, "https://directory.test/contractor/alpha", result.Records[0].SourceURL)
	assert.Equal(t, "https://directory.test/contractor/bravo", result.Records[1].SourceURL)

	require.NotNil(t, result.Records[0].Name)
	assert.Equal(t, "Alpha Roofing", *result.Records[0].Name)
	require.NotNil(t, result.Records[0].Rating)
	assert.InDelta(t, 4.8, *result.Records[0].Rating, 0.001)
	assert.Nil(t, result.Records[1].Rating)

	for _, rec := range result.Records {
		assert.Equal(t, "Looks promising.", rec.Insight)
	}

	assert.True(t, sess.isClosed(), "session must be released after the run")
}

func TestRunSessionAcquisitionFailureIsFatal(t *testing.T) {
	factory := func(context.Context) (Session, error) {
		return nil, errors.New("chrome not found")
	}

	p := New(factory, staticSummarizer{}, testConfig(), fastFlow())

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire session")
}

func TestRunNoProfilesDiscovered(t *testing.T) {
	pages := map[string]*browsertest.Page{
		"https://directory.test/search?distance=25&page=1": {},
	}
	sess := &fakeSession{d: browsertest.New(pages)}
	factory := func(context.Context) (Session, error) { return sess, nil }

	p := New(factory, staticSummarizer{}, testConfig(), fastFlow())

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Attempted)
	assert.Empty(t, result.Records)
	assert.True(t, sess.isClosed())
}

func TestRunFailedProfileDegradesResult(t *testing.T) {
	pages := fixturePages()
	d := browsertest.New(pages)
	d.NavErrs = map[string]error{
		"https://directory.test/contractor/bravo": errors.New("net::ERR_TIMED_OUT"),
	}
	sess := &fakeSession{d: d}
	factory := func(context.Context) (Session, error) { return sess, nil }

	p := New(factory, staticSummarizer{text: "ok"}, testConfig(), fastFlow())

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "https://directory.test/contractor/alpha", result.Records[0].SourceURL)
}

func TestRunConcurrentWorkersCloseTheirSessions(t *testing.T) {
	var mu sync.Mutex
	var extras []*fakeSession

	walkSess := &fakeSession{d: browsertest.New(fixturePages())}
	first := true
	factory := func(context.Context) (Session, error) {
		mu.Lock()
		defer mu.Unlock()
		if first {
			first = false
			return walkSess, nil
		}
		s := &fakeSession{d: browsertest.New(fixturePages())}
		extras = append(extras, s)
		return s, nil
	}

	cfg := testConfig()
	cfg.Concurrency = 2

	p := New(factory, staticSummarizer{text: "ok"}, cfg, fastFlow())

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)

	assert.True(t, walkSess.isClosed())
	mu.Lock()
	defer mu.Unlock()
	for _, s := range extras {
		assert.True(t, s.isClosed(), "worker session must be released")
	}
}

func TestRunDegradedExtraSessionStillCompletes(t *testing.T) {
	walkSess := &fakeSession{d: browsertest.New(fixturePages())}
	calls := 0
	factory := func(context.Context) (Session, error) {
		calls++
		if calls == 1 {
			return walkSess, nil
		}
		return nil, errors.New("no more browsers")
	}

	cfg := testConfig()
	cfg.Concurrency = 2

	p := New(factory, staticSummarizer{text: "ok"}, cfg, fastFlow())

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded, "walk session worker picks up the slack")
}
