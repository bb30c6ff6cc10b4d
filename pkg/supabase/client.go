// Package supabase provides a minimal PostgREST client for uploading records
// to a Supabase table. Each record is inserted with its own request so one
// bad record never sinks the batch.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the Supabase operations used by the uploader.
type Client interface {
	// Insert writes one JSON-marshalable record into the given table.
	Insert(ctx context.Context, table string, record any) error
}

// Option configures the Supabase client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithMaxAttempts sets the per-request retry budget.
func WithMaxAttempts(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

type httpClient struct {
	baseURL     string
	apiKey      string
	maxAttempts int
	http        *http.Client
}

// NewClient creates a Supabase REST client for the given project URL and key.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL:     baseURL,
		apiKey:      apiKey,
		maxAttempts: 3,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Insert(ctx context.Context, table string, record any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return eris.Wrap(err, "supabase: marshal record")
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return eris.Wrap(ctx.Err(), "supabase: insert canceled")
			case <-timer.C:
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "supabase: build request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Prefer", "return=minimal")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = eris.Wrap(err, "supabase: insert request")
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		if resp.StatusCode < 300 {
			return nil
		}

		lastErr = eris.Errorf("supabase: insert into %s: status %d: %s",
			table, resp.StatusCode, string(respBody))
		if !retryableStatusCode(resp.StatusCode) {
			return lastErr
		}
	}

	return lastErr
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}
