// Package remote talks to the shared scheduling store over REST. Shift and
// availability writes carry version headers and go through the optimistic
// controller; payroll reads are retried with backoff, resolution submits
// are not.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RateLimit is requests per second across the whole client.
	RateLimit  float64
	RateBurst  int
	MaxRetries int
	Backoff    time.Duration
	// Transport replaces the default round tripper (tests).
	Transport http.RoundTripper
}

func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    15 * time.Second,
		RateLimit:  10,
		RateBurst:  5,
		MaxRetries: 3,
		Backoff:    200 * time.Millisecond,
	}
}

type Client struct {
	baseURL    string
	http       *http.Client
	header     http.Header
	maxRetries int
	backoff    time.Duration
	logger     *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("remote: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	next := cfg.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &limitedTransport{
				limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
				next:    next,
			},
		},
		header:     header,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     logger,
	}, nil
}

// limitedTransport makes every request, including those issued by the
// optimistic transports, wait for the shared limiter.
type limitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return t.next.RoundTrip(req)
}

// NetworkError is a transport failure: the request may or may not have
// reached the store.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func isRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Retryable()
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends one request and returns the body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), reader)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &NetworkError{Op: "read " + path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.Header, &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	return data, resp.Header, nil
}

// read is do for idempotent GETs: transport failures, 429 and 5xx are
// retried with exponential backoff.
func (c *Client) read(ctx context.Context, path string, query url.Values) ([]byte, http.Header, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		data, header, err := c.do(ctx, http.MethodGet, path, query, nil)
		if err == nil {
			return data, header, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == c.maxRetries {
			break
		}
		wait := c.backoff << uint(attempt)
		c.logger.Printf("[remote] GET %s failed (%v), retrying in %s", path, err, wait)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, nil, lastErr
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, _, err := c.read(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// restClient exposes the limited client and headers to the optimistic
// transports.
func (c *Client) restClient() (*http.Client, http.Header) {
	return c.http, c.header.Clone()
}
