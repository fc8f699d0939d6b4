package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/webrage/internal/logger"
)

// Default client values.
const (
	DefaultUserAgent  = "Mozilla/5.0 (compatible; webrage/1.0)"
	DefaultMaxRetries = 3
	DefaultBackoff    = 300 * time.Millisecond
	DefaultTimeout    = 10 * time.Second
	maxBodyBytes      = 4 << 20
)

// ClientConfig configures the shared HTTP client.
type ClientConfig struct {
	// HTTPClient overrides the underlying client.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil (default: 10s).
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxRetries is the number of retries after the first attempt for 429,
	// 5xx and transport errors (default: 3). Negative disables retries.
	MaxRetries int

	// Backoff is the base delay, doubled per attempt (default: 300ms).
	Backoff time.Duration

	// Limiter throttles requests. Nil disables throttling.
	Limiter *RateLimiter
}

// Client performs throttled GET and POST requests with retry.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	backoff    time.Duration
	limiter    *RateLimiter
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError is returned for non-2xx responses after retries are exhausted.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// NewClient creates a client from cfg.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = DefaultBackoff
	}

	return &Client{
		http:       cfg.HTTPClient,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		limiter:    cfg.Limiter,
	}
}

// Do sends the request built by newReq, retrying on 429, 5xx and transport
// errors with exponential backoff. newReq is called once per attempt so the
// body can be replayed.
func (c *Client) Do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff<<(attempt-1)); err != nil {
				return nil, err
			}
			logger.Debug("websearch: retry %d after %v", attempt, lastErr)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if c.limiter != nil {
				c.limiter.RecordRateLimited(RetryAfter(resp.Header))
			}
			lastErr = &StatusError{StatusCode: resp.StatusCode}
			continue
		case resp.StatusCode >= 500:
			lastErr = &StatusError{StatusCode: resp.StatusCode}
			continue
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}

		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.maxRetries+1, lastErr)
}

// Get fetches url.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
