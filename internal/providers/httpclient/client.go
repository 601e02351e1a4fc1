// Package httpclient is the rate-limited, retrying JSON client shared by the
// incident provider adapters.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Songmu/retry"
	"golang.org/x/time/rate"

	"github.com/akmatori/incidentsync/internal/utils"
)

// maxErrorBody caps the response body kept in a StatusError
const maxErrorBody = 512

// Config configures a provider API client
type Config struct {
	// BaseURL is prefixed to every request path
	BaseURL string

	// Headers are sent with every request (auth, accept, ...)
	Headers map[string]string

	// Timeout bounds a single attempt (default: 30s)
	Timeout time.Duration

	// MaxRetries is the number of extra attempts on 429/5xx
	MaxRetries int

	// RetryInterval is the pause between attempts (default: 1s)
	RetryInterval time.Duration

	// RateLimit is requests per second (default: 5)
	RateLimit float64

	// RateBurst is the limiter burst size (default: 5)
	RateBurst int

	// UserAgent string (default: incidentsync/1.0)
	UserAgent string

	// Transport allows injecting a custom HTTP transport (tests)
	Transport http.RoundTripper
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
	if c.RateLimit == 0 {
		c.RateLimit = 5
	}
	if c.RateBurst == 0 {
		c.RateBurst = 5
	}
	if c.UserAgent == "" {
		c.UserAgent = "incidentsync/1.0"
	}
}

// Client is a rate-limited, retry-capable JSON client
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a client from config, filling unset fields with defaults
func New(config Config) *Client {
	config.applyDefaults()
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
	}
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// GetJSON performs a GET and decodes the JSON body into target.
// 429 and 5xx responses and transport errors are retried; other failures
// return immediately.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, target any) error {
	fullURL := strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var body []byte
	var permanent error
	err := retry.Retry(uint(c.config.MaxRetries+1), c.config.RetryInterval, func() error {
		b, err := c.doOnce(ctx, fullURL)
		if err == nil {
			body = b
			return nil
		}
		var statusErr *StatusError
		if ctx.Err() != nil || (errors.As(err, &statusErr) && !statusErr.Retryable()) {
			// stop retrying; the outer check reports it
			permanent = err
			return nil
		}
		return err
	})
	if permanent != nil {
		return permanent
	}
	if err != nil {
		return fmt.Errorf("request to %s failed after retries: %w", path, err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, fullURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: utils.TruncateText(string(body), maxErrorBody)}
	}
	return body, nil
}
