package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig configures the HTTP client behavior.
type ClientConfig struct {
	// BaseURL is the base URL for all requests.
	BaseURL string

	// Auth configures authentication.
	Auth AuthConfig

	// Timeout for individual requests (default: 30s).
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt
	// (default: 6). Only transient statuses are retried.
	MaxRetries int

	// BackoffBase is the base wait for exponential backoff (default: 2s).
	// wait = BackoffBase * 2^(retry-1) + uniform jitter in [0, 0.5)s,
	// unless the server supplies a Retry-After duration.
	BackoffBase time.Duration

	// RateLimit requests per second (default: 10).
	RateLimit float64

	// RateBurst maximum burst size (default: 5).
	RateBurst int

	// Headers to add to all requests.
	Headers map[string]string

	// UserAgent string (default: "Sync-Core/1.0").
	UserAgent string

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// DefaultClientConfig returns a client config with sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:     30 * time.Second,
		MaxRetries:  6,
		BackoffBase: 2 * time.Second,
		RateLimit:   10.0,
		RateBurst:   5,
		UserAgent:   "Sync-Core/1.0",
		Headers:     make(map[string]string),
	}
}

// =============================================================================
// HTTP CLIENT
// =============================================================================

// Client is a rate-limited, retry-capable HTTP client.
type Client struct {
	config      *ClientConfig
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a new HTTP client with the given configuration.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 6
	}
	if config.BackoffBase == 0 {
		config.BackoffBase = 2 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 5
	}
	if config.UserAgent == "" {
		config.UserAgent = "Sync-Core/1.0"
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
	}
}

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// Request represents an HTTP request to be made. The body is held as bytes
// so an attempt can be replayed on retry.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    []byte
}

// Response wraps an HTTP response with convenience methods.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// IsSuccess returns true if the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// =============================================================================
// CLIENT METHODS
// =============================================================================

// Do executes a request with rate limiting and retry. Transient statuses
// (429, 500, 502, 503, 504) are retried up to MaxRetries times, honoring a
// Retry-After header when the server supplies one and backing off
// exponentially otherwise. Any other failure is terminal.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	// Wait for rate limiter
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	// Retry state is local to this call.
	retries := 0
	var waited time.Duration
	for {
		resp, err := c.doOnce(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.IsSuccess() {
			return resp, nil
		}

		if !isTransient(resp.StatusCode) || retries >= c.config.MaxRetries {
			return nil, &TransportError{
				StatusCode: resp.StatusCode,
				Body:       truncateBody(resp.Body),
				Attempts:   retries + 1,
				Waited:     waited,
			}
		}

		retries++
		wait := c.retryWait(resp, retries)
		waited += wait
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// retryWait returns how long to sleep before the given retry (numbered
// from 1). An explicit Retry-After duration wins over computed backoff.
func (c *Client) retryWait(resp *Response, retry int) time.Duration {
	if after := resp.Headers.Get("Retry-After"); after != "" {
		if secs, err := strconv.ParseFloat(after, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	backoff := c.config.BackoffBase * time.Duration(1<<uint(retry-1))
	jitter := time.Duration(rand.Float64() * 500 * float64(time.Millisecond))
	return backoff + jitter
}

// doOnce executes a single request attempt.
func (c *Client) doOnce(ctx context.Context, req *Request) (*Response, error) {
	// Build URL
	fullURL := c.config.BaseURL
	if req.Path != "" {
		fullURL = strings.TrimSuffix(fullURL, "/") + "/" + strings.TrimPrefix(req.Path, "/")
	}
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	// Create HTTP request
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Set headers
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// Apply auth
	if c.config.Auth != nil {
		c.config.Auth.Apply(httpReq)
	}

	// Execute
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	// Read body
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

// =============================================================================
// ERRORS
// =============================================================================

// maxErrorBody bounds the response excerpt carried in a TransportError.
const maxErrorBody = 500

// TransportError is a terminal HTTP failure: a non-transient status, or a
// transient status after the retry budget is exhausted.
type TransportError struct {
	StatusCode int
	Body       string
	Attempts   int
	Waited     time.Duration
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP %d after %d attempt(s): %s", e.StatusCode, e.Attempts, e.Body)
}

// isTransient reports whether a status indicates the caller should retry.
func isTransient(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}
