package knock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the Knock management API
	DefaultBaseURL = "https://control.knock.app"
	// DefaultAPIBaseURL is the Knock public API
	DefaultAPIBaseURL = "https://api.knock.app"
	// DefaultDocsBaseURL hosts the documentation search index
	DefaultDocsBaseURL = "https://docs.knock.app"
	// DefaultEnvironment is used when no environment is requested
	DefaultEnvironment = "development"

	defaultTimeout         = 30 * time.Second
	defaultMaxRetries      = 3
	defaultInitialInterval = 250 * time.Millisecond
	userAgent              = "knocktoolkit-go"
)

// ErrMissingServiceToken is returned when a client is built without credentials
var ErrMissingServiceToken = errors.New("knock service token is required")

// APIError is a non-2xx response from Knock
type APIError struct {
	StatusCode int    `json:"status"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("knock api error (status %d): %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("knock api error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to the Knock management API with a service token and
// hands out environment scoped public API clients.
type Client struct {
	serviceToken string
	baseURL      string
	apiBaseURL   string
	docsBaseURL  string
	httpClient   *http.Client
	cache        *ClientCache
	retry        retryPolicy
	logger       zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the management API base URL
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithAPIBaseURL overrides the public API base URL
func WithAPIBaseURL(u string) Option {
	return func(c *Client) {
		c.apiBaseURL = strings.TrimRight(u, "/")
	}
}

// WithDocsBaseURL overrides the documentation host
func WithDocsBaseURL(u string) Option {
	return func(c *Client) {
		c.docsBaseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client used for every request
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCache sets the cache of environment scoped public clients
func WithCache(cache *ClientCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithRetry sets how often 429 and 5xx responses are retried
func WithRetry(maxRetries uint64, initialInterval time.Duration) Option {
	return func(c *Client) {
		c.retry = retryPolicy{maxRetries: maxRetries, initialInterval: initialInterval}
	}
}

// NewClient creates a management API client
func NewClient(serviceToken string, opts ...Option) (*Client, error) {
	if serviceToken == "" {
		return nil, ErrMissingServiceToken
	}

	c := &Client{
		serviceToken: serviceToken,
		baseURL:      DefaultBaseURL,
		apiBaseURL:   DefaultAPIBaseURL,
		docsBaseURL:  DefaultDocsBaseURL,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		retry:        retryPolicy{maxRetries: defaultMaxRetries, initialInterval: defaultInitialInterval},
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cache == nil {
		cache, err := NewClientCache(nil)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}

	return c, nil
}

func (c *Client) transport() *transport {
	return &transport{
		baseURL:    c.baseURL,
		token:      c.serviceToken,
		httpClient: c.httpClient,
		retry:      c.retry,
		logger:     c.logger,
	}
}

type retryPolicy struct {
	maxRetries      uint64
	initialInterval time.Duration
}

// transport performs authenticated JSON requests against one base URL
type transport struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retry      retryPolicy
	logger     zerolog.Logger
}

// requestOption adjusts a single request
type requestOption func(*requestConfig)

type requestConfig struct {
	idempotencyKey string
}

// withIdempotencyKey sets the Idempotency-Key header. Keyed POSTs are retried.
func withIdempotencyKey(key string) requestOption {
	return func(c *requestConfig) {
		c.idempotencyKey = key
	}
}

// retrySafe reports whether a failed request may be sent again. POSTs without
// an idempotency key are sent once.
func retrySafe(method string, cfg requestConfig) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return cfg.idempotencyKey != ""
}

func (t *transport) do(ctx context.Context, method, path string, query url.Values, body, out interface{}, opts ...requestOption) error {
	var cfg requestConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	retryable := retrySafe(method, cfg)

	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	attempt := 0
	op := func() error {
		attempt++

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		if t.token != "" {
			req.Header.Set("Authorization", "Bearer "+t.token)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if cfg.idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", cfg.idempotencyKey)
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !retryable {
				return backoff.Permanent(fmt.Errorf("request failed: %w", err))
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 300 {
			apiErr := parseAPIError(resp.StatusCode, data)
			if apiErr.Retryable() && retryable {
				t.logger.Warn().
					Str("method", method).
					Str("path", path).
					Int("status", resp.StatusCode).
					Int("attempt", attempt).
					Msg("Knock request failed, retrying")
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = t.retry.initialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, t.retry.maxRetries), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		t.logger.Debug().
			Str("method", method).
			Str("path", path).
			Err(err).
			Msg("Knock request failed")
		return err
	}

	return nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}
	apiErr.StatusCode = status
	return apiErr
}

// escape builds a path from segments, escaping each one
func escape(format string, segments ...string) string {
	args := make([]interface{}, len(segments))
	for i, s := range segments {
		args[i] = url.PathEscape(s)
	}
	return fmt.Sprintf(format, args...)
}
