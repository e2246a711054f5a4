package hardcover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/drallgood/abs-hardcover-progress/internal/cache"
	"github.com/drallgood/abs-hardcover-progress/internal/logger"
	"github.com/drallgood/abs-hardcover-progress/internal/models"
	"github.com/drallgood/abs-hardcover-progress/internal/util"
)

const (
	// DefaultBaseURL is the Hardcover GraphQL endpoint
	DefaultBaseURL = "https://api.hardcover.app/v1/graphql"
	// DefaultTimeout bounds a single HTTP request
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 3
	// DefaultRetryDelay grows linearly with the attempt number
	DefaultRetryDelay = 1 * time.Second

	// CurrentUserCacheTTL is the TTL for the current user cache entry
	CurrentUserCacheTTL = 1 * time.Hour
	// SearchCacheTTL is the TTL for global identifier searches
	SearchCacheTTL = 1 * time.Hour

	libraryPageSize = 100
	userAgent       = "abs-hardcover-progress"
)

// ClientConfig holds configuration for the Hardcover client
type ClientConfig struct {
	// BaseURL is the GraphQL endpoint (default: DefaultBaseURL)
	BaseURL string
	// Timeout specifies a time limit for requests (default: DefaultTimeout)
	Timeout time.Duration
	// MaxRetries specifies the maximum number of retries for failed requests
	MaxRetries int
	// RetryDelay is multiplied by the attempt number between retries
	RetryDelay time.Duration
	// RequestsPerMinute is the shared ceiling across all callers
	RequestsPerMinute int
	// Burst is the number of requests allowed back to back
	Burst int
}

// DefaultClientConfig returns the default configuration for the client
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:           DefaultBaseURL,
		Timeout:           DefaultTimeout,
		MaxRetries:        DefaultMaxRetries,
		RetryDelay:        DefaultRetryDelay,
		RequestsPerMinute: util.DefaultRequestsPerMinute,
		Burst:             util.DefaultBurst,
	}
}

// callState records what the transport saw for one GraphQL call so the retry
// loop can tell transport failures from GraphQL errors.
type callState struct {
	status     int
	body       []byte
	retryAfter time.Duration
	netErr     error
}

type callStateKey struct{}

func withCallState(ctx context.Context, st *callState) context.Context {
	return context.WithValue(ctx, callStateKey{}, st)
}

func callStateFrom(ctx context.Context) *callState {
	st, _ := ctx.Value(callStateKey{}).(*callState)
	return st
}

// headerAddingTransport is an http.RoundTripper that adds the required headers
// for authenticating with the Hardcover API.
type headerAddingTransport struct {
	authHeader string
	rt         http.RoundTripper
}

// RoundTrip implements the http.RoundTripper interface.
func (t *headerAddingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", t.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	st := callStateFrom(req.Context())
	resp, err := t.rt.RoundTrip(req)
	if err != nil {
		if st != nil {
			st.netErr = err
		}
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest && st != nil {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		st.status = resp.StatusCode
		st.body = body
		st.retryAfter = util.ParseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return resp, nil
}

// authHeader ensures the token carries exactly one Bearer prefix
func authHeader(token string) string {
	token = strings.TrimSpace(token)
	if token != "" && !strings.HasPrefix(token, "Bearer ") {
		token = "Bearer " + token
	}
	return token
}

// Client talks to the Hardcover GraphQL API. It is safe for concurrent use;
// every caller shares one rate limiter.
type Client struct {
	gql         *graphql.Client
	logger      *logger.Logger
	rateLimiter *util.RateLimiter
	maxRetries  int
	retryDelay  time.Duration
	userCache   cache.Cache[string, int]
	searchCache cache.Cache[string, []models.CatalogBook]
	now         func() time.Time
}

// NewClient creates a Hardcover client for token.
func NewClient(cfg ClientConfig, token string, log *logger.Logger) *Client {
	def := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if log == nil {
		log = logger.Get()
	}
	childLogger := log.With(map[string]interface{}{"component": "hardcover_client"})

	authClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerAddingTransport{
			authHeader: authHeader(token),
			rt:         http.DefaultTransport,
		},
	}

	childLogger.Debug("Created Hardcover client", map[string]interface{}{
		"base_url":            cfg.BaseURL,
		"timeout":             cfg.Timeout.String(),
		"max_retries":         cfg.MaxRetries,
		"requests_per_minute": cfg.RequestsPerMinute,
	})

	return &Client{
		gql:         graphql.NewClient(cfg.BaseURL, authClient),
		logger:      childLogger,
		rateLimiter: util.NewRateLimiter(cfg.RequestsPerMinute, cfg.Burst),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		userCache: cache.WithTTL[string, int](
			cache.NewMemoryCache[string, int](childLogger), CurrentUserCacheTTL),
		searchCache: cache.WithTTL[string, []models.CatalogBook](
			cache.NewMemoryCache[string, []models.CatalogBook](childLogger), SearchCacheTTL),
		now: time.Now,
	}
}

// execute runs one idempotent GraphQL operation with rate limiting and
// retries, and decodes the data object into out. Transport failures, 429 and
// 5xx are retried; GraphQL errors and other 4xx responses are returned at once.
func (c *Client) execute(ctx context.Context, op, query string, variables map[string]interface{}, out interface{}) error {
	return c.do(ctx, op, query, variables, out, true)
}

// executeInsert runs a mutation that creates rows. Only 429 responses are
// retried: after a 5xx or a transport failure the row may already exist.
func (c *Client) executeInsert(ctx context.Context, op, query string, variables map[string]interface{}, out interface{}) error {
	return c.do(ctx, op, query, variables, out, false)
}

func (c *Client) do(ctx context.Context, op, query string, variables map[string]interface{}, out interface{}, idempotent bool) error {
	var lastErr error
	var backoff time.Duration

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(attempt)
			if backoff > delay {
				delay = backoff
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			backoff = 0
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		st := &callState{}
		data, err := c.gql.ExecRaw(withCallState(ctx, st), query, variables)
		if err == nil {
			if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
				return &ShapeError{Field: "data", Raw: string(data)}
			}
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", op, err)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		switch {
		case st.status == http.StatusTooManyRequests:
			backoff = c.rateLimiter.OnRateLimit(st.retryAfter)
			lastErr = &HTTPError{StatusCode: st.status, Body: st.body}
		case st.status >= http.StatusInternalServerError:
			lastErr = &HTTPError{StatusCode: st.status, Body: st.body}
		case st.status >= http.StatusBadRequest:
			return fmt.Errorf("%s: %w", op, &HTTPError{StatusCode: st.status, Body: st.body})
		case st.netErr != nil:
			lastErr = fmt.Errorf("HTTP request failed: %w", st.netErr)
		default:
			return fmt.Errorf("%s: graphql error: %w", op, err)
		}

		if !idempotent && st.status != http.StatusTooManyRequests {
			c.logger.Warn("Hardcover insert failed, not retrying", map[string]interface{}{
				"operation": op,
				"error":     lastErr.Error(),
			})
			return fmt.Errorf("%s: %w", op, lastErr)
		}

		c.logger.Warn("Hardcover request failed", map[string]interface{}{
			"operation": op,
			"attempt":   attempt + 1,
			"error":     lastErr.Error(),
		})
	}

	c.logger.Error("Hardcover request failed after all retries", map[string]interface{}{
		"operation":   op,
		"max_retries": c.maxRetries,
		"error":       lastErr.Error(),
	})
	return fmt.Errorf("%s failed after %d attempts: %w", op, c.maxRetries+1, lastErr)
}
